package bench

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starpos/go-cc-bench/internal/affinity"
	"github.com/starpos/go-cc-bench/internal/histogram"
	"github.com/starpos/go-cc-bench/internal/workload"
)

// Run spawns cfg.NrThreads worker goroutines, each built by newTx for
// its worker id, pins them per planner (nil planner means no pinning),
// and lets them run transactions until cfg.RunSeconds elapses or ctx is
// cancelled — the idiomatic Go answer to spec §5's "quit flag" cooperative
// shutdown, using golang.org/x/sync/errgroup to propagate the first
// fatal error and context.Context to propagate cancellation, instead of
// the source's hand-rolled atomic quit/should_quit flags.
//
// newTx is called once per worker (not once per transaction attempt) so
// a protocol package can build one long-lived LockSet per worker and
// reuse it across attempts, matching spec §3.3's "transaction-private,
// reused across retries" LockSet lifecycle.
func Run(ctx context.Context, cfg Config, planner *affinity.Planner, newTx func(w *Worker) TxFunc) (*histogram.Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.RunSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RunSeconds)*time.Second)
		defer cancel()
	}

	selector := workload.Selector{NrThreadsForLongTx: cfg.NrThreadsForLongTx}

	g, gctx := errgroup.WithContext(runCtx)

	var mu sync.Mutex
	total := &histogram.Result{}

	for i := 0; i < cfg.NrThreads; i++ {
		workerID := i
		g.Go(func() error {
			if planner != nil {
				if err := planner.Pin(workerID); err != nil {
					return err
				}
			}
			w := &Worker{
				ID:       workerID,
				IsLongTx: selector.IsLongTxWorker(workerID),
				Rng:      rand.New(rand.NewSource(int64(workerID) + 1)),
			}
			res, err := runWorker(gctx, w, newTx(w))
			mu.Lock()
			total.Merge(res)
			mu.Unlock()
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}
