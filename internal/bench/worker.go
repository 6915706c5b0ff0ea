package bench

import (
	"context"
	"math/rand"

	"github.com/starpos/go-cc-bench/internal/ccproto"
	"github.com/starpos/go-cc-bench/internal/histogram"
)

// Worker is the per-goroutine state a TxFunc runs against: its stable
// worker id (doubles as priority/tx id seed for protocols that want
// one), whether it drives long transactions this run, and its private
// RNG (workers never share an RNG, matching spec §5's "LockSets and
// local buffers are thread-private").
type Worker struct {
	ID       int
	IsLongTx bool
	Rng      *rand.Rand
}

// TxFunc runs one transaction attempt against cfg's protocol and
// returns its outcome. A non-nil error is always a *ccproto.FatalError
// (spec §7 kind 3) and is process-fatal — the worker pool aborts every
// other worker via ctx cancellation when one is returned.
type TxFunc func(ctx context.Context, w *Worker) (ccproto.Outcome, error)

// runWorker repeatedly attempts transactions until ctx is done,
// retrying the same logical transaction (same Worker, so same
// priority/tx-id) on Aborted/InterceptedRetry per spec §7's "driver may
// retry with the same tx_id to keep priority stable", and tallying
// retries only once the attempt eventually commits (an attempt still
// retrying when ctx ends adds nothing to the retry histogram).
func runWorker(ctx context.Context, w *Worker, txFn TxFunc) (*histogram.Result, error) {
	var res histogram.Result

	for ctx.Err() == nil {
		var retries uint64
		for {
			outcome, err := txFn(ctx, w)
			if err != nil {
				return &res, err
			}
			switch outcome {
			case ccproto.Committed:
				res.IncCommit(w.IsLongTx)
				res.AddRetryCount(retries)
			case ccproto.Aborted:
				res.IncAbort(w.IsLongTx)
				retries++
			case ccproto.InterceptedRetry:
				res.IncIntercepted(w.IsLongTx)
				retries++
			}
			if outcome == ccproto.Committed {
				break
			}
			if ctx.Err() != nil {
				return &res, nil
			}
		}
	}
	return &res, nil
}
