package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// EpochGenerator increments a shared counter on a background ticker
// instead of on every Get() call, so readers pay only an atomic load.
// Grounded on original_source/include/tx_util.hpp's EpochGenerator, which
// runs its tick loop on a dedicated cybozu::thread::ThreadRunner; here the
// loop is an ordinary goroutine cancelled via context, matching how the
// rest of this module starts and stops background work (see
// internal/bench's worker pool).
type EpochGenerator struct {
	epoch    atomics.U64
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

const defaultEpochInterval = time.Millisecond

// NewEpochGenerator starts the background ticker immediately, matching
// the source's constructor. Call Close to stop it.
func NewEpochGenerator() *EpochGenerator {
	return NewEpochGeneratorInterval(defaultEpochInterval)
}

func NewEpochGeneratorInterval(interval time.Duration) *EpochGenerator {
	ctx, cancel := context.WithCancel(context.Background())
	g := &EpochGenerator{
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go g.worker(ctx)
	return g
}

func (g *EpochGenerator) worker(ctx context.Context) {
	defer close(g.done)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.epoch.FetchAdd(1)
		}
	}
}

// Get returns the current epoch value.
func (g *EpochGenerator) Get() uint64 { return g.epoch.Load(atomics.Acquire) }

// Close stops the background ticker and waits for it to exit.
func (g *EpochGenerator) Close() {
	g.cancel()
	<-g.done
}

// EpochTxIdGenerator packs a per-worker id, the shared epoch, and a small
// per-call order id into a single TxId, so that distinct workers never
// collide and priority roughly tracks arrival epoch without a shared
// atomic fetch-add. Grounded on tx_util.hpp's EpochTxIdGenerator template.
type EpochTxIdGenerator struct {
	workerID     uint64
	epochGen     *EpochGenerator
	workerBits   uint
	orderBits    uint
	boostOffset  uint64
	orderID      uint64
}

const epochTxIdTotalBits = 64

// NewEpochTxIdGenerator configures a generator for one worker. workerBits
// and orderBits must leave at least one bit for the epoch field.
func NewEpochTxIdGenerator(workerID uint64, epochGen *EpochGenerator, workerBits, orderBits uint) (*EpochTxIdGenerator, error) {
	if workerBits+orderBits >= epochTxIdTotalBits {
		return nil, fmt.Errorf("idgen: workerBits+orderBits too large: %d", workerBits+orderBits)
	}
	if workerID >= (uint64(1) << workerBits) {
		return nil, fmt.Errorf("idgen: workerID %d too large for %d bits", workerID, workerBits)
	}
	return &EpochTxIdGenerator{
		workerID:   workerID,
		epochGen:   epochGen,
		workerBits: workerBits,
		orderBits:  orderBits,
		orderID:    ^uint64(0),
	}, nil
}

// Get packs workerID (low bits), the current epoch minus any boost
// offset (middle bits), and the order id (high bits) into one TxId.
func (g *EpochTxIdGenerator) Get() TxId {
	epochBits := epochTxIdTotalBits - int(g.workerBits) - int(g.orderBits)
	epochID := g.epochGen.Get()
	if g.boostOffset > 0 {
		if epochID > g.boostOffset {
			epochID -= g.boostOffset
		} else {
			epochID = 0
		}
	}
	epochMask := maxValue(uint(epochBits))
	v := (g.workerID & maxValue(g.workerBits)) |
		((epochID & epochMask) << g.workerBits) |
		((g.orderID & maxValue(g.orderBits)) << (epochTxIdTotalBits - int(g.orderBits)))
	return TxId(v)
}

// Boost shifts the effective epoch backwards by offset, used to give a
// worker's transactions an artificial priority bump.
func (g *EpochTxIdGenerator) Boost(offset uint64) { g.boostOffset = offset }

// SetOrderID overrides the order-id field used to break ties between ids
// minted within the same epoch by the same worker.
func (g *EpochTxIdGenerator) SetOrderID(orderID uint64) { g.orderID = orderID }
