package main

import (
	"context"
	"fmt"

	"github.com/starpos/go-cc-bench/internal/affinity"
	"github.com/starpos/go-cc-bench/internal/arena"
	"github.com/starpos/go-cc-bench/internal/bench"
	"github.com/starpos/go-cc-bench/internal/ccproto"
	"github.com/starpos/go-cc-bench/internal/histogram"
	"github.com/starpos/go-cc-bench/internal/idgen"
	"github.com/starpos/go-cc-bench/internal/leis"
	licccas "github.com/starpos/go-cc-bench/internal/licc/cas"
	liccmcs "github.com/starpos/go-cc-bench/internal/licc/mcs"
	"github.com/starpos/go-cc-bench/internal/nowait"
	"github.com/starpos/go-cc-bench/internal/occ"
	"github.com/starpos/go-cc-bench/internal/recordvec"
	"github.com/starpos/go-cc-bench/internal/tictoc"
	"github.com/starpos/go-cc-bench/internal/trlock"
	"github.com/starpos/go-cc-bench/internal/waitdie"
)

// runBenchmark dispatches to the runner for cfg.Protocol. Each runner
// owns its record store (one recordvec.Vector[H] with the protocol's own
// mutex header type H) and builds one long-lived LockSet per worker,
// matching spec.md §3.3's "transaction-private, reused across retries"
// lifecycle and §6's Begin/Read/Write/Precommit/Clear interface.
func runBenchmark(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	switch cfg.Protocol {
	case bench.ProtocolWaitDie:
		return runWaitDie(ctx, cfg, planner)
	case bench.ProtocolNoWait:
		return runNoWait(ctx, cfg, planner)
	case bench.ProtocolLeis:
		return runLeis(ctx, cfg, planner)
	case bench.ProtocolOCC:
		return runOCC(ctx, cfg, planner)
	case bench.ProtocolTicToc:
		return runTicToc(ctx, cfg, planner)
	case bench.ProtocolLICCCas:
		return runLICCCas(ctx, cfg, planner)
	case bench.ProtocolLICCMcs:
		return runLICCMcs(ctx, cfg, planner)
	case bench.ProtocolTRLock:
		return runTRLock(ctx, cfg, planner)
	default:
		return nil, fmt.Errorf("ccbench: unknown protocol %q", cfg.Protocol)
	}
}

// heldLock is waitdie's driver-side bookkeeping: the package ships a bare
// Mutex (spec §6's S2PL "hold everything, release all at precommit")
// with no LockSet of its own (see DESIGN.md's C6 entry), so the holder
// list lives here instead.
type heldLock struct {
	mu    *waitdie.Mutex
	write bool
}

func runWaitDie(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[waitdie.Mutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, nil)

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		idGen := &idgen.SimpleTxIdGenerator{}
		scratch := payloadBuf(cfg)
		held := make([]heldLock, 0, mix.OpCount())

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			txID := idGen.Get()
			held = held[:0]
			committed := true
			for i := 0; i < mix.OpCount(); i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					if !rec.Header.WriteLock(txID) {
						committed = false
						break
					}
					held = append(held, heldLock{&rec.Header, true})
					copy(rec.Payload, scratch)
				} else if cfg.RMW {
					// Read-modify-write: take X directly instead of S,
					// so a subsequent writer can't observe or clobber
					// this transaction's read between now and unlock.
					if !rec.Header.WriteLock(txID) {
						committed = false
						break
					}
					held = append(held, heldLock{&rec.Header, true})
					copy(scratch, rec.Payload)
				} else {
					if !rec.Header.ReadLock(txID) {
						committed = false
						break
					}
					held = append(held, heldLock{&rec.Header, false})
					copy(scratch, rec.Payload)
				}
			}
			for _, h := range held {
				if h.write {
					h.mu.UnlockWrite(txID)
				} else {
					h.mu.UnlockRead(txID)
				}
			}
			if !committed {
				return ccproto.Aborted, nil
			}
			return ccproto.Committed, nil
		}
	})
}

func runNoWait(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[nowait.XSMutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, nil)

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		var ls nowait.LockSet

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			committed := true
			for i := 0; i < mix.OpCount(); i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					if !ls.Write(&rec.Header, rec.Payload, dst) {
						committed = false
						break
					}
				} else if cfg.RMW {
					if !ls.ReadForUpdate(&rec.Header, rec.Payload, dst) {
						committed = false
						break
					}
				} else {
					if !ls.Read(&rec.Header, rec.Payload, dst) {
						committed = false
						break
					}
				}
			}
			if committed && !ls.BlindWriteLockAll() {
				committed = false
			}
			if !committed {
				ls.Unlock()
				return ccproto.Aborted, nil
			}
			ls.UpdateAndUnlock()
			return ccproto.Committed, nil
		}
	})
}

func runLeis(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[nowait.XSMutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, nil)

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		var ls leis.LockSet
		ls.Init(mix.OpCount())

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			for i := 0; i < mix.OpCount(); i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					for !ls.Write(&rec.Header, rec.Payload, dst) {
						ls.Recover()
					}
				} else if cfg.RMW {
					for !ls.ReadForUpdate(&rec.Header, rec.Payload, dst) {
						ls.Recover()
					}
				} else {
					for !ls.Read(&rec.Header, rec.Payload, dst) {
						ls.Recover()
					}
				}
			}
			if !ls.BlindWriteLockAll() {
				ls.Recover()
			}
			ls.UpdateAndUnlock()
			return ccproto.Committed, nil
		}
	})
}

func runOCC(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[occ.Mutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, nil)

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		var ls occ.LockSet

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			for i := 0; i < mix.OpCount(); i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					ls.Write(&rec.Header, rec.Payload, dst)
				} else if cfg.RMW {
					ls.ReadForUpdate(&rec.Header, rec.Payload, dst)
				} else {
					ls.Read(&rec.Header, rec.Payload, dst)
				}
			}
			ls.Lock()
			if !ls.Verify() {
				ls.Abort()
				return ccproto.Aborted, nil
			}
			ls.UpdateAndUnlock()
			return ccproto.Committed, nil
		}
	})
}

func runTicToc(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[tictoc.Mutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, nil)

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		var ls tictoc.LockSet

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			for i := 0; i < mix.OpCount(); i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					ls.Write(&rec.Header, rec.Payload, dst)
				} else if cfg.RMW {
					ls.ReadForUpdate(&rec.Header, rec.Payload, dst)
				} else {
					ls.Read(&rec.Header, rec.Payload, dst)
				}
			}
			if !ls.Commit() {
				return ccproto.Aborted, nil
			}
			return ccproto.Committed, nil
		}
	})
}

// liccReadIsOptimistic maps the configured LICC read mode to a per-op choice.
// Genuine retry-count-adaptive hybrid switching would need the source's
// unretrieved heuristic (the pack's licc2.hpp excerpt doesn't carry it);
// "hybrid" here takes the optimistic path on a transaction's first
// attempt and the pessimistic (reserving) path on every retry, which is
// the hybrid mode's documented intent (spec §4.9) even if the exact
// switch-over heuristic is simplified — see DESIGN.md.
func liccReadIsOptimistic(mode bench.LICCReadMode, isRetry bool) bool {
	switch mode {
	case bench.LICCReadPCC:
		return false
	case bench.LICCReadOCC:
		return true
	default: // hybrid
		return !isRetry
	}
}

func runLICCCas(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[licccas.Mutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, func() licccas.Mutex { return *licccas.NewMutex() })

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		ar := arena.New()
		var ls licccas.LockSet
		ls.Init(ar, max1(cfg.PayloadSize), mix.OpCount())
		var retries uint32

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			ls.SetOrdID(uint32(w.ID) + retries*1000000 + 1)
			optimistic := liccReadIsOptimistic(cfg.LICCReadMode, retries > 0)

			ok := true
			for i := 0; i < mix.OpCount() && ok; i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					ok = ls.Write(&rec.Header, rec.Payload, dst)
				} else if cfg.RMW {
					ok = ls.ReadForUpdate(&rec.Header, rec.Payload, dst)
				} else if optimistic {
					ok = ls.OptimisticRead(&rec.Header, rec.Payload, dst)
				} else {
					ok = ls.PessimisticRead(&rec.Header, rec.Payload, dst)
				}
			}
			if !ok {
				ls.Abort()
				retries++
				return ccproto.Aborted, nil
			}
			ls.ReserveAllBlindWrites()
			if !ls.ProtectAll() || !ls.VerifyAndUnlock() {
				ls.Abort()
				retries++
				return ccproto.InterceptedRetry, nil
			}
			ls.UpdateAndUnlock()
			retries = 0
			return ccproto.Committed, nil
		}
	})
}

func runLICCMcs(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[liccmcs.Mutex]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, func() liccmcs.Mutex { return *liccmcs.NewMutex() })

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		ar := arena.New()
		var ls liccmcs.LockSet
		ls.Init(ar, max1(cfg.PayloadSize), mix.OpCount())
		var retries uint32

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			ls.SetOrdID(uint32(w.ID) + retries*1000000 + 1)
			optimistic := liccReadIsOptimistic(cfg.LICCReadMode, retries > 0)

			ok := true
			for i := 0; i < mix.OpCount() && ok; i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					ok = ls.Write(&rec.Header, rec.Payload, dst)
				} else if cfg.RMW {
					ok = ls.ReadForUpdate(&rec.Header, rec.Payload, dst)
				} else if optimistic {
					ok = ls.OptimisticRead(&rec.Header, rec.Payload, dst)
				} else {
					ok = ls.PessimisticRead(&rec.Header, rec.Payload, dst)
				}
			}
			if !ok {
				ls.Abort()
				retries++
				return ccproto.Aborted, nil
			}
			ls.ReserveAllBlindWrites()
			if !ls.ProtectAll() || !ls.VerifyAndUnlock() {
				ls.Abort()
				retries++
				return ccproto.InterceptedRetry, nil
			}
			ls.UpdateAndUnlock()
			retries = 0
			return ccproto.Committed, nil
		}
	})
}

func runTRLock(ctx context.Context, cfg bench.Config, planner *affinity.Planner) (*histogram.Result, error) {
	records := &recordvec.Vector[trlock.Mutex64]{}
	records.Init(cfg.NrMutexes, cfg.PayloadSize, func() trlock.Mutex64 {
		return *trlock.NewMutex64(newPQLock(cfg.PQLockType))
	})

	return bench.Run(ctx, cfg, planner, func(w *bench.Worker) bench.TxFunc {
		keyGen := newKeyGen(cfg, w.Rng)
		mix := newMix(cfg, w.IsLongTx)
		dst := payloadBuf(cfg)
		ar := arena.New()
		var ls trlock.LockSet64
		ls.Init(ar, max1(cfg.PayloadSize), mix.OpCount())

		return func(ctx context.Context, w *bench.Worker) (ccproto.Outcome, error) {
			ls.SetPriorityID(uint32(w.ID) + 1)

			ok := true
			for i := 0; i < mix.OpCount() && ok; i++ {
				rec := records.At(int(keyGen.Next()) % records.Len())
				if mix.NextOp(w.Rng, i) {
					ok = ls.Write(&rec.Header, rec.Payload, dst)
				} else if cfg.RMW {
					ok = ls.ReadForUpdate(&rec.Header, rec.Payload, dst)
				} else {
					ok = ls.OptimisticRead(&rec.Header, rec.Payload, dst)
				}
			}
			if !ok {
				ls.Abort()
				return ccproto.Aborted, nil
			}
			if !ls.Protect() || !ls.Verify() {
				ls.Abort()
				return ccproto.InterceptedRetry, nil
			}
			ls.UpdateAndUnlock()
			return ccproto.Committed, nil
		}
	})
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
