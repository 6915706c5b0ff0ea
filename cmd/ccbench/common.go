// Command ccbench drives every concurrency-control protocol in
// internal/ against a shared record-set workload, matching spec.md §6's
// External Interfaces and §1's "a library ... with a driver that
// exercises it". One protocol runs per invocation, selected by -protocol.
//
// Grounded on original_source/bench/*.cpp (one benchmark binary per
// protocol in the source; here unified behind one flag) and
// original_source/include/cmdline_option.hpp's flag surface, ported to
// github.com/spf13/pflag (the flag library calvinalkan-agent-task, a
// pack repo, depends on directly).
package main

import (
	"math/rand"

	"github.com/starpos/go-cc-bench/internal/pqlock"
	"github.com/starpos/go-cc-bench/internal/workload"

	"github.com/starpos/go-cc-bench/internal/bench"
)

func newKeyGen(cfg bench.Config, rng *rand.Rand) workload.KeyGen {
	if cfg.KeyDist == bench.KeyDistZipf {
		return workload.NewZipfKeyGen(rng, uint64(cfg.NrMutexes), cfg.ZipfTheta)
	}
	return workload.NewUniformKeyGen(rng, uint64(cfg.NrMutexes))
}

func newMix(cfg bench.Config, isLongTx bool) workload.Mix {
	return workload.Mix{
		OpsPerTx:      cfg.OpsPerTx,
		WriteRatio:    cfg.WriteRatio,
		LongTxSize:    cfg.LongTxSize,
		IsLongTx:      isLongTx,
		ReadForUpdate: cfg.RMW,
	}
}

// payloadBuf returns a scratch buffer sized for one payload copy; size 0
// (payload_size disabled per spec §6) still needs a 1-byte buffer since
// every protocol's Read/Write takes a slice to copy into/from.
func payloadBuf(cfg bench.Config) []byte {
	n := cfg.PayloadSize
	if n == 0 {
		n = 1
	}
	return make([]byte, n)
}

// newPQLock builds the contention-relief gate TRLock's mutexes spin
// through, selected by cfg.PQLockType (one of the seven internal/pqlock
// variant names, or "none" to spin directly on the mutex word).
func newPQLock(kind string) pqlock.Mutex {
	switch kind {
	case "none", "":
		return nil
	case "spin":
		return &pqlock.SpinMutex{}
	case "mcs1":
		return &pqlock.Mcs1Mutex{}
	case "mcs2":
		return &pqlock.Mcs2Mutex{}
	case "mcs3":
		return &pqlock.Mcs3Mutex{}
	case "lock1993":
		return &pqlock.Lock1993Mutex{}
	case "lock1997":
		return &pqlock.Lock1997Mutex{}
	case "posix":
		return &pqlock.PosixMutex{}
	default:
		return nil
	}
}
