package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starpos/go-cc-bench/internal/bench"
)

// runSmoke drives cfg for a short, bounded window and asserts the run
// produced at least one committed transaction — a minimal end-to-end
// check that each protocol's runner wires its LockSet's precommit
// sequence correctly against a live recordvec store, without needing
// the Go toolchain to catch a wiring mistake.
func runSmoke(t *testing.T, protocol bench.Protocol) {
	t.Helper()
	cfg := bench.DefaultConfig()
	cfg.Protocol = protocol
	cfg.NrThreads = 4
	cfg.NrMutexes = 64
	cfg.OpsPerTx = 4
	cfg.RunSeconds = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := runBenchmark(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Greater(t, res.NrCommit(), uint64(0), "protocol %s produced no commits", protocol)
}

func TestRunBenchmarkWaitDieSmoke(t *testing.T) { runSmoke(t, bench.ProtocolWaitDie) }
func TestRunBenchmarkNoWaitSmoke(t *testing.T)  { runSmoke(t, bench.ProtocolNoWait) }
func TestRunBenchmarkLeisSmoke(t *testing.T)    { runSmoke(t, bench.ProtocolLeis) }
func TestRunBenchmarkOCCSmoke(t *testing.T)     { runSmoke(t, bench.ProtocolOCC) }
func TestRunBenchmarkTicTocSmoke(t *testing.T)  { runSmoke(t, bench.ProtocolTicToc) }
func TestRunBenchmarkLICCCasSmoke(t *testing.T) { runSmoke(t, bench.ProtocolLICCCas) }
func TestRunBenchmarkLICCMcsSmoke(t *testing.T) { runSmoke(t, bench.ProtocolLICCMcs) }
func TestRunBenchmarkTRLockSmoke(t *testing.T)  { runSmoke(t, bench.ProtocolTRLock) }

// TestRunBenchmarkRMWSmoke exercises cfg.RMW across every protocol: each
// runner must route its non-write ops through a real ReadForUpdate (or,
// for Wait-Die, a WriteLock instead of a ReadLock) rather than silently
// falling back to a plain read.
func TestRunBenchmarkRMWSmoke(t *testing.T) {
	for _, protocol := range propertyProtocols {
		protocol := protocol
		t.Run(string(protocol), func(t *testing.T) {
			t.Parallel()

			cfg := bench.DefaultConfig()
			cfg.Protocol = protocol
			cfg.NrThreads = 4
			cfg.NrMutexes = 64
			cfg.OpsPerTx = 4
			cfg.RunSeconds = 0
			cfg.RMW = true

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			res, err := runBenchmark(ctx, cfg, nil)
			require.NoError(t, err)
			assert.Greater(t, res.NrCommit(), uint64(0), "protocol %s under RMW produced no commits", protocol)
		})
	}
}

func TestRunBenchmarkUnknownProtocolErrors(t *testing.T) {
	cfg := bench.DefaultConfig()
	cfg.Protocol = "nonsense"
	_, err := runBenchmark(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewPQLockCoversEveryVariant(t *testing.T) {
	for _, kind := range []string{"", "none", "spin", "mcs1", "mcs2", "mcs3", "lock1993", "lock1997", "posix"} {
		_ = newPQLock(kind) // must not panic for any documented kind
	}
}
