package bench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starpos/go-cc-bench/internal/ccproto"
)

func TestDefaultConfigHasSaneValues(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.NrThreads)
	assert.Equal(t, KeyDistUniform, cfg.KeyDist)
	assert.Equal(t, 0, cfg.PayloadSize)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
nr_threads = 8
wr_ratio = 0.2
protocol = "tictoc"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NrThreads)
	assert.Equal(t, 0.2, cfg.WriteRatio)
	assert.Equal(t, Protocol("tictoc"), cfg.Protocol)
	// Untouched fields keep their default.
	assert.Equal(t, 1000, cfg.NrMutexes)
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("LoadConfig(\"\") diverged from DefaultConfig() (-want +got):\n%s", diff)
	}
}

func TestRunAggregatesCommitsAcrossWorkers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	cfg := DefaultConfig()
	cfg.NrThreads = 4
	cfg.RunSeconds = 0 // rely on the test's own ctx timeout

	newTx := func(w *Worker) TxFunc {
		return func(ctx context.Context, w *Worker) (ccproto.Outcome, error) {
			return ccproto.Committed, nil
		}
	}

	res, err := Run(ctx, cfg, nil, newTx)
	require.NoError(t, err)
	assert.Greater(t, res.NrCommit(), uint64(0))
}

func TestRunPropagatesFatalError(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.NrThreads = 2
	cfg.RunSeconds = 0

	boom := &ccproto.FatalError{Op: "test", Err: errors.New("kaboom")}
	newTx := func(w *Worker) TxFunc {
		return func(ctx context.Context, w *Worker) (ccproto.Outcome, error) {
			return ccproto.Aborted, boom
		}
	}

	_, err := Run(ctx, cfg, nil, newTx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom.Err)
}

func TestFormatReportIncludesHistogramSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NrThreads = 1
	cfg.RunSeconds = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	newTx := func(w *Worker) TxFunc {
		return func(ctx context.Context, w *Worker) (ccproto.Outcome, error) {
			return ccproto.Committed, nil
		}
	}
	res, err := Run(ctx, cfg, nil, newTx)
	require.NoError(t, err)

	report := FormatReport(res)
	assert.Contains(t, report, "commitS:")
	assert.Contains(t, report, "RETRY_COUNT_HISTOGRAM")
	assert.Contains(t, report, "TX_LATENCY_HISTOGRAM")
}

func TestWriteReportWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.txt")

	cfg := DefaultConfig()
	cfg.NrThreads = 1
	cfg.RunSeconds = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	newTx := func(w *Worker) TxFunc {
		return func(ctx context.Context, w *Worker) (ccproto.Outcome, error) {
			return ccproto.Committed, nil
		}
	}
	res, err := Run(ctx, cfg, nil, newTx)
	require.NoError(t, err)

	require.NoError(t, WriteReport(path, res))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "commitS:")
}
