package bench

import (
	"fmt"
	"strings"

	atomicfile "github.com/natefinch/atomic"

	"github.com/starpos/go-cc-bench/internal/histogram"
)

// FormatReport renders res the way original_source/measure_util.hpp's
// Result1::operator<< does: the commit/abort/intercepted summary line,
// followed by each histogram under a labeled section, in a gnuplot-
// friendly layout.
func FormatReport(res *histogram.Result) string {
	var sb strings.Builder
	fmt.Fprintln(&sb, res.String())
	fmt.Fprintln(&sb, "RETRY_COUNT_HISTOGRAM")
	sb.WriteString(res.RetryCountHist.String())
	fmt.Fprintln(&sb, "TX_LATENCY_HISTOGRAM")
	sb.WriteString(res.TxLatencyHist.String())
	fmt.Fprintln(&sb, "TRIAL_LATENCY_HISTOGRAM")
	sb.WriteString(res.TrialLatencyHist.String())
	return sb.String()
}

// WriteReport writes res's formatted report to path using an
// atomic rename-into-place (github.com/natefinch/atomic), so a crash
// mid-write never leaves a half-written results file behind — the
// source writes results with a bare fopen/fwrite and has no such
// guarantee.
func WriteReport(path string, res *histogram.Result) error {
	r := strings.NewReader(FormatReport(res))
	if err := atomicfile.WriteFile(path, r); err != nil {
		return fmt.Errorf("bench: write report %s: %w", path, err)
	}
	return nil
}
