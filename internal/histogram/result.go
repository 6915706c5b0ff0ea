package histogram

import "fmt"

// Result accumulates one worker's (or, after Merge, many workers')
// outcome counts and latency/retry histograms, split by short vs. long
// transaction. The Go twin of original_source/measure_util.hpp's
// Result1 — value[0..5] there becomes the named counters here.
type Result struct {
	CommitShort      uint64
	CommitLong       uint64
	AbortShort       uint64
	AbortLong        uint64
	InterceptedShort uint64
	InterceptedLong  uint64

	RetryCountHist   Histogram
	TxLatencyHist    Histogram
	TrialLatencyHist Histogram
}

// IncCommit records one committed transaction, short or long.
func (r *Result) IncCommit(isLongTx bool) {
	if isLongTx {
		r.CommitLong++
	} else {
		r.CommitShort++
	}
}

// AddCommit adds v committed transactions at once, used when a worker
// batches its own counting instead of incrementing one at a time.
func (r *Result) AddCommit(isLongTx bool, v uint64) {
	if isLongTx {
		r.CommitLong += v
	} else {
		r.CommitShort += v
	}
}

// IncAbort records one aborted (died, per wait-die/no-wait semantics)
// transaction.
func (r *Result) IncAbort(isLongTx bool) {
	if isLongTx {
		r.AbortLong++
	} else {
		r.AbortShort++
	}
}

// IncIntercepted records one transaction whose reservation was stolen
// by an older transaction (LICC/TRLock's interception outcome).
func (r *Result) IncIntercepted(isLongTx bool) {
	if isLongTx {
		r.InterceptedLong++
	} else {
		r.InterceptedShort++
	}
}

// AddRetryCount folds one transaction's retry count into the retry
// histogram.
func (r *Result) AddRetryCount(nrRetry uint64) { r.RetryCountHist.Add(nrRetry) }

// AddTxLatency folds one transaction's end-to-end latency (in whatever
// unit the caller measures, typically nanoseconds) into the tx-latency
// histogram.
func (r *Result) AddTxLatency(latency uint64) { r.TxLatencyHist.Add(latency) }

// AddTrialLatency folds one retry trial's latency into the trial-latency
// histogram.
func (r *Result) AddTrialLatency(latency uint64) { r.TrialLatencyHist.Add(latency) }

// NrCommit returns the total committed count across both short and long
// transactions.
func (r *Result) NrCommit() uint64 { return r.CommitShort + r.CommitLong }

// Merge accumulates rhs into r, the Go twin of Result1::operator+=. Used
// to fold every worker's per-goroutine Result into one aggregate at the
// end of a benchmark run.
func (r *Result) Merge(rhs *Result) {
	r.CommitShort += rhs.CommitShort
	r.CommitLong += rhs.CommitLong
	r.AbortShort += rhs.AbortShort
	r.AbortLong += rhs.AbortLong
	r.InterceptedShort += rhs.InterceptedShort
	r.InterceptedLong += rhs.InterceptedLong
	r.RetryCountHist.Merge(&rhs.RetryCountHist)
	r.TxLatencyHist.Merge(&rhs.TxLatencyHist)
	r.TrialLatencyHist.Merge(&rhs.TrialLatencyHist)
}

// String renders the summary line the source prints before its optional
// histogram dumps.
func (r *Result) String() string {
	return fmt.Sprintf(
		"commitS:%d commitL:%d abortS:%d abortL:%d interceptedS:%d interceptedL:%d",
		r.CommitShort, r.CommitLong, r.AbortShort, r.AbortLong, r.InterceptedShort, r.InterceptedLong)
}
