// Package histogram buckets latency and retry-count samples into
// power-of-two buckets and tallies per-worker benchmark outcomes,
// matching spec.md §6's reported metrics.
//
// Grounded on original_source/measure_util.hpp's Histogram and Result1;
// no histogram library (hdrhistogram, codahale, or otherwise) appears
// anywhere in this pack's dependency surface, so this stays stdlib-only
// by necessity — see DESIGN.md.
package histogram

import (
	"fmt"
	"math/bits"
	"strings"
)

// numBuckets mirrors HISTOGRAM_SIZE+1: one bucket per bit-length of a
// 64-bit value (0 and 1..64), plus bucket 0 for the value zero itself.
const numBuckets = 65

// Histogram counts samples by power-of-two bucket: bucket 0 holds zero
// values, bucket i (1 <= i <= 64) holds values whose bit length is i —
// i.e. values in [2^(i-1), 2^i).
type Histogram struct {
	data [numBuckets]uint64
}

// Add records one sample, bucketing it by bits.Len64 the way the source
// buckets by 64 - __builtin_clzl(value).
func (h *Histogram) Add(value uint64) {
	if value == 0 {
		h.data[0]++
		return
	}
	h.data[bits.Len64(value)]++
}

// Merge accumulates rhs's counts into h, the Go twin of Histogram::merge.
func (h *Histogram) Merge(rhs *Histogram) {
	for i := range h.data {
		h.data[i] += rhs.data[i]
	}
}

// At returns the raw count in bucket i (0 <= i <= 64).
func (h *Histogram) At(i int) uint64 {
	if i < 0 || i >= numBuckets {
		panic(fmt.Sprintf("histogram: bucket %d out of range", i))
	}
	return h.data[i]
}

// String renders the histogram in the source's gnuplot-friendly format:
// bucket labels "0", "1", "2", then "2^{i-1}" for every bucket i above 2,
// up to the last nonempty bucket (empty trailing buckets are omitted,
// empty buckets before the last nonempty one are printed with count 0),
// matching Histogram::put_to.
func (h *Histogram) String() string {
	maxBucket := numBuckets
	for maxBucket > 0 && h.data[maxBucket-1] == 0 {
		maxBucket--
	}

	var sb strings.Builder
	for i := 0; i <= 2 && i < maxBucket; i++ {
		fmt.Fprintf(&sb, "%d %d\n", i, h.data[i])
	}
	for i := 3; i < maxBucket; i++ {
		fmt.Fprintf(&sb, "2^{%d} %d\n", i-1, h.data[i])
	}
	return sb.String()
}
