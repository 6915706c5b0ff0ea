package histogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddBucketsByZeroValue(t *testing.T) {
	var h Histogram
	h.Add(0)
	h.Add(0)
	assert.Equal(t, uint64(2), h.At(0))
}

func TestAddBucketsByBitLengthPrecise(t *testing.T) {
	var h Histogram
	h.Add(3) // bit length 2 -> bucket 2
	h.Add(4) // bit length 3 -> bucket 3
	h.Add(7) // bit length 3 -> bucket 3
	h.Add(8) // bit length 4 -> bucket 4

	assert.Equal(t, uint64(1), h.At(2))
	assert.Equal(t, uint64(2), h.At(3))
	assert.Equal(t, uint64(1), h.At(4))
}

func TestMergeSumsBuckets(t *testing.T) {
	var a, b Histogram
	a.Add(1)
	a.Add(8)
	b.Add(1)
	b.Add(2)

	a.Merge(&b)
	assert.Equal(t, uint64(2), a.At(1))
	assert.Equal(t, uint64(1), a.At(2))
	assert.Equal(t, uint64(1), a.At(4))
}

func TestStringOmitsEmptyTrailingBucketsAndUsesPow2Labels(t *testing.T) {
	var h Histogram
	h.Add(0)
	h.Add(8) // bit length 4 -> bucket 4 -> label "2^{3}"

	s := h.String()
	assert.Contains(t, s, "0 1\n")
	assert.Contains(t, s, "2^{3} 1\n")
}

func TestResultMergeAndSummary(t *testing.T) {
	var r1, r2 Result
	r1.IncCommit(false)
	r1.IncCommit(true)
	r1.IncAbort(false)
	r1.AddRetryCount(2)

	r2.IncCommit(false)
	r2.IncIntercepted(true)

	r1.Merge(&r2)

	assert.Equal(t, uint64(2), r1.CommitShort)
	assert.Equal(t, uint64(1), r1.CommitLong)
	assert.Equal(t, uint64(1), r1.AbortShort)
	assert.Equal(t, uint64(1), r1.InterceptedLong)
	assert.Equal(t, uint64(3), r1.NrCommit())
	assert.Contains(t, r1.String(), "commitS:2")
}
