package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsDistinctRanges(t *testing.T) {
	a := New()
	h1 := a.Allocate(16)
	h2 := a.Allocate(16)
	require.Len(t, h1.Bytes(), 16)
	require.Len(t, h2.Bytes(), 16)
	h1.Bytes()[0] = 0xAA
	assert.NotEqual(t, h1.Bytes()[0], h2.Bytes()[0])
}

func TestAllocateBeyondBulkSizeBypassesSlab(t *testing.T) {
	a := NewSized(64, 256)
	h := a.Allocate(1024)
	assert.Len(t, h.Bytes(), 1024)
	a.Free(h) // no-op for bypass allocations; must not panic.
}

func TestFreeThenAllocateReusesFragment(t *testing.T) {
	a := NewSized(64, 256)
	h1 := a.Allocate(64)
	a.Free(h1)
	h2 := a.Allocate(64)
	assert.Len(t, a.freeQ, 0, "the fragment should have been reused, not left idle in the free queue")
	a.Free(h2)
}

func TestGCCapsFreeQueue(t *testing.T) {
	a := NewSized(8, 16) // (cacheSize-1)/bulkSize = 1 fragment max
	var handles []Handle
	for i := 0; i < 8; i++ {
		handles = append(handles, a.Allocate(8))
	}
	for _, h := range handles {
		a.Free(h)
	}
	assert.LessOrEqual(t, len(a.freeQ), 1)
}
