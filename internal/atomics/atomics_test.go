package atomics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU32CASAndFetchAdd(t *testing.T) {
	var a U32
	a.Store(Relaxed, 5)
	assert.Equal(t, uint32(5), a.Load(Relaxed))
	assert.False(t, a.CAS(1, 2))
	require.True(t, a.CAS(5, 6))
	assert.Equal(t, uint32(6), a.Load(Relaxed))
	assert.Equal(t, uint32(6), a.FetchAdd(4))
	assert.Equal(t, uint32(10), a.Load(Relaxed))
}

func TestU64ConcurrentFetchAddIsExact(t *testing.T) {
	var a U64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.FetchAdd(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(100), a.Load(Relaxed))
}

func TestPair128CASRequiresExactMatch(t *testing.T) {
	var p Pair128
	require.True(t, p.CAS(Snapshot128{}, 1, 2))
	assert.Equal(t, Snapshot128{Lo: 1, Hi: 2}, p.Load())

	assert.False(t, p.CAS(Snapshot128{Lo: 9, Hi: 9}, 3, 4))
	assert.Equal(t, Snapshot128{Lo: 1, Hi: 2}, p.Load())

	require.True(t, p.CAS(Snapshot128{Lo: 1, Hi: 2}, 3, 4))
	assert.Equal(t, Snapshot128{Lo: 3, Hi: 4}, p.Load())
}
