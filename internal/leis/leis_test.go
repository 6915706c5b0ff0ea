package leis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starpos/go-cc-bench/internal/nowait"
)

func TestReadWriteInAddressOrderBlocks(t *testing.T) {
	mutexes := make([]nowait.XSMutex, 4)
	shared := make([][]byte, 4)
	for i := range shared {
		shared[i] = []byte{byte(i)}
	}

	var s LockSet
	s.Init(4)
	dst := make([]byte, 1)
	for i := range mutexes {
		require.True(t, s.Read(&mutexes[i], shared[i], dst))
		assert.Equal(t, shared[i][0], dst[0])
	}
	assert.Equal(t, 4, s.Len())
	s.Unlock()
	assert.True(t, s.Empty())
}

func TestWriteThenReadSeesLocalShadow(t *testing.T) {
	var mu nowait.XSMutex
	shared := []byte{1}

	var s LockSet
	s.Init(1)
	require.True(t, s.Write(&mu, shared, []byte{9}))

	dst := make([]byte, 1)
	require.True(t, s.Read(&mu, shared, dst))
	assert.Equal(t, byte(9), dst[0], "must see own uncommitted write, not the stale shared value")

	require.True(t, s.BlindWriteLockAll())
	s.UpdateAndUnlock()
	assert.Equal(t, byte(9), shared[0], "commit must write the shadow value back to the shared slot")
}

func TestOutOfOrderAcquisitionFallsBackAndRecovers(t *testing.T) {
	// mutexes[1] sits at a lower address than mutexes[2] (both are slice
	// elements laid out contiguously); touching index 2 before index 1
	// exercises the "lock order not preserved" trylock-fallback path.
	mutexes := make([]nowait.XSMutex, 3)
	shared := [][]byte{{0}, {1}, {2}}

	var holder nowait.XSLock
	holder.Lock(&mutexes[1], X) // someone else holds the lower-address mutex

	var s LockSet
	s.Init(3)
	dst := make([]byte, 1)

	require.True(t, s.Read(&mutexes[2], shared[2], dst)) // address-ordered (first mention), blocks fine
	ok := s.Read(&mutexes[1], shared[1], dst)             // out of order: trylock fails
	assert.False(t, ok)

	holder.Unlock()
	s.Recover()

	require.True(t, s.BlindWriteLockAll())
	s.UpdateAndUnlock()
}
