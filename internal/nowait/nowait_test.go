package nowait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXSMutexExclusiveExcludesEverything(t *testing.T) {
	var m XSMutex
	require.True(t, m.TryLock(X))
	assert.False(t, m.TryLock(X))
	assert.False(t, m.TryLock(S))
	m.Unlock(X)
	assert.True(t, m.TryLock(S))
}

func TestXSMutexSharedAllowsMultipleReaders(t *testing.T) {
	var m XSMutex
	require.True(t, m.TryLock(S))
	assert.True(t, m.TryLock(S))
	assert.False(t, m.TryLock(X))
	m.Unlock(S)
	m.Unlock(S)
	assert.True(t, m.TryLock(X))
}

func TestXSMutexUpgradeRequiresSoleReader(t *testing.T) {
	var m XSMutex
	require.True(t, m.TryLock(S))
	assert.True(t, m.TryUpgrade())
	m.Unlock(X)

	require.True(t, m.TryLock(S))
	require.True(t, m.TryLock(S)) // second reader
	assert.False(t, m.TryUpgrade())
}

func TestLockSetReadThenWriteUpgradesInPlace(t *testing.T) {
	var m XSMutex
	shared := []byte{1}
	dst := make([]byte, 1)

	var s LockSet
	require.True(t, s.Read(&m, shared, dst))
	require.True(t, s.Write(&m, shared, []byte{9}))
	assert.False(t, m.TryLock(S), "lock set should hold X after in-place upgrade")
	s.Unlock()
	assert.True(t, m.TryLock(S))
}

func TestLockSetWriteIsBlindUntilBlindWriteLockAll(t *testing.T) {
	var m XSMutex
	shared := []byte{1}

	var s LockSet
	require.True(t, s.Write(&m, shared, []byte{9}))
	// The write is staged locally only; no lock is held yet.
	assert.True(t, m.TryLock(S), "a fresh write must not lock until BlindWriteLockAll")
	m.Unlock(S)

	require.True(t, s.BlindWriteLockAll())
	assert.False(t, m.TryLock(S), "BlindWriteLockAll must actually acquire X")
	s.UpdateAndUnlock()
	assert.Equal(t, byte(9), shared[0], "commit must write the shadow value back to the shared slot")
}

func TestLockSetWriteThenReadSeesLocalShadow(t *testing.T) {
	var m XSMutex
	shared := []byte{1}
	dst := make([]byte, 1)

	var s LockSet
	require.True(t, s.Write(&m, shared, []byte{9}))
	require.True(t, s.Read(&m, shared, dst))
	assert.Equal(t, byte(9), dst[0], "must see own uncommitted write, not the stale shared value")

	require.True(t, s.BlindWriteLockAll())
	s.UpdateAndUnlock()
	assert.Equal(t, byte(9), shared[0])
}

func TestLockSetDiesOnConflict(t *testing.T) {
	var m XSMutex
	shared := []byte{1}
	dst := make([]byte, 1)

	var other LockSet
	require.True(t, other.ReadForUpdate(&m, shared, dst))

	var s LockSet
	assert.False(t, s.ReadForUpdate(&m, shared, dst), "conflicting writer should die, not wait")
	other.Unlock()
}

func TestLockSetBlindWriteLockAllDiesOnConflict(t *testing.T) {
	var m XSMutex
	shared := []byte{1}
	dst := make([]byte, 1)

	var s LockSet
	require.True(t, s.Write(&m, shared, []byte{9}))

	var other LockSet
	require.True(t, other.ReadForUpdate(&m, shared, dst)) // takes X immediately

	assert.False(t, s.BlindWriteLockAll(), "deferred write must die against an already-X-held mutex")
	s.Unlock()
	other.Unlock()
}

func TestLockSetUnlockReleasesAll(t *testing.T) {
	var m1, m2 XSMutex
	shared1, shared2 := []byte{1}, []byte{2}
	dst := make([]byte, 1)

	var s LockSet
	require.True(t, s.ReadForUpdate(&m1, shared1, dst))
	require.True(t, s.Read(&m2, shared2, dst))
	s.Unlock()
	assert.True(t, s.Empty())

	var other LockSet
	assert.True(t, other.ReadForUpdate(&m1, shared1, dst))
	assert.True(t, other.ReadForUpdate(&m2, shared2, dst))
}
