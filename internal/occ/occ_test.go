package occ

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDataVersionRoundTrip(t *testing.T) {
	var d LockData
	d = d.withVersion(5)
	assert.Equal(t, uint32(5), d.Version())
	assert.False(t, d.IsLocked())
	d = d.setLock()
	assert.True(t, d.IsLocked())
	assert.Equal(t, uint32(5), d.Version(), "lock bit must not disturb version bits")
	d = d.incVersion()
	d = d.clearLock()
	assert.Equal(t, uint32(6), d.Version())
	assert.False(t, d.IsLocked())
}

func TestLockDataVersionWraps(t *testing.T) {
	d := LockData(0).withVersion(lockMask - 1)
	d = d.incVersion()
	assert.Equal(t, uint32(0), d.Version(), "version must wrap, not bleed into the lock bit")
}

func TestLockMutualExclusion(t *testing.T) {
	var m Mutex
	var l1 Lock
	l1.Lock(&m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var l2 Lock
		l2.Lock(&m) // must block until l1 releases
		l2.Unlock()
	}()

	assert.True(t, m.load().IsLocked())
	l1.Unlock()
	wg.Wait()
	assert.False(t, m.load().IsLocked())
}

func TestReaderVerifyDetectsConcurrentWrite(t *testing.T) {
	var m Mutex
	var r Reader
	r.Set(&m, 0)
	r.Prepare()
	assert.True(t, r.VerifyAll())

	var l Lock
	l.Lock(&m)
	l.Update()
	l.Unlock() // bumps the version

	assert.False(t, r.VerifyAll())
}

func TestLockSetCommitRoundTrip(t *testing.T) {
	var m1, m2 Mutex
	shared1 := []byte{1}
	shared2 := []byte{2}

	var s LockSet
	dst := make([]byte, 1)
	s.Read(&m1, shared1, dst)
	assert.Equal(t, byte(1), dst[0])
	s.Write(&m2, shared2, []byte{42})

	s.Lock()
	require.True(t, s.Verify())
	s.UpdateAndUnlock()

	assert.Equal(t, byte(42), shared2[0])
	assert.True(t, s.Empty())
}

func TestLockSetVerifyFailsOnConcurrentChange(t *testing.T) {
	var m Mutex
	shared := []byte{1}

	var s LockSet
	dst := make([]byte, 1)
	s.Read(&m, shared, dst)

	// A concurrent writer commits in between our read and our verify.
	var other Lock
	other.Lock(&m)
	other.Update()
	other.Unlock()

	s.Lock() // nothing in our write set, so this is a no-op
	assert.False(t, s.Verify())
	s.Abort()
}

func TestWriteThenReadSeesOwnWrite(t *testing.T) {
	var m Mutex
	shared := []byte{1}

	var s LockSet
	s.Write(&m, shared, []byte{9})

	dst := make([]byte, 1)
	s.Read(&m, shared, dst)
	assert.Equal(t, byte(9), dst[0])
}

// TestLockSetReadForUpdateReservesWriteSetWithoutExplicitWrite confirms
// ReadForUpdate alone is enough to get mutex locked and version-bumped at
// commit, even though the transaction never calls Write on it.
func TestLockSetReadForUpdateReservesWriteSetWithoutExplicitWrite(t *testing.T) {
	var m Mutex
	shared := []byte{1}

	var s LockSet
	dst := make([]byte, 1)
	s.ReadForUpdate(&m, shared, dst)
	assert.Equal(t, byte(1), dst[0])

	s.Lock()
	require.True(t, s.Verify())
	before := m.load().Version()
	s.UpdateAndUnlock()

	assert.Greater(t, m.load().Version(), before)
	assert.True(t, s.Empty())
}

// TestLockSetReadForUpdateFailsVerifyOnConcurrentChange confirms a
// ReadForUpdate'd mutex still detects a concurrent writer that commits
// between the ReadForUpdate call and our own Lock/Verify.
func TestLockSetReadForUpdateFailsVerifyOnConcurrentChange(t *testing.T) {
	var m Mutex
	shared := []byte{1}

	var s LockSet
	dst := make([]byte, 1)
	s.ReadForUpdate(&m, shared, dst)

	var other Lock
	other.Lock(&m)
	other.Update()
	other.Unlock()

	s.Lock()
	assert.False(t, s.Verify())
	s.Abort()
}
