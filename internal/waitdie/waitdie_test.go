package waitdie

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starpos/go-cc-bench/internal/idgen"
)

func TestOlderWriterWaitsYoungerDies(t *testing.T) {
	var m Mutex
	require.True(t, m.WriteLock(10))

	var wg sync.WaitGroup
	wg.Add(1)
	waited := false
	go func() {
		defer wg.Done()
		waited = m.WriteLock(5) // older than 10: must wait, then succeed
	}()

	// A younger writer must die immediately rather than park.
	assert.False(t, m.WriteLock(20))

	time.Sleep(10 * time.Millisecond)
	m.UnlockWrite(10)
	wg.Wait()
	assert.True(t, waited)
	m.UnlockWrite(5)
}

func TestReadersShareLock(t *testing.T) {
	var m Mutex
	require.True(t, m.ReadLock(1))
	require.True(t, m.ReadLock(2))
	assert.False(t, m.WriteLock(3), "younger writer dies against active readers")

	m.UnlockRead(1)
	m.UnlockRead(2)
	require.True(t, m.WriteLock(3))
	m.UnlockWrite(3)
}

func TestUpgradeRequiresSoleReader(t *testing.T) {
	var m Mutex
	require.True(t, m.ReadLock(7))
	assert.True(t, m.Upgrade(7))
	m.UnlockWrite(7)

	require.True(t, m.ReadLock(1))
	require.True(t, m.ReadLock(2))
	assert.False(t, m.Upgrade(1), "upgrade must die with a co-reader present")
}

func TestReentrantReadLock(t *testing.T) {
	var m Mutex
	require.True(t, m.ReadLock(1))
	require.True(t, m.ReadLock(1))
	m.UnlockRead(1)
	assert.False(t, m.WriteLock(2), "still held by tx 1's second read ref")
	m.UnlockRead(1)
}

// TestPriorityInvariant reproduces spec property P3: whenever a
// transaction waits, its tx_id is smaller than every current holder's.
func TestPriorityInvariant(t *testing.T) {
	var m Mutex
	require.True(t, m.WriteLock(100))

	var wg sync.WaitGroup
	results := make([]bool, 0)
	var mu sync.Mutex
	for _, id := range []idgen.TxId{150, 200, 50, 90} {
		wg.Add(1)
		go func(id idgen.TxId) {
			defer wg.Done()
			ok := m.WriteLock(id)
			mu.Lock()
			results = append(results, ok)
			mu.Unlock()
			if ok {
				m.UnlockWrite(id)
			}
		}(id)
	}
	time.Sleep(10 * time.Millisecond)
	m.UnlockWrite(100)
	wg.Wait()

	// Only 50 and 90 (< 100) may ever have waited/succeeded; 150 and 200 must die.
	okCount := 0
	for _, ok := range results {
		if ok {
			okCount++
		}
	}
	assert.LessOrEqual(t, okCount, 2)
}
