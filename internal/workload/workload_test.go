package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniformKeyGenStaysInRange(t *testing.T) {
	g := NewUniformKeyGen(rand.New(rand.NewSource(1)), 100)
	for i := 0; i < 1000; i++ {
		k := g.Next()
		assert.Less(t, k, uint64(100))
	}
}

func TestZipfKeyGenStaysInRangeAndSkews(t *testing.T) {
	const nrKeys = 1000
	g := NewZipfKeyGen(rand.New(rand.NewSource(1)), nrKeys, 0.99)
	counts := make(map[uint64]int)
	for i := 0; i < 5000; i++ {
		k := g.Next()
		assert.Less(t, k, uint64(nrKeys))
		counts[k]++
	}
	// A skewed distribution should concentrate hits on far fewer than
	// nrKeys distinct keys.
	assert.Less(t, len(counts), nrKeys/2)
}

func TestMixOpCountUsesLongTxSizeWhenLong(t *testing.T) {
	m := Mix{OpsPerTx: 10, LongTxSize: 4000, IsLongTx: true}
	assert.Equal(t, 4000, m.OpCount())

	m.IsLongTx = false
	assert.Equal(t, 10, m.OpCount())
}

func TestSelectorIsLongTxWorker(t *testing.T) {
	s := Selector{NrThreadsForLongTx: 1}
	assert.True(t, s.IsLongTxWorker(0))
	assert.False(t, s.IsLongTxWorker(1))
}
