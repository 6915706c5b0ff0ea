package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dualSocketTopo() []Topology {
	// 2 sockets x 2 cores x 2 threads, interleaved ids like a real
	// lscpu -p listing (hyperthread siblings come after every physical
	// core on this layout).
	return []Topology{
		{ID: 0, Core: 0, Socket: 0, Node: 0, Thread: 0},
		{ID: 1, Core: 1, Socket: 0, Node: 0, Thread: 0},
		{ID: 2, Core: 0, Socket: 1, Node: 1, Thread: 0},
		{ID: 3, Core: 1, Socket: 1, Node: 1, Thread: 0},
		{ID: 4, Core: 0, Socket: 0, Node: 0, Thread: 1},
		{ID: 5, Core: 1, Socket: 0, Node: 0, Thread: 1},
		{ID: 6, Core: 0, Socket: 1, Node: 1, Thread: 1},
		{ID: 7, Core: 1, Socket: 1, Node: 1, Thread: 1},
	}
}

func TestParseModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeNode, ModeCore, ModeThread, ModeCustom} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("bogus")
	assert.Error(t, err)
}

func TestCPUListNoneKeepsIDOrder(t *testing.T) {
	ids := CPUList(ModeNone, dualSocketTopo())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, ids)
}

func TestCPUListCorePutsPhysicalCoresFirst(t *testing.T) {
	ids := CPUList(ModeCore, dualSocketTopo())
	// All thread-0 (physical) CPUs should precede every thread-1 (HT sibling).
	threadOf := make(map[int]int)
	for _, t := range dualSocketTopo() {
		threadOf[t.ID] = t.Thread
	}
	sawThread1 := false
	for _, id := range ids {
		if threadOf[id] == 1 {
			sawThread1 = true
		} else if sawThread1 {
			t.Fatalf("physical cpu %d ordered after a hyperthread sibling", id)
		}
	}
}

func TestCPUListCustomInterleavesSockets(t *testing.T) {
	ids := CPUList(ModeCustom, dualSocketTopo())
	require.Len(t, ids, 8)
	socketOf := make(map[int]int)
	for _, t := range dualSocketTopo() {
		socketOf[t.ID] = t.Socket
	}
	// Consecutive entries should alternate sockets.
	for i := 1; i < len(ids); i++ {
		assert.NotEqual(t, socketOf[ids[i-1]], socketOf[ids[i]], "expected alternating sockets at position %d", i)
	}
}

func TestPlannerNoneIsNoop(t *testing.T) {
	p, err := NewPlanner(ModeNone, nil)
	require.NoError(t, err)
	_, ok := p.CPUFor(3)
	assert.False(t, ok)
	assert.NoError(t, p.Pin(3))
}

func TestPlannerCustomCPUsRoundRobin(t *testing.T) {
	p, err := NewPlanner(ModeCore, []int{5, 7})
	require.NoError(t, err)

	cpu0, ok := p.CPUFor(0)
	require.True(t, ok)
	assert.Equal(t, 5, cpu0)

	cpu1, ok := p.CPUFor(1)
	require.True(t, ok)
	assert.Equal(t, 7, cpu1)

	cpu2, ok := p.CPUFor(2)
	require.True(t, ok)
	assert.Equal(t, 5, cpu2, "round-robin should wrap back to the first CPU")
}
