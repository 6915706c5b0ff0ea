package pqlock

import (
	"container/heap"
	"sync/atomic"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// Mcs2Mutex extends Mcs1Mutex by having the holder maintain a private
// priority queue extracted from the MCS chain instead of re-scanning and
// re-splicing the raw chain on every release: each time the holder
// releases, it walks any newly-linked successors into its own heap, then
// pops the minimum. A dummy node marks the boundary between
// "already extracted into the heap" and "still only reachable via the
// chain", exactly as PQMcsLock2's comment describes.
type Mcs2Mutex struct {
	tail    atomic.Pointer[mcsNode]
	held    bool
	dummy   *mcsNode // boundary marker: the last node drained into pending
	pending mcs2Heap
}

type mcs2Heap []*mcsNode

func (h mcs2Heap) Len() int            { return len(h) }
func (h mcs2Heap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h mcs2Heap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mcs2Heap) Push(x interface{}) { *h = append(*h, x.(*mcsNode)) }
func (h *mcs2Heap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m *Mcs2Mutex) Acquire(priority uint32) Token {
	n := &mcsNode{priority: priority}
	prev := m.tail.Swap(n)
	if prev != nil {
		prev.next.Store(n)
		for n.granted.Load(atomics.Acquire) == 0 {
			atomics.Pause()
		}
	} else {
		// First arriver: our node starts the boundary. A handed-off holder
		// keeps the boundary and heap its predecessor left behind.
		m.dummy = n
	}
	m.held = true
	return mcs2Token{m: m}
}

// drainChain moves every node now reachable from the current dummy
// boundary into the holder's private heap, advancing the dummy forward.
func (m *Mcs2Mutex) drainChain() {
	for {
		next := m.dummy.next.Load()
		if next == nil {
			return
		}
		heap.Push(&m.pending, next)
		m.dummy = next
	}
}

func (m *Mcs2Mutex) Release() {
	m.drainChain()
	if m.pending.Len() == 0 {
		self := m.dummy
		m.held = false
		m.dummy = nil
		if m.tail.CompareAndSwap(self, nil) {
			return
		}
		m.held = true
		m.dummy = self
		for self.next.Load() == nil {
			atomics.Pause()
		}
		m.drainChain()
	}
	next := heap.Pop(&m.pending).(*mcsNode)
	m.held = false
	next.granted.Store(atomics.Release, 1)
}

type mcs2Token struct{ m *Mcs2Mutex }

func (t mcs2Token) Release() { t.m.Release() }

// TopWaitingPriority reports the minimum priority already extracted into
// the private heap; nodes not yet drained from the chain are invisible
// until the next release, matching the source's lazy extraction.
func (m *Mcs2Mutex) TopWaitingPriority() uint32 {
	if m.pending.Len() == 0 {
		return NoPriority
	}
	return m.pending[0].priority
}

var _ Mutex = (*Mcs2Mutex)(nil)
