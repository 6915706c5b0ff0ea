package pqlock

import (
	"container/heap"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// SpinMutex protects a priority-ordered waiter queue with a plain spinlock;
// each waiter then spins on its own node's "granted" flag, set by whoever
// currently holds the lock when they release. Matches PQSpinLock.
type SpinMutex struct {
	guard   atomics.U32 // TTAS spinlock protecting the heap below
	waiters spinHeap
	held    bool
}

type spinNode struct {
	priority uint32
	granted  atomics.U32 // 0 = waiting, 1 = granted
}

type spinHeap []*spinNode

func (h spinHeap) Len() int            { return len(h) }
func (h spinHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h spinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *spinHeap) Push(x interface{}) { *h = append(*h, x.(*spinNode)) }
func (h *spinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m *SpinMutex) lockGuard() {
	for !m.guard.CAS(0, 1) {
		atomics.Pause()
	}
}
func (m *SpinMutex) unlockGuard() { m.guard.Store(atomics.Release, 0) }

type spinToken struct {
	m    *SpinMutex
	node *spinNode
}

// Acquire enqueues the caller by priority and spins until granted.
func (m *SpinMutex) Acquire(priority uint32) Token {
	n := &spinNode{priority: priority}
	m.lockGuard()
	if !m.held {
		m.held = true
		m.unlockGuard()
		return spinToken{m: m, node: n}
	}
	heap.Push(&m.waiters, n)
	m.unlockGuard()
	for n.granted.Load(atomics.Acquire) == 0 {
		atomics.Pause()
	}
	return spinToken{m: m, node: n}
}

// Release hands the lock to the minimum-priority waiter, if any.
func (m *SpinMutex) Release() {
	m.lockGuard()
	if m.waiters.Len() == 0 {
		m.held = false
		m.unlockGuard()
		return
	}
	next := heap.Pop(&m.waiters).(*spinNode)
	m.unlockGuard()
	next.granted.Store(atomics.Release, 1)
}

func (t spinToken) Release() { t.m.Release() }

// TopWaitingPriority returns the smallest priority currently queued.
func (m *SpinMutex) TopWaitingPriority() uint32 {
	m.lockGuard()
	defer m.unlockGuard()
	if m.waiters.Len() == 0 {
		return NoPriority
	}
	return m.waiters[0].priority
}

var _ Mutex = (*SpinMutex)(nil)
