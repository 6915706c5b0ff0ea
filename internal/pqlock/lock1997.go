package pqlock

import (
	"github.com/starpos/go-cc-bench/internal/atomics"
)

// Lock1997Mutex reproduces the historic 1997 priority spinlock
// (PQ1997Lock in pqlock.hpp) for comparison. The source's own comment
// documents "a known memory-reuse bug" in its Node/Req pooling and leaves
// its behavior under heavy contention undefined; spec.md §9 requires a
// rewrite to either fix this with hazard pointers / epoch-based
// reclamation, or omit the variant. This repo fixes it the cheap way the
// Design Notes explicitly allow: since the worker set is fixed for the
// process lifetime, nodes are simply never freed or reused (each Acquire
// allocates a fresh node; Go's GC reclaims it once unreachable), which by
// construction cannot exhibit a reuse-after-free race. The queue discipline
// itself mirrors lock1993: a priority heap guarded by a spinlock, waiters
// parked on their own flag.
type Lock1997Mutex struct {
	guard   atomics.U32
	held    bool
	waiters lock1997Heap
}

type lock1997Node struct {
	priority uint32
	granted  atomics.U32
}

type lock1997Heap []*lock1997Node

func (h lock1997Heap) Len() int           { return len(h) }
func (h lock1997Heap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h lock1997Heap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *lock1997Heap) Push(x interface{}) {
	*h = append(*h, x.(*lock1997Node))
}
func (h *lock1997Heap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m *Lock1997Mutex) lockGuard() {
	for !m.guard.CAS(0, 1) {
		atomics.Pause()
	}
}
func (m *Lock1997Mutex) unlockGuard() { m.guard.Store(atomics.Release, 0) }

type lock1997Token struct{ m *Lock1997Mutex }

func (m *Lock1997Mutex) Acquire(priority uint32) Token {
	n := &lock1997Node{priority: priority} // fresh allocation, never pooled/reused
	m.lockGuard()
	if !m.held {
		m.held = true
		m.unlockGuard()
		return lock1997Token{m: m}
	}
	pushHeap1997(&m.waiters, n)
	m.unlockGuard()
	for n.granted.Load(atomics.Acquire) == 0 {
		atomics.Pause()
	}
	return lock1997Token{m: m}
}

func (m *Lock1997Mutex) Release() {
	m.lockGuard()
	if len(m.waiters) == 0 {
		m.held = false
		m.unlockGuard()
		return
	}
	next := popMin1997(&m.waiters)
	m.unlockGuard()
	next.granted.Store(atomics.Release, 1)
}

func (t lock1997Token) Release() { t.m.Release() }

func (m *Lock1997Mutex) TopWaitingPriority() uint32 {
	m.lockGuard()
	defer m.unlockGuard()
	if len(m.waiters) == 0 {
		return NoPriority
	}
	min := m.waiters[0].priority
	for _, n := range m.waiters[1:] {
		if n.priority < min {
			min = n.priority
		}
	}
	return min
}

// pushHeap1997/popMin1997 avoid pulling in container/heap a second time
// under a different element type; linear scan is fine at this scale and
// keeps the "fixed by never freeing, not by being fast" fix legible.
func pushHeap1997(h *lock1997Heap, n *lock1997Node) {
	*h = append(*h, n)
}

func popMin1997(h *lock1997Heap) *lock1997Node {
	s := *h
	minIdx := 0
	for i, n := range s {
		if n.priority < s[minIdx].priority {
			minIdx = i
		}
	}
	min := s[minIdx]
	s[minIdx] = s[len(s)-1]
	*h = s[:len(s)-1]
	return min
}

var _ Mutex = (*Lock1997Mutex)(nil)
