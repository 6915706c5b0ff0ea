package pqlock

import (
	"container/heap"
	"sync"
)

// Lock1993Mutex reproduces the historic 1993-style priority spinlock for
// comparison purposes (original_source/include/pqlock.hpp's
// cybozu::lock::lock1993 namespace, exposed as PQ1993Lock). Structurally
// it is the simplest possible priority lock: one guard mutex protects a
// priority heap of waiters, and every waiter parks on one shared
// condition variable until it is at the top of the heap and the lock is
// free. The source's Req/Proc bookkeeping exists only to let a single
// background "Proc" thread service the queue; this repo has no analogous
// background thread, which keeps the priority-service-order behavior
// under test without the source's dedicated-server-thread plumbing.
type Lock1993Mutex struct {
	mu      sync.Mutex
	cond    *sync.Cond
	held    bool
	waiters lock1993Heap
}

type lock1993Req struct {
	priority uint32
	served   bool
}

type lock1993Heap []*lock1993Req

func (h lock1993Heap) Len() int            { return len(h) }
func (h lock1993Heap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h lock1993Heap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *lock1993Heap) Push(x interface{}) { *h = append(*h, x.(*lock1993Req)) }
func (h *lock1993Heap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (m *Lock1993Mutex) init() {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
}

type lock1993Token struct{ m *Lock1993Mutex }

func (m *Lock1993Mutex) Acquire(priority uint32) Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	req := &lock1993Req{priority: priority}
	heap.Push(&m.waiters, req)
	for m.held || m.waiters[0] != req {
		m.cond.Wait()
	}
	heap.Pop(&m.waiters)
	m.held = true
	req.served = true
	return lock1993Token{m: m}
}

func (m *Lock1993Mutex) Release() {
	m.mu.Lock()
	m.held = false
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (t lock1993Token) Release() { t.m.Release() }

func (m *Lock1993Mutex) TopWaitingPriority() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.waiters) == 0 {
		return NoPriority
	}
	return m.waiters[0].priority
}

var _ Mutex = (*Lock1993Mutex)(nil)
