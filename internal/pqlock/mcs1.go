package pqlock

import (
	"sync/atomic"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// mcsNode is a singly-linked MCS queue node. Nodes are allocated once per
// Acquire call and never explicitly freed: the worker set is fixed for the
// process lifetime (spec.md §9's Design Notes), so retaining them for Go's
// ordinary GC to reclaim once unreachable is sufficient — no hazard
// pointers or epoch reclamation are needed, unlike lock1997's node pool
// which the source documents as unsafe to reuse without one of those
// schemes (see lock1997.go).
type mcsNode struct {
	priority uint32
	granted  atomics.U32
	next     atomic.Pointer[mcsNode]
}

// Mcs1Mutex is an MCS queue that the current holder periodically reorders
// on unlock to bring the highest-priority waiter to the front: starting
// from the immediate successor, scan to the tail, detach the
// minimum-priority node and promote it to head, then re-append the
// skipped prefix at the tail. Matches PQMcsLock (the "1993-style" MCS
// variant per spec §4.2).
type Mcs1Mutex struct {
	tail atomic.Pointer[mcsNode]
	held bool
	head *mcsNode // only valid while held
}

func (m *Mcs1Mutex) Acquire(priority uint32) Token {
	n := &mcsNode{priority: priority}
	prev := m.tail.Swap(n)
	if prev != nil {
		prev.next.Store(n)
		for n.granted.Load(atomics.Acquire) == 0 {
			atomics.Pause()
		}
	}
	m.held = true
	m.head = n
	return mcsToken{m: m}
}

func (m *Mcs1Mutex) Release() {
	self := m.head
	if self.next.Load() == nil {
		// Clear the holder state before the tail goes back to nil: from
		// then on a new first arriver sets held/head itself.
		m.held = false
		m.head = nil
		if m.tail.CompareAndSwap(self, nil) {
			return
		}
		m.held = true
		m.head = self
		for self.next.Load() == nil {
			atomics.Pause()
		}
	}
	// Reorder: scan from the successor to the current tail snapshot,
	// pick the minimum-priority node, promote it to be the new head, and
	// re-splice the other scanned nodes behind it.
	var prefix []*mcsNode
	min := self.next.Load()
	cur := min
	for cur.next.Load() != nil {
		cur = cur.next.Load()
		if cur.priority < min.priority {
			prefix = append(prefix, min)
			min = cur
		} else {
			prefix = append(prefix, cur)
		}
	}
	m.held = false
	m.head = nil
	if len(prefix) > 0 {
		for i := 0; i < len(prefix)-1; i++ {
			prefix[i].next.Store(prefix[i+1])
		}
		if last := prefix[len(prefix)-1]; cur == min {
			// min was the tail: last takes its place at the end of the chain.
			last.next.Store(nil)
			if !m.tail.CompareAndSwap(min, last) {
				for min.next.Load() == nil {
					atomics.Pause()
				}
				last.next.Store(min.next.Load())
			}
		}
		min.next.Store(prefix[0])
	}
	min.granted.Store(atomics.Release, 1)
}

type mcsToken struct{ m *Mcs1Mutex }

func (t mcsToken) Release() { t.m.Release() }

// TopWaitingPriority walks the chain from the current head's successor.
// This is O(waiters) like the source's reorder scan; fine at benchmark
// contention levels, and it is never called from a hot path.
func (m *Mcs1Mutex) TopWaitingPriority() uint32 {
	if !m.held || m.head == nil {
		return NoPriority
	}
	n := m.head.next.Load()
	if n == nil {
		return NoPriority
	}
	min := n.priority
	for n = n.next.Load(); n != nil; n = n.next.Load() {
		if n.priority < min {
			min = n.priority
		}
	}
	return min
}

var _ Mutex = (*Mcs1Mutex)(nil)
