package pqlock

import (
	"container/heap"
	"sync/atomic"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// Mcs3Mutex removes Mcs2's dummy boundary node: in the source, the tail
// word packs (tail_ptr, manager_bit) so that whichever requester's
// exchange-in observes "null, manager_bit unset" becomes the manager
// (lock holder) directly, with no placeholder object. Go's garbage
// collector requires that a live pointer always be reachable as a typed
// pointer, so this repo cannot literally steal a spare bit from a 64-bit
// word holding a *mcsNode the way the C++ source does; it models the same
// two-part atomic handoff with a pointer field (tail) plus a companion
// flag (managerAssigned), set together under the same Swap-observes-nil
// race that the packed word resolves in one instruction. The node that
// wins that race IS the manager — no dummy is ever allocated. Matches
// PQMcsLock3.
type Mcs3Mutex struct {
	tail            atomic.Pointer[mcsNode]
	managerAssigned atomics.U32

	// manager-only state, handed from each manager to the next with the role.
	boundary *mcsNode
	pending  mcs2Heap
}

func (m *Mcs3Mutex) Acquire(priority uint32) Token {
	n := &mcsNode{priority: priority}
	prev := m.tail.Swap(n)
	if prev == nil {
		// We are the first arriver: become manager immediately, no wait.
		m.managerAssigned.Store(atomics.Release, 1)
		m.boundary = n
		return mcs3Token{m: m}
	}
	prev.next.Store(n)
	for n.granted.Load(atomics.Acquire) == 0 {
		atomics.Pause()
	}
	// We were handed the manager role by the outgoing manager (see
	// Release below); its boundary and pending heap carry over to us.
	return mcs3Token{m: m}
}

func (m *Mcs3Mutex) drain() {
	for {
		next := m.boundary.next.Load()
		if next == nil {
			return
		}
		heap.Push(&m.pending, next)
		m.boundary = next
	}
}

// Release drains whatever has linked onto the chain since we became
// manager, then either hands the manager role to the minimum-priority
// queued requester or, if none arrived, exchanges the tail back to nil
// and gives up the role entirely.
func (m *Mcs3Mutex) Release() {
	m.drain()
	if m.pending.Len() == 0 {
		self := m.boundary
		m.managerAssigned.Store(atomics.Release, 0)
		m.boundary = nil
		if m.tail.CompareAndSwap(self, nil) {
			return
		}
		m.managerAssigned.Store(atomics.Release, 1)
		m.boundary = self
		for self.next.Load() == nil {
			atomics.Pause()
		}
		m.drain()
	}
	top := heap.Pop(&m.pending).(*mcsNode)
	top.granted.Store(atomics.Release, 1) // hands off the manager role
}

type mcs3Token struct{ m *Mcs3Mutex }

func (t mcs3Token) Release() { t.m.Release() }

func (m *Mcs3Mutex) TopWaitingPriority() uint32 {
	if m.pending.Len() == 0 {
		return NoPriority
	}
	return m.pending[0].priority
}

var _ Mutex = (*Mcs3Mutex)(nil)
