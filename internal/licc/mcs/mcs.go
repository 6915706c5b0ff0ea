// Package mcs implements the starvation-free LICC mutex: rather than
// retrying a CAS loop under contention, a transaction enqueues a Request
// onto an MCS-style queue and blocks on it; whichever request finds no
// predecessor becomes the batch owner and drains every request linked
// behind it — applying unlocks immediately, protects next, then reserve
// requests in arrival order (stopping at the first that must still wait,
// carried over for a future owner to retry) — so reserve requests are
// resolved in the order they were enqueued, and no request races for the
// mutex word.
//
// Grounded on original_source/include/licc2.hpp's mcs:: namespace
// (Request/Mutex/Lock, owner_task and its three processing passes). The
// source's Message-based spin-wait (WAITING/OWNER/DONE on a polled byte)
// is replaced with a Go channel close, the idiomatic blocking-wait
// primitive the rest of this corpus reaches for over a busy spin.
package mcs

import (
	"sync/atomic"

	"github.com/starpos/go-cc-bench/internal/atomics"
	"github.com/starpos/go-cc-bench/internal/licc"
)

type RequestType uint8

const (
	ReqRead RequestType = iota
	ReqBlindWrite
	ReqReadModifyWrite
	ReqProtect
	ReqUnlock
)

// Request is one transaction's pending state-transition request, linked
// into the mutex's queue. Only ever mutated by whichever goroutine
// currently holds the owner role for the mutex it was enqueued on.
type Request struct {
	next          atomic.Pointer[Request]
	reqType       RequestType
	checksVersion bool
	ld            licc.LockData
	succeeded     bool
	done          chan struct{}
}

func newRequest(reqType RequestType, ld licc.LockData, checksVersion bool) *Request {
	return &Request{reqType: reqType, checksVersion: checksVersion, ld: ld, done: make(chan struct{})}
}

func (r *Request) getNext() *Request {
	for {
		if n := r.next.Load(); n != nil {
			return n
		}
		atomics.Pause()
	}
}

func (r *Request) notifyDone() { close(r.done) }

// Mutex is the per-record LICC control word plus its MCS request queue.
// waiting holds reserve requests that hit MUST_WAIT on their owner's
// round and are carried forward for the next owner to retry — it is
// touched only by whichever goroutine currently holds ownership, so it
// needs no lock of its own.
type Mutex struct {
	tail    atomic.Pointer[Request]
	md      atomics.U64
	waiting []*Request
}

func NewMutex() *Mutex {
	m := &Mutex{}
	m.md.Store(atomics.Relaxed, uint64(licc.InitMutexData()))
	return m
}

func (m *Mutex) Load() licc.MutexData    { return licc.MutexData(m.md.Load(atomics.Acquire)) }
func (m *Mutex) store(v licc.MutexData)  { m.md.Store(atomics.Release, uint64(v)) }

// DoRequest enqueues req; if no predecessor was present, the calling
// goroutine becomes the batch owner and drains the queue before
// returning. Either way, DoRequest blocks until req is actually resolved
// — which, if req was left MUST_WAIT on its own owner round, happens only
// once some later DoRequest call on this mutex triggers a fresh drain.
func (m *Mutex) DoRequest(req *Request) bool {
	prev := m.tail.Swap(req)
	if prev != nil {
		prev.next.Store(req)
	} else {
		m.ownerTask(req)
	}
	<-req.done
	return req.succeeded
}

// ownerTask drains every request reachable from head up to the tail
// snapshot this goroutine can claim via tail.CompareAndSwap, processing
// unlocks immediately, protects next (in arrival order), then attempting
// every pending reserve (freshly collected plus any carried over from a
// prior owner) until the first that must still wait.
func (m *Mutex) ownerTask(head *Request) {
	var unlocked, protects, reserves []*Request
	node := head
	for {
		switch node.reqType {
		case ReqUnlock:
			unlocked = append(unlocked, node)
		case ReqProtect:
			protects = append(protects, node)
		default:
			reserves = append(reserves, node)
		}
		next := node.next.Load()
		if next == nil {
			if m.tail.CompareAndSwap(node, nil) {
				break
			}
			next = node.getNext()
		}
		node = next
	}

	versionChanged := false
	for _, r := range unlocked {
		if m.applyUnlock(r) {
			versionChanged = true
		}
	}
	for _, r := range protects {
		m.applyProtect(r)
	}
	m.waiting = append(m.waiting, reserves...)
	m.drainWaiting(versionChanged)

	for _, r := range unlocked {
		r.notifyDone()
	}
	for _, r := range protects {
		r.notifyDone()
	}
}

func (m *Mutex) applyUnlock(r *Request) (versionChanged bool) {
	before := m.Load()
	op := licc.NewOp(r.ld, before).UnlockGeneral()
	m.store(op.MD)
	r.ld = op.LD
	r.succeeded = true
	return op.MD.Version() != before.Version()
}

func (m *Mutex) applyProtect(r *Request) {
	op := licc.NewOp(r.ld, m.Load())
	if r.checksVersion {
		op = op.Reserve(licc.ReadModifyWrite, true).Protect(true)
	} else {
		op = op.Reserve(licc.BlindWrite, false).Protect(false)
	}
	if !op.Possible() {
		r.succeeded = false
		return
	}
	m.store(op.MD)
	r.ld = op.LD
	r.succeeded = true
}

// drainWaiting retries every pending reserve request in arrival order,
// stopping at the first that still must wait; a version bump from an
// unlock this same round fails every still-pending request that required
// the old version to hold (matching owner_fail_checking_version_requests).
func (m *Mutex) drainWaiting(versionChanged bool) {
	for len(m.waiting) > 0 {
		r := m.waiting[0]
		if !m.tryApplyReserve(r) {
			break
		}
		m.waiting = m.waiting[1:]
		r.notifyDone()
	}
	if !versionChanged {
		return
	}
	kept := m.waiting[:0]
	for _, r := range m.waiting {
		if r.checksVersion {
			r.succeeded = false
			r.notifyDone()
		} else {
			kept = append(kept, r)
		}
	}
	m.waiting = kept
}

func (m *Mutex) tryApplyReserve(r *Request) bool {
	var toState licc.LockState
	switch r.reqType {
	case ReqRead:
		toState = licc.Read
	case ReqBlindWrite:
		toState = licc.BlindWrite
	case ReqReadModifyWrite:
		toState = licc.ReadModifyWrite
	}
	op := licc.NewOp(r.ld, m.Load()).Reserve(toState, r.checksVersion)
	switch op.Capability {
	case licc.MustWait:
		return false
	case licc.Impossible:
		r.succeeded = false
		return true
	default:
		m.store(op.MD)
		r.ld = op.LD
		r.succeeded = true
		return true
	}
}
