// Package licc implements Lock Interception Concurrency Control (LICC): a
// single 64-bit mutex word packs a reservation order id (ord_id) and a
// version/protected/is-writer state, and readers and writers "reserve"
// against the word rather than blocking — an older (smaller ord_id)
// reservation can intercept (steal) a younger one's, so a transaction holding a
// stale reservation discovers the interception the next time it touches
// the mutex instead of being notified directly. Two mutex implementations
// share this state machine: internal/licc/cas (every transition is one
// CAS loop) and internal/licc/mcs (transitions are delegated to an
// MCS-queue owner for starvation-freedom).
//
// Grounded on original_source/include/licc2.hpp (MutexData, LockState,
// LockData, MutexOpCreator).
package licc

import (
	"fmt"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// MaxOrdID marks "unreserved" — no live transaction holds this mutex's
// reservation.
const MaxOrdID uint32 = 1<<32 - 1

// MutexData is the packed 64-bit mutex word: the low 32 bits are the
// ord_id, the high 32 bits are version (30 bits) + protected (1 bit) +
// is-writer (1 bit). This ordering matches the source's little-endian
// struct layout (ord_id is declared first and so occupies the low bytes
// of the union's uint64_t).
type MutexData uint64

const (
	versionMask   = uint32(1)<<30 - 1
	protectedBit  = uint32(1) << 30
	isWriterBit   = uint32(1) << 31
)

func packMutexData(ordID uint32, state uint32) MutexData {
	return MutexData(uint64(state)<<32 | uint64(ordID))
}

// InitMutexData is the zero-equivalent mutex state: unreserved, version 0.
func InitMutexData() MutexData { return packMutexData(MaxOrdID, 0) }

func (m MutexData) OrdID() uint32  { return uint32(m) }
func (m MutexData) state() uint32  { return uint32(m >> 32) }
func (m MutexData) Version() uint32 { return m.state() & versionMask }
func (m MutexData) Protected() bool { return m.state()&protectedBit != 0 }
func (m MutexData) IsWriter() bool  { return m.state()&isWriterBit != 0 }

func (m MutexData) withOrdID(ordID uint32) MutexData {
	return packMutexData(ordID, m.state())
}
func (m MutexData) withVersion(v uint32) MutexData {
	return packMutexData(m.OrdID(), (m.state() &^ versionMask)|(v&versionMask))
}
func (m MutexData) withProtected(p bool) MutexData {
	s := m.state() &^ protectedBit
	if p {
		s |= protectedBit
	}
	return packMutexData(m.OrdID(), s)
}
func (m MutexData) withIsWriter(w bool) MutexData {
	s := m.state() &^ isWriterBit
	if w {
		s |= isWriterBit
	}
	return packMutexData(m.OrdID(), s)
}
func (m MutexData) incVersion() MutexData { return m.withVersion(m.Version() + 1) }

func (m MutexData) String() string {
	return fmt.Sprintf("MutexData{ord:%x ver:%d protected:%v writer:%v}",
		m.OrdID(), m.Version(), m.Protected(), m.IsWriter())
}

// IsValid reports whether the mutex still shows version0 — optionally
// ignoring a protect in progress (allowProtected), used by a transaction
// that holds the protection itself.
func (m MutexData) IsValid(version0 uint32, allowProtected bool) bool {
	return (allowProtected || !m.Protected()) && m.Version() == version0
}

func (m MutexData) IsUnreserved() bool { return m.OrdID() == MaxOrdID }
func (m MutexData) IsShared() bool     { return m.OrdID() != MaxOrdID && !m.IsWriter() }
func (m MutexData) IsUnreservedOrShared() bool {
	return m.OrdID() == MaxOrdID || !m.IsWriter()
}

// CanIntercept reports whether a reservation at ordID0 can steal this
// mutex's current reservation — equality is allowed, to let a transaction
// re-reserve its own hold.
func (m MutexData) CanIntercept(ordID0 uint32) bool { return ordID0 <= m.OrdID() }

func (m MutexData) CanReadReserve(ordID0 uint32) bool {
	return m.IsUnreservedOrShared() || m.CanIntercept(ordID0)
}
func (m MutexData) CanWriteReserve(ordID0 uint32) bool {
	return m.IsUnreserved() || m.CanIntercept(ordID0)
}

// CanReadReserveWithoutChanging is the read-reservation fast path: the
// mutex already reflects a read reservation at least as old as ordID0, so
// no mutex update at all is needed, just a local bookkeeping update.
func (m MutexData) CanReadReserveWithoutChanging(ordID0 uint32) bool {
	return !m.Protected() && !m.IsWriter() && m.OrdID() < ordID0
}

func (m MutexData) PrepareReadReserve(ordID0 uint32) MutexData {
	m = m.withIsWriter(false)
	if ordID0 < m.OrdID() {
		m = m.withOrdID(ordID0)
	}
	return m
}
func (m MutexData) PrepareWriteReserve(ordID0 uint32) MutexData {
	return m.withIsWriter(true).withOrdID(ordID0)
}

// LockState is a transaction's local view of one mutex's hold.
//
//	INIT --> READ (by first read)
//	INIT --> PRE_BLIND_WRITE (by first write, not reserved yet)
//	READ --> READ_MODIFY_WRITE (by upgrade)
//	PRE_BLIND_WRITE --> BLIND_WRITE (reservation in precommit phase)
//	BLIND_WRITE or READ_MODIFY_WRITE --> PROTECTED (protection in precommit)
//	READ or BLIND_WRITE or READ_MODIFY_WRITE --> INIT (unreserve)
//	PRE_BLIND_WRITE --> INIT (abort)
//	PROTECTED --> INIT (unprotect)
type LockState uint8

const (
	Init LockState = iota
	Read
	PreBlindWrite
	BlindWrite
	ReadModifyWrite
	Protected
)

func (s LockState) String() string {
	switch s {
	case Init:
		return "INIT"
	case Read:
		return "READ"
	case PreBlindWrite:
		return "PRE_BLIND_WRITE"
	case BlindWrite:
		return "BLIND_WRITE"
	case ReadModifyWrite:
		return "READ_MODIFY_WRITE"
	case Protected:
		return "PROTECTED"
	default:
		return "UNKNOWN"
	}
}

func isStateIn(st LockState, states ...LockState) bool {
	for _, s := range states {
		if st == s {
			return true
		}
	}
	return false
}

// LockData is a transaction's local record of one mutex's lock state.
type LockData struct {
	State   LockState
	Updated bool
	OrdID   uint32
	Version uint32
}

func NewLockData(ordID uint32) LockData {
	return LockData{State: Init, OrdID: ordID}
}

func (d LockData) IsState(st LockState) bool { return d.State == st }
func (d LockData) IsStateIn(states ...LockState) bool {
	return isStateIn(d.State, states...)
}

// Capability is the outcome of attempting a state transition.
type Capability uint8

const (
	Possible Capability = iota
	MustWait
	Impossible
)

// Op builds (LockData, MutexData) transitions functionally: each method
// returns a new Op reflecting the attempted transition, leaving the
// receiver untouched, mirroring MutexOpCreator's chainable operations.
type Op struct {
	Capability Capability
	LD         LockData
	MD         MutexData
}

func NewOp(ld LockData, md MutexData) Op { return Op{Capability: Possible, LD: ld, MD: md} }

func (o Op) Possible() bool { return o.Capability == Possible }

// InvisibleRead transitions INIT->READ without touching the mutex word at
// all — used for the optimistic (non-reserving) read mode.
func (o Op) InvisibleRead() Op {
	o.LD.State = Read
	o.LD.Version = o.MD.Version()
	return o
}

// BlindWrite transitions INIT->PRE_BLIND_WRITE, a purely local step taken
// before the mutex is touched (the reservation itself happens later, at
// precommit, via Reserve(BlindWrite, ...)).
func (o Op) BlindWrite() Op {
	o.LD.State = PreBlindWrite
	return o
}

// Reserve attempts to move toState, optionally checking the locally
// remembered version is still current (used when re-affirming an
// existing reservation rather than taking a fresh one).
func (o Op) Reserve(toState LockState, checksVersion bool) Op {
	if !o.Possible() {
		return o
	}
	if checksVersion && (o.MD.Version() != o.LD.Version || o.MD.Protected()) {
		o.Capability = Impossible
		return o
	}
	var canReserve bool
	if toState == Read {
		canReserve = o.MD.CanReadReserve(o.LD.OrdID)
	} else {
		canReserve = o.MD.CanWriteReserve(o.LD.OrdID)
	}
	if !canReserve || o.MD.Protected() {
		o.Capability = MustWait
		return o
	}
	if toState == Read {
		o.MD = o.MD.PrepareReadReserve(o.LD.OrdID)
	} else {
		o.MD = o.MD.PrepareWriteReserve(o.LD.OrdID)
	}
	o.LD.State = toState
	o.LD.Version = o.MD.Version()
	return o
}

// Protect moves BLIND_WRITE or READ_MODIFY_WRITE to PROTECTED, the
// precommit step that makes a write's intent visible to every other
// transaction (no further interception is possible once protected).
func (o Op) Protect(checksVersion bool) Op {
	if !o.Possible() {
		return o
	}
	if (checksVersion && o.LD.Version != o.MD.Version()) || o.LD.OrdID != o.MD.OrdID() || o.MD.Protected() {
		o.Capability = Impossible
		return o
	}
	o.LD.State = Protected
	o.MD = o.MD.withOrdID(MaxOrdID).withProtected(true)
	return o
}

// UnlockSpecial releases fromState back to INIT.
func (o Op) UnlockSpecial(fromState LockState) Op {
	if !o.Possible() {
		return o
	}
	switch fromState {
	case Read, BlindWrite, ReadModifyWrite:
		if o.LD.OrdID == o.MD.OrdID() {
			o.MD = o.MD.withOrdID(MaxOrdID)
		}
	case Protected:
		o.MD = o.MD.withProtected(false)
		if o.LD.Updated {
			o.MD = o.MD.incVersion()
		}
	case Init, PreBlindWrite:
		// nothing to undo in the mutex word.
	}
	o.LD.State = Init
	return o
}

// UnlockGeneral dispatches UnlockSpecial on the op's own current state.
func (o Op) UnlockGeneral() Op { return o.UnlockSpecial(o.LD.State) }

// MutexReader is satisfied by both cas.Mutex and mcs.Mutex's load-only
// surface — the minimum a transaction needs to perform an optimistic
// read, regardless of which variant owns the write-side locking.
type MutexReader interface {
	Load() MutexData
}

// InvisibleRead is the optimistic read shared by both the CAS and MCS
// mutex variants: spin past an in-progress protect, copy the payload, and
// verify the version is still what was observed before the copy. It never
// touches the mutex word itself, hence "invisible" — other transactions
// never see this read reflected in the mutex state.
func InvisibleRead(mutex MutexReader, ld *LockData, shared, local []byte) {
	md0 := mutex.Load()
	for {
		atomics.Pause()
		if md0.Protected() {
			md0 = mutex.Load()
			continue
		}
		copy(local, shared)
		md1 := mutex.Load()
		if !md1.IsValid(md0.Version(), false) {
			md0 = md1
			continue
		}
		ld.Version = md0.Version()
		ld.State = Read
		return
	}
}
