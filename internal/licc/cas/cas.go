// Package cas implements the "simple version" LICC mutex: every state
// transition is a single CAS loop against the mutex's 64-bit word.
// Starvation-freedom depends entirely on CAS fairness under contention; see
// internal/licc/mcs for the starvation-free queued variant.
//
// Grounded on original_source/include/licc2.hpp's cas:: namespace.
package cas

import (
	"github.com/starpos/go-cc-bench/internal/atomics"
	"github.com/starpos/go-cc-bench/internal/licc"
)

// Mutex is the per-record LICC control word.
type Mutex struct {
	word atomics.U64
}

func NewMutex() *Mutex {
	m := &Mutex{}
	m.word.Store(atomics.Relaxed, uint64(licc.InitMutexData()))
	return m
}

func (m *Mutex) Load() licc.MutexData { return licc.MutexData(m.word.Load(atomics.Acquire)) }
func (m *Mutex) store(md licc.MutexData) { m.word.Store(atomics.Release, uint64(md)) }
func (m *Mutex) casAcqRel(old, new licc.MutexData) bool {
	return m.word.CAS(uint64(old), uint64(new))
}

// Lock is one transaction's hold on a Mutex.
type Lock struct {
	mutex *Mutex
	ld    licc.LockData
}

func NewLock(mutex *Mutex, ordID uint32) *Lock {
	return &Lock{mutex: mutex, ld: licc.NewLockData(ordID)}
}

func (l *Lock) IsState(st licc.LockState) bool          { return l.ld.IsState(st) }
func (l *Lock) IsStateIn(states ...licc.LockState) bool { return l.ld.IsStateIn(states...) }
func (l *Lock) MutexID() uintptr                        { return ptrID(l.mutex) }

// InvisibleRead is the optimistic (non-reserving) read.
func (l *Lock) InvisibleRead(shared, local []byte) {
	licc.InvisibleRead(l.mutex, &l.ld, shared, local)
}

func (l *Lock) readAndReserveDetail(toState licc.LockState, shared, local []byte) {
	md0 := l.mutex.Load()
	for {
		atomics.Pause()
		op := licc.NewOp(l.ld, md0).Reserve(toState, false)
		if op.Capability == licc.MustWait {
			md0 = l.mutex.Load()
			continue
		}
		copy(local, shared)
		if toState == licc.Read && md0 == op.MD {
			// No CAS needed, but the snapshot must still be verified.
			md1 := l.mutex.Load()
			if md1.IsValid(md0.Version(), false) {
				l.ld = op.LD
				return
			}
			md0 = md1
			continue
		}
		if l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			return
		}
	}
}

// ReadAndReserve is the pessimistic read: reserve a READ hold so no other
// transaction can write-reserve the record out from under it, unless an
// older (smaller ord_id) transaction intercepts the reservation.
func (l *Lock) ReadAndReserve(shared, local []byte) {
	l.readAndReserveDetail(licc.Read, shared, local)
}

// ReadForUpdate reserves READ_MODIFY_WRITE directly, for a record this
// transaction already knows it intends to write.
func (l *Lock) ReadForUpdate(shared, local []byte) {
	l.readAndReserveDetail(licc.ReadModifyWrite, shared, local)
}

// TryKeepReservation re-affirms a READ or READ_MODIFY_WRITE hold is still
// live (version unchanged, reservation not stolen), refreshing it against
// the current mutex word if needed.
func (l *Lock) TryKeepReservation(lockState licc.LockState) bool {
	md0 := l.mutex.Load()
	for {
		op := licc.NewOp(l.ld, md0).Reserve(lockState, true)
		if op.Capability == licc.Impossible {
			return false
		}
		if op.Capability == licc.MustWait {
			md0 = l.mutex.Load()
			continue
		}
		if md0 == op.MD || l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			return true
		}
	}
}

func (l *Lock) BlindWrite() {
	op := licc.NewOp(l.ld, l.mutex.Load()).BlindWrite()
	l.ld = op.LD
}

// ReserveForBlindWrite takes the BLIND_WRITE reservation a prior
// BlindWrite call deferred.
func (l *Lock) ReserveForBlindWrite() {
	md0 := l.mutex.Load()
	for {
		atomics.Pause()
		op := licc.NewOp(l.ld, md0).Reserve(licc.BlindWrite, false)
		if op.Capability == licc.MustWait {
			md0 = l.mutex.Load()
			continue
		}
		if l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			return
		}
	}
}

// Upgrade moves a READ hold to READ_MODIFY_WRITE, failing (without
// retrying) if the record's version changed since the read.
func (l *Lock) Upgrade() bool {
	md0 := l.mutex.Load()
	for {
		atomics.Pause()
		op := licc.NewOp(l.ld, md0).Reserve(licc.ReadModifyWrite, true)
		if op.Capability == licc.Impossible {
			return false
		}
		if op.Capability == licc.MustWait {
			md0 = l.mutex.Load()
			continue
		}
		if l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			return true
		}
	}
}

// Protect is the precommit step that makes a reserved write visible and
// un-interceptable; checksVersion selects READ_MODIFY_WRITE->PROTECTED
// (version must still match) vs BLIND_WRITE->PROTECTED (no version check,
// a blind write never read the old value).
func (l *Lock) Protect(checksVersion bool) bool {
	fromState := licc.BlindWrite
	if checksVersion {
		fromState = licc.ReadModifyWrite
	}
	md0 := l.mutex.Load()
	for {
		atomics.Pause()
		op := licc.NewOp(l.ld, md0).Reserve(fromState, checksVersion).Protect(checksVersion)
		if !op.Possible() {
			return false
		}
		if l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			return true
		}
	}
}

func (l *Lock) unlock(fromState licc.LockState) {
	if l.mutex == nil {
		return
	}
	if isInit(fromState) {
		l.mutex = nil
		return
	}
	md0 := l.mutex.Load()
	if isReserving(fromState) && l.ld.OrdID != md0.OrdID() {
		// Intercepted: someone else already owns the reservation, so
		// there's nothing of ours left to release.
		l.mutex = nil
		return
	}
	for {
		atomics.Pause()
		op := licc.NewOp(l.ld, md0).UnlockSpecial(fromState)
		if md0 == op.MD || l.mutex.casAcqRel(md0, op.MD) {
			l.ld = op.LD
			l.mutex = nil
			return
		}
		md0 = l.mutex.Load()
	}
}

func isInit(st licc.LockState) bool {
	return st == licc.Init || st == licc.PreBlindWrite
}
func isReserving(st licc.LockState) bool {
	return st == licc.Read || st == licc.BlindWrite || st == licc.ReadModifyWrite
}

// UnlockSpecial releases a lock known to be in fromState.
func (l *Lock) UnlockSpecial(fromState licc.LockState) { l.unlock(fromState) }

// UnlockGeneral releases a lock in whatever state it's currently in.
func (l *Lock) UnlockGeneral() { l.unlock(l.ld.State) }

// IsUnchanged reports whether the mutex still shows this lock's
// remembered version (allowProtected ignores a protect this same
// transaction is holding).
func (l *Lock) IsUnchanged(allowProtected bool) bool {
	return l.mutex.Load().IsValid(l.ld.Version, allowProtected)
}

// Update marks a PROTECTED hold as having actually changed the record, so
// unlocking it bumps the version.
func (l *Lock) Update() { l.ld.Updated = true }
