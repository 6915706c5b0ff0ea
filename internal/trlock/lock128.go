package trlock

import (
	"github.com/starpos/go-cc-bench/internal/atomics"
	"github.com/starpos/go-cc-bench/internal/pqlock"
)

// Mutex128 is one record's LockDataXS control word, held in an
// internal/atomics.Pair128 (no native 128-bit CAS in Go), plus the
// PQLock instance gating its contended spin.
type Mutex128 struct {
	pair atomics.Pair128
	pq   pqlock.Mutex
}

func NewMutex128(pq pqlock.Mutex) *Mutex128 {
	m := &Mutex128{pq: pq}
	lo, hi := packXS(InitLockDataXS())
	m.pair.CAS(m.pair.Load(), lo, hi)
	return m
}

func (m *Mutex128) Load() LockDataXS {
	s := m.pair.Load()
	return unpackXS(s.Lo, s.Hi)
}

func (m *Mutex128) cas(old, new LockDataXS) bool {
	oldLo, oldHi := packXS(old)
	newLo, newHi := packXS(new)
	return m.pair.CAS(atomics.Snapshot128{Lo: oldLo, Hi: oldHi}, newLo, newHi)
}

// Lock128 is one transaction's hold on a Mutex128, mirroring
// TransferableLockT<PQLock, LockDataXS>.
type Lock128 struct {
	mutex       *Mutex128
	txID        uint32
	iVersion    uint32
	uVersion    uint32
	mode        Mode
	protected   bool
	intercepted bool
	updated     bool
}

func (l *Lock128) Lock(mutex *Mutex128, mode Mode, txID uint32) {
	l.mutex = mutex
	l.mode = mode
	l.txID = txID
	l.protected = false
	l.intercepted = false
	l.updated = false

	d0 := mutex.Load()
	for {
		var d1 LockDataXS
		if d0.isUnlockedOrShared(mode) {
			d1 = reserveXS(d0, mode, txID)
		} else if d0.canIntercept(txID) {
			d1 = interceptXS(d0, mode, txID)
		} else {
			d0 = l.waitFor()
			continue
		}
		if !mutex.cas(d0, d1) {
			d0 = mutex.Load()
			continue
		}
		l.iVersion = d1.IVersion
		l.uVersion = d1.UVersion
		return
	}
}

func (l *Lock128) canLock(d LockDataXS) bool {
	return d.isUnlockedOrShared(l.mode) || d.canIntercept(l.txID)
}

func (l *Lock128) waitFor() LockDataXS {
	if l.mutex.pq == nil {
		for {
			d := l.mutex.Load()
			if l.canLock(d) {
				return d
			}
			atomics.Pause()
		}
	}
	for {
		tok := l.mutex.pq.Acquire(l.txID)
		for {
			if l.txID > l.mutex.pq.TopWaitingPriority() {
				break
			}
			d := l.mutex.Load()
			if l.canLock(d) {
				tok.Release()
				return d
			}
			atomics.Pause()
		}
		tok.Release()
	}
}

func (l *Lock128) interceptedDetail(d0 LockDataXS) bool {
	if l.protected {
		return false
	}
	if d0.IVersion == l.iVersion {
		return false
	}
	for d0.UVersion == l.uVersion {
		var d1 LockDataXS
		if d0.isUnlockedOrShared(l.mode) {
			d1 = reserveXS(d0, l.mode, l.txID)
		} else if d0.canIntercept(l.txID) {
			d1 = interceptXS(d0, l.mode, l.txID)
		} else {
			break
		}
		if l.mutex.cas(d0, d1) {
			l.iVersion = d1.IVersion
			return false
		}
		d0 = l.mutex.Load()
	}
	l.intercepted = true
	return true
}

func (l *Lock128) Intercepted() bool {
	if l.intercepted {
		return true
	}
	return l.interceptedDetail(l.mutex.Load())
}

func (l *Lock128) Unchanged() bool {
	d := l.mutex.Load()
	return d.NState != slotExclusive && l.uVersion == d.UVersion
}

func (l *Lock128) Protect() bool {
	if l.protected {
		return true
	}
	for {
		d0 := l.mutex.Load()
		if l.interceptedDetail(d0) {
			return false
		}
		d1 := d0
		d1.TState = slotUnlocked
		d1.NState = slotFor(l.mode)
		if l.mutex.cas(d0, d1) {
			l.protected = true
			return true
		}
	}
}

func (l *Lock128) Update() {
	if l.protected {
		l.updated = true
	}
}

func (l *Lock128) Mode() Mode       { return l.mode }
func (l *Lock128) MutexID() uintptr { return ptrID128(l.mutex) }

func (l *Lock128) Unlock() {
	if l.mutex == nil {
		return
	}
	for {
		if l.intercepted {
			l.mutex = nil
			return
		}
		d0 := l.mutex.Load()
		if l.interceptedDetail(d0) {
			l.mutex = nil
			return
		}
		d1 := d0
		if l.protected {
			d1.NState = slotUnlocked
			if l.updated {
				d1.UVersion++
			}
		} else {
			d1.TState = slotUnlocked
		}
		if l.mode != ModeX && d1.TxID == l.txID && !d1.IsUnlocked() {
			// No read-holder tracking (see LockDataXS's doc comment):
			// release priority to everyone rather than guess wrong.
			d1.TxID = MaxTxID
		}
		if l.mutex.cas(d0, d1) {
			l.mutex = nil
			return
		}
	}
}
