package trlock

import (
	"github.com/starpos/go-cc-bench/internal/atomics"
	"github.com/starpos/go-cc-bench/internal/pqlock"
)

// Mutex64 is one record's LockData64 control word plus the PQLock
// instance that gates its contended CAS spin.
type Mutex64 struct {
	word atomics.U64
	pq   pqlock.Mutex
}

// NewMutex64 builds a mutex gated by pq. A nil pq falls back to spinning
// directly on the word with no priority ordering, i.e. "USE_TRLOCK_PQMCS"
// undefined in the source.
func NewMutex64(pq pqlock.Mutex) *Mutex64 {
	m := &Mutex64{pq: pq}
	m.word.Store(atomics.Relaxed, uint64(InitLockData64()))
	return m
}

func (m *Mutex64) Load() LockData64 { return LockData64(m.word.Load(atomics.Acquire)) }
func (m *Mutex64) store(v LockData64) { m.word.Store(atomics.Release, uint64(v)) }
func (m *Mutex64) cas(old, new LockData64) bool {
	return m.word.CAS(uint64(old), uint64(new))
}

// Lock64 is one transaction's hold on a Mutex64, mirroring
// InterceptibleLock64T.
type Lock64 struct {
	mutex            *Mutex64
	priID            uint32
	iVersion         uint8
	uVersion         uint64
	mode             Mode
	protected        bool
	intercepted      bool
	updated          bool
	isOptimisticRead bool
}

// PrepareOptimisticRead spins past any in-progress protect and snapshots
// the current update version for later verification.
func (l *Lock64) PrepareOptimisticRead(mutex *Mutex64) {
	l.mutex = mutex
	l.mode = ModeS
	l.isOptimisticRead = true
	for {
		d := mutex.Load()
		l.uVersion = d.UVersion()
		if !d.IsProtected() {
			return
		}
		atomics.Pause()
	}
}

func (l *Lock64) VerifyAll() bool {
	d := l.mutex.Load()
	return !d.IsProtected() && d.UVersion() == l.uVersion
}

func (l *Lock64) VerifyVersion() bool {
	return l.mutex.Load().UVersion() == l.uVersion
}

func (l *Lock64) isUnlockedOrShared(d LockData64) bool {
	if l.mode == ModeX {
		return d.IsUnlocked()
	}
	return d.CanReserveRead()
}

func (l *Lock64) canIntercept(d LockData64) bool {
	return l.priID < d.PriID() && !d.IsProtected()
}

func (l *Lock64) canLock(d LockData64) bool {
	return l.isUnlockedOrShared(d) || l.canIntercept(d)
}

// Lock reserves mutex for mode at priID, blocking (queued through pq, if
// set) until a reservation is actually granted; the grant may already be
// stale by the time Lock returns if a higher-priority request intercepts
// it immediately after — the caller discovers that via Intercepted().
func (l *Lock64) Lock(mutex *Mutex64, mode Mode, priID uint32) {
	l.mutex = mutex
	l.mode = mode
	l.priID = priID
	l.protected = false
	l.intercepted = false
	l.updated = false
	l.isOptimisticRead = false

	d0 := mutex.Load()
	for {
		var d1 LockData64
		if l.isUnlockedOrShared(d0) {
			d1 = reserve64(d0, mode, priID)
		} else if l.canIntercept(d0) {
			d1 = intercept64(d0, mode, priID)
		} else {
			d0 = l.waitFor()
			continue
		}
		if !mutex.cas(d0, d1) {
			d0 = mutex.Load()
			continue
		}
		l.iVersion = d1.IVersion()
		l.uVersion = d1.UVersion()
		return
	}
}

// waitFor blocks until canLock(mutex) might succeed, queuing through pq
// by priID so the oldest waiter gets first crack at the word instead of
// every blocked goroutine free-for-all spinning on it.
func (l *Lock64) waitFor() LockData64 {
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
		tok := l.mutex.pq.Acquire(l.priID)
		for {
			if l.priID > l.mutex.pq.TopWaitingPriority() {
				break // a strictly older transaction is waiting; yield the queue slot.
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

func (l *Lock64) isNotIntercepted(d LockData64) bool {
	if l.mode == ModeX {
		return d.PriID() == l.priID
	}
	return d.IsReadReserved() && d.IVersion() == l.iVersion && d.UVersion() == l.uVersion
}

// interceptedDetail checks whether the reservation has been stolen since
// it was taken, re-reserving or re-intercepting in place if the update
// version hasn't moved (i.e. no commit has happened that would make the
// read stale regardless).
func (l *Lock64) interceptedDetail(d0 LockData64) bool {
	if l.protected {
		return false
	}
	if l.isNotIntercepted(d0) {
		return false
	}
	for d0.UVersion() == l.uVersion {
		var d1 LockData64
		if l.isUnlockedOrShared(d0) {
			d1 = reserve64(d0, l.mode, l.priID)
		} else if l.canIntercept(d0) {
			d1 = intercept64(d0, l.mode, l.priID)
		} else {
			break
		}
		if l.mutex.cas(d0, d1) {
			l.iVersion = d1.IVersion()
			return false
		}
		d0 = l.mutex.Load()
	}
	l.intercepted = true
	return true
}

func (l *Lock64) Intercepted() bool {
	if l.intercepted {
		return true
	}
	return l.interceptedDetail(l.mutex.Load())
}

func (l *Lock64) Unchanged() bool {
	d := l.mutex.Load()
	return !d.IsProtected() && l.uVersion == d.UVersion()
}

func (l *Lock64) Protect() bool {
	if l.protected {
		return true
	}
	for {
		d0 := l.mutex.Load()
		if l.interceptedDetail(d0) {
			return false
		}
		d1 := d0.withWriteReserve(false).withWriteProtect(true)
		if l.mutex.cas(d0, d1) {
			l.protected = true
			return true
		}
	}
}

// Upgrade attempts to turn a shared hold into an exclusive one in place
// (intercepting its own reservation) when no other priority has taken
// over, falling back to a full unlock/relock otherwise.
func (l *Lock64) Upgrade() bool {
	d0 := l.mutex.Load()
	if !l.isNotIntercepted(d0) {
		return false
	}
	for d0.PriID() == l.priID {
		d1 := intercept64(d0, ModeX, l.priID)
		if l.mutex.cas(d0, d1) {
			l.mode = ModeX
			return true
		}
		d0 = l.mutex.Load()
	}
	mutex, priID, uVersion := l.mutex, l.priID, l.uVersion
	l.Unlock()
	l.Lock(mutex, ModeX, priID)
	return uVersion == l.uVersion
}

func (l *Lock64) Update() {
	if l.protected {
		l.updated = true
	}
}

func (l *Lock64) Mode() Mode       { return l.mode }
func (l *Lock64) MutexID() uintptr { return ptrID64(l.mutex) }

func (l *Lock64) Unlock() {
	if l.mutex == nil {
		return
	}
	if l.isOptimisticRead {
		l.mutex = nil
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
			d1 = d1.withWriteProtect(false)
			if l.updated {
				d1 = d1.incUVersion()
			}
			l.mutex.store(d1)
			l.mutex = nil
			return
		}
		if l.mode == ModeX {
			d1 = d1.withWriteReserve(false)
			if !l.mutex.cas(d0, d1) {
				continue
			}
			l.mutex = nil
			return
		}
		if d1.ReadReserve() > 0 {
			d1 = d1.withReadReserve(d1.ReadReserve() - 1)
		}
		if d1.PriID() == l.priID && !d1.IsUnlocked() {
			d1 = d1.withPriID(MaxPriID64)
		}
		if l.mutex.cas(d0, d1) {
			l.mutex = nil
			return
		}
	}
}
