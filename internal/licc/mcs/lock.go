package mcs

import "github.com/starpos/go-cc-bench/internal/licc"

// Lock is one transaction's hold on a Mutex, routed through its request
// queue instead of a CAS loop.
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

func (l *Lock) InvisibleRead(shared, local []byte) {
	licc.InvisibleRead(l.mutex, &l.ld, shared, local)
}

func (l *Lock) doRequest(reqType RequestType, checksVersion bool) bool {
	req := newRequest(reqType, l.ld, checksVersion)
	if l.mutex.DoRequest(req) {
		l.ld = req.ld
		return true
	}
	return false
}

func (l *Lock) readAndReserveDetail(reqType RequestType, shared, local []byte) {
	md0 := l.mutex.Load()
	for {
		if reqType == ReqRead && md0.CanReadReserveWithoutChanging(l.ld.OrdID) {
			// fast path: no mutex update needed, just bookkeeping.
			l.ld.State = licc.Read
			l.ld.Version = md0.Version()
		} else {
			// read/read-modify-write reserves never fail outright; they only wait.
			l.doRequest(reqType, false)
		}
		copy(local, shared)
		md0 = l.mutex.Load()
		if md0.IsValid(l.ld.Version, false) {
			return
		}
	}
}

func (l *Lock) ReadAndReserve(shared, local []byte) {
	l.readAndReserveDetail(ReqRead, shared, local)
}
func (l *Lock) ReadForUpdate(shared, local []byte) {
	l.readAndReserveDetail(ReqReadModifyWrite, shared, local)
}

// TryKeepReservation re-affirms a READ or READ_MODIFY_WRITE hold is still
// live, refreshing it via the request queue only if the fast path (no
// interception, version unchanged) doesn't already confirm it.
func (l *Lock) TryKeepReservation(lockState licc.LockState) bool {
	md0 := l.mutex.Load()
	if !md0.IsValid(l.ld.Version, false) {
		return false
	}
	if md0.OrdID() == l.ld.OrdID {
		return true
	}
	reqType := ReqReadModifyWrite
	if lockState == licc.Read {
		reqType = ReqRead
		if md0.CanReadReserveWithoutChanging(l.ld.OrdID) {
			return true
		}
	}
	return l.doRequest(reqType, true)
}

func (l *Lock) BlindWrite() {
	l.ld.State = licc.PreBlindWrite
}

func (l *Lock) ReserveForBlindWrite() {
	l.doRequest(ReqBlindWrite, false)
}

func (l *Lock) Upgrade() bool {
	return l.doRequest(ReqReadModifyWrite, true)
}

func (l *Lock) Protect(checksVersion bool) bool {
	return l.doRequest(ReqProtect, checksVersion)
}

func isInit(st licc.LockState) bool { return st == licc.Init || st == licc.PreBlindWrite }
func isReserving(st licc.LockState) bool {
	return st == licc.Read || st == licc.BlindWrite || st == licc.ReadModifyWrite
}

func (l *Lock) unlock(fromState licc.LockState) {
	if l.mutex == nil {
		return
	}
	if isInit(fromState) {
		l.mutex = nil
		return
	}
	if isReserving(fromState) && l.ld.OrdID != l.mutex.Load().OrdID() {
		l.mutex = nil
		return
	}
	l.doRequest(ReqUnlock, false)
	l.mutex = nil
}

func (l *Lock) UnlockSpecial(fromState licc.LockState) { l.unlock(fromState) }
func (l *Lock) UnlockGeneral()                         { l.unlock(l.ld.State) }

func (l *Lock) IsUnchanged(allowProtected bool) bool {
	return l.mutex.Load().IsValid(l.ld.Version, allowProtected)
}

func (l *Lock) Update() { l.ld.Updated = true }
