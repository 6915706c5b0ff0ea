package trlock

import "github.com/starpos/go-cc-bench/internal/arena"

type entry64 struct {
	lock      Lock64
	sharedVal []byte
	local     arena.Handle
}

// LockSet64 is a transaction's working set of Lock64 holds, mirroring
// ILockSet<PQLock>.
type LockSet64 struct {
	entries []entry64
	index   map[*Mutex64]int
	ar      *arena.Arena
	priID   uint32
	valSize int
}

func (s *LockSet64) Init(ar *arena.Arena, valSize, nrReserve int) {
	s.ar = ar
	s.valSize = valSize
	if s.valSize == 0 {
		s.valSize = 1
	}
	s.entries = make([]entry64, 0, nrReserve)
}

func (s *LockSet64) SetPriorityID(priID uint32) { s.priID = priID }

const indexThreshold64 = 4096 * 2 / 32

func (s *LockSet64) find(mutex *Mutex64) int {
	if len(s.entries) > indexThreshold64 {
		if s.index == nil {
			s.index = make(map[*Mutex64]int, len(s.entries))
		}
		for i := len(s.index); i < len(s.entries); i++ {
			s.index[s.entries[i].lock.mutex] = i
		}
		if idx, ok := s.index[mutex]; ok {
			return idx
		}
		return -1
	}
	for i := range s.entries {
		if s.entries[i].lock.mutex == mutex {
			return i
		}
	}
	return -1
}

func (s *LockSet64) allocEntry(mutex *Mutex64, sharedVal []byte) *entry64 {
	h := s.ar.Allocate(s.valSize)
	s.entries = append(s.entries, entry64{sharedVal: sharedVal, local: h})
	return &s.entries[len(s.entries)-1]
}

func (s *LockSet64) OptimisticRead(mutex *Mutex64, sharedVal, dst []byte) bool {
	if i := s.find(mutex); i >= 0 {
		copy(dst, s.entries[i].local.Bytes())
		return true
	}
	e := s.allocEntry(mutex, sharedVal)
	for {
		e.lock.PrepareOptimisticRead(mutex)
		copy(e.local.Bytes(), sharedVal)
		if e.lock.Unchanged() {
			break
		}
	}
	copy(dst, e.local.Bytes())
	return true
}

// PessimisticRead takes a shared read reservation, returning false if a
// previously optimistic hold on this mutex turns out to have been
// intercepted since the value was copied.
func (s *LockSet64) PessimisticRead(mutex *Mutex64, sharedVal, dst []byte) bool {
	if i := s.find(mutex); i < 0 {
		e := s.allocEntry(mutex, sharedVal)
		e.lock.Lock(mutex, ModeS, s.priID)
		for {
			copy(e.local.Bytes(), sharedVal)
			if e.lock.Unchanged() {
				copy(dst, e.local.Bytes())
				return true
			}
			e.lock.Unlock()
			e.lock.Lock(mutex, ModeS, s.priID)
		}
	} else {
		e := &s.entries[i]
		if e.lock.isOptimisticRead {
			uVersion := e.lock.uVersion
			e.lock.Unlock()
			e.lock.Lock(mutex, ModeS, s.priID)
			if e.lock.uVersion != uVersion {
				return false
			}
		}
		copy(dst, e.local.Bytes())
		return true
	}
}

// ReadForUpdate takes the X reservation directly (like Write) but seeds
// the local copy from the record's current value and returns it in dst,
// the read-modify-write declaration that this record is about to change
// but its prior value is still needed.
func (s *LockSet64) ReadForUpdate(mutex *Mutex64, sharedVal, dst []byte) bool {
	if i := s.find(mutex); i < 0 {
		e := s.allocEntry(mutex, sharedVal)
		e.lock.Lock(mutex, ModeX, s.priID)
		copy(e.local.Bytes(), sharedVal)
		copy(dst, e.local.Bytes())
		return true
	} else {
		e := &s.entries[i]
		if e.lock.isOptimisticRead {
			uVersion := e.lock.uVersion
			e.lock.Unlock()
			e.lock.Lock(mutex, ModeX, s.priID)
			if e.lock.uVersion != uVersion {
				return false
			}
			copy(e.local.Bytes(), sharedVal)
		} else if e.lock.mode == ModeS {
			if !e.lock.Upgrade() {
				return false
			}
		}
		copy(dst, e.local.Bytes())
		return true
	}
}

func (s *LockSet64) Write(mutex *Mutex64, sharedVal, src []byte) bool {
	if i := s.find(mutex); i < 0 {
		e := s.allocEntry(mutex, sharedVal)
		e.lock.Lock(mutex, ModeX, s.priID)
		copy(e.local.Bytes(), src)
		return true
	} else {
		e := &s.entries[i]
		if e.lock.isOptimisticRead {
			uVersion := e.lock.uVersion
			e.lock.Unlock()
			e.lock.Lock(mutex, ModeX, s.priID)
			if e.lock.uVersion != uVersion {
				return false
			}
		} else if e.lock.mode == ModeS {
			if !e.lock.Upgrade() {
				return false
			}
		}
		copy(e.local.Bytes(), src)
		return true
	}
}

func (s *LockSet64) Protect() bool {
	for i := range s.entries {
		if s.entries[i].lock.mode == ModeX {
			if !s.entries[i].lock.Protect() {
				return false
			}
		}
	}
	return true
}

func (s *LockSet64) Verify() bool {
	for i := range s.entries {
		if s.entries[i].lock.mode == ModeX {
			continue
		}
		if !s.entries[i].lock.Unchanged() {
			return false
		}
		s.entries[i].lock.Unlock()
	}
	return true
}

func (s *LockSet64) UpdateAndUnlock() {
	for i := range s.entries {
		if s.entries[i].lock.mode != ModeX {
			continue
		}
		s.entries[i].lock.Update()
		copy(s.entries[i].sharedVal, s.entries[i].local.Bytes())
		s.entries[i].lock.Unlock()
	}
	s.Clear()
}

func (s *LockSet64) Abort() {
	for i := range s.entries {
		s.entries[i].lock.Unlock()
	}
	s.Clear()
}

func (s *LockSet64) Clear() {
	for i := range s.entries {
		s.ar.Free(s.entries[i].local)
	}
	s.entries = s.entries[:0]
	s.index = nil
}

func (s *LockSet64) Empty() bool { return len(s.entries) == 0 }
