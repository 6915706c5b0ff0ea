package mcs

import (
	"github.com/starpos/go-cc-bench/internal/arena"
	"github.com/starpos/go-cc-bench/internal/licc"
)

type opEntry struct {
	lock      Lock
	sharedVal []byte
	local     arena.Handle
}

type ReadType uint8

const (
	Optimistic ReadType = iota
	ReadReserve
	WriteReserve
)

// LockSet is the mcs-bound twin of cas.LockSet — same precommit protocol,
// same shape, bound to the queued mcs.Lock instead of the CAS-only
// cas.Lock. See cas.LockSet's doc comment for the protocol description.
type LockSet struct {
	entries []opEntry
	index   map[*Mutex]int
	ar      *arena.Arena
	ordID   uint32
	valSize int
}

func (s *LockSet) Init(ar *arena.Arena, valSize, nrReserve int) {
	s.ar = ar
	s.valSize = valSize
	if s.valSize == 0 {
		s.valSize = 1
	}
	s.entries = make([]opEntry, 0, nrReserve)
}

func (s *LockSet) SetOrdID(ordID uint32) { s.ordID = ordID }

const indexThreshold = 4096 / 32

func (s *LockSet) find(mutex *Mutex) int {
	if len(s.entries) > indexThreshold {
		if s.index == nil {
			s.index = make(map[*Mutex]int, len(s.entries))
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

func (s *LockSet) readDetail(readType ReadType, mutex *Mutex, sharedVal, dst []byte) bool {
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		switch e.lock.ld.State {
		case licc.Read:
			if readType == Optimistic {
				if !e.lock.IsUnchanged(false) {
					return false
				}
			} else if !e.lock.TryKeepReservation(licc.Read) {
				return false
			}
		case licc.ReadModifyWrite:
			if !e.lock.TryKeepReservation(licc.ReadModifyWrite) {
				return false
			}
		}
		copy(dst, e.local.Bytes())
		return true
	}
	h := s.ar.Allocate(s.valSize)
	local := h.Bytes()
	lk := Lock{mutex: mutex, ld: licc.NewLockData(s.ordID)}
	switch readType {
	case Optimistic:
		lk.InvisibleRead(sharedVal, local)
	case ReadReserve:
		lk.ReadAndReserve(sharedVal, local)
	case WriteReserve:
		lk.ReadForUpdate(sharedVal, local)
	}
	s.entries = append(s.entries, opEntry{lock: lk, sharedVal: sharedVal, local: h})
	copy(dst, local)
	return true
}

func (s *LockSet) OptimisticRead(mutex *Mutex, sharedVal, dst []byte) bool {
	return s.readDetail(Optimistic, mutex, sharedVal, dst)
}
func (s *LockSet) PessimisticRead(mutex *Mutex, sharedVal, dst []byte) bool {
	return s.readDetail(ReadReserve, mutex, sharedVal, dst)
}
func (s *LockSet) ReadForUpdate(mutex *Mutex, sharedVal, dst []byte) bool {
	return s.readDetail(WriteReserve, mutex, sharedVal, dst)
}

func (s *LockSet) Write(mutex *Mutex, sharedVal, src []byte) bool {
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		if e.lock.ld.State == licc.Read && !e.lock.Upgrade() {
			return false
		}
		copy(e.local.Bytes(), src)
		return true
	}
	h := s.ar.Allocate(s.valSize)
	lk := Lock{mutex: mutex, ld: licc.NewLockData(s.ordID)}
	lk.BlindWrite()
	copy(h.Bytes(), src)
	s.entries = append(s.entries, opEntry{lock: lk, sharedVal: sharedVal, local: h})
	return true
}

func (s *LockSet) ReserveAllBlindWrites() {
	for i := range s.entries {
		if s.entries[i].lock.ld.State == licc.PreBlindWrite {
			s.entries[i].lock.ReserveForBlindWrite()
		}
	}
}

func (s *LockSet) ProtectAll() bool {
	for i := range s.entries {
		switch s.entries[i].lock.ld.State {
		case licc.BlindWrite:
			if !s.entries[i].lock.Protect(false) {
				return false
			}
		case licc.ReadModifyWrite:
			if !s.entries[i].lock.Protect(true) {
				return false
			}
		}
	}
	return true
}

func (s *LockSet) VerifyAndUnlock() bool {
	for i := range s.entries {
		if s.entries[i].lock.ld.State == licc.Read {
			if !s.entries[i].lock.IsUnchanged(false) {
				return false
			}
			s.entries[i].lock.UnlockSpecial(licc.Read)
		}
	}
	return true
}

func (s *LockSet) UpdateAndUnlock() {
	for i := range s.entries {
		if s.entries[i].lock.ld.State == licc.Protected {
			s.entries[i].lock.Update()
			copy(s.entries[i].sharedVal, s.entries[i].local.Bytes())
			s.entries[i].lock.UnlockSpecial(licc.Protected)
		}
	}
	s.Clear()
}

func (s *LockSet) Abort() {
	for i := range s.entries {
		s.entries[i].lock.UnlockGeneral()
	}
	s.Clear()
}

func (s *LockSet) Clear() {
	for i := range s.entries {
		s.ar.Free(s.entries[i].local)
	}
	s.entries = s.entries[:0]
	s.index = nil
}

func (s *LockSet) Empty() bool { return len(s.entries) == 0 }
