package cas

import (
	"github.com/starpos/go-cc-bench/internal/arena"
	"github.com/starpos/go-cc-bench/internal/licc"
)

type opEntry struct {
	lock      Lock
	sharedVal []byte
	local     arena.Handle
}

// ReadType selects how a Read call takes its hold: Optimistic never
// touches the mutex word (cheapest, but a concurrent writer can still
// intercept and force a retry at commit); ReadReserve/WriteReserve
// reserve the record up front so a younger writer must wait or be
// intercepted instead of racing to commit first.
type ReadType uint8

const (
	Optimistic ReadType = iota
	ReadReserve
	WriteReserve
)

// LockSet accumulates one transaction's read and write sets and drives the
// LICC precommit protocol: reserve every deferred blind write, protect
// every reserved write (the serialization point), verify every read, then
// write back and unlock.
//
// Grounded on original_source/include/licc2.hpp's LockSet, bound here to
// the CAS-only cas.Lock (internal/licc/mcs's LockSet is the same shape
// bound to the queued mcs.Lock). Local value storage uses internal/arena,
// the Go port of the source's bulk allocator the LockSet's MemoryVector
// is built on.
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

// Write buffers a local update for mutex, deferring its reservation to the
// precommit ReserveAllBlindWrites step (a "blind" write, never read
// first) unless mutex is already held READ, in which case it upgrades in
// place.
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

// ReserveAllBlindWrites takes the deferred reservation for every entry
// still in PRE_BLIND_WRITE.
func (s *LockSet) ReserveAllBlindWrites() {
	for i := range s.entries {
		if s.entries[i].lock.ld.State == licc.PreBlindWrite {
			s.entries[i].lock.ReserveForBlindWrite()
		}
	}
}

// ProtectAll is the serialization point: every reserved write becomes
// PROTECTED (un-interceptable) or the whole transaction must abort.
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

// VerifyAndUnlock checks every plain READ entry is still unchanged,
// releasing it immediately on success (S2PL allows early unlock of reads
// once the writes they must serialize before are already protected).
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

// UpdateAndUnlock writes every PROTECTED entry's local value back to its
// shared home and releases it, bumping the record's version.
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

// Abort releases every entry without writing back, used when ProtectAll
// or VerifyAndUnlock fails.
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
