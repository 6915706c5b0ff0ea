package trlock

import "github.com/starpos/go-cc-bench/internal/arena"

type entry128 struct {
	lock      Lock128
	sharedVal []byte
	local     arena.Handle
}

// LockSet128 is the 128-bit-mutex twin of LockSet64, bound to Mutex128
// and Lock128 instead of Mutex64/Lock64.
type LockSet128 struct {
	entries []entry128
	index   map[*Mutex128]int
	ar      *arena.Arena
	txID    uint32
	valSize int
}

func (s *LockSet128) Init(ar *arena.Arena, valSize, nrReserve int) {
	s.ar = ar
	s.valSize = valSize
	if s.valSize == 0 {
		s.valSize = 1
	}
	s.entries = make([]entry128, 0, nrReserve)
}

func (s *LockSet128) SetTxID(txID uint32) { s.txID = txID }

func (s *LockSet128) find(mutex *Mutex128) int {
	for i := range s.entries {
		if s.entries[i].lock.mutex == mutex {
			return i
		}
	}
	return -1
}

func (s *LockSet128) Read(mutex *Mutex128, sharedVal, dst []byte) bool {
	if i := s.find(mutex); i >= 0 {
		copy(dst, s.entries[i].local.Bytes())
		return true
	}
	h := s.ar.Allocate(s.valSize)
	s.entries = append(s.entries, entry128{sharedVal: sharedVal, local: h})
	e := &s.entries[len(s.entries)-1]
	e.lock.Lock(mutex, ModeS, s.txID)
	for {
		copy(h.Bytes(), sharedVal)
		if e.lock.Unchanged() {
			break
		}
		e.lock.Unlock()
		e.lock.Lock(mutex, ModeS, s.txID)
	}
	copy(dst, h.Bytes())
	return true
}

func (s *LockSet128) Write(mutex *Mutex128, sharedVal, src []byte) bool {
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		if e.lock.mode == ModeS {
			e.lock.Unlock()
			e.lock.Lock(mutex, ModeX, s.txID)
		}
		copy(e.local.Bytes(), src)
		return true
	}
	h := s.ar.Allocate(s.valSize)
	s.entries = append(s.entries, entry128{sharedVal: sharedVal, local: h})
	e := &s.entries[len(s.entries)-1]
	e.lock.Lock(mutex, ModeX, s.txID)
	copy(h.Bytes(), src)
	return true
}

func (s *LockSet128) Protect() bool {
	for i := range s.entries {
		if s.entries[i].lock.mode == ModeX {
			if !s.entries[i].lock.Protect() {
				return false
			}
		}
	}
	return true
}

func (s *LockSet128) Verify() bool {
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

func (s *LockSet128) UpdateAndUnlock() {
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

func (s *LockSet128) Clear() {
	for i := range s.entries {
		s.ar.Free(s.entries[i].local)
	}
	s.entries = s.entries[:0]
}

func (s *LockSet128) Empty() bool { return len(s.entries) == 0 }
