// Package leis implements the Leis2016 two-phase lock set: acquisitions
// are taken in ascending mutex-address order whenever possible (a
// blocking lock is always safe there, since no earlier-address holder
// can be waiting on a later one), and a trylock-and-placeholder fallback
// otherwise, repaired by a retrospective recover() pass that re-sorts,
// unlocks the out-of-order suffix, and re-acquires it blocking.
//
// Grounded on original_source/include/leis_lock.hpp (MutexWithMcs /
// LockWithMcs / LeisLockSet<0,...>, the std::vector+sort variant); the
// mutex word itself is internal/nowait's XSMutex, which is the same
// signed-counter design leis_lock.hpp's MutexWithMcs uses (this repo
// omits the MCS spinlock leis_lock.hpp layers underneath blocking lock()
// calls, since internal/nowait.XSMutex.Lock already spins with a pause
// hint — see DESIGN.md for why no separate MCS gate is wired in here).
package leis

import (
	"sort"
	"unsafe"

	"github.com/starpos/go-cc-bench/internal/nowait"
)

type Mode = nowait.Mode

const (
	Invalid = nowait.Invalid
	S       = nowait.S
	X       = nowait.X
)

// addr returns the comparison key used for address ordering. Converting
// to uintptr only to compare/sort — never converting back to a pointer
// from a stored value — keeps this within the safe subset of package
// unsafe's pointer rules (the real *XSMutex stays reachable via the
// OpEntry.lock field for as long as the key is used).
func addr(m *nowait.XSMutex) uintptr { return uintptr(unsafe.Pointer(m)) }

// opEntry is one lock-set slot: a real lock once acquired, or (lock.Mode
// == Invalid) a placeholder recording which mutex still needs recovery.
type opEntry struct {
	lock     nowait.XSLock
	isShared bool
	shared   []byte // aliases the record's shared payload, set on first mention
	local    []byte // shadow value for writes/read-for-update, nil otherwise
	valid    bool   // local holds a value consistent with the current lock generation
}

func (e *opEntry) mutexID() uintptr { return addr(e.lock.Mutex()) }

// LockSet accumulates one transaction's locks in (mostly) address order.
type LockSet struct {
	entries  []opEntry
	maxMutex uintptr
	nrSorted int
}

// Init resets the set and preallocates capacity for nrReserve entries.
func (s *LockSet) Init(nrReserve int) {
	s.entries = make([]opEntry, 0, nrReserve)
	s.maxMutex = 0
	s.nrSorted = 0
}

func (s *LockSet) find(mutex *nowait.XSMutex) int {
	key := addr(mutex)
	sortedEnd := s.nrSorted
	lo, hi := 0, sortedEnd
	for lo < hi {
		mid := (lo + hi) / 2
		if s.entries[mid].mutexID() < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < sortedEnd && s.entries[lo].mutexID() == key {
		return lo
	}
	for i := sortedEnd; i < len(s.entries); i++ {
		if s.entries[i].mutexID() == key {
			return i
		}
	}
	return -1
}

// Read acquires S on mutex (copying sharedVal into dst), returning false
// only when address order was not preserved and the trylock fell through
// — the caller must then call Recover before retrying.
func (s *LockSet) Read(mutex *nowait.XSMutex, sharedVal []byte, dst []byte) bool {
	key := addr(mutex)
	if s.maxMutex < key {
		s.entries = append(s.entries, opEntry{isShared: true, shared: sharedVal})
		e := &s.entries[len(s.entries)-1]
		e.lock.Lock(mutex, S)
		s.maxMutex = key
		if s.nrSorted+1 == len(s.entries) {
			s.nrSorted++
		}
		copy(dst, sharedVal)
		return true
	}
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		if e.lock.Mode() == S {
			copy(dst, sharedVal)
			return true
		}
		// X or Invalid: read our own shadow copy if we have one, else the shared value.
		if e.local != nil {
			copy(dst, e.local)
		} else {
			copy(dst, sharedVal)
		}
		return true
	}
	s.entries = append(s.entries, opEntry{isShared: true, shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	if e.lock.TryLock(mutex, S) {
		copy(dst, sharedVal)
		return true
	}
	e.lock.SetMutex(mutex)
	return false
}

// ReadForUpdate acquires X directly (instead of S-then-upgrade) for a
// read-modify-write access, following the same address-order/trylock
// split as Read.
func (s *LockSet) ReadForUpdate(mutex *nowait.XSMutex, sharedVal []byte, dst []byte) bool {
	key := addr(mutex)
	if s.maxMutex < key {
		s.entries = append(s.entries, opEntry{isShared: false, shared: sharedVal})
		e := &s.entries[len(s.entries)-1]
		e.lock.Lock(mutex, X)
		s.maxMutex = key
		if s.nrSorted+1 == len(s.entries) {
			s.nrSorted++
		}
		copy(dst, sharedVal)
		return true
	}
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		switch e.lock.Mode() {
		case X:
			if e.local != nil {
				copy(dst, e.local)
			} else {
				copy(dst, sharedVal)
			}
			return true
		case S:
			e.isShared = false
			if e.lock.TryUpgrade() {
				copy(dst, sharedVal)
				return true
			}
			mu := e.lock.Mutex()
			e.lock.Unlock()
			e.lock.SetMutex(mu)
			return false
		default: // Invalid placeholder
			mu := e.lock.Mutex()
			if e.lock.TryLock(mu, X) {
				copy(dst, sharedVal)
				return true
			}
			return false
		}
	}
	s.entries = append(s.entries, opEntry{isShared: false, shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	if e.lock.TryLock(mutex, X) {
		copy(dst, sharedVal)
		return true
	}
	e.lock.SetMutex(mutex)
	return false
}

// Write records or acquires X on mutex. A mutex never before mentioned
// becomes a blind write: no lock is taken until BlindWriteLockAll.
func (s *LockSet) Write(mutex *nowait.XSMutex, sharedVal []byte, src []byte) bool {
	if i := s.find(mutex); i >= 0 {
		e := &s.entries[i]
		if e.lock.Mode() != S {
			e.local = append(e.local[:0], src...)
			e.isShared = false
			return true
		}
		e.isShared = false
		if e.lock.TryUpgrade() {
			e.local = append(e.local[:0], src...)
			return true
		}
		mu := e.lock.Mutex()
		e.lock.Unlock()
		e.lock.SetMutex(mu)
		return false
	}
	s.entries = append(s.entries, opEntry{isShared: false, shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	e.lock.SetMutex(mutex)
	e.local = append([]byte(nil), src...)
	key := addr(mutex)
	if key > s.maxMutex {
		s.maxMutex = key
	}
	return true
}

// BlindWriteLockAll trylocks every still-unlocked (blind write) entry, in
// whatever order they were recorded in. Returns false if any trylock
// fails — the caller must Recover.
func (s *LockSet) BlindWriteLockAll() bool {
	for i := range s.entries {
		e := &s.entries[i]
		if e.lock.Mode() != Invalid {
			continue
		}
		mu := e.lock.Mutex()
		mode := S
		if !e.isShared {
			mode = X
		}
		if !e.lock.TryLock(mu, mode) {
			e.lock.SetMutex(mu)
			return false
		}
	}
	return true
}

// Recover sorts the entry set by mutex address, unlocks and invalidates
// every entry from the first out-of-order (still-Invalid) one onward,
// then re-acquires that suffix blocking in address order — safe because
// nothing earlier in the sorted order can now be waiting behind it.
func (s *LockSet) Recover() {
	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].mutexID() < s.entries[j].mutexID()
	})

	target := len(s.entries)
	for i := range s.entries {
		if !s.entries[i].isShared {
			s.entries[i].valid = false
		}
		if s.entries[i].lock.Mode() == Invalid {
			target = i
			break
		}
	}
	for i := target; i < len(s.entries); i++ {
		e := &s.entries[i]
		if !e.isShared {
			e.valid = false
		}
		mu := e.lock.Mutex()
		e.lock.Unlock()
		e.lock.SetMutex(mu)
	}
	for i := target; i < len(s.entries); i++ {
		e := &s.entries[i]
		mu := e.lock.Mutex()
		mode := S
		if !e.isShared {
			mode = X
		}
		e.lock.Lock(mu, mode)
	}

	if len(s.entries) > 0 {
		s.maxMutex = s.entries[len(s.entries)-1].mutexID()
	}
	s.nrSorted = len(s.entries)
}

// UpdateAndUnlock writes every pending local value back to its shared
// home (the serialization point) and releases every lock.
func (s *LockSet) UpdateAndUnlock() {
	for i := range s.entries {
		e := &s.entries[i]
		if e.lock.Mode() == X && e.local != nil && e.shared != nil {
			copy(e.shared, e.local)
		}
		e.lock.Unlock()
	}
	s.Clear()
}

// Unlock releases every held lock without writing back, used on abort.
func (s *LockSet) Unlock() {
	for i := range s.entries {
		s.entries[i].lock.Unlock()
	}
	s.Clear()
}

func (s *LockSet) Clear() {
	s.entries = s.entries[:0]
	s.maxMutex = 0
	s.nrSorted = 0
}

func (s *LockSet) Empty() bool { return len(s.entries) == 0 }
func (s *LockSet) Len() int    { return len(s.entries) }
