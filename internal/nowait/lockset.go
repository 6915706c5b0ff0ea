package nowait

// opEntry is one lock-set slot: a real lock once trylocked, or (lock.Mode
// == Invalid) a blind-write placeholder recording which mutex still needs
// its X lock taken in BlindWriteLockAll. shared aliases the record's
// shared payload; local is the transaction-private shadow copy that
// every write lands in — reads of an already-touched mutex return local,
// never the shared slot directly, so an aborted access never leaves a
// partial write visible outside the transaction.
type opEntry struct {
	lock   XSLock
	shared []byte
	local  []byte
}

// LockSet accumulates the locks and local write buffers a transaction
// touches over its lifetime: a second access to the same mutex reuses
// the existing entry (and upgrades S -> X in place) instead of
// double-locking and deadlocking against itself, and every write is
// staged into a local shadow copy rather than the shared record, so a
// later access in the same transaction that dies leaves nothing behind.
// Unlock releases every held lock (and drops any not-yet-locked blind
// write) in one pass; Clear only resets the set and releases nothing.
//
// Grounded directly on original_source/include/nowait.hpp's
// NoWaitLockSet: the local_ MemoryVector plus bwV_ blind-write vector are
// reproduced here as a local []byte per entry plus a blind-write index
// slice (Go's GC makes a flat byte arena unnecessary — each entry just
// owns its shadow slice directly), and the source's linear-scan-then-
// hash-index crossover (at a 4096-byte threshold) is reproduced as-is
// since it is the documented fix for O(n) lookup cost once a
// transaction's lock set grows large.
type LockSet struct {
	entries []opEntry
	index   map[*XSMutex]int
	indexed int
	blind   []int // indices into entries whose X lock is still deferred
}

const indexThreshold = 4096 / 32 // matches the source's sizeof(Lock)-scaled threshold, sized for this package's XSLock

func (s *LockSet) find(mutex *XSMutex) (int, bool) {
	if len(s.entries) > indexThreshold {
		if s.index == nil {
			s.index = make(map[*XSMutex]int, len(s.entries))
		}
		for ; s.indexed < len(s.entries); s.indexed++ {
			s.index[s.entries[s.indexed].lock.Mutex()] = s.indexed
		}
		i, ok := s.index[mutex]
		return i, ok
	}
	for i := range s.entries {
		if s.entries[i].lock.Mutex() == mutex {
			return i, true
		}
	}
	return 0, false
}

// Read acquires S on mutex if this lock set has not already touched it
// (copying sharedVal into dst), or replays the transaction-local shadow
// value if it has already written or blind-written mutex. Returns false
// ("should die") if the trylock fails.
func (s *LockSet) Read(mutex *XSMutex, sharedVal []byte, dst []byte) bool {
	if i, ok := s.find(mutex); ok {
		e := &s.entries[i]
		if e.lock.Mode() == S {
			copy(dst, sharedVal)
			return true
		}
		copy(dst, e.local)
		return true
	}
	s.entries = append(s.entries, opEntry{shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	if !e.lock.TryLock(mutex, S) {
		s.entries = s.entries[:len(s.entries)-1]
		return false
	}
	copy(dst, sharedVal)
	return true
}

// Write stages src into mutex's local shadow copy. A mutex mentioned for
// the first time becomes a blind write: no lock is taken until
// BlindWriteLockAll, since a write never needs to observe the record's
// current value. An existing S entry is upgraded to X in place, failing
// ("should die") if the upgrade can't be granted immediately.
func (s *LockSet) Write(mutex *XSMutex, sharedVal []byte, src []byte) bool {
	if i, ok := s.find(mutex); ok {
		e := &s.entries[i]
		if e.lock.Mode() == S {
			if !e.lock.TryUpgrade() {
				return false
			}
		}
		e.local = append(e.local[:0], src...)
		return true
	}
	s.entries = append(s.entries, opEntry{shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	e.lock.SetMutex(mutex)
	e.local = append([]byte(nil), src...)
	s.blind = append(s.blind, len(s.entries)-1)
	return true
}

// ReadForUpdate acquires X directly (instead of S-then-upgrade) for a
// read-modify-write access, staging sharedVal into the local shadow copy
// so a subsequent Write in the same transaction lands on top of it.
// Returns false ("should die") if the lock/upgrade can't be granted
// immediately.
func (s *LockSet) ReadForUpdate(mutex *XSMutex, sharedVal []byte, dst []byte) bool {
	if i, ok := s.find(mutex); ok {
		e := &s.entries[i]
		switch e.lock.Mode() {
		case X:
			copy(dst, e.local)
			return true
		case S:
			if !e.lock.TryUpgrade() {
				return false
			}
			e.local = append(e.local[:0], sharedVal...)
			copy(dst, e.local)
			return true
		default: // Invalid: a blind-write placeholder already holds our shadow value.
			copy(dst, e.local)
			return true
		}
	}
	s.entries = append(s.entries, opEntry{shared: sharedVal})
	e := &s.entries[len(s.entries)-1]
	if !e.lock.TryLock(mutex, X) {
		s.entries = s.entries[:len(s.entries)-1]
		return false
	}
	e.local = append(e.local[:0], sharedVal...)
	copy(dst, e.local)
	return true
}

// BlindWriteLockAll trylocks every still-deferred blind-write entry.
// Returns false ("should die") if any trylock fails.
func (s *LockSet) BlindWriteLockAll() bool {
	for _, idx := range s.blind {
		e := &s.entries[idx]
		mu := e.lock.Mutex()
		if !e.lock.TryLock(mu, X) {
			return false
		}
	}
	return true
}

// UpdateAndUnlock is the serialization point: every X-held entry's local
// shadow value is copied back to its shared home, then every lock
// (including any the caller never wrote through, such as a plain S read)
// is released.
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

// Unlock releases every held lock without writing back, used on abort —
// the transaction-private local buffers are simply discarded.
func (s *LockSet) Unlock() {
	for i := range s.entries {
		s.entries[i].lock.Unlock()
	}
	s.Clear()
}

// Clear resets the set for reuse by the next transaction attempt.
func (s *LockSet) Clear() {
	s.entries = s.entries[:0]
	s.index = nil
	s.indexed = 0
	s.blind = s.blind[:0]
}

func (s *LockSet) Empty() bool { return len(s.entries) == 0 }
func (s *LockSet) Len() int    { return len(s.entries) }
