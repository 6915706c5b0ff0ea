package occ

import "sort"

// writeEntry is one write-set slot: which mutex, where its shared payload
// lives, and which local-value slot holds the not-yet-committed write.
type writeEntry struct {
	mutex       *Mutex
	sharedVal   []byte
	localValIdx int
}

// LockSet accumulates one transaction's read and write sets, then drives
// the Silo commit protocol: sort-and-lock the write set, verify every
// read, write back and unlock.
//
// Grounded on original_source/include/occ.hpp's LockSet. The source's
// SingleThreadUnorderedMap index-after-threshold optimization for
// findInReadSet/findInWriteSet is folded into a plain linear scan here —
// transaction lock sets in this workload are small enough (tens of
// records) that the crossover point the source tunes for rarely matters,
// and Go's map literal would need the same from-scratch index rebuild
// logic nowait.LockSet and leis.LockSet already demonstrate; skipping it
// here avoids a third near-identical copy of that machinery.
type LockSet struct {
	writeV []writeEntry
	readV  []Reader
	lockV  []Lock

	local [][]byte // local value storage, one slice per localValIdx
}

func (s *LockSet) allocLocal() int {
	idx := len(s.local)
	s.local = append(s.local, nil)
	return idx
}

func (s *LockSet) findRead(mutex *Mutex) int {
	key := ptrID(mutex)
	for i := range s.readV {
		if s.readV[i].MutexID() == key {
			return i
		}
	}
	return -1
}

func (s *LockSet) findWrite(mutex *Mutex) int {
	key := ptrID(mutex)
	for i := range s.writeV {
		if ptrID(s.writeV[i].mutex) == key {
			return i
		}
	}
	return -1
}

// Read copies mutex's current payload into dst, retrying the
// prepare/copy/verify sequence until a consistent snapshot is observed.
// A mutex already in the write set reuses that local buffer instead
// (read-your-own-write).
func (s *LockSet) Read(mutex *Mutex, sharedVal []byte, dst []byte) {
	var idx int
	if i := s.findRead(mutex); i >= 0 {
		idx = s.readV[i].LocalValIdx
	} else if w := s.findWrite(mutex); w >= 0 {
		idx = s.writeV[w].localValIdx
		s.readV = append(s.readV, Reader{})
		r := &s.readV[len(s.readV)-1]
		r.Set(mutex, idx)
	} else {
		idx = s.allocLocal()
		s.readV = append(s.readV, Reader{})
		r := &s.readV[len(s.readV)-1]
		r.Set(mutex, idx)
		for {
			r.Prepare()
			s.local[idx] = append(s.local[idx][:0], sharedVal...)
			if r.VerifyAll() {
				break
			}
		}
	}
	copy(dst, s.local[idx])
}

// ReadForUpdate copies mutex's current payload into dst like Read, but
// additionally reserves mutex in the write set so it is locked and
// version-bumped at commit even if the transaction never calls Write on
// it again — the read-modify-write declaration that the record is about
// to change.
func (s *LockSet) ReadForUpdate(mutex *Mutex, sharedVal []byte, dst []byte) {
	var idx int
	if w := s.findWrite(mutex); w >= 0 {
		idx = s.writeV[w].localValIdx
	} else if r := s.findRead(mutex); r >= 0 {
		idx = s.readV[r].LocalValIdx
		s.writeV = append(s.writeV, writeEntry{mutex: mutex, sharedVal: sharedVal, localValIdx: idx})
	} else {
		idx = s.allocLocal()
		s.readV = append(s.readV, Reader{})
		r := &s.readV[len(s.readV)-1]
		r.Set(mutex, idx)
		for {
			r.Prepare()
			s.local[idx] = append(s.local[idx][:0], sharedVal...)
			if r.VerifyAll() {
				break
			}
		}
		s.writeV = append(s.writeV, writeEntry{mutex: mutex, sharedVal: sharedVal, localValIdx: idx})
	}
	copy(dst, s.local[idx])
}

// Write buffers a local update for mutex, to be written back and
// versioned at commit. A mutex already in the read set reuses that local
// buffer.
func (s *LockSet) Write(mutex *Mutex, sharedVal []byte, src []byte) {
	var idx int
	if w := s.findWrite(mutex); w >= 0 {
		idx = s.writeV[w].localValIdx
	} else if r := s.findRead(mutex); r >= 0 {
		idx = s.readV[r].LocalValIdx
		s.writeV = append(s.writeV, writeEntry{mutex: mutex, sharedVal: sharedVal, localValIdx: idx})
	} else {
		idx = s.allocLocal()
		s.writeV = append(s.writeV, writeEntry{mutex: mutex, sharedVal: sharedVal, localValIdx: idx})
	}
	s.local[idx] = append(s.local[idx][:0], src...)
}

// Lock sorts the write set by address and CAS-locks every entry — the
// commit serialization point.
func (s *LockSet) Lock() {
	sort.Slice(s.writeV, func(i, j int) bool {
		return ptrID(s.writeV[i].mutex) < ptrID(s.writeV[j].mutex)
	})
	s.lockV = s.lockV[:0]
	for _, w := range s.writeV {
		var lk Lock
		lk.Lock(w.mutex)
		s.lockV = append(s.lockV, lk)
	}
}

// Verify checks every read-set entry is still valid: a record also in
// the write set (and thus now held X by this transaction) need only have
// an unchanged version; any other record must also be currently
// unlocked.
func (s *LockSet) Verify() bool {
	for i := range s.readV {
		r := &s.readV[i]
		_, inWriteSet := s.findWriteByID(r.MutexID())
		var ok bool
		if inWriteSet {
			ok = r.VerifyVersion()
		} else {
			ok = r.VerifyAll()
		}
		if !ok {
			return false
		}
	}
	return true
}

func (s *LockSet) findWriteByID(key uintptr) (int, bool) {
	for i := range s.writeV {
		if ptrID(s.writeV[i].mutex) == key {
			return i, true
		}
	}
	return 0, false
}

// UpdateAndUnlock writes every local write-set value back to its shared
// home and unlocks, bumping each record's version.
func (s *LockSet) UpdateAndUnlock() {
	for i := range s.lockV {
		s.lockV[i].Update()
		w := s.writeV[i]
		copy(w.sharedVal, s.local[w.localValIdx])
		s.lockV[i].Unlock()
	}
	s.Clear()
}

// Abort releases any write locks already taken (e.g. a caller that
// called Lock but then decided not to commit) without writing back.
func (s *LockSet) Abort() {
	for i := range s.lockV {
		s.lockV[i].Unlock()
	}
	s.Clear()
}

func (s *LockSet) Clear() {
	s.lockV = s.lockV[:0]
	s.readV = s.readV[:0]
	s.writeV = s.writeV[:0]
	s.local = s.local[:0]
}

func (s *LockSet) Empty() bool {
	return len(s.lockV) == 0 && len(s.readV) == 0 && len(s.writeV) == 0 && len(s.local) == 0
}
