package tictoc

import "sort"

// writeEntry is one write-set slot: which mutex, where its shared payload
// lives, and which local-value slot holds the not-yet-committed write.
type writeEntry struct {
	mutex       *Mutex
	sharedVal   []byte
	localValIdx int
}

// LockSet accumulates one transaction's read and write sets and drives the
// TicToc commit protocol: sort-and-lock the write set, compute a commit
// timestamp from every timestamp touched, validate every read against it
// (extending in-place rts where possible), then write back and stamp each
// locked record with the commit timestamp.
//
// Grounded on original_source/include/tictoc.hpp's LocalSet/preCommit.
type LockSet struct {
	writeV []writeEntry
	readV  []Reader
	lockV  []Lock

	local [][]byte
}

func (s *LockSet) allocLocal() int {
	idx := len(s.local)
	s.local = append(s.local, nil)
	return idx
}

func (s *LockSet) findRead(mutex *Mutex) int {
	key := ptrID(mutex)
	for i := range s.readV {
		if s.readV[i].mutexID() == key {
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
// prepare/copy/verify sequence until a consistent snapshot is observed. A
// mutex already in the write set reuses that local buffer instead
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
			if r.isReadSucceeded() {
				break
			}
		}
	}
	copy(dst, s.local[idx])
}

// ReadForUpdate copies mutex's current payload into dst like Read, but
// additionally reserves mutex in the write set so it is locked and
// re-timestamped at commit even if the transaction never calls Write on
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
			if r.isReadSucceeded() {
				break
			}
		}
		s.writeV = append(s.writeV, writeEntry{mutex: mutex, sharedVal: sharedVal, localValIdx: idx})
	}
	copy(dst, s.local[idx])
}

// Write buffers a local update for mutex, to be written back and
// timestamped at commit. A mutex already in the read set reuses that
// local buffer.
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

// lockWriteSet sorts the write set by address and blocking-locks every
// entry in that order — the same address-ordering discipline leis and occ
// use to make deadlock impossible among transactions that each lock their
// own write set this way.
func (s *LockSet) lockWriteSet() {
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

// isInWriteSet reports whether key is in the (address-sorted) write set,
// via binary search.
func (s *LockSet) isInWriteSet(key uintptr) bool {
	n := len(s.writeV)
	i := sort.Search(n, func(i int) bool { return ptrID(s.writeV[i].mutex) >= key })
	return i < n && ptrID(s.writeV[i].mutex) == key
}

// commitTimestamp computes the transaction's commit timestamp: the max of
// every locked write's rts+1 (a write must commit after every reader that
// already observed the old version) and every non-write-set read's wts (a
// read must commit no earlier than the version it actually saw).
func (s *LockSet) commitTimestamp() uint64 {
	var commitTs uint64
	for i := range s.lockV {
		if rts := s.lockV[i].Rts() + 1; rts > commitTs {
			commitTs = rts
		}
	}
	for i := range s.readV {
		if s.isInWriteSet(s.readV[i].mutexID()) {
			continue
		}
		if wts := s.readV[i].Wts(); wts > commitTs {
			commitTs = wts
		}
	}
	return commitTs
}

// Commit runs the full precommit sequence: lock the write set, compute the
// commit timestamp, validate every read, and on success write back and
// stamp every locked record with the commit timestamp. On validation
// failure it releases the write locks without writing back and returns
// false; the caller must then abort and retry the transaction.
func (s *LockSet) Commit() bool {
	s.lockWriteSet()
	commitTs := s.commitTimestamp()

	for i := range s.readV {
		r := &s.readV[i]
		if !r.validate(commitTs, s.isInWriteSet(r.mutexID())) {
			s.releaseWriteLocks()
			s.Clear()
			return false
		}
	}

	for i := range s.lockV {
		w := s.writeV[i]
		copy(w.sharedVal, s.local[w.localValIdx])
		s.lockV[i].UpdateAndUnlock(commitTs)
	}
	s.Clear()
	return true
}

func (s *LockSet) releaseWriteLocks() {
	for i := range s.lockV {
		s.lockV[i].Unlock()
	}
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
