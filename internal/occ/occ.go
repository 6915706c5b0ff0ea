// Package occ implements Silo-style optimistic concurrency control: each
// record's mutex word packs a version counter and an exclusive-lock bit;
// readers snapshot the version before and after copying the payload and
// retry on a locked-or-changed observation, writers sort their write set
// by address and CAS-lock it at commit, then verify every read is still
// valid before writing back and bumping versions.
//
// Grounded on original_source/include/occ.hpp (OccLockData, OccMutex,
// OccLock, OccReader, WriteEntry, LockSet).
package occ

import (
	"sync"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// LockData is the packed 32-bit word: bit 31 is the exclusive-lock flag,
// bits 0-30 are the version. Matches OccLockData's bit layout exactly.
type LockData uint32

const lockMask uint32 = 1 << 31

func (d LockData) Version() uint32 { return uint32(d) &^ lockMask }

func (d LockData) withVersion(v uint32) LockData {
	return LockData((uint32(d) & lockMask) | (v &^ lockMask))
}

// incVersion wraps at the 31-bit boundary rather than overflowing into
// the lock bit, matching the source's explicit wrap-to-zero.
func (d LockData) incVersion() LockData {
	v := d.Version()
	if v < lockMask-1 {
		v++
	} else {
		v = 0
	}
	return d.withVersion(v)
}

func (d LockData) IsLocked() bool  { return uint32(d)&lockMask != 0 }
func (d LockData) setLock() LockData   { return LockData(uint32(d) | lockMask) }
func (d LockData) clearLock() LockData { return LockData(uint32(d) &^ lockMask) }

// Mutex is the per-record control word, plus a plain sync.Mutex that
// waitFor uses to keep only one goroutine spinning on the cache line at a
// time — the Go-idiomatic stand-in for the source's USE_OCC_MCS gate
// (internal/pqlock's MCS variants are priority-keyed and would misstate
// intent here, since OCC's wait has no priority concept; see DESIGN.md).
type Mutex struct {
	word    atomics.U32
	waitGate sync.Mutex
}

func (m *Mutex) load() LockData         { return LockData(m.word.Load(atomics.Relaxed)) }
func (m *Mutex) loadAcquire() LockData  { return LockData(m.word.Load(atomics.Acquire)) }
func (m *Mutex) storeRelease(d LockData) { m.word.Store(atomics.Release, uint32(d)) }
func (m *Mutex) cas(before, after LockData) bool {
	return m.word.CAS(uint32(before), uint32(after))
}

// Lock is a scoped exclusive hold used only during the commit-time
// write-lock phase.
type Lock struct {
	mutex   *Mutex
	lockD   LockData
	updated bool
}

func (l *Lock) Lock(mutex *Mutex) {
	l.mutex = mutex
	l.lockD = mutex.load()
	for {
		if l.lockD.IsLocked() {
			l.waitFor()
		}
		next := l.lockD.setLock()
		if mutex.cas(l.lockD, next) {
			l.lockD = next
			l.updated = false
			break
		}
	}
}

func (l *Lock) waitFor() {
	l.mutex.waitGate.Lock()
	defer l.mutex.waitGate.Unlock()
	for {
		d := l.mutex.load()
		if !d.IsLocked() {
			l.lockD = d
			return
		}
		atomics.Pause()
	}
}

// Update marks this write as having actually changed the record, so
// Unlock bumps the version; a no-op write (e.g. a blind write that
// turned out unnecessary) can skip the version bump.
func (l *Lock) Update() { l.updated = true }

func (l *Lock) Unlock() {
	if l.mutex == nil {
		return
	}
	d := l.lockD
	if l.updated {
		d = d.incVersion()
	}
	d = d.clearLock()
	l.mutex.storeRelease(d)
	l.mutex = nil
}

func (l *Lock) MutexID() uintptr { return mutexID(l.mutex) }

// Reader snapshots a record's version for optimistic reads.
type Reader struct {
	mutex        *Mutex
	lockD        LockData
	LocalValIdx  int
}

func (r *Reader) Set(mutex *Mutex, localValIdx int) {
	r.mutex = mutex
	r.LocalValIdx = localValIdx
}

// Prepare spins until the record is unlocked and snapshots its version;
// call immediately before copying the shared payload.
func (r *Reader) Prepare() {
	for {
		r.lockD = r.mutex.loadAcquire()
		if !r.lockD.IsLocked() {
			return
		}
		atomics.Pause()
	}
}

// VerifyAll reports whether the record is still unlocked and unchanged
// since Prepare — used for records only ever read.
func (r *Reader) VerifyAll() bool {
	d := r.mutex.load()
	return !d.IsLocked() && r.lockD.Version() == d.Version()
}

// VerifyVersion reports only that the version is unchanged, ignoring the
// lock bit — used for records this transaction itself now holds X on
// (the lock bit being set is this transaction's own commit-phase lock,
// not a conflicting writer's).
func (r *Reader) VerifyVersion() bool {
	d := r.mutex.load()
	return r.lockD.Version() == d.Version()
}

func (r *Reader) MutexID() uintptr { return mutexID(r.mutex) }

func mutexID(m *Mutex) uintptr { return ptrID(m) }
