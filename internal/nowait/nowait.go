// Package nowait implements the trylock-and-die reader/writer mutex and
// the per-transaction lock set built on top of it: every acquisition is a
// single CAS attempt, and any transaction that cannot immediately get the
// mode it needs aborts rather than waiting, which rules out deadlock by
// construction (spec.md §4.4's No-Wait family).
//
// Grounded on original_source/include/lock.hpp (XSMutex, XSLock,
// NoWaitLockSet) — this package's XSMutex is shared by the No-Wait and
// Leis protocols (Wait-Die keeps its own queueing mutex in
// internal/waitdie); nowait.go keeps it at its simplest (trylock only, no
// queueing, no priority).
package nowait

import (
	"fmt"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// Mode is the lock mode requested on an XSMutex.
type Mode uint8

const (
	Invalid Mode = iota
	X            // exclusive
	S            // shared
)

// XSMutex packs the reader count / writer flag into a single signed
// counter: 0 is free, >0 is the shared-reader count, -1 is exclusively
// held. Matches the C++ source's int v_ exactly, including the reuse of
// CAS-retry loops instead of a single load-then-CAS attempt (a stale read
// under contention would otherwise spin on an immediate, avoidable
// CAS failure).
type XSMutex struct {
	v atomics.U32 // holds a twos-complement int32 value; -1 encoded as 0xFFFFFFFF
}

func toSigned(v uint32) int32 { return int32(v) }
func toUnsigned(v int32) uint32 { return uint32(v) }

// TryLock attempts to acquire mode without blocking; returns false if the
// mutex is currently held in a conflicting mode.
func (m *XSMutex) TryLock(mode Mode) bool {
	switch mode {
	case X:
		return m.tryLockX()
	case S:
		return m.tryLockS()
	default:
		panic(fmt.Sprintf("nowait: invalid mode %v", mode))
	}
}

func (m *XSMutex) tryLockX() bool {
	for {
		v := toSigned(m.v.Load(atomics.Relaxed))
		if v != 0 {
			return false
		}
		if m.v.CAS(toUnsigned(v), toUnsigned(-1)) {
			return true
		}
	}
}

func (m *XSMutex) tryLockS() bool {
	for {
		v := toSigned(m.v.Load(atomics.Relaxed))
		if v < 0 {
			return false
		}
		if m.v.CAS(toUnsigned(v), toUnsigned(v+1)) {
			return true
		}
	}
}

// Lock blocks (spinning with a pause hint) until mode is granted. Used by
// the Leis lock set (internal/leis) when address ordering lets it commit
// to blocking instead of trylock-and-retrospect.
func (m *XSMutex) Lock(mode Mode) {
	switch mode {
	case X:
		m.lockX()
	case S:
		m.lockS()
	default:
		panic(fmt.Sprintf("nowait: invalid mode %v", mode))
	}
}

func (m *XSMutex) lockX() {
	for !m.tryLockX() {
		atomics.Pause()
	}
}

func (m *XSMutex) lockS() {
	for !m.tryLockS() {
		atomics.Pause()
	}
}

// TryUpgrade attempts S -> X in place; the caller must already hold S.
func (m *XSMutex) TryUpgrade() bool {
	v := toSigned(m.v.Load(atomics.Relaxed))
	if v > 1 {
		return false
	}
	return m.v.CAS(toUnsigned(v), toUnsigned(-1))
}

// Unlock releases mode; it is the caller's responsibility to pass the
// same mode that was granted by TryLock/TryUpgrade.
func (m *XSMutex) Unlock(mode Mode) {
	switch mode {
	case X:
		m.v.FetchAdd(1) // -1 + 1 == 0
	case S:
		m.v.FetchAdd(^uint32(0)) // -1 two's complement == subtract 1
	default:
		panic(fmt.Sprintf("nowait: invalid mode %v", mode))
	}
}

// XSLock is a scoped handle over one XSMutex, mirroring the source's RAII
// wrapper; Go's defer takes the place of the destructor.
type XSLock struct {
	mutex *XSMutex
	mode  Mode
}

func (l *XSLock) TryLock(mutex *XSMutex, mode Mode) bool {
	if !mutex.TryLock(mode) {
		return false
	}
	l.mutex = mutex
	l.mode = mode
	return true
}

// Lock blocks until mode is granted on mutex.
func (l *XSLock) Lock(mutex *XSMutex, mode Mode) {
	mutex.Lock(mode)
	l.mutex = mutex
	l.mode = mode
}

// SetMutex records mutex without acquiring it, used by the Leis lock set
// to remember which mutex an unlocked placeholder entry refers to.
func (l *XSLock) SetMutex(mutex *XSMutex) { l.mutex = mutex }

func (l *XSLock) Mutex() *XSMutex { return l.mutex }

func (l *XSLock) IsShared() bool { return l.mode == S }

func (l *XSLock) TryUpgrade() bool {
	if !l.mutex.TryUpgrade() {
		return false
	}
	l.mode = X
	return true
}

func (l *XSLock) Unlock() {
	if l.mutex == nil || l.mode == Invalid {
		l.mutex = nil
		l.mode = Invalid
		return
	}
	l.mutex.Unlock(l.mode)
	l.mutex = nil
	l.mode = Invalid
}

func (l *XSLock) Mode() Mode { return l.mode }
