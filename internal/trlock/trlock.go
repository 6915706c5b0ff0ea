// Package trlock implements TRLock (Transferable/Interceptible lock), the
// precursor to LICC: the same reserve -> intercept-on-higher-priority ->
// protect -> verify -> update discipline, but over two different mutex
// word shapes instead of LICC's single packed 64-bit word.
//
//   - Lock64/Mutex64 (LockData64): a 64-bit word with an explicit shared
//     read-reservation counter, used when a record is read far more often
//     than written.
//   - Lock128/Mutex128 (LockDataXS): a 128-bit word (two 64-bit halves
//     joined by internal/atomics.Pair128) that separates a transferable
//     reservation slot from a non-transferable protected slot instead of
//     counting readers.
//
// Both variants gate their CAS spin through an internal/pqlock.Mutex so a
// blocked transaction queues by priority (smaller priority id = older =
// wins) instead of free-for-all spinning on the mutex word, exactly as
// original_source/include/trlock.hpp's USE_TRLOCK_PQMCS path does.
//
// Grounded on original_source/include/trlock.hpp (LockData64,
// InterceptibleLock64T, LockDataXS, TransferableLockT, ILockSet).
package trlock

// Mode is a lock request's access mode, mirroring LockData64::Mode /
// LockDataXS's implicit S/X distinction.
type Mode uint8

const (
	ModeS Mode = iota
	ModeX
	ModeInvalid
)
