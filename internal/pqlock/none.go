package pqlock

// NoneMutex is a no-op implementation used as a type tag when the caller
// does not want a fairness gate at all (the mutex word is spun on
// directly). Matches PQNoneLock in pqlock.hpp.
type NoneMutex struct{}

type noneToken struct{}

func (noneToken) Release() {}

func (m *NoneMutex) Acquire(uint32) Token       { return noneToken{} }
func (m *NoneMutex) TopWaitingPriority() uint32 { return NoPriority }

var _ Mutex = (*NoneMutex)(nil)
