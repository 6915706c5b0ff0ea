package trlock

// slotState is one of LockDataXS's two lock slots (t-lock/n-lock): each
// holds at most one mode at a time rather than counting readers, unlike
// LockData64's explicit readReserve field.
type slotState uint8

const (
	slotUnlocked slotState = iota
	slotShared
	slotExclusive
)

func slotFor(mode Mode) slotState {
	if mode == ModeX {
		return slotExclusive
	}
	return slotShared
}

func (s slotState) canSet(mode Mode) bool {
	if s == slotUnlocked {
		return true
	}
	return mode == ModeS && s == slotShared
}

// LockDataXS is the 128-bit predecessor of LICC's MutexData: a
// transferable slot (tState, stolen by interception), a non-transferable
// slot (nState, set only once the holder protects), a transaction id, an
// interception counter, and an update version. Grounded on trlock.hpp's
// LockDataXS, simplified from its byte-for-byte struct layout (and from
// its reliance on lock.hpp's LockState bitset, not present in this pack)
// to an explicit single-mode-per-slot model, since nothing in trlock.hpp
// itself requires LockDataXS to track concurrent shared holders the way
// LockData64 does.
type LockDataXS struct {
	TxID     uint32
	IVersion uint32
	UVersion uint32
	TState   slotState
	NState   slotState
}

// MaxTxID marks "unheld" — no live transaction holds the transferable slot.
const MaxTxID uint32 = 1<<32 - 1

func InitLockDataXS() LockDataXS {
	return LockDataXS{TxID: MaxTxID}
}

func packXS(d LockDataXS) (lo, hi uint64) {
	hi = uint64(d.TxID) | uint64(d.IVersion)<<32
	lo = uint64(d.UVersion) | uint64(d.TState)<<32 | uint64(d.NState)<<40
	return
}

func unpackXS(lo, hi uint64) LockDataXS {
	return LockDataXS{
		TxID:     uint32(hi),
		IVersion: uint32(hi >> 32),
		UVersion: uint32(lo),
		TState:   slotState(lo >> 32),
		NState:   slotState(lo >> 40),
	}
}

func (d LockDataXS) IsUnlocked() bool { return d.TState == slotUnlocked && d.NState == slotUnlocked }

func (d LockDataXS) isUnlockedOrShared(mode Mode) bool {
	return d.TState.canSet(mode) && d.NState.canSet(mode)
}

func (d LockDataXS) canIntercept(txID uint32) bool {
	return txID < d.TxID && d.NState == slotUnlocked
}

// reserve derives the state after `before` gains a fresh transferable
// reservation for mode at txID.
func reserveXS(before LockDataXS, mode Mode, txID uint32) LockDataXS {
	d := before
	d.TState = slotFor(mode)
	if before.TState == slotUnlocked || txID < before.TxID {
		d.TxID = txID
	}
	return d
}

// intercept derives the state after txID steals before's transferable
// reservation, bumping IVersion so a holder of the stolen reservation
// notices on its next touch.
func interceptXS(before LockDataXS, mode Mode, txID uint32) LockDataXS {
	d := before
	d.TState = slotFor(mode)
	d.TxID = txID
	d.IVersion++
	return d
}
