// Package idgen provides the transaction-id and priority-id generators
// shared across the concurrency-control protocols: a bulk-sharded global
// counter (TxId, smaller value == higher priority), a bit-packed priority
// id for protocols that need an explicit, externally-chosen priority, and
// a background epoch ticker used to derive low-contention, roughly
// fair ids without a shared fetch-add on every transaction.
//
// Grounded on original_source/include/tx_util.hpp (GlobalTxIdGenerator /
// LocalTxIdGenerator / TxIdGenerator / PriorityIdGenerator /
// EpochGenerator / EpochTxIdGenerator).
package idgen

import (
	"fmt"

	"github.com/starpos/go-cc-bench/internal/atomics"
)

// TxId orders transactions for the wait-die family of protocols: smaller
// value wins priority ties. MaxTxId is reserved and never handed out.
type TxId uint64

const MaxTxId TxId = ^TxId(0)

// localTxIdGenerator hands out a contiguous block of TxIds allocated to
// one worker without contending on the shared counter, mirroring
// LocalTxIdGenerator's fixed/alloc-bit split.
type localTxIdGenerator struct {
	val      TxId
	mask     TxId
	delta    TxId
	hasNext_ bool
}

func (g *localTxIdGenerator) hasNext() bool { return g.hasNext_ }

// get returns the next id in the block. MaxTxId is never returned because
// the block never straddles the all-ones pattern this construction relies
// on to detect exhaustion.
func (g *localTxIdGenerator) get() TxId {
	ret := g.val
	g.val += g.delta
	g.hasNext_ = (g.val&g.mask) != 0 && g.val != MaxTxId
	return ret
}

// GlobalTxIdGenerator is the single process-wide counter that local
// generators draw blocks from. fixedBits must exceed log2(worker count);
// allocBits controls block size (bigger blocks means fewer atomic
// fetch-adds, at the cost of priority fairness across workers).
type GlobalTxIdGenerator struct {
	counter   atomics.U64
	fixedBits uint8
	allocBits uint8
}

func NewGlobalTxIdGenerator(fixedBits, allocBits uint8) (*GlobalTxIdGenerator, error) {
	if fixedBits < 1 {
		return nil, fmt.Errorf("idgen: fixedBits too small: %d", fixedBits)
	}
	if allocBits < 1 {
		return nil, fmt.Errorf("idgen: allocBits too small: %d", allocBits)
	}
	if int(fixedBits)+int(allocBits) >= 60 {
		return nil, fmt.Errorf("idgen: fixedBits+allocBits too large: %d", int(fixedBits)+int(allocBits))
	}
	return &GlobalTxIdGenerator{fixedBits: fixedBits, allocBits: allocBits}, nil
}

func (g *GlobalTxIdGenerator) next() *localTxIdGenerator {
	v := TxId(g.counter.FetchAdd(1))
	mask := MaxTxId << g.fixedBits
	begin := ((v & mask) << g.allocBits) | (v &^ mask)
	return &localTxIdGenerator{
		val:      begin,
		mask:     (^(MaxTxId << g.allocBits)) << g.fixedBits,
		delta:    TxId(1) << g.fixedBits,
		hasNext_: true,
	}
}

// Sniff returns the next id that would be handed out, without consuming
// it or advancing the counter; useful for watermarking.
func (g *GlobalTxIdGenerator) Sniff() TxId {
	v := TxId(g.counter.Load(atomics.Relaxed))
	mask := MaxTxId << g.fixedBits
	return ((v & mask) << g.allocBits) | (v &^ mask)
}

// TxIdGenerator is the per-worker handle: it draws a new block from the
// shared GlobalTxIdGenerator only once its current block is exhausted.
// Not safe for concurrent use — one instance per worker goroutine.
type TxIdGenerator struct {
	global *GlobalTxIdGenerator
	local  *localTxIdGenerator
}

func NewTxIdGenerator(global *GlobalTxIdGenerator) *TxIdGenerator {
	return &TxIdGenerator{global: global}
}

func (g *TxIdGenerator) Get() TxId {
	if g.local == nil || !g.local.hasNext() {
		g.local = g.global.next()
	}
	return g.local.get()
}

// SimpleTxIdGenerator is a bare fetch-add counter for workloads that do
// not care about scalability of id issuance; every Get() is one atomic op.
type SimpleTxIdGenerator struct {
	id atomics.U64
}

func (g *SimpleTxIdGenerator) Get() TxId {
	x := TxId(g.id.FetchAdd(1))
	if x == MaxTxId {
		x = TxId(g.id.FetchAdd(1))
	}
	return x
}

func (g *SimpleTxIdGenerator) Sniff() TxId {
	return TxId(g.id.Load(atomics.Relaxed))
}
