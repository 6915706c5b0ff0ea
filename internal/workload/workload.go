// Package workload generates the key-access and operation-mix sequences
// each worker transaction plays against the record set: a key generator
// (uniform or Zipfian, matching spec.md §6's "key-distribution selector")
// and an op-mix generator (ops_per_tx, wr_ratio, long/short transaction
// sizing from §6's parameter surface).
//
// Grounded on original_source/include/tx_util.hpp's workload-parameter
// structs and original_source/bench/*.cpp's key-selection call sites;
// the Zipfian generator itself is math/rand's own Zipf type (the
// idiomatic stdlib answer — the pack carries no third-party
// Zipfian/skewed-distribution library; see DESIGN.md for why this one
// component stays on the standard library instead of a pack dependency).
package workload

import (
	"math/rand"
)

// KeyGen draws record keys from [0, nrKeys).
type KeyGen interface {
	Next() uint64
}

// UniformKeyGen draws keys uniformly at random, matching the "uniform"
// key-distribution selector.
type UniformKeyGen struct {
	rng    *rand.Rand
	nrKeys uint64
}

func NewUniformKeyGen(rng *rand.Rand, nrKeys uint64) *UniformKeyGen {
	return &UniformKeyGen{rng: rng, nrKeys: nrKeys}
}

func (g *UniformKeyGen) Next() uint64 { return uint64(g.rng.Int63n(int64(g.nrKeys))) }

// ZipfKeyGen draws keys from a Zipfian distribution with skew theta,
// matching the "zipf" key-distribution selector. theta in [0, 1); larger
// theta means hotter keys.
type ZipfKeyGen struct {
	z *rand.Zipf
}

// NewZipfKeyGen builds a generator over nrKeys distinct keys skewed by
// theta. rand.Zipf parameterizes by s (skew, >1) and v (offset); theta is
// translated to s = 1 + theta so theta=0 degenerates close to uniform and
// theta close to 1 is sharply skewed, matching the source's single-theta
// knob.
func NewZipfKeyGen(rng *rand.Rand, nrKeys uint64, theta float64) *ZipfKeyGen {
	s := 1.0 + theta
	z := rand.NewZipf(rng, s, 1.0, nrKeys-1)
	return &ZipfKeyGen{z: z}
}

func (g *ZipfKeyGen) Next() uint64 { return g.z.Uint64() }

// Mix describes one transaction's operation plan: how many operations,
// how many of them are writes, and whether it is a "long" transaction
// (spec.md §6's long_tx_size / nr_threads_for_long_tx knobs).
type Mix struct {
	OpsPerTx      int
	WriteRatio    float64
	LongTxSize    int
	IsLongTx      bool
	ReadForUpdate bool // reserve on read where the protocol supports it (rmw flag)
}

// NextOp decides, for the i-th operation of a transaction built from m,
// whether that operation is a write.
func (m Mix) NextOp(rng *rand.Rand, i int) (isWrite bool) {
	return rng.Float64() < m.WriteRatio
}

// OpCount returns how many operations this transaction should run: the
// long transaction's fixed size if IsLongTx, else OpsPerTx.
func (m Mix) OpCount() int {
	if m.IsLongTx && m.LongTxSize > 0 {
		return m.LongTxSize
	}
	return m.OpsPerTx
}

// Selector decides per-worker whether this worker drives long
// transactions, per spec.md §6's nr_threads_for_long_tx.
type Selector struct {
	NrThreadsForLongTx int
}

func (s Selector) IsLongTxWorker(workerID int) bool { return workerID < s.NrThreadsForLongTx }
