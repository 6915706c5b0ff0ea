// Package recordvec implements the record store: a contiguous, randomly
// addressable vector of elements shaped like {header H; payload [N]byte},
// modeling original_source/include/vector_payload.hpp's templated
// VectorWithPayload<Header>. A protocol's mutex lives in the header; the
// payload is the opaque record body that readers copy out and writers copy
// back under whatever protection the owning CC protocol grants.
package recordvec

import "sync"

// Record is one element: a protocol-specific mutex header plus an opaque
// payload slice. H is typically one of waitdie.Mutex, occ.Mutex, etc.
type Record[H any] struct {
	Header  H
	Payload []byte
}

// Vector is a fixed-stride array of Record[H], pre-sized at construction
// (spec.md §1 Non-goals: "the system operates on a pre-sized array of
// records keyed by integer position" — no resizing after Init).
type Vector[H any] struct {
	payloadSize int
	records     []Record[H]
}

// Init allocates n records, each with a payloadSize-byte payload, and
// default-initializes their headers with zero (newHeader, if non-nil, is
// called to construct each header instead of using the zero value).
func (v *Vector[H]) Init(n, payloadSize int, newHeader func() H) {
	v.payloadSize = payloadSize
	v.records = make([]Record[H], n)
	for i := range v.records {
		if payloadSize > 0 {
			v.records[i].Payload = make([]byte, payloadSize)
		}
		if newHeader != nil {
			v.records[i].Header = newHeader()
		}
	}
}

// Len returns the number of records.
func (v *Vector[H]) Len() int { return len(v.records) }

// PayloadSize returns the configured payload size in bytes.
func (v *Vector[H]) PayloadSize() int { return v.payloadSize }

// At returns a pointer to record i for direct header/payload access.
func (v *Vector[H]) At(i int) *Record[H] { return &v.records[i] }

// Partitioned is the NUMA-aware variant from spec §4.1: a fixed number of
// sub-vectors, each lazily allocated the first time a worker pinned to
// that partition touches it, so that the records a partition's workers
// hammer hardest live on memory local to them.
type Partitioned[H any] struct {
	payloadSize  int
	perPartition int
	newHeader    func() H

	mu    sync.Mutex
	parts []*Vector[H]
}

// InitPartitioned configures a Partitioned vector with nParts partitions of
// perPartition records each (total size = nParts*perPartition).
func InitPartitioned[H any](nParts, perPartition, payloadSize int, newHeader func() H) *Partitioned[H] {
	return &Partitioned[H]{
		payloadSize:  payloadSize,
		perPartition: perPartition,
		newHeader:    newHeader,
		parts:        make([]*Vector[H], nParts),
	}
}

// Partition lazily allocates and returns sub-vector p. The allocating
// worker should be the one pinned to that NUMA node so the backing memory
// lands on local pages.
func (pv *Partitioned[H]) Partition(p int) *Vector[H] {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	if pv.parts[p] == nil {
		v := &Vector[H]{}
		v.Init(pv.perPartition, pv.payloadSize, pv.newHeader)
		pv.parts[p] = v
	}
	return pv.parts[p]
}

// At resolves a global record index to its owning partition and local
// offset, matching the source's partitioned.hpp indexing scheme.
func (pv *Partitioned[H]) At(globalIdx int) *Record[H] {
	p := globalIdx / pv.perPartition
	local := globalIdx % pv.perPartition
	return pv.Partition(p).At(local)
}

// Len returns the total record count across all partitions.
func (pv *Partitioned[H]) Len() int { return len(pv.parts) * pv.perPartition }
