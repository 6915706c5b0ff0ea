// Package bench drives a protocol-agnostic worker pool against a record
// set, matching spec.md §5 (Concurrency & Resource Model) and §6
// (External Interfaces): a fixed-size pool of parallel preemptive worker
// goroutines, each pinned by affinity policy, running transactions
// against a protocol's LockSet until a run duration elapses or the
// controller raises the quit signal, then merging their results.
//
// Grounded on original_source/include/cmdline_option.hpp's parameter
// surface (ported field-for-field into Config) and
// original_source/bench/*.cpp's worker-goroutine-per-thread shape.
package bench

// KeyDist selects the workload driver's key-access distribution.
type KeyDist string

const (
	KeyDistUniform KeyDist = "uniform"
	KeyDistZipf    KeyDist = "zipf"
)

// TxIDGenKind names an internal/idgen generator for priority/tx ids,
// matching spec.md §6's "txid-gen selector (scalable/bulk/simple/epoch)".
// The value is carried in Config only: cmd/ccbench's protocol runners
// do not read it.
type TxIDGenKind string

const (
	TxIDGenScalable TxIDGenKind = "scalable"
	TxIDGenBulk     TxIDGenKind = "bulk"
	TxIDGenSimple   TxIDGenKind = "simple"
	TxIDGenEpoch    TxIDGenKind = "epoch"
)

// Protocol selects which concurrency-control protocol package the
// worker loop exercises.
type Protocol string

const (
	ProtocolWaitDie Protocol = "waitdie"
	ProtocolNoWait  Protocol = "nowait"
	ProtocolLeis    Protocol = "leis"
	ProtocolOCC     Protocol = "occ"
	ProtocolTicToc  Protocol = "tictoc"
	ProtocolLICCCas Protocol = "licc-cas"
	ProtocolLICCMcs Protocol = "licc-mcs"
	ProtocolTRLock  Protocol = "trlock"
)

// LICCReadMode selects LICC's hybrid read strategy (spec.md §4.9's
// "hybrid read mode").
type LICCReadMode string

const (
	LICCReadPCC    LICCReadMode = "pcc"
	LICCReadOCC    LICCReadMode = "occ"
	LICCReadHybrid LICCReadMode = "hybrid"
)

// Config is the full workload parameter surface from spec.md §6,
// loadable from a TOML file (github.com/BurntSushi/toml) and
// overridable by CLI flags in cmd/ccbench.
type Config struct {
	Protocol Protocol `toml:"protocol"`

	PayloadSize int `toml:"payload_size"`
	NrThreads   int `toml:"nr_threads"`
	NrMutexes   int `toml:"nr_mutexes"`
	RunSeconds  int `toml:"run_seconds"`

	OpsPerTx           int     `toml:"ops_per_tx"`
	WriteRatio         float64 `toml:"wr_ratio"`
	LongTxSize         int     `toml:"long_tx_size"`
	NrThreadsForLongTx int     `toml:"nr_threads_for_long_tx"`

	KeyDist   KeyDist `toml:"key_dist"`
	ZipfTheta float64 `toml:"zipf_theta"`

	TxIDGen TxIDGenKind `toml:"txid_gen"`

	Backoff bool `toml:"backoff"`
	RMW     bool `toml:"rmw"`
	NoWait  bool `toml:"nowait"`

	LICCReadMode LICCReadMode `toml:"licc_read_mode"`
	PQLockType   string       `toml:"pqlock_type"`

	AffinityMode string `toml:"affinity_mode"`
}

// DefaultConfig returns the parameter surface's defaults, matching
// original_source/include/cmdline_option.hpp's documented defaults
// (payload_size 0 disables memcpy, per spec §6).
func DefaultConfig() Config {
	return Config{
		Protocol:           ProtocolOCC,
		PayloadSize:        0,
		NrThreads:          1,
		NrMutexes:          1000,
		RunSeconds:         1,
		OpsPerTx:           10,
		WriteRatio:         0.5,
		LongTxSize:         0,
		NrThreadsForLongTx: 0,
		KeyDist:            KeyDistUniform,
		ZipfTheta:          0,
		TxIDGen:            TxIDGenSimple,
		Backoff:            false,
		RMW:                false,
		NoWait:             false,
		LICCReadMode:       LICCReadHybrid,
		PQLockType:         "none",
		AffinityMode:       "NONE",
	}
}
