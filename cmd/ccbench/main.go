package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/starpos/go-cc-bench/internal/affinity"
	"github.com/starpos/go-cc-bench/internal/bench"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("ccbench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "path to a TOML config file overlaid onto the built-in defaults")
	reportPath := fs.String("report", "", "path to write the result report (default: stdout only)")

	protocol := fs.String("protocol", "", "concurrency-control protocol: waitdie|nowait|leis|occ|tictoc|licc-cas|licc-mcs|trlock")
	payloadSize := fs.Int("payload-size", -1, "record payload size in bytes (0 disables memcpy)")
	nrThreads := fs.Int("nr-threads", -1, "number of worker goroutines")
	nrMutexes := fs.Int("nr-mutexes", -1, "number of records in the store")
	runSeconds := fs.Int("run-seconds", -1, "run duration in seconds (0 means run until interrupted)")
	opsPerTx := fs.Int("ops-per-tx", -1, "operations per short transaction")
	writeRatio := fs.Float64("wr-ratio", -1, "fraction of operations that are writes")
	longTxSize := fs.Int("long-tx-size", -1, "operations per long transaction")
	nrThreadsForLongTx := fs.Int("nr-threads-for-long-tx", -1, "how many of the lowest-id workers drive long transactions")
	keyDist := fs.String("key-dist", "", "key-access distribution: uniform|zipf")
	zipfTheta := fs.Float64("zipf-theta", -1, "zipf skew parameter")
	txIDGen := fs.String("txid-gen", "", "transaction id generator: simple|bulk|epoch|scalable (stored in the config only; no protocol runner reads it)")
	backoff := fs.Bool("backoff", false, "exponential backoff between retries (stored in the config only; workers retry immediately)")
	rmw := fs.Bool("rmw", false, "read-modify-write: reserve writes up front instead of upgrading in place")
	noWait := fs.Bool("nowait", false, "no-wait semantics (stored in the config only; no protocol runner reads it)")
	liccReadMode := fs.String("licc-read-mode", "", "LICC read mode: pcc|occ|hybrid")
	pqlockType := fs.String("pqlock-type", "", "TRLock's priority-queue gate: none|spin|mcs1|mcs2|mcs3|lock1993|lock1997|posix")
	affinityMode := fs.String("affinity-mode", "", "worker-to-CPU pinning policy: NONE|NODE|CORE|THREAD|CUSTOM")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := bench.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "ccbench:", err)
		return 1
	}
	applyFlagOverrides(&cfg, fs, protocol, payloadSize, nrThreads, nrMutexes, runSeconds,
		opsPerTx, writeRatio, longTxSize, nrThreadsForLongTx, keyDist, zipfTheta, txIDGen,
		backoff, rmw, noWait, liccReadMode, pqlockType, affinityMode)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	planner, err := newPlanner(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "ccbench:", err)
		return 1
	}

	res, err := runBenchmark(ctx, cfg, planner)
	if err != nil {
		fmt.Fprintln(stderr, "ccbench:", err)
		return 1
	}

	report := bench.FormatReport(res)
	fmt.Fprint(stdout, report)
	if *reportPath != "" {
		if err := bench.WriteReport(*reportPath, res); err != nil {
			fmt.Fprintln(stderr, "ccbench:", err)
			return 1
		}
	}
	return 0
}

// applyFlagOverrides copies every flag the caller actually set on top of
// cfg (which already carries LoadConfig's TOML-overlaid defaults),
// matching cmdline_option.hpp's "CLI flags win over the config file"
// precedence.
func applyFlagOverrides(cfg *bench.Config, fs *flag.FlagSet,
	protocol *string, payloadSize, nrThreads, nrMutexes, runSeconds, opsPerTx *int,
	writeRatio *float64, longTxSize, nrThreadsForLongTx *int, keyDist *string, zipfTheta *float64,
	txIDGen *string, backoff, rmw, noWait *bool, liccReadMode, pqlockType, affinityMode *string) {

	if fs.Changed("protocol") {
		cfg.Protocol = bench.Protocol(*protocol)
	}
	if fs.Changed("payload-size") {
		cfg.PayloadSize = *payloadSize
	}
	if fs.Changed("nr-threads") {
		cfg.NrThreads = *nrThreads
	}
	if fs.Changed("nr-mutexes") {
		cfg.NrMutexes = *nrMutexes
	}
	if fs.Changed("run-seconds") {
		cfg.RunSeconds = *runSeconds
	}
	if fs.Changed("ops-per-tx") {
		cfg.OpsPerTx = *opsPerTx
	}
	if fs.Changed("wr-ratio") {
		cfg.WriteRatio = *writeRatio
	}
	if fs.Changed("long-tx-size") {
		cfg.LongTxSize = *longTxSize
	}
	if fs.Changed("nr-threads-for-long-tx") {
		cfg.NrThreadsForLongTx = *nrThreadsForLongTx
	}
	if fs.Changed("key-dist") {
		cfg.KeyDist = bench.KeyDist(*keyDist)
	}
	if fs.Changed("zipf-theta") {
		cfg.ZipfTheta = *zipfTheta
	}
	if fs.Changed("txid-gen") {
		cfg.TxIDGen = bench.TxIDGenKind(*txIDGen)
	}
	if fs.Changed("backoff") {
		cfg.Backoff = *backoff
	}
	if fs.Changed("rmw") {
		cfg.RMW = *rmw
	}
	if fs.Changed("nowait") {
		cfg.NoWait = *noWait
	}
	if fs.Changed("licc-read-mode") {
		cfg.LICCReadMode = bench.LICCReadMode(*liccReadMode)
	}
	if fs.Changed("pqlock-type") {
		cfg.PQLockType = *pqlockType
	}
	if fs.Changed("affinity-mode") {
		cfg.AffinityMode = *affinityMode
	}
}

// newPlanner builds the affinity.Planner cfg.AffinityMode names, or nil
// for "NONE"/"" (runBenchmark's callers treat a nil planner as "don't pin").
func newPlanner(cfg bench.Config) (*affinity.Planner, error) {
	mode, err := affinity.ParseMode(cfg.AffinityMode)
	if err != nil {
		return nil, err
	}
	if mode == affinity.ModeNone {
		return nil, nil
	}
	return affinity.NewPlanner(mode, nil)
}
