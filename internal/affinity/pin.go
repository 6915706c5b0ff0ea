package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Planner precomputes a CPU assignment order once, then hands out a CPU
// id per worker and pins the calling goroutine's OS thread to it.
// Mirrors original_source/cpuid.hpp's setCpuAffinityModeVec followed by
// the benchmark driver's per-worker sched_setaffinity call.
type Planner struct {
	mode Mode
	cpus []int
}

// NewPlanner reads the live topology and precomputes the assignment
// order for mode. An explicit custom list (non-nil customCPUs) overrides
// topology discovery entirely, letting a caller pin to an arbitrary CPU
// subset without needing root topology facts.
func NewPlanner(mode Mode, customCPUs []int) (*Planner, error) {
	if mode == ModeNone {
		return &Planner{mode: mode}, nil
	}
	if customCPUs != nil {
		cpus := make([]int, len(customCPUs))
		copy(cpus, customCPUs)
		return &Planner{mode: mode, cpus: cpus}, nil
	}
	topo, err := ReadTopologies()
	if err != nil {
		return nil, fmt.Errorf("affinity: read topology: %w", err)
	}
	return &Planner{mode: mode, cpus: CPUList(mode, topo)}, nil
}

// CPUFor returns the CPU id assigned to workerID, round-robin over the
// planned order.
func (p *Planner) CPUFor(workerID int) (int, bool) {
	if p.mode == ModeNone || len(p.cpus) == 0 {
		return 0, false
	}
	return p.cpus[workerID%len(p.cpus)], true
}

// Pin locks the calling goroutine to its current OS thread and restricts
// that thread's scheduling affinity to workerID's assigned CPU. A no-op
// under ModeNone. Must be called from the goroutine that will do the
// pinned work — runtime.LockOSThread only affects the calling goroutine.
func (p *Planner) Pin(workerID int) error {
	cpu, ok := p.CPUFor(workerID)
	if !ok {
		return nil
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity worker %d -> cpu %d: %w", workerID, cpu, err)
	}
	return nil
}
