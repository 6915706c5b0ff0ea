package affinity

import (
	"fmt"
	"sort"
)

// Mode selects how worker-to-CPU assignment orders the topology before
// handing out CPU ids round-robin to workers. Mirrors
// original_source/cpuid.hpp's CpuAffinityMode (CUSTOM1 renamed Custom
// here since this port has only the one custom policy, inter-socket
// interleaving).
type Mode uint8

const (
	ModeNone Mode = iota
	ModeNode
	ModeCore
	ModeThread
	ModeCustom
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeNode:
		return "NODE"
	case ModeCore:
		return "CORE"
	case ModeThread:
		return "THREAD"
	case ModeCustom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses a mode name, the Go twin of
// original_source/cpuid.hpp's parseCpuAffinityMode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "NONE":
		return ModeNone, nil
	case "NODE":
		return ModeNode, nil
	case "CORE":
		return ModeCore, nil
	case "THREAD":
		return ModeThread, nil
	case "CUSTOM":
		return ModeCustom, nil
	default:
		return 0, fmt.Errorf("affinity: unknown mode %q", s)
	}
}

// CPUList orders topo's CPU ids according to mode, the assignment order
// handed out to workers 0, 1, 2, ... round-robin. Ports
// original_source/cpuid.hpp's getCpuIdList, including its per-mode sort
// keys and the CUSTOM1 inter-socket shuffle (here ModeCustom).
func CPUList(mode Mode, topo []Topology) []int {
	cp := make([]Topology, len(topo))
	copy(cp, topo)

	if mode == ModeCustom {
		return shuffleBySocket(cp)
	}

	var less func(a, b Topology) bool
	switch mode {
	case ModeNode:
		less = func(a, b Topology) bool {
			return lessTuple4(a.Thread, a.Core, a.Node, a.Socket, b.Thread, b.Core, b.Node, b.Socket)
		}
	case ModeCore:
		less = func(a, b Topology) bool {
			return lessTuple4(a.Thread, a.Node, a.Socket, a.Core, b.Thread, b.Node, b.Socket, b.Core)
		}
	case ModeThread:
		less = func(a, b Topology) bool {
			return lessTuple3(a.Node, a.Socket, a.Core, b.Node, b.Socket, b.Core)
		}
	default: // ModeNone
		less = func(a, b Topology) bool { return a.ID < b.ID }
	}

	sort.SliceStable(cp, func(i, j int) bool { return less(cp[i], cp[j]) })

	ids := make([]int, len(cp))
	for i, t := range cp {
		ids[i] = t.ID
	}
	return ids
}

func lessTuple4(a1, a2, a3, a4, b1, b2, b3, b4 int) bool {
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	if a3 != b3 {
		return a3 < b3
	}
	return a4 < b4
}

func lessTuple3(a1, a2, a3, b1, b2, b3 int) bool {
	if a1 != b1 {
		return a1 < b1
	}
	if a2 != b2 {
		return a2 < b2
	}
	return a3 < b3
}

// shuffleBySocket interleaves CPUs grouped by socket so that consecutive
// worker ids land on alternating sockets, preferring inter-socket
// communication the way original_source/cpuid.hpp's Shuffler does for
// CpuAffinityMode::CUSTOM1.
func shuffleBySocket(topo []Topology) []int {
	bySocket := make(map[int][]Topology)
	var sockets []int
	for _, t := range topo {
		if _, ok := bySocket[t.Socket]; !ok {
			sockets = append(sockets, t.Socket)
		}
		bySocket[t.Socket] = append(bySocket[t.Socket], t)
	}
	sort.Ints(sockets)

	var ids []int
	for {
		progressed := false
		for _, s := range sockets {
			q := bySocket[s]
			if len(q) == 0 {
				continue
			}
			ids = append(ids, q[0].ID)
			bySocket[s] = q[1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return ids
}
