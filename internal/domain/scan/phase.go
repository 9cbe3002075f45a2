package scan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// Phase identifies one stage of a scan.
type Phase int

const (
	PhaseRecon       Phase = 1
	PhaseDiscovery   Phase = 2
	PhaseConnections Phase = 3
	PhaseApplication Phase = 4
)

// AllPhases returns every phase in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseRecon, PhaseDiscovery, PhaseConnections, PhaseApplication}
}

func (p Phase) Valid() bool {
	return p >= PhaseRecon && p <= PhaseApplication
}

func (p Phase) String() string {
	switch p {
	case PhaseRecon:
		return "Phase 1: Reconnaissance"
	case PhaseDiscovery:
		return "Phase 2: Connection Discovery"
	case PhaseConnections:
		return "Phase 3: Per-Connection Testing"
	case PhaseApplication:
		return "Phase 4: Application Attacks"
	default:
		return fmt.Sprintf("Phase %d", int(p))
	}
}

// PhaseSet is an immutable selection of phases.
type PhaseSet struct {
	phases []Phase
}

// NewPhaseSet builds a set from the given phases. An empty input selects all phases.
func NewPhaseSet(phases ...Phase) (PhaseSet, error) {
	if len(phases) == 0 {
		return PhaseSet{phases: AllPhases()}, nil
	}
	seen := make(map[Phase]bool, len(phases))
	out := make([]Phase, 0, len(phases))
	for _, p := range phases {
		if !p.Valid() {
			return PhaseSet{}, fmt.Errorf("%w: %d", sharedErrors.ErrInvalidPhase, int(p))
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return PhaseSet{phases: out}, nil
}

// ParsePhases parses a comma-separated list such as "3,1".
func ParsePhases(value string) (PhaseSet, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return NewPhaseSet()
	}
	var phases []Phase
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return PhaseSet{}, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidPhase, part)
		}
		phases = append(phases, Phase(n))
	}
	if len(phases) == 0 {
		return PhaseSet{}, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidPhase, value)
	}
	return NewPhaseSet(phases...)
}

// Contains reports whether p is selected.
func (s PhaseSet) Contains(p Phase) bool {
	for _, candidate := range s.Ordered() {
		if candidate == p {
			return true
		}
	}
	return false
}

// Ordered returns the selected phases in ascending order.
func (s PhaseSet) Ordered() []Phase {
	if len(s.phases) == 0 {
		return AllPhases()
	}
	out := make([]Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Ints returns the selection as plain integers, for reports.
func (s PhaseSet) Ints() []int {
	ordered := s.Ordered()
	out := make([]int, len(ordered))
	for i, p := range ordered {
		out[i] = int(p)
	}
	return out
}
