package ml

import (
	"fmt"
	"sort"
)

// MaxCandidates bounds the size of an expanded grid.
const MaxCandidates = 1000

// Grid expands value lists into the cartesian product of candidates.
// Dimensions are walked in sorted name order so the candidate order is
// stable; an empty grid yields a single default candidate.
func Grid(space map[string][]float64) ([]Params, error) {
	names := make([]string, 0, len(space))
	for name, values := range space {
		if len(values) == 0 {
			return nil, fmt.Errorf("grid dimension %q has no values", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Params
	combine(space, names, 0, Params{}, &out)
	if len(out) > MaxCandidates {
		return nil, fmt.Errorf("grid has %d candidates, limit is %d", len(out), MaxCandidates)
	}
	return out, nil
}

func combine(space map[string][]float64, names []string, index int, current Params, out *[]Params) {
	if len(*out) > MaxCandidates {
		return
	}
	if index == len(names) {
		combo := make(Params, len(current))
		for k, v := range current {
			combo[k] = v
		}
		*out = append(*out, combo)
		return
	}
	name := names[index]
	for _, value := range space[name] {
		current[name] = value
		combine(space, names, index+1, current, out)
	}
	delete(current, name)
}
