package sampling

import (
	"fmt"

	"imbalcv/dataset"
)

// DegenerateClassError means a training slice cannot support a strategy:
// fewer than two classes, a class with fewer than two records, or a ratio
// that leaves a class with no output records.
type DegenerateClassError struct {
	Strategy string
	Class    string
	Count    int
	Reason   string
}

func (e *DegenerateClassError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("sampling %s: degenerate classes: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("sampling %s: class %q has %d records: %s", e.Strategy, e.Class, e.Count, e.Reason)
}

// checkClasses enforces the common preconditions and returns the sorted
// classes with their member positions.
func checkClasses(train dataset.Frame) ([]string, map[string][]int, error) {
	classes := train.Classes()
	if len(classes) < 2 {
		return nil, nil, &DegenerateClassError{
			Reason: fmt.Sprintf("need at least 2 classes, found %d", len(classes)),
		}
	}
	index := train.ClassIndex()
	for _, c := range classes {
		if n := len(index[c]); n < 2 {
			return nil, nil, &DegenerateClassError{Class: c, Count: n, Reason: "need at least 2 records per class"}
		}
	}
	return classes, index, nil
}

// smallest returns the class with the fewest records, first in sorted order
// on ties.
func smallest(classes []string, index map[string][]int) string {
	best := classes[0]
	for _, c := range classes[1:] {
		if len(index[c]) < len(index[best]) {
			best = c
		}
	}
	return best
}
