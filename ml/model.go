// Package ml holds the classifier capability the resampling loop treats as
// a black box, plus two small trainers and the hyperparameter grid.
package ml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is one hyperparameter candidate.
type Params map[string]float64

// Get returns the named value or def when it is unset.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// String renders the candidate with sorted keys, e.g. "max_depth=4,min_leaf=2".
// The empty candidate renders as "default".
func (p Params) String() string {
	if len(p) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Trainer fits a Predictor. Implementations must be safe for concurrent use
// and must not keep references to features or labels after returning.
type Trainer interface {
	Name() string
	Train(features [][]float64, labels []string, params Params) (Predictor, error)
}

// Predictor scores records. PredictProbability returns one row per record
// holding the probability of every class, in the order of Classes.
type Predictor interface {
	Classes() []string
	PredictProbability(features [][]float64) ([][]float64, error)
}

// Model is a Predictor that can be written to disk.
type Model interface {
	Predictor
	Save(path string) error
}

// ClassProbability extracts the column of one class from a probability
// table.
func ClassProbability(p Predictor, probs [][]float64, class string) ([]float64, error) {
	col := -1
	for i, c := range p.Classes() {
		if c == class {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("predictor has no class %q (classes %v)", class, p.Classes())
	}
	out := make([]float64, len(probs))
	for i, row := range probs {
		if col >= len(row) {
			return nil, fmt.Errorf("row %d has %d probabilities, want %d", i, len(row), len(p.Classes()))
		}
		out[i] = row[col]
	}
	return out, nil
}

// classIndex maps labels onto positions in sorted class order.
func classIndex(labels []string) ([]string, []int) {
	seen := make(map[string]bool)
	var classes []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	pos := make(map[string]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	ys := make([]int, len(labels))
	for i, l := range labels {
		ys[i] = pos[l]
	}
	return classes, ys
}

func checkTrainingSet(features [][]float64, labels []string) error {
	if len(features) == 0 || len(labels) == 0 {
		return fmt.Errorf("features or labels empty")
	}
	if len(features) != len(labels) {
		return fmt.Errorf("features and labels size mismatch: %d != %d", len(features), len(labels))
	}
	return nil
}
