// Package preprocess fits feature transforms on a training slice and applies
// them to any slice with the same schema.
package preprocess

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"imbalcv/dataset"
)

// Preprocessor learns a Transform from training records.
type Preprocessor interface {
	Fit(train dataset.Frame) (Transform, error)
}

// Transform applies fitted parameters. Apply returns a frame with fresh
// feature rows; labels and origins are carried over.
type Transform interface {
	Apply(f dataset.Frame) (dataset.Frame, error)
}

// Step is a named Preprocessor that can take part in a Pipeline.
type Step interface {
	Preprocessor
	Name() string
}

// StepError reports which step failed and whether it failed while fitting
// or applying.
type StepError struct {
	Step string
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("preprocess %s: %s: %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Pipeline runs steps in order; each step is fit on the output of the
// previous one. The zero Pipeline is the identity.
type Pipeline struct {
	Steps []Step
}

// Names returns the step names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name()
	}
	return names
}

// Fit fits every step in order.
func (p Pipeline) Fit(train dataset.Frame) (Transform, error) {
	fitted := make(chain, 0, len(p.Steps))
	cur := train
	for _, step := range p.Steps {
		t, err := step.Fit(cur)
		if err != nil {
			return nil, &StepError{Step: step.Name(), Op: "fit", Err: err}
		}
		next, err := t.Apply(cur)
		if err != nil {
			return nil, &StepError{Step: step.Name(), Op: "apply", Err: err}
		}
		fitted = append(fitted, named{name: step.Name(), Transform: t})
		cur = next
	}
	return fitted, nil
}

type named struct {
	name string
	Transform
}

type chain []named

func (c chain) Apply(f dataset.Frame) (dataset.Frame, error) {
	cur := f
	for _, t := range c {
		next, err := t.Apply(cur)
		if err != nil {
			return dataset.Frame{}, &StepError{Step: t.name, Op: "apply", Err: err}
		}
		cur = next
	}
	return cur, nil
}

// Parse builds a Pipeline from step names.
func Parse(names []string) (Pipeline, error) {
	var p Pipeline
	for _, name := range names {
		step, err := ParseStep(name)
		if err != nil {
			return Pipeline{}, err
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

// ParseStep returns a built-in step: center, scale or range.
func ParseStep(name string) (Step, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "center":
		return Center{}, nil
	case "scale":
		return Scale{}, nil
	case "range":
		return Range{}, nil
	default:
		return nil, fmt.Errorf("unknown preprocessing step %q", name)
	}
}

// Center subtracts the training mean of every numeric column.
type Center struct{}

func (Center) Name() string { return "center" }

func (Center) Fit(train dataset.Frame) (Transform, error) {
	cols, err := numericColumns(train)
	if err != nil {
		return nil, err
	}
	shift := make(map[int]float64, len(cols))
	for j, col := range cols {
		shift[j] = stat.Mean(col, nil)
	}
	return affine{width: train.Schema.Width(), shift: shift}, nil
}

// Scale divides every numeric column by its training standard deviation.
// Constant columns are left unchanged.
type Scale struct{}

func (Scale) Name() string { return "scale" }

func (Scale) Fit(train dataset.Frame) (Transform, error) {
	cols, err := numericColumns(train)
	if err != nil {
		return nil, err
	}
	factor := make(map[int]float64, len(cols))
	for j, col := range cols {
		if sd := stat.StdDev(col, nil); sd > 0 {
			factor[j] = 1 / sd
		}
	}
	return affine{width: train.Schema.Width(), factor: factor}, nil
}

// Range maps every numeric column onto [0, 1] using the training minimum and
// maximum. Constant columns map to 0.
type Range struct{}

func (Range) Name() string { return "range" }

func (Range) Fit(train dataset.Frame) (Transform, error) {
	cols, err := numericColumns(train)
	if err != nil {
		return nil, err
	}
	b := bounds{width: train.Schema.Width(), min: make(map[int]float64), max: make(map[int]float64)}
	for j, col := range cols {
		b.min[j], b.max[j] = floats.Min(col), floats.Max(col)
	}
	return b, nil
}

// Normalize maps value onto [0, 1] given the column bounds. Values outside
// the bounds fall outside [0, 1].
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

type bounds struct {
	width    int
	min, max map[int]float64
}

func (b bounds) Apply(f dataset.Frame) (dataset.Frame, error) {
	if f.Schema.Width() != b.width {
		return dataset.Frame{}, fmt.Errorf("frame has %d columns, transform was fit on %d", f.Schema.Width(), b.width)
	}
	out := make([][]float64, len(f.Features))
	for i, row := range f.Features {
		next := make([]float64, len(row))
		copy(next, row)
		for j, lo := range b.min {
			next[j] = Normalize(row[j], lo, b.max[j])
		}
		out[i] = next
	}
	return f.WithFeatures(out), nil
}

// affine computes (x - shift[j]) * factor[j]; a column missing from shift
// is not shifted and one missing from factor is not scaled.
type affine struct {
	width  int
	shift  map[int]float64
	factor map[int]float64
}

func (a affine) Apply(f dataset.Frame) (dataset.Frame, error) {
	if f.Schema.Width() != a.width {
		return dataset.Frame{}, fmt.Errorf("frame has %d columns, transform was fit on %d", f.Schema.Width(), a.width)
	}
	out := make([][]float64, len(f.Features))
	for i, row := range f.Features {
		next := make([]float64, len(row))
		copy(next, row)
		for j, s := range a.shift {
			next[j] -= s
		}
		for j, m := range a.factor {
			next[j] *= m
		}
		out[i] = next
	}
	return f.WithFeatures(out), nil
}

// numericColumns returns the values of every numeric column keyed by
// position.
func numericColumns(train dataset.Frame) (map[int][]float64, error) {
	if train.Len() == 0 {
		return nil, dataset.ErrEmpty
	}
	cols := make(map[int][]float64)
	for _, j := range train.Schema.NumericColumns() {
		col := make([]float64, train.Len())
		for i, row := range train.Features {
			col[i] = row[j]
		}
		cols[j] = col
	}
	return cols, nil
}
