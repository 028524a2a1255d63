// Package dataset holds labeled feature tables and the views the resampling
// loop passes around.
//
// A Frame is a read-only value once built. Subset shares feature rows with
// its parent; every transform that changes values (preprocessing, synthetic
// sampling) allocates new rows instead of writing through.
package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// Synthetic marks a record that does not correspond to any row of the
// original dataset.
const Synthetic = -1

// Kind is the type of a feature column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column describes one feature. Categorical values are stored as the index
// into Levels.
type Column struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	Levels []string `json:"levels,omitempty"`
}

// Schema is the uniform layout shared by every record of a Frame.
type Schema struct {
	Columns []Column `json:"columns"`
	Label   string   `json:"label"`
}

// Width returns the number of feature columns.
func (s Schema) Width() int {
	return len(s.Columns)
}

// NumericColumns returns the positions of the numeric columns.
func (s Schema) NumericColumns() []int {
	cols := make([]int, 0, len(s.Columns))
	for i, c := range s.Columns {
		if c.Kind == Numeric {
			cols = append(cols, i)
		}
	}
	return cols
}

// NumericSchema builds a schema of width numeric columns named V1..Vn.
func NumericSchema(width int) Schema {
	cols := make([]Column, width)
	for i := range cols {
		cols[i] = Column{Name: fmt.Sprintf("V%d", i+1), Kind: Numeric}
	}
	return Schema{Columns: cols, Label: "Class"}
}

// Frame is an ordered set of labeled records. Origin holds, for every record,
// its row in the original dataset, or Synthetic.
type Frame struct {
	Schema   Schema
	Features [][]float64
	Labels   []string
	Origin   []int
}

// New validates the inputs and returns a Frame whose origins are 0..n-1.
func New(schema Schema, features [][]float64, labels []string) (Frame, error) {
	if schema.Width() == 0 && len(features) > 0 {
		schema = NumericSchema(len(features[0]))
	}
	origin := make([]int, len(labels))
	for i := range origin {
		origin[i] = i
	}
	f := Frame{Schema: schema, Features: features, Labels: labels, Origin: origin}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Validate checks the record invariants: matching lengths, one non-empty
// label per record and a uniform feature width.
func (f Frame) Validate() error {
	if len(f.Features) != len(f.Labels) {
		return fmt.Errorf("features and labels size mismatch: %d != %d", len(f.Features), len(f.Labels))
	}
	if len(f.Origin) != len(f.Labels) {
		return fmt.Errorf("origin and labels size mismatch: %d != %d", len(f.Origin), len(f.Labels))
	}
	width := f.Schema.Width()
	for i, row := range f.Features {
		if len(row) != width {
			return fmt.Errorf("record %d has %d features, schema has %d", i, len(row), width)
		}
		if f.Labels[i] == "" {
			return fmt.Errorf("record %d has an empty label", i)
		}
	}
	return nil
}

// Len returns the number of records.
func (f Frame) Len() int {
	return len(f.Labels)
}

// Subset returns the records at the given positions, in the given order.
// Positions may repeat.
func (f Frame) Subset(idx []int) Frame {
	out := f.Empty(len(idx))
	for _, i := range idx {
		out.Add(f.Features[i], f.Labels[i], f.Origin[i])
	}
	return out
}

// Empty returns a frame with the same schema and no records.
func (f Frame) Empty(capacity int) Frame {
	return Frame{
		Schema:   f.Schema,
		Features: make([][]float64, 0, capacity),
		Labels:   make([]string, 0, capacity),
		Origin:   make([]int, 0, capacity),
	}
}

// Add appends one record.
func (f *Frame) Add(row []float64, label string, origin int) {
	f.Features = append(f.Features, row)
	f.Labels = append(f.Labels, label)
	f.Origin = append(f.Origin, origin)
}

// WithFeatures returns a frame carrying the same labels and origins over a
// replacement feature table.
func (f Frame) WithFeatures(features [][]float64) Frame {
	return Frame{Schema: f.Schema, Features: features, Labels: f.Labels, Origin: f.Origin}
}

// Classes returns the distinct labels, sorted.
func (f Frame) Classes() []string {
	counts := f.ClassCounts()
	classes := make([]string, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// ClassCounts returns the number of records per label.
func (f Frame) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range f.Labels {
		counts[l]++
	}
	return counts
}

// ClassIndex returns, per label, the positions of its records in order.
func (f Frame) ClassIndex() map[string][]int {
	index := make(map[string][]int)
	for i, l := range f.Labels {
		index[l] = append(index[l], i)
	}
	return index
}

// ErrEmpty is returned when an operation needs at least one record.
var ErrEmpty = errors.New("dataset is empty")
