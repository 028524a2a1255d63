// Package sampling rebalances the training slice of a fold.
//
// Every rebalancing policy implements Subsampler. A Strategy pairs a
// Subsampler with its name, its built-in kind and the position of sampling
// relative to preprocessing. The orchestrator only ever calls Strategy.Apply,
// so built-in and user-supplied samplers go through the same path.
package sampling

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"imbalcv/dataset"
)

// Subsampler maps a training frame to a rebalanced one. Implementations must
// be stateless and draw all randomness from rng, and must not modify the
// rows of train; synthetic records get fresh rows and dataset.Synthetic as
// their origin.
type Subsampler interface {
	Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error)
}

// Func adapts a plain function to Subsampler.
type Func func(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error)

func (f Func) Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	return f(train, rng)
}

// Kind identifies a built-in policy.
type Kind int

const (
	None Kind = iota
	Down
	Up
	SMOTE
	ROSE
	Custom
)

var kindNames = map[Kind]string{
	None:   "none",
	Down:   "down",
	Up:     "up",
	SMOTE:  "smote",
	ROSE:   "rose",
	Custom: "custom",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a configuration tag to a Kind. "original" is accepted for None.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "original" || s == "" {
		return None, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sampling kind %q", s)
}

// Ordering places subsampling relative to preprocessing inside a fold.
type Ordering int

const (
	// BeforePreprocessing subsamples the raw training slice, then fits the
	// preprocessing on the sampled slice.
	BeforePreprocessing Ordering = iota
	// AfterPreprocessing fits the preprocessing on the raw training slice
	// and subsamples the processed slice.
	AfterPreprocessing
)

func (o Ordering) String() string {
	if o == AfterPreprocessing {
		return "after"
	}
	return "before"
}

// ParseOrdering accepts "before" (or empty) and "after".
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "before":
		return BeforePreprocessing, nil
	case "after":
		return AfterPreprocessing, nil
	default:
		return 0, fmt.Errorf("unknown sampling order %q", s)
	}
}

// Strategy is a named, reusable rebalancing policy.
type Strategy struct {
	Name    string
	Kind    Kind
	Order   Ordering
	sampler Subsampler
}

// Original is the identity strategy.
func Original() Strategy {
	return Strategy{Name: "original", Kind: None}
}

// DownSample returns the down-sampling strategy.
func DownSample() Strategy {
	return Strategy{Name: "down", Kind: Down, sampler: downSampler{}}
}

// UpSample returns the up-sampling strategy.
func UpSample() Strategy {
	return Strategy{Name: "up", Kind: Up, sampler: upSampler{}}
}

// SMOTESample returns the synthetic-minority strategy.
func SMOTESample(opts SMOTEOptions) Strategy {
	return Strategy{Name: "smote", Kind: SMOTE, sampler: smoteSampler{opts: opts.withDefaults()}}
}

// ROSESample returns the smoothed-bootstrap strategy.
func ROSESample(opts ROSEOptions) Strategy {
	return Strategy{Name: "rose", Kind: ROSE, sampler: roseSampler{opts: opts.withDefaults()}}
}

// CustomSample wraps a user-supplied sampler.
func CustomSample(name string, sampler Subsampler, order Ordering) Strategy {
	return Strategy{Name: name, Kind: Custom, Order: order, sampler: sampler}
}

// Named returns a copy of s under another name.
func (s Strategy) Named(name string) Strategy {
	s.Name = name
	return s
}

// WithOrder returns a copy of s with the given ordering.
func (s Strategy) WithOrder(order Ordering) Strategy {
	s.Order = order
	return s
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s(%s, %s preprocessing)", s.Name, s.Kind, s.Order)
}

// Apply runs the strategy on a training frame. The identity strategy
// returns train unchanged.
func (s Strategy) Apply(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	if s.Kind == None {
		return train, nil
	}
	if s.sampler == nil {
		return dataset.Frame{}, fmt.Errorf("strategy %s has no sampler", s.Name)
	}
	out, err := s.sampler.Sample(train, rng)
	if err != nil {
		var degenerate *DegenerateClassError
		if errors.As(err, &degenerate) && degenerate.Strategy == "" {
			degenerate.Strategy = s.Name
		}
		return dataset.Frame{}, err
	}
	if err := out.Validate(); err != nil {
		return dataset.Frame{}, fmt.Errorf("strategy %s returned an invalid frame: %w", s.Name, err)
	}
	if out.Len() == 0 {
		return dataset.Frame{}, &DegenerateClassError{Strategy: s.Name, Reason: "no records returned"}
	}
	return out, nil
}
