// Package folds plans the train/holdout partitions of a resampling run.
package folds

import (
	"fmt"
	"strings"
)

// Kind selects the resampling family.
type Kind int

const (
	// KFold is k-fold cross-validation, run Repeats times with an
	// independent shuffle per repeat.
	KFold Kind = iota
	// Bootstrap draws Resamples bootstrap samples; the holdout of each is
	// its out-of-bag records.
	Bootstrap
)

func (k Kind) String() string {
	switch k {
	case KFold:
		return "kfold"
	case Bootstrap:
		return "bootstrap"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts "kfold", "cv", "repeatedcv" and "bootstrap"/"boot".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kfold", "cv", "repeatedcv":
		return KFold, nil
	case "bootstrap", "boot":
		return Bootstrap, nil
	default:
		return 0, &InvalidSchemeError{Field: "kind", Reason: fmt.Sprintf("unknown resampling kind %q", s)}
	}
}

// Scheme is a resampling plan specification.
type Scheme struct {
	Kind       Kind
	Folds      int
	Repeats    int
	Resamples  int
	Stratified bool
}

// KFoldScheme returns a stratified k-fold scheme repeated the given number of times.
func KFoldScheme(folds, repeats int) Scheme {
	return Scheme{Kind: KFold, Folds: folds, Repeats: repeats, Stratified: true}
}

// BootstrapScheme returns a stratified bootstrap scheme.
func BootstrapScheme(resamples int) Scheme {
	return Scheme{Kind: Bootstrap, Resamples: resamples, Stratified: true}
}

// Size returns the number of partitions the scheme produces.
func (s Scheme) Size() int {
	if s.Kind == Bootstrap {
		return s.Resamples
	}
	return s.Folds * s.Repeats
}

func (s Scheme) String() string {
	strat := "plain"
	if s.Stratified {
		strat = "stratified"
	}
	if s.Kind == Bootstrap {
		return fmt.Sprintf("bootstrap(B=%d, %s)", s.Resamples, strat)
	}
	return fmt.Sprintf("kfold(k=%d, repeats=%d, %s)", s.Folds, s.Repeats, strat)
}

// Validate checks the scheme against a dataset of n records.
func (s Scheme) Validate(n int) error {
	if n < 2 {
		return &InvalidSchemeError{Field: "size", Reason: fmt.Sprintf("dataset has %d records, need at least 2", n)}
	}
	switch s.Kind {
	case KFold:
		if s.Folds < 2 {
			return &InvalidSchemeError{Field: "folds", Reason: fmt.Sprintf("k must be at least 2, got %d", s.Folds)}
		}
		if s.Folds > n {
			return &InvalidSchemeError{Field: "folds", Reason: fmt.Sprintf("k=%d exceeds dataset size %d", s.Folds, n)}
		}
		if s.Repeats < 1 {
			return &InvalidSchemeError{Field: "repeats", Reason: fmt.Sprintf("repeats must be at least 1, got %d", s.Repeats)}
		}
	case Bootstrap:
		if s.Resamples < 1 {
			return &InvalidSchemeError{Field: "resamples", Reason: fmt.Sprintf("resamples must be at least 1, got %d", s.Resamples)}
		}
	default:
		return &InvalidSchemeError{Field: "kind", Reason: s.Kind.String()}
	}
	return nil
}

// InvalidSchemeError reports fold/partition parameters that cannot be
// planned. It is fatal to the whole run.
type InvalidSchemeError struct {
	Field  string
	Reason string
}

func (e *InvalidSchemeError) Error() string {
	return fmt.Sprintf("invalid resampling scheme (%s): %s", e.Field, e.Reason)
}
