// Package evaluation runs the resampling loop around a trainer: it replays
// one fold plan for every sampling strategy, subsamples only the training
// slice of each fold, aggregates per-fold metrics into summaries and scores
// full-data fits on an external test set.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"imbalcv/folds"
	"imbalcv/metric"
	"imbalcv/ml"
	"imbalcv/preprocess"
	"imbalcv/sampling"
)

// Placement positions subsampling relative to the resampling loop.
type Placement int

const (
	// Inside subsamples the training slice of every fold.
	Inside Placement = iota
	// Outside subsamples the whole training set once and then resamples the
	// result. It exists to measure how optimistic that naive workflow is.
	// Sampling always sees the raw frame, so a strategy's Order has no
	// effect under Outside.
	Outside
)

func (p Placement) String() string {
	if p == Outside {
		return "outside"
	}
	return "inside"
}

// ParsePlacement accepts "inside" (or empty) and "outside".
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inside":
		return Inside, nil
	case "outside":
		return Outside, nil
	default:
		return 0, fmt.Errorf("unknown placement %q", s)
	}
}

// Settings is the complete, immutable description of a run. Build a fresh
// value per run; New copies what it keeps.
type Settings struct {
	Scheme     folds.Scheme
	Seed       int64
	Strategies []sampling.Strategy
	// Preprocess may be nil for no preprocessing.
	Preprocess preprocess.Preprocessor
	Trainer    ml.Trainer
	// Candidates are the hyperparameter candidates tried in every fold.
	// Empty means one default candidate.
	Candidates []ml.Params
	// Metrics default to ROC. Primary names the metric that picks the best
	// candidate and defaults to the first metric.
	Metrics  []metric.Metric
	Primary  string
	Positive string
	// Workers bounds concurrent fold executions. Zero means NumCPU-1, at
	// least 1.
	Workers   int
	Placement Placement
	Logger    *zap.Logger
	// Cache is optional; a private cache is created when nil.
	Cache *folds.Cache
}

// DefaultWorkers leaves one CPU free.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

func (s Settings) normalized() (Settings, error) {
	if s.Trainer == nil {
		return Settings{}, errors.New("settings: trainer is required")
	}
	if len(s.Strategies) == 0 {
		return Settings{}, errors.New("settings: at least one strategy is required")
	}
	if s.Positive == "" {
		return Settings{}, errors.New("settings: positive class is required")
	}
	// structural check only; the size check happens against the data
	if err := s.Scheme.Validate(math.MaxInt32); err != nil {
		return Settings{}, err
	}

	seen := make(map[string]bool, len(s.Strategies))
	strategies := make([]sampling.Strategy, len(s.Strategies))
	for i, st := range s.Strategies {
		if st.Name == "" {
			return Settings{}, fmt.Errorf("settings: strategy %d has no name", i)
		}
		if seen[st.Name] {
			return Settings{}, fmt.Errorf("settings: duplicate strategy %q", st.Name)
		}
		seen[st.Name] = true
		strategies[i] = st
	}
	s.Strategies = strategies

	if len(s.Metrics) == 0 {
		s.Metrics = []metric.Metric{metric.ROC{}}
	} else {
		s.Metrics = append([]metric.Metric(nil), s.Metrics...)
	}
	if s.Primary == "" {
		s.Primary = s.Metrics[0].Name()
	}
	found := false
	for _, m := range s.Metrics {
		if m.Name() == s.Primary {
			found = true
		}
	}
	if !found {
		return Settings{}, fmt.Errorf("settings: primary metric %q is not among the metrics", s.Primary)
	}

	if len(s.Candidates) == 0 {
		s.Candidates = []ml.Params{{}}
	} else {
		candidates := make([]ml.Params, len(s.Candidates))
		for i, c := range s.Candidates {
			candidates[i] = make(ml.Params, len(c))
			for k, v := range c {
				candidates[i][k] = v
			}
		}
		s.Candidates = candidates
	}

	if s.Workers <= 0 {
		s.Workers = DefaultWorkers()
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Cache == nil {
		cache, err := folds.NewCache(16)
		if err != nil {
			return Settings{}, err
		}
		s.Cache = cache
	}
	return s, nil
}
