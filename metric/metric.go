// Package metric scores positive-class probabilities against true labels.
//
// The same Metric values are used per fold and on the external test set.
// Every estimate is a point value; metrics that have a sampling distribution
// also report a 95% interval.
package metric

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Level is the coverage of reported intervals.
const Level = 0.95

// Estimate is a metric value with an optional interval.
type Estimate struct {
	Value       float64 `json:"value"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	HasInterval bool    `json:"has_interval"`
}

func (e Estimate) String() string {
	if !e.HasInterval {
		return fmt.Sprintf("%.4f", e.Value)
	}
	return fmt.Sprintf("%.4f (%.4f, %.4f)", e.Value, e.Lower, e.Upper)
}

// Metric computes one estimate. scores[i] is the predicted probability that
// record i belongs to the positive class. Larger values are better.
type Metric interface {
	Name() string
	Compute(truth []string, scores []float64, positive string) (Estimate, error)
}

// MetricComputationError means the metric is undefined for the given
// records, for example AUC on a single-class holdout.
type MetricComputationError struct {
	Metric string
	Reason string
}

func (e *MetricComputationError) Error() string {
	return fmt.Sprintf("metric %s: %s", e.Metric, e.Reason)
}

// ByName returns a built-in metric: ROC, Sens, Spec or Accuracy. Matching
// ignores case.
func ByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "roc", "auc":
		return ROC{}, nil
	case "sens", "sensitivity":
		return Sensitivity{}, nil
	case "spec", "specificity":
		return Specificity{}, nil
	case "accuracy", "acc":
		return Accuracy{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

// Names resolves several metric names at once.
func Names(names []string) ([]Metric, error) {
	out := make([]Metric, 0, len(names))
	for _, n := range names {
		m, err := ByName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func z() float64 {
	return distuv.UnitNormal.Quantile(1 - (1-Level)/2)
}

func check(name string, truth []string, scores []float64) error {
	if len(truth) != len(scores) {
		return &MetricComputationError{Metric: name, Reason: fmt.Sprintf("%d labels for %d scores", len(truth), len(scores))}
	}
	if len(truth) == 0 {
		return &MetricComputationError{Metric: name, Reason: "no records"}
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return &MetricComputationError{Metric: name, Reason: fmt.Sprintf("score %d is NaN", i)}
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
