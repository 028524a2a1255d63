package evaluation

import (
	"context"
	"errors"
	"fmt"

	"imbalcv/folds"
	"imbalcv/metric"
	"imbalcv/preprocess"
	"imbalcv/sampling"
)

// TrainerFailure wraps an error returned by the trainer or its predictor.
type TrainerFailure struct {
	Candidate string
	Err       error
}

func (e *TrainerFailure) Error() string {
	return fmt.Sprintf("trainer failed (%s): %v", e.Candidate, e.Err)
}

func (e *TrainerFailure) Unwrap() error { return e.Err }

// PreprocessFailure wraps an error from fitting or applying preprocessing.
type PreprocessFailure struct {
	Step string
	Err  error
}

func (e *PreprocessFailure) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("preprocessing failed: %v", e.Err)
	}
	return fmt.Sprintf("preprocessing step %s failed: %v", e.Step, e.Err)
}

func (e *PreprocessFailure) Unwrap() error { return e.Err }

func preprocessFailure(err error) error {
	var step *preprocess.StepError
	if errors.As(err, &step) {
		return &PreprocessFailure{Step: step.Step, Err: err}
	}
	return &PreprocessFailure{Err: err}
}

// FailureClass is the coarse category of a fold failure, used for log
// fields, metric labels and summary counts.
type FailureClass string

const (
	FailureNone       FailureClass = ""
	FailureDegenerate FailureClass = "degenerate_class"
	FailureTrainer    FailureClass = "trainer"
	FailurePreprocess FailureClass = "preprocess"
	FailureMetric     FailureClass = "metric"
	FailureScheme     FailureClass = "invalid_scheme"
	FailureCanceled   FailureClass = "canceled"
	FailureUnknown    FailureClass = "unknown"
)

// Classify maps an error onto its FailureClass. Only typed errors are
// inspected, never messages.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	var degenerate *sampling.DegenerateClassError
	if errors.As(err, &degenerate) {
		return FailureDegenerate
	}
	var trainer *TrainerFailure
	if errors.As(err, &trainer) {
		return FailureTrainer
	}
	var pre *PreprocessFailure
	if errors.As(err, &pre) {
		return FailurePreprocess
	}
	var mce *metric.MetricComputationError
	if errors.As(err, &mce) {
		return FailureMetric
	}
	var scheme *folds.InvalidSchemeError
	if errors.As(err, &scheme) {
		return FailureScheme
	}
	return FailureUnknown
}
