package evaluation

import (
	"errors"
	"fmt"

	"imbalcv/dataset"
	"imbalcv/metric"
	"imbalcv/ml"
	"imbalcv/preprocess"
	"imbalcv/sampling"
	"imbalcv/seeds"
)

// Fitted is a predictor trained once on the full training set, together
// with the preprocessing fitted alongside it.
type Fitted struct {
	Strategy    string
	Params      ml.Params
	Transform   preprocess.Transform
	Predictor   ml.Predictor
	TrainSize   int
	SampledSize int
	Sampled     map[string]int
}

// Fit applies strategy s exactly once to the whole training set, fits the
// preprocessing in the order s asks for and trains with params.
func (o *Orchestrator) Fit(train dataset.Frame, s sampling.Strategy, params ml.Params) (*Fitted, error) {
	if err := train.Validate(); err != nil {
		return nil, fmt.Errorf("training data: %w", err)
	}
	rng := seeds.New(o.settings.Seed, "final", s.Name)
	p, err := o.executor.prepare(train, s, rng)
	if err != nil {
		return nil, err
	}
	predictor, err := o.settings.Trainer.Train(p.train.Features, p.train.Labels, params)
	if err != nil {
		return nil, &TrainerFailure{Candidate: params.String(), Err: err}
	}
	return &Fitted{
		Strategy:    s.Name,
		Params:      params,
		Transform:   p.transform,
		Predictor:   predictor,
		TrainSize:   train.Len(),
		SampledSize: p.train.Len(),
		Sampled:     p.train.ClassCounts(),
	}, nil
}

// TestEstimate is one metric of a fitted model on the external test set.
type TestEstimate struct {
	Strategy string          `json:"strategy"`
	Metric   string          `json:"metric"`
	Estimate metric.Estimate `json:"estimate"`
	Err      error           `json:"-"`
}

// Evaluate scores a fitted model on the test set, which is transformed by
// the fitted preprocessing but never subsampled. A metric that cannot be
// computed is reported in its TestEstimate; other errors abort.
func Evaluate(f *Fitted, test dataset.Frame, metrics []metric.Metric, positive string) ([]TestEstimate, error) {
	if f == nil || f.Predictor == nil {
		return nil, errors.New("evaluate: model is not fitted")
	}
	if err := test.Validate(); err != nil {
		return nil, fmt.Errorf("test data: %w", err)
	}
	if test.Len() == 0 {
		return nil, fmt.Errorf("test data: %w", dataset.ErrEmpty)
	}
	processed := test
	if f.Transform != nil {
		var err error
		if processed, err = f.Transform.Apply(test); err != nil {
			return nil, preprocessFailure(err)
		}
	}
	probs, err := f.Predictor.PredictProbability(processed.Features)
	if err != nil {
		return nil, &TrainerFailure{Candidate: f.Params.String(), Err: err}
	}
	scores, err := ml.ClassProbability(f.Predictor, probs, positive)
	if err != nil {
		return nil, &TrainerFailure{Candidate: f.Params.String(), Err: err}
	}
	values, errs := computeMetrics(metrics, processed.Labels, scores, positive)
	out := make([]TestEstimate, len(metrics))
	for i, m := range metrics {
		out[i] = TestEstimate{Strategy: f.Strategy, Metric: m.Name(), Estimate: values[m.Name()], Err: errs[m.Name()]}
	}
	return out, nil
}

// Evaluate scores f with the run's metrics and positive class.
func (o *Orchestrator) Evaluate(f *Fitted, test dataset.Frame) ([]TestEstimate, error) {
	return Evaluate(f, test, o.settings.Metrics, o.settings.Positive)
}
