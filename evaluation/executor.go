package evaluation

import (
	"math/rand"
	"time"

	"imbalcv/dataset"
	"imbalcv/folds"
	"imbalcv/metric"
	"imbalcv/ml"
	"imbalcv/preprocess"
	"imbalcv/sampling"
)

// Status is the outcome of one fold.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// FoldResult is the outcome of one (fold, strategy) execution.
type FoldResult struct {
	Strategy    string         `json:"strategy"`
	Repeat      int            `json:"repeat"`
	Fold        int            `json:"fold"`
	Status      Status         `json:"status"`
	Class       FailureClass   `json:"class,omitempty"`
	Err         error          `json:"-"`
	TrainSize   int            `json:"train_size"`
	SampledSize int            `json:"sampled_size"`
	HoldoutSize int            `json:"holdout_size"`
	Sampled     map[string]int `json:"sampled_counts,omitempty"`
	// Candidates is empty when the fold failed before training.
	Candidates []CandidateResult `json:"candidates,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// CandidateResult holds the metrics of one hyperparameter candidate on one
// fold. A metric that could not be computed is in Errors instead of Values.
type CandidateResult struct {
	Params ml.Params                  `json:"params"`
	Class  FailureClass               `json:"class,omitempty"`
	Err    error                      `json:"-"`
	Values map[string]metric.Estimate `json:"values,omitempty"`
	Errors map[string]error           `json:"-"`
}

// Failed reports whether training or prediction failed.
func (c CandidateResult) Failed() bool { return c.Err != nil }

// Executor runs one fold for one strategy. It holds no mutable state and is
// shared by all workers.
type Executor struct {
	Preprocess preprocess.Preprocessor
	Trainer    ml.Trainer
	Candidates []ml.Params
	Metrics    []metric.Metric
	Positive   string
}

// Run executes strategy s on partition part of data. The holdout slice only
// ever meets the fitted preprocessing and the trained predictors.
func (e Executor) Run(data dataset.Frame, part folds.Partition, s sampling.Strategy, rng *rand.Rand) FoldResult {
	start := time.Now()
	res := FoldResult{
		Strategy:    s.Name,
		Repeat:      part.Repeat,
		Fold:        part.Fold,
		TrainSize:   len(part.Train),
		HoldoutSize: len(part.Holdout),
	}
	train := data.Subset(part.Train)
	holdout := data.Subset(part.Holdout)

	fitted, err := e.prepare(train, s, rng)
	if err != nil {
		return res.fail(err, start)
	}
	res.SampledSize = fitted.train.Len()
	res.Sampled = fitted.train.ClassCounts()

	processed, err := fitted.transform.Apply(holdout)
	if err != nil {
		return res.fail(preprocessFailure(err), start)
	}

	candidates := e.Candidates
	if len(candidates) == 0 {
		candidates = []ml.Params{{}}
	}
	res.Candidates = make([]CandidateResult, len(candidates))
	failed := 0
	for i, params := range candidates {
		res.Candidates[i] = e.score(fitted.train, processed, params)
		if res.Candidates[i].Failed() {
			failed++
		}
	}
	res.Status = StatusCompleted
	if failed == len(candidates) {
		first := res.Candidates[0]
		res.Status = StatusFailed
		res.Class = first.Class
		res.Err = first.Err
	}
	res.Duration = time.Since(start)
	return res
}

func (r FoldResult) fail(err error, start time.Time) FoldResult {
	r.Status = StatusFailed
	r.Class = Classify(err)
	r.Err = err
	r.Duration = time.Since(start)
	return r
}

type prepared struct {
	train     dataset.Frame
	transform preprocess.Transform
}

// prepare produces the training frame the trainer sees and the transform
// for records scored later. The order of sampling and preprocessing follows
// s.Order.
func (e Executor) prepare(train dataset.Frame, s sampling.Strategy, rng *rand.Rand) (prepared, error) {
	pre := e.Preprocess
	if pre == nil {
		pre = preprocess.Pipeline{}
	}
	switch s.Order {
	case sampling.AfterPreprocessing:
		t, err := pre.Fit(train)
		if err != nil {
			return prepared{}, preprocessFailure(err)
		}
		processed, err := t.Apply(train)
		if err != nil {
			return prepared{}, preprocessFailure(err)
		}
		sampled, err := s.Apply(processed, rng)
		if err != nil {
			return prepared{}, err
		}
		return prepared{train: sampled, transform: t}, nil
	default:
		sampled, err := s.Apply(train, rng)
		if err != nil {
			return prepared{}, err
		}
		t, err := pre.Fit(sampled)
		if err != nil {
			return prepared{}, preprocessFailure(err)
		}
		processed, err := t.Apply(sampled)
		if err != nil {
			return prepared{}, preprocessFailure(err)
		}
		return prepared{train: processed, transform: t}, nil
	}
}

func (e Executor) score(train, holdout dataset.Frame, params ml.Params) CandidateResult {
	res := CandidateResult{Params: params}
	predictor, err := e.Trainer.Train(train.Features, train.Labels, params)
	if err != nil {
		return res.fail(&TrainerFailure{Candidate: params.String(), Err: err})
	}
	probs, err := predictor.PredictProbability(holdout.Features)
	if err != nil {
		return res.fail(&TrainerFailure{Candidate: params.String(), Err: err})
	}
	scores, err := ml.ClassProbability(predictor, probs, e.Positive)
	if err != nil {
		return res.fail(&TrainerFailure{Candidate: params.String(), Err: err})
	}
	res.Values, res.Errors = computeMetrics(e.Metrics, holdout.Labels, scores, e.Positive)
	return res
}

func (c CandidateResult) fail(err error) CandidateResult {
	c.Class = Classify(err)
	c.Err = err
	return c
}

func computeMetrics(metrics []metric.Metric, truth []string, scores []float64, positive string) (map[string]metric.Estimate, map[string]error) {
	values := make(map[string]metric.Estimate, len(metrics))
	var errs map[string]error
	for _, m := range metrics {
		est, err := m.Compute(truth, scores, positive)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[m.Name()] = err
			continue
		}
		values[m.Name()] = est
	}
	return values, errs
}
