package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imbalcv/dataset"
	"imbalcv/ml"
)

// TestResult is the external test outcome of one strategy. Err is set when
// the strategy could not be fit or scored at all.
type TestResult struct {
	Strategy  string         `json:"strategy"`
	Params    ml.Params      `json:"params"`
	Fitted    *Fitted        `json:"-"`
	Estimates []TestEstimate `json:"estimates"`
	Class     FailureClass   `json:"class,omitempty"`
	Err       error          `json:"-"`
}

// Estimate returns the named test metric.
func (r TestResult) Estimate(name string) (TestEstimate, bool) {
	for _, e := range r.Estimates {
		if e.Metric == name {
			return e, true
		}
	}
	return TestEstimate{}, false
}

// Benchmark is the full outcome of comparing strategies: resampling
// summaries and external test results, keyed by strategy in the same order.
type Benchmark struct {
	RunID     string        `json:"run_id"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Scheme    string        `json:"scheme"`
	Seed      int64         `json:"seed"`
	Placement Placement     `json:"placement"`
	Positive  string        `json:"positive"`
	Primary   string        `json:"primary"`
	Trainer   string        `json:"trainer"`
	Summaries Summaries     `json:"summaries"`
	Tests     []TestResult  `json:"tests"`
}

// Benchmark runs the resampling loop on train, then fits every strategy once
// on all of train with its best candidate and scores it on test.
func (o *Orchestrator) Benchmark(ctx context.Context, train, test dataset.Frame) (*Benchmark, error) {
	started := time.Now()
	s := o.settings
	b := &Benchmark{
		RunID:     uuid.NewString(),
		Started:   started.UTC(),
		Scheme:    s.Scheme.String(),
		Seed:      s.Seed,
		Placement: s.Placement,
		Positive:  s.Positive,
		Primary:   s.Primary,
		Trainer:   s.Trainer.Name(),
	}
	log := o.log.With(zap.String("run_id", b.RunID))

	summaries, err := o.Run(ctx, train)
	if err != nil {
		return nil, err
	}
	b.Summaries = summaries

	for i, st := range s.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := TestResult{Strategy: st.Name, Params: summaries[i].BestParams()}
		fitted, err := o.Fit(train, st, res.Params)
		if err == nil {
			res.Fitted = fitted
			res.Estimates, err = o.Evaluate(fitted, test)
		}
		if err != nil {
			res.Err = err
			res.Class = Classify(err)
			log.Warn("test evaluation failed",
				zap.String("strategy", st.Name),
				zap.String("candidate", res.Params.String()),
				zap.String("class", string(res.Class)),
				zap.Error(err),
			)
		}
		b.Tests = append(b.Tests, res)
	}
	b.Duration = time.Since(started)
	log.Info("benchmark finished", zap.Int("strategies", len(s.Strategies)), zap.Duration("duration", b.Duration))
	return b, nil
}
