package evaluation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imbalcv/dataset"
	"imbalcv/folds"
	"imbalcv/sampling"
	"imbalcv/seeds"
)

// Orchestrator runs every strategy of a Settings value over the same fold
// plan. It is safe to call Run concurrently.
type Orchestrator struct {
	settings Settings
	executor Executor
	log      *zap.Logger
}

// New validates settings and returns an Orchestrator holding its own copy.
func New(settings Settings) (*Orchestrator, error) {
	s, err := settings.normalized()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		settings: s,
		executor: Executor{
			Preprocess: s.Preprocess,
			Trainer:    s.Trainer,
			Candidates: s.Candidates,
			Metrics:    s.Metrics,
			Positive:   s.Positive,
		},
		log: s.Logger,
	}, nil
}

// Settings returns the normalized run settings.
func (o *Orchestrator) Settings() Settings {
	return o.settings
}

type job struct {
	slot     *FoldResult
	data     dataset.Frame
	part     folds.Partition
	name     string
	strategy sampling.Strategy
}

// Run evaluates every strategy on data and returns one summary per strategy
// in configuration order. Scheme errors abort before any fold runs; fold
// failures are recorded in the summaries. Cancelling ctx aborts the run and
// Run returns the context error.
func (o *Orchestrator) Run(ctx context.Context, data dataset.Frame) (Summaries, error) {
	start := time.Now()
	s := o.settings
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("training data: %w", err)
	}
	if data.ClassCounts()[s.Positive] == 0 {
		return nil, fmt.Errorf("positive class %q does not occur in the training data", s.Positive)
	}
	if err := s.Scheme.Validate(data.Len()); err != nil {
		return nil, err
	}

	results := make([][]FoldResult, len(s.Strategies))
	var jobs []job
	for si, st := range s.Strategies {
		runData, inFold := data, st
		if s.Placement == Outside && st.Kind != sampling.None {
			sampled, err := st.Apply(data, seeds.New(s.Seed, "outside", st.Name))
			if err != nil {
				results[si] = o.failAll(st.Name, err)
				continue
			}
			runData, inFold = sampled, sampling.Original().Named(st.Name)
		}
		plan, err := o.plan(runData)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", st.Name, err)
		}
		results[si] = make([]FoldResult, len(plan))
		for pi, part := range plan {
			jobs = append(jobs, job{slot: &results[si][pi], data: runData, part: part, name: st.Name, strategy: inFold})
		}
	}

	o.log.Info("resampling run started",
		zap.String("scheme", s.Scheme.String()),
		zap.String("placement", s.Placement.String()),
		zap.Int("strategies", len(s.Strategies)),
		zap.Int("candidates", len(s.Candidates)),
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", s.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		j := j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := seeds.New(s.Seed, "sample", j.name, j.part.Repeat, j.part.Fold)
			r := o.executor.Run(j.data, j.part, j.strategy.Named(j.name), rng)
			o.record(r)
			*j.slot = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.log.Warn("resampling run aborted", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(Summaries, len(s.Strategies))
	failed := 0
	for si, st := range s.Strategies {
		out[si] = summarize(st, s.Placement, s, results[si])
		failed += out[si].Failed
	}
	elapsed := time.Since(start)
	runDuration.Observe(elapsed.Seconds())
	o.log.Info("resampling run finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("failed_folds", failed),
		zap.Duration("duration", elapsed),
	)
	return out, nil
}

// Plan returns the fold plan Run uses for data.
func (o *Orchestrator) Plan(data dataset.Frame) ([]folds.Partition, error) {
	return o.plan(data)
}

func (o *Orchestrator) plan(data dataset.Frame) ([]folds.Partition, error) {
	plan, hit, err := o.settings.Cache.Plan(data.Labels, o.settings.Scheme, o.settings.Seed)
	if err != nil {
		return nil, err
	}
	observePlan(hit)
	return plan, nil
}

// failAll records every scheduled fold of a strategy as failed with err.
// It is used when outside placement cannot sample the training set.
func (o *Orchestrator) failAll(strategy string, err error) []FoldResult {
	scheme := o.settings.Scheme
	out := make([]FoldResult, scheme.Size())
	for k := range out {
		repeat, fold := k, 0
		if scheme.Kind == folds.KFold {
			repeat, fold = k/scheme.Folds, k%scheme.Folds
		}
		out[k] = FoldResult{Strategy: strategy, Repeat: repeat, Fold: fold}.fail(err, time.Now())
		o.record(out[k])
	}
	return out
}

func (o *Orchestrator) record(r FoldResult) {
	observeFold(r)
	if r.Status == StatusFailed {
		o.log.Warn("fold failed",
			zap.String("strategy", r.Strategy),
			zap.Int("repeat", r.Repeat),
			zap.Int("fold", r.Fold),
			zap.String("class", string(r.Class)),
			zap.Error(r.Err),
		)
		return
	}
	for _, c := range r.Candidates {
		if c.Failed() {
			o.log.Warn("candidate failed",
				zap.String("strategy", r.Strategy),
				zap.Int("repeat", r.Repeat),
				zap.Int("fold", r.Fold),
				zap.String("candidate", c.Params.String()),
				zap.String("class", string(c.Class)),
				zap.Error(c.Err),
			)
		}
		for name, err := range c.Errors {
			o.log.Debug("metric excluded",
				zap.String("strategy", r.Strategy),
				zap.Int("repeat", r.Repeat),
				zap.Int("fold", r.Fold),
				zap.String("candidate", c.Params.String()),
				zap.String("metric", name),
				zap.Error(err),
			)
		}
	}
}
