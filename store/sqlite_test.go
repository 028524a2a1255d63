package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"imbalcv/evaluation"
	"imbalcv/metric"
	"imbalcv/ml"
	"imbalcv/sampling"
)

func testBenchmark() *evaluation.Benchmark {
	degenerate := &sampling.DegenerateClassError{Strategy: "smote", Class: "Class1", Count: 1, Reason: "too few records"}
	return &evaluation.Benchmark{
		RunID:     "run-1",
		Started:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Scheme:    "kfold(k=2, repeats=1, stratified)",
		Seed:      7,
		Placement: evaluation.Inside,
		Positive:  "Class1",
		Primary:   "ROC",
		Trainer:   "decision_tree",
		Summaries: evaluation.Summaries{
			{
				Strategy: "up", Scheduled: 2, Best: 1,
				Candidates: []evaluation.CandidateSummary{
					{Params: ml.Params{"max_depth": 2}, Completed: 2, Metrics: []evaluation.MetricSummary{{Name: "ROC", Mean: 0.70, Included: 2}}},
					{Params: ml.Params{"max_depth": 4}, Completed: 2, Metrics: []evaluation.MetricSummary{{Name: "ROC", Mean: 0.90, SD: 0.02, Included: 2}}},
				},
				Folds: []evaluation.FoldResult{
					{Strategy: "up", Repeat: 0, Fold: 0, Status: evaluation.StatusCompleted, TrainSize: 10, SampledSize: 16, HoldoutSize: 10,
						Sampled: map[string]int{"Class1": 8, "Class2": 8},
						Candidates: []evaluation.CandidateResult{
							{Params: ml.Params{"max_depth": 2}, Values: map[string]metric.Estimate{"ROC": {Value: 0.7}}},
							{Params: ml.Params{"max_depth": 4}, Values: map[string]metric.Estimate{"ROC": {Value: 0.88}}},
						}},
					{Strategy: "up", Repeat: 0, Fold: 1, Status: evaluation.StatusCompleted, TrainSize: 10, SampledSize: 16, HoldoutSize: 10,
						Sampled: map[string]int{"Class1": 8, "Class2": 8},
						Candidates: []evaluation.CandidateResult{
							{Params: ml.Params{"max_depth": 2}, Values: map[string]metric.Estimate{"ROC": {Value: 0.7}}},
							{Params: ml.Params{"max_depth": 4}, Values: map[string]metric.Estimate{"ROC": {Value: 0.92}}},
						}},
				},
			},
			{
				Strategy: "smote", Scheduled: 2, Failed: 2, Best: -1,
				Failures: map[evaluation.FailureClass]int{evaluation.FailureDegenerate: 2},
				Candidates: []evaluation.CandidateSummary{
					{Params: ml.Params{}, Failed: 2, Metrics: []evaluation.MetricSummary{{Name: "ROC"}}},
				},
				Folds: []evaluation.FoldResult{
					{Strategy: "smote", Repeat: 0, Fold: 0, Status: evaluation.StatusFailed, Class: evaluation.FailureDegenerate, Err: degenerate, TrainSize: 10, HoldoutSize: 10},
					{Strategy: "smote", Repeat: 0, Fold: 1, Status: evaluation.StatusFailed, Class: evaluation.FailureDegenerate, Err: degenerate, TrainSize: 10, HoldoutSize: 10},
				},
			},
		},
		Tests: []evaluation.TestResult{
			{Strategy: "up", Params: ml.Params{"max_depth": 4}, Estimates: []evaluation.TestEstimate{
				{Strategy: "up", Metric: "ROC", Estimate: metric.Estimate{Value: 0.62, Lower: 0.55, Upper: 0.69, HasInterval: true}},
			}},
			{Strategy: "smote", Err: errors.New("fit failed"), Class: evaluation.FailureDegenerate},
		},
	}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "results.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadComparison(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.SaveBenchmark(ctx, testBenchmark()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := s.LoadComparison(ctx, "run-1", "ROC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	up, smote := rows[0], rows[1]
	if up.Strategy != "up" || smote.Strategy != "smote" {
		t.Fatalf("rows out of order: %s, %s", up.Strategy, smote.Strategy)
	}
	if up.Resampled != 0.90 || !up.HasTest || math.Abs(up.Gap-0.28) > 1e-9 || !up.Largest {
		t.Errorf("unexpected up row: %+v", up)
	}
	if !up.Test.HasInterval || up.Test.Lower != 0.55 {
		t.Errorf("test interval lost: %+v", up.Test)
	}
	if smote.HasTest || smote.Failed != 2 || smote.Included != 0 || !math.IsNaN(smote.Gap) {
		t.Errorf("unexpected smote row: %+v", smote)
	}

	n, err := s.FoldCount(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two candidates on each of two up folds, one row per failed smote fold
	if n != 6 {
		t.Errorf("expected 6 fold rows, got %d", n)
	}
}

func TestRuns(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	first := testBenchmark()
	second := testBenchmark()
	second.RunID = "run-2"
	second.Started = first.Started.Add(time.Hour)
	for _, b := range []*evaluation.Benchmark{first, second} {
		if err := s.SaveBenchmark(ctx, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	r := runs[1]
	if r.Seed != 7 || r.Placement != "inside" || r.Primary != "ROC" || r.Duration != 1500*time.Millisecond {
		t.Errorf("unexpected run info: %+v", r)
	}
	if !r.Started.Equal(first.Started) {
		t.Errorf("started = %v, want %v", r.Started, first.Started)
	}
}

func TestSaveBenchmarkErrors(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.SaveBenchmark(ctx, nil); err == nil {
		t.Fatal("expected error for nil benchmark")
	}
	b := testBenchmark()
	if err := s.SaveBenchmark(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// duplicate run id violates the primary key and rolls back
	if err := s.SaveBenchmark(ctx, b); err == nil {
		t.Fatal("expected error for duplicate run")
	}
	n, err := s.FoldCount(ctx, b.RunID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 {
		t.Errorf("rollback left %d fold rows, want 6", n)
	}
	if _, err := s.LoadComparison(ctx, "missing", "ROC"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
