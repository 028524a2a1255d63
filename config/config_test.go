package config

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbalcv/dataset"
	"imbalcv/evaluation"
	"imbalcv/folds"
	"imbalcv/sampling"
)

const sample = `
seed: 42
workers: 2
placement: outside
positive_class: Class1
primary_metric: sens
metrics: [ROC, Sens, Spec]
resampling: {kind: repeatedcv, folds: 5, repeats: 3, stratified: false}
strategies:
  - {name: original, kind: none}
  - {name: down, kind: down, order: after}
  - {name: smote, kind: smote, smote: {k: 3, perc_over: 100, perc_under: 300}}
  - {name: rose, kind: rose, rose: {p: 0.4}}
  - {name: mine, kind: custom}
preprocessing: [center, scale]
model: {type: logistic_regression, grid: {learning_rate: [0.1, 0.5], epochs: [100]}}
data:
  simulate: {train: 200, test: 300, minority_fraction: 0.1, noise_vars: 2}
log: {level: debug, file: logs/run.log}
store: {path: results.db}
`

func identity() sampling.Subsampler {
	return sampling.Func(func(train dataset.Frame, _ *rand.Rand) (dataset.Frame, error) { return train, nil })
}

func TestParseAndBuild(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "Class", cfg.Data.Label, "default kept")

	settings, err := Build(cfg, BuildOptions{Custom: map[string]sampling.Subsampler{"mine": identity()}})
	require.NoError(t, err)

	assert.Equal(t, folds.KFold, settings.Scheme.Kind)
	assert.Equal(t, 5, settings.Scheme.Folds)
	assert.Equal(t, 3, settings.Scheme.Repeats)
	assert.False(t, settings.Scheme.Stratified)
	assert.Equal(t, evaluation.Outside, settings.Placement)
	assert.Equal(t, "Sens", settings.Primary)
	assert.Equal(t, 2, settings.Workers)
	assert.Equal(t, "logistic_regression", settings.Trainer.Name())
	require.Len(t, settings.Candidates, 2)
	assert.Equal(t, 0.1, settings.Candidates[0]["learning_rate"])
	require.NotNil(t, settings.Preprocess)

	require.Len(t, settings.Strategies, 5)
	names := make([]string, len(settings.Strategies))
	for i, s := range settings.Strategies {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"original", "down", "smote", "rose", "mine"}, names)
	assert.Equal(t, sampling.AfterPreprocessing, settings.Strategies[1].Order)
	assert.Equal(t, sampling.SMOTE, settings.Strategies[2].Kind)
	assert.Equal(t, sampling.Custom, settings.Strategies[4].Kind)

	_, err = evaluation.New(settings)
	require.NoError(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	settings, err := Build(cfg, BuildOptions{})
	require.NoError(t, err)
	assert.Empty(t, settings.Primary, "first metric is picked by evaluation.New")
	assert.True(t, settings.Scheme.Stratified)
	assert.Equal(t, 10, settings.Scheme.Folds)
	assert.Len(t, settings.Strategies, 5)
	assert.Nil(t, settings.Preprocess)
}

func TestBootstrapScheme(t *testing.T) {
	cfg, err := Parse([]byte("resampling: {kind: boot, resamples: 12}\n"))
	require.NoError(t, err)
	settings, err := Build(cfg, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, folds.Bootstrap, settings.Scheme.Kind)
	assert.Equal(t, 12, settings.Scheme.Resamples)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "sed: 1\n"},
		{"negative workers", "workers: -1\n"},
		{"bad placement", "placement: sideways\n"},
		{"unknown metric", "metrics: [ROC, F1]\n"},
		{"primary not listed", "metrics: [ROC]\nprimary_metric: Spec\n"},
		{"duplicate strategy", "strategies: [{name: a, kind: up}, {name: a, kind: down}]\n"},
		{"unknown strategy kind", "strategies: [{name: a, kind: tomek}]\n"},
		{"one fold", "resampling: {kind: cv, folds: 1}\n"},
		{"bad resampling kind", "resampling: {kind: holdout}\n"},
		{"unknown step", "preprocessing: [pca]\n"},
		{"unknown model", "model: {type: svm}\n"},
		{"no positive", "positive_class: \"\"\n"},
		{"rose probability", "strategies: [{name: r, kind: rose, rose: {p: 1.5}}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected error for %q", tt.yaml)
			}
		})
	}
}

func TestBuildRequiresRegisteredCustom(t *testing.T) {
	cfg, err := Parse([]byte("strategies: [{name: mine, kind: custom}]\n"))
	require.NoError(t, err)
	_, err = Build(cfg, BuildOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mine")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "outside", cfg.Placement)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDataSimulate(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	train, test, err := cfg.Data.LoadData(cfg.Seed)
	require.NoError(t, err)
	assert.Equal(t, 200, train.Len())
	assert.Equal(t, 300, test.Len())
	assert.Equal(t, 20, train.ClassCounts()[dataset.MinorityClass])
}

func TestLoadDataSplitsSingleFile(t *testing.T) {
	dir := t.TempDir()
	frame, err := dataset.Simulate(100, dataset.SimulateOptions{MinorityFraction: 0.2}, 3)
	require.NoError(t, err)
	path := filepath.Join(dir, "train.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteCSV(f, frame))
	require.NoError(t, f.Close())

	d := DataConfig{Train: path, Label: "Class", TestFraction: 0.25}
	train, test, err := d.LoadData(3)
	require.NoError(t, err)
	assert.Equal(t, 100, train.Len()+test.Len())
	assert.Equal(t, 5, test.ClassCounts()[dataset.MinorityClass])

	_, _, err = DataConfig{}.LoadData(1)
	assert.Error(t, err)
}
