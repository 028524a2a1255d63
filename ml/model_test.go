package ml

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogisticRegressionSeparates(t *testing.T) {
	features := [][]float64{{-2, 0}, {-1, 1}, {-1.5, -1}, {2, 0}, {1, -1}, {1.5, 1}}
	labels := []string{"neg", "neg", "neg", "pos", "pos", "pos"}

	p, err := LogisticTrainer{}.Train(features, labels, Params{"epochs": 500, "learning_rate": 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "pos"}, p.Classes())

	probs, err := p.PredictProbability([][]float64{{-3, 0}, {3, 0}})
	require.NoError(t, err)
	assert.Less(t, probs[0][1], 0.1)
	assert.Greater(t, probs[1][1], 0.9)
	assert.InDelta(t, 1, probs[0][0]+probs[0][1], 1e-12)

	pos, err := ClassProbability(p, probs, "pos")
	require.NoError(t, err)
	assert.Equal(t, []float64{probs[0][1], probs[1][1]}, pos)
	_, err = ClassProbability(p, probs, "other")
	assert.Error(t, err)
}

func TestLogisticRegressionRejectsMulticlass(t *testing.T) {
	_, err := LogisticTrainer{}.Train([][]float64{{1}, {2}, {3}}, []string{"a", "b", "c"}, nil)
	assert.Error(t, err)
}

func TestLogisticRegressionSaveLoad(t *testing.T) {
	p, err := LogisticTrainer{}.Train([][]float64{{0}, {1}, {2}, {3}}, []string{"A", "A", "B", "B"}, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "glm.json")
	require.NoError(t, p.(Model).Save(path))

	loaded, err := LoadModel("logistic_regression", path)
	require.NoError(t, err)
	want, err := p.PredictProbability([][]float64{{1.5}})
	require.NoError(t, err)
	got, err := loaded.PredictProbability([][]float64{{1.5}})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewTrainer(t *testing.T) {
	for _, name := range []string{"decision_tree", "logistic_regression", "glm"} {
		tr, err := NewTrainer(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tr.Name())
	}
	_, err := NewTrainer("svm")
	assert.Error(t, err)
	_, err = LoadModel("svm", "nowhere")
	assert.Error(t, err)
}

func TestGrid(t *testing.T) {
	grid, err := Grid(map[string][]float64{"min_samples_leaf": {1, 5}, "max_depth": {2, 4, 6}})
	require.NoError(t, err)
	require.Len(t, grid, 6)
	assert.Equal(t, "max_depth=2,min_samples_leaf=1", grid[0].String())
	assert.Equal(t, "max_depth=2,min_samples_leaf=5", grid[1].String())
	assert.Equal(t, "max_depth=6,min_samples_leaf=5", grid[5].String())

	single, err := Grid(nil)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "default", single[0].String())
	assert.Equal(t, 3.0, single[0].Get("max_depth", 3))

	_, err = Grid(map[string][]float64{"max_depth": {}})
	assert.Error(t, err)
}
