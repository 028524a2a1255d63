package preprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbalcv/dataset"
)

func mixedFrame(t *testing.T) dataset.Frame {
	schema := dataset.Schema{
		Columns: []dataset.Column{
			{Name: "x", Kind: dataset.Numeric},
			{Name: "color", Kind: dataset.Categorical, Levels: []string{"blue", "red"}},
			{Name: "const", Kind: dataset.Numeric},
		},
		Label: "Class",
	}
	f, err := dataset.New(schema, [][]float64{{1, 0, 7}, {2, 1, 7}, {3, 1, 7}, {6, 0, 7}}, []string{"A", "A", "B", "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestCenterScale(t *testing.T) {
	train := mixedFrame(t)
	p, err := Parse([]string{"center", "scale"})
	require.NoError(t, err)
	assert.Equal(t, []string{"center", "scale"}, p.Names())

	fitted, err := p.Fit(train)
	require.NoError(t, err)
	out, err := fitted.Apply(train)
	require.NoError(t, err)

	// mean 3, sample sd sqrt(14/3)
	assert.InDelta(t, -2/2.160246899469287, out.Features[0][0], 1e-9)
	assert.InDelta(t, 3/2.160246899469287, out.Features[3][0], 1e-9)
	for i, row := range out.Features {
		assert.Equal(t, train.Features[i][1], row[1], "categorical column untouched")
		assert.Equal(t, 0.0, row[2], "constant column centered")
	}
	assert.Equal(t, train.Labels, out.Labels)
	assert.Equal(t, train.Origin, out.Origin)
}

func TestRange(t *testing.T) {
	train := mixedFrame(t)
	fitted, err := Range{}.Fit(train)
	require.NoError(t, err)

	holdout, err := dataset.New(train.Schema, [][]float64{{11, 1, 7}, {-4, 0, 8}}, []string{"A", "B"})
	require.NoError(t, err)
	out, err := fitted.Apply(holdout)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1, 0}, {-1, 0, 0}}, out.Features)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	train := mixedFrame(t)
	before := [][]float64{{1, 0, 7}, {2, 1, 7}, {3, 1, 7}, {6, 0, 7}}
	for _, name := range []string{"center", "scale", "range"} {
		step, err := ParseStep(name)
		require.NoError(t, err)
		fitted, err := step.Fit(train)
		require.NoError(t, err)
		_, err = fitted.Apply(train)
		require.NoError(t, err)
		assert.Equal(t, before, train.Features, name)
	}
}

func TestEmptyPipelineIsIdentity(t *testing.T) {
	train := mixedFrame(t)
	fitted, err := Pipeline{}.Fit(train)
	require.NoError(t, err)
	out, err := fitted.Apply(train)
	require.NoError(t, err)
	assert.Equal(t, train, out)
}

func TestErrors(t *testing.T) {
	_, err := ParseStep("pca")
	assert.Error(t, err)

	train := mixedFrame(t)
	_, err = Pipeline{Steps: []Step{Center{}}}.Fit(train.Empty(0))
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "center", stepErr.Step)
	assert.Equal(t, "fit", stepErr.Op)
	assert.ErrorIs(t, err, dataset.ErrEmpty)

	fitted, err := Pipeline{Steps: []Step{Scale{}}}.Fit(train)
	require.NoError(t, err)
	narrow, err := dataset.New(dataset.NumericSchema(1), [][]float64{{1}}, []string{"A"})
	require.NoError(t, err)
	_, err = fitted.Apply(narrow)
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "apply", stepErr.Op)
}
