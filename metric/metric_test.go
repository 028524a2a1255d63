package metric

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROC(t *testing.T) {
	truth := []string{"P", "P", "P", "N", "N", "N", "N"}
	scores := []float64{0.9, 0.8, 0.4, 0.7, 0.3, 0.2, 0.1}
	est, err := ROC{}.Compute(truth, scores, "P")
	require.NoError(t, err)
	assert.InDelta(t, 11.0/12, est.Value, 1e-12)
	assert.True(t, est.HasInterval)
	assert.LessOrEqual(t, est.Lower, est.Value)
	assert.GreaterOrEqual(t, est.Upper, est.Value)
	assert.LessOrEqual(t, est.Upper, 1.0)
}

func TestROCTiesAndSeparation(t *testing.T) {
	est, err := ROC{}.Compute([]string{"P", "N"}, []float64{0.5, 0.5}, "P")
	require.NoError(t, err)
	assert.Equal(t, 0.5, est.Value)
	assert.False(t, est.HasInterval)

	est, err = ROC{}.Compute([]string{"P", "P", "N", "N"}, []float64{0.9, 0.8, 0.2, 0.1}, "P")
	require.NoError(t, err)
	assert.Equal(t, Estimate{Value: 1, Lower: 1, Upper: 1, HasInterval: true}, est)
}

func TestROCSingleClass(t *testing.T) {
	_, err := ROC{}.Compute([]string{"N", "N"}, []float64{0.1, 0.2}, "P")
	var mce *MetricComputationError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "ROC", mce.Metric)
}

func TestThresholdMetrics(t *testing.T) {
	// 8 of 10 positives and 3 of 4 negatives classified correctly
	var truth []string
	var scores []float64
	for i := 0; i < 10; i++ {
		truth = append(truth, "P")
		if i < 8 {
			scores = append(scores, 0.7)
		} else {
			scores = append(scores, 0.2)
		}
	}
	for i := 0; i < 4; i++ {
		truth = append(truth, "N")
		if i < 3 {
			scores = append(scores, 0.1)
		} else {
			scores = append(scores, 0.5)
		}
	}

	sens, err := Sensitivity{}.Compute(truth, scores, "P")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, sens.Value, 1e-12)
	assert.InDelta(t, 0.4902, sens.Lower, 1e-4)
	assert.InDelta(t, 0.9433, sens.Upper, 1e-4)

	spec, err := Specificity{}.Compute(truth, scores, "P")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, spec.Value, 1e-12)

	acc, err := Accuracy{}.Compute(truth, scores, "P")
	require.NoError(t, err)
	assert.InDelta(t, 11.0/14, acc.Value, 1e-12)

	_, err = Sensitivity{}.Compute([]string{"N"}, []float64{0.3}, "P")
	var mce *MetricComputationError
	assert.True(t, errors.As(err, &mce))
	_, err = Specificity{}.Compute([]string{"P"}, []float64{0.3}, "P")
	assert.True(t, errors.As(err, &mce))
}

func TestInputChecks(t *testing.T) {
	var mce *MetricComputationError
	_, err := Accuracy{}.Compute([]string{"P"}, []float64{0.1, 0.2}, "P")
	assert.True(t, errors.As(err, &mce))
	_, err = Accuracy{}.Compute(nil, nil, "P")
	assert.True(t, errors.As(err, &mce))
}

func TestByName(t *testing.T) {
	ms, err := Names([]string{"ROC", "sens", "Spec", "accuracy"})
	require.NoError(t, err)
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name()
	}
	assert.Equal(t, []string{"ROC", "Sens", "Spec", "Accuracy"}, names)
	_, err = ByName("kappa")
	assert.Error(t, err)
}
