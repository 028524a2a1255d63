package report

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbalcv/evaluation"
	"imbalcv/metric"
	"imbalcv/ml"
)

func TestCompareFlagsLargestGap(t *testing.T) {
	rows := Compare(
		[]Resampled{
			{Strategy: "original", Mean: 0.80, Included: 10, Scheduled: 10},
			{Strategy: "down", Mean: 0.84, Included: 10, Scheduled: 10},
			{Strategy: "up", Mean: 0.95, Included: 10, Scheduled: 10},
			{Strategy: "smote", Mean: 0.86, Included: 9, Failed: 1, Scheduled: 10},
		},
		[]Tested{
			{Strategy: "up", Estimate: metric.Estimate{Value: 0.65}},
			{Strategy: "down", Estimate: metric.Estimate{Value: 0.85}},
			{Strategy: "original", Estimate: metric.Estimate{Value: 0.76}},
			{Strategy: "smote", Estimate: metric.Estimate{Value: 0.83}},
		},
	)
	require.Len(t, rows, 4)
	up := rows[2]
	assert.Equal(t, "up", up.Strategy)
	assert.InDelta(t, 0.30, up.Gap, 1e-12)
	assert.True(t, up.Largest)
	for _, r := range rows {
		if r.Strategy != "up" {
			assert.False(t, r.Largest, r.Strategy)
			assert.LessOrEqual(t, r.Gap, 0.05)
		}
	}
}

func TestCompareMissingSides(t *testing.T) {
	rows := Compare(
		[]Resampled{{Strategy: "a", Mean: 0.7, Included: 3}, {Strategy: "b", Included: 0}, {Strategy: "c", Mean: 0.5, Included: 2}},
		[]Tested{{Strategy: "b", Estimate: metric.Estimate{Value: 0.6}}, {Strategy: "c", Estimate: metric.Estimate{Value: 0.6}}},
	)
	assert.False(t, rows[0].HasTest)
	assert.True(t, math.IsNaN(rows[0].Gap))
	assert.True(t, math.IsNaN(rows[1].Gap), "no resampled value")
	assert.True(t, rows[2].Largest)
}

func TestFromBenchmarkAndRender(t *testing.T) {
	b := &evaluation.Benchmark{
		Summaries: evaluation.Summaries{
			{
				Strategy: "up", Scheduled: 5, Best: 0,
				Candidates: []evaluation.CandidateSummary{{
					Params:  ml.Params{"max_depth": 4},
					Metrics: []evaluation.MetricSummary{{Name: "ROC", Mean: 0.95, SD: 0.01, Included: 5}},
				}},
			},
			{Strategy: "broken", Scheduled: 5, Failed: 5, Best: -1},
		},
		Tests: []evaluation.TestResult{
			{Strategy: "up", Estimates: []evaluation.TestEstimate{{Metric: "ROC", Estimate: metric.Estimate{Value: 0.65, Lower: 0.6, Upper: 0.7, HasInterval: true}}}},
			{Strategy: "broken", Err: errors.New("fit failed")},
		},
	}
	rows, err := FromBenchmark(b, "ROC")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.30, rows[0].Gap, 1e-12)
	assert.True(t, rows[0].Largest)
	assert.False(t, rows[1].HasTest)
	assert.Equal(t, 5, rows[1].Failed)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "ROC", rows))
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "resampled ROC")
	assert.Contains(t, lines[1], "0.9500")
	assert.Contains(t, lines[1], "(0.6000, 0.7000)")
	assert.Contains(t, lines[1], "0.3000 *")
	assert.Contains(t, lines[2], "0/5")

	_, err = FromBenchmark(nil, "ROC")
	assert.Error(t, err)
}
