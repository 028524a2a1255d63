// Package report joins resampling summaries with external test estimates and
// exposes the gap between them, the signal for resampling optimism.
package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"imbalcv/evaluation"
	"imbalcv/metric"
)

// Resampled is the resampling side of one strategy.
type Resampled struct {
	Strategy  string
	Mean      float64
	SD        float64
	Included  int
	Excluded  int
	Failed    int
	Scheduled int
}

// Tested is the external test side of one strategy.
type Tested struct {
	Strategy string
	Estimate metric.Estimate
}

// Row is one strategy of a comparison. Gap is |Resampled - Test| and is NaN
// when either side is missing.
type Row struct {
	Strategy  string          `json:"strategy"`
	Resampled float64         `json:"resampled"`
	SD        float64         `json:"sd"`
	Included  int             `json:"included"`
	Excluded  int             `json:"excluded"`
	Failed    int             `json:"failed"`
	Scheduled int             `json:"scheduled"`
	Test      metric.Estimate `json:"test"`
	HasTest   bool            `json:"has_test"`
	Gap       float64         `json:"gap"`
	Largest   bool            `json:"largest"`
}

// Compare joins both sides by strategy name in the order of resampled and
// flags the row with the largest gap; ties go to the earlier row.
func Compare(resampled []Resampled, tested []Tested) []Row {
	tests := make(map[string]metric.Estimate, len(tested))
	for _, t := range tested {
		tests[t.Strategy] = t.Estimate
	}
	rows := make([]Row, len(resampled))
	largest := -1
	for i, r := range resampled {
		row := Row{
			Strategy:  r.Strategy,
			Resampled: r.Mean,
			SD:        r.SD,
			Included:  r.Included,
			Excluded:  r.Excluded,
			Failed:    r.Failed,
			Scheduled: r.Scheduled,
			Gap:       math.NaN(),
		}
		if est, ok := tests[r.Strategy]; ok {
			row.Test, row.HasTest = est, true
			if r.Included > 0 {
				row.Gap = math.Abs(r.Mean - est.Value)
			}
		}
		if !math.IsNaN(row.Gap) && (largest < 0 || row.Gap > rows[largest].Gap) {
			largest = i
		}
		rows[i] = row
	}
	if largest >= 0 {
		rows[largest].Largest = true
	}
	return rows
}

// FromBenchmark builds the comparison of one metric from a benchmark.
func FromBenchmark(b *evaluation.Benchmark, metricName string) ([]Row, error) {
	if b == nil {
		return nil, fmt.Errorf("report: no benchmark")
	}
	resampled := make([]Resampled, 0, len(b.Summaries))
	for _, s := range b.Summaries {
		r := Resampled{Strategy: s.Strategy, Failed: s.Failed, Scheduled: s.Scheduled}
		if ms, ok := s.Metric(metricName); ok {
			r.Mean, r.SD, r.Included, r.Excluded = ms.Mean, ms.SD, ms.Included, ms.Excluded
		}
		resampled = append(resampled, r)
	}
	var tested []Tested
	for _, t := range b.Tests {
		if t.Err != nil {
			continue
		}
		if est, ok := t.Estimate(metricName); ok && est.Err == nil {
			tested = append(tested, Tested{Strategy: t.Strategy, Estimate: est.Estimate})
		}
	}
	return Compare(resampled, tested), nil
}

// Render writes rows as an aligned text table.
func Render(w io.Writer, metricName string, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "strategy\tresampled %s\tsd\tfolds\tfailed\texcluded\ttest %s\t95%% interval\tgap\t\n", metricName, metricName)
	for _, r := range rows {
		resampled, sd := "-", "-"
		if r.Included > 0 {
			resampled, sd = fmt.Sprintf("%.4f", r.Resampled), fmt.Sprintf("%.4f", r.SD)
		}
		test, interval := "-", "-"
		if r.HasTest {
			test = fmt.Sprintf("%.4f", r.Test.Value)
			if r.Test.HasInterval {
				interval = fmt.Sprintf("(%.4f, %.4f)", r.Test.Lower, r.Test.Upper)
			}
		}
		gap := "-"
		if !math.IsNaN(r.Gap) {
			gap = fmt.Sprintf("%.4f", r.Gap)
			if r.Largest {
				gap += " *"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\t%s\t%s\t\n",
			r.Strategy, resampled, sd, r.Included, r.Scheduled, r.Failed, r.Excluded, test, interval, gap)
	}
	return tw.Flush()
}
