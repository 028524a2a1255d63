package evaluation

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"imbalcv/ml"
	"imbalcv/sampling"
)

// MetricSummary aggregates one metric over the folds where it could be
// computed. Values are in plan order.
type MetricSummary struct {
	Name     string    `json:"name"`
	Mean     float64   `json:"mean"`
	SD       float64   `json:"sd"`
	Values   []float64 `json:"values"`
	Included int       `json:"included"`
	Excluded int       `json:"excluded"`
}

// CandidateSummary aggregates the folds of one hyperparameter candidate.
type CandidateSummary struct {
	Params    ml.Params       `json:"params"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Metrics   []MetricSummary `json:"metrics"`
}

// Metric returns the summary of the named metric.
func (c CandidateSummary) Metric(name string) (MetricSummary, bool) {
	for _, m := range c.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricSummary{}, false
}

// Summary is the resampling result of one strategy. Failed counts folds
// where no candidate produced predictions; Failures counts every failure
// event, fold or candidate level, by class.
type Summary struct {
	Strategy   string               `json:"strategy"`
	Order      sampling.Ordering    `json:"order"`
	Placement  Placement            `json:"placement"`
	Scheduled  int                  `json:"scheduled"`
	Failed     int                  `json:"failed"`
	Failures   map[FailureClass]int `json:"failures,omitempty"`
	Primary    string               `json:"primary"`
	Candidates []CandidateSummary   `json:"candidates"`
	// Best indexes Candidates, or is -1 when the primary metric was never
	// computed.
	Best  int          `json:"best"`
	Folds []FoldResult `json:"-"`
}

// Completed returns the number of folds that produced predictions.
func (s *Summary) Completed() int {
	return s.Scheduled - s.Failed
}

// BestParams returns the winning candidate, or the first one when no
// candidate could be ranked.
func (s *Summary) BestParams() ml.Params {
	if s.Best >= 0 {
		return s.Candidates[s.Best].Params
	}
	if len(s.Candidates) > 0 {
		return s.Candidates[0].Params
	}
	return ml.Params{}
}

// Metric returns the named metric of the best candidate.
func (s *Summary) Metric(name string) (MetricSummary, bool) {
	if s.Best < 0 {
		return MetricSummary{}, false
	}
	return s.Candidates[s.Best].Metric(name)
}

// FailureClasses returns the failure classes present, sorted.
func (s *Summary) FailureClasses() []FailureClass {
	classes := make([]FailureClass, 0, len(s.Failures))
	for c := range s.Failures {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Summaries is the per-strategy result of a run, in strategy order.
type Summaries []*Summary

// Lookup returns the summary of the named strategy.
func (ss Summaries) Lookup(strategy string) (*Summary, bool) {
	for _, s := range ss {
		if s.Strategy == strategy {
			return s, true
		}
	}
	return nil, false
}

func summarize(strategy sampling.Strategy, placement Placement, settings Settings, results []FoldResult) *Summary {
	s := &Summary{
		Strategy:  strategy.Name,
		Order:     strategy.Order,
		Placement: placement,
		Scheduled: len(results),
		Failures:  make(map[FailureClass]int),
		Primary:   settings.Primary,
		Best:      -1,
		Folds:     results,
	}
	values := make([]map[string][]float64, len(settings.Candidates))
	s.Candidates = make([]CandidateSummary, len(settings.Candidates))
	for i, params := range settings.Candidates {
		s.Candidates[i].Params = params
		values[i] = make(map[string][]float64)
	}
	excluded := make([]map[string]int, len(settings.Candidates))
	for i := range excluded {
		excluded[i] = make(map[string]int)
	}

	for _, r := range results {
		if r.Status == StatusFailed {
			s.Failed++
		}
		if len(r.Candidates) == 0 {
			s.Failures[r.Class]++
			for i := range s.Candidates {
				s.Candidates[i].Failed++
			}
			continue
		}
		for i, c := range r.Candidates {
			if c.Failed() {
				s.Failures[c.Class]++
				s.Candidates[i].Failed++
				continue
			}
			s.Candidates[i].Completed++
			for _, m := range settings.Metrics {
				if est, ok := c.Values[m.Name()]; ok {
					values[i][m.Name()] = append(values[i][m.Name()], est.Value)
				} else {
					excluded[i][m.Name()]++
					s.Failures[FailureMetric]++
				}
			}
		}
	}
	if len(s.Failures) == 0 {
		s.Failures = nil
	}

	bestMean := 0.0
	for i := range s.Candidates {
		for _, m := range settings.Metrics {
			ms := aggregate(m.Name(), values[i][m.Name()])
			ms.Excluded = excluded[i][m.Name()]
			s.Candidates[i].Metrics = append(s.Candidates[i].Metrics, ms)
			if m.Name() == settings.Primary && ms.Included > 0 && (s.Best < 0 || ms.Mean > bestMean) {
				s.Best = i
				bestMean = ms.Mean
			}
		}
	}
	return s
}

func aggregate(name string, values []float64) MetricSummary {
	ms := MetricSummary{Name: name, Values: values, Included: len(values)}
	switch len(values) {
	case 0:
	case 1:
		ms.Mean = values[0]
	default:
		ms.Mean, ms.SD = stat.MeanStdDev(values, nil)
	}
	return ms
}
