package metric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ROC is the area under the ROC curve with a DeLong interval.
type ROC struct{}

func (ROC) Name() string { return "ROC" }

func (r ROC) Compute(truth []string, scores []float64, positive string) (Estimate, error) {
	if err := check(r.Name(), truth, scores); err != nil {
		return Estimate{}, err
	}
	var pos, neg []float64
	for i, l := range truth {
		if l == positive {
			pos = append(pos, scores[i])
		} else {
			neg = append(neg, scores[i])
		}
	}
	m, n := len(pos), len(neg)
	if m == 0 || n == 0 {
		return Estimate{}, &MetricComputationError{Metric: r.Name(), Reason: "holdout contains a single class"}
	}

	all := append(append(make([]float64, 0, m+n), pos...), neg...)
	rankAll := midranks(all)
	rankPos := midranks(pos)
	rankNeg := midranks(neg)

	// placement values
	v10 := make([]float64, m)
	sum := 0.0
	for i := range pos {
		v10[i] = (rankAll[i] - rankPos[i]) / float64(n)
		sum += rankAll[i]
	}
	v01 := make([]float64, n)
	for j := range neg {
		v01[j] = 1 - (rankAll[m+j]-rankNeg[j])/float64(m)
	}
	auc := (sum - float64(m)*float64(m+1)/2) / (float64(m) * float64(n))

	est := Estimate{Value: auc, Lower: auc, Upper: auc}
	if m < 2 || n < 2 {
		return est, nil
	}
	variance := stat.Variance(v10, nil)/float64(m) + stat.Variance(v01, nil)/float64(n)
	half := z() * math.Sqrt(variance)
	est.Lower = clamp01(auc - half)
	est.Upper = clamp01(auc + half)
	est.HasInterval = true
	return est, nil
}

// midranks returns 1-based ranks with ties sharing their average rank.
func midranks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })
	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = r
		}
		i = j + 1
	}
	return ranks
}
