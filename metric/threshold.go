package metric

import "math"

// DefaultThreshold is the positive-class probability at or above which a
// record is predicted positive.
const DefaultThreshold = 0.5

type confusion struct {
	tp, fn, tn, fp int
}

func tabulate(truth []string, scores []float64, positive string, threshold float64) confusion {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	var c confusion
	for i, l := range truth {
		predicted := scores[i] >= threshold
		switch {
		case l == positive && predicted:
			c.tp++
		case l == positive:
			c.fn++
		case predicted:
			c.fp++
		default:
			c.tn++
		}
	}
	return c
}

// wilson returns the proportion k/n with its Wilson score interval.
func wilson(k, n int) Estimate {
	p := float64(k) / float64(n)
	zz := z()
	nf := float64(n)
	denom := 1 + zz*zz/nf
	center := (p + zz*zz/(2*nf)) / denom
	half := zz * math.Sqrt(p*(1-p)/nf+zz*zz/(4*nf*nf)) / denom
	return Estimate{Value: p, Lower: clamp01(center - half), Upper: clamp01(center + half), HasInterval: true}
}

// Sensitivity is the fraction of positives predicted positive.
type Sensitivity struct {
	Threshold float64
}

func (Sensitivity) Name() string { return "Sens" }

func (s Sensitivity) Compute(truth []string, scores []float64, positive string) (Estimate, error) {
	if err := check(s.Name(), truth, scores); err != nil {
		return Estimate{}, err
	}
	c := tabulate(truth, scores, positive, s.Threshold)
	if c.tp+c.fn == 0 {
		return Estimate{}, &MetricComputationError{Metric: s.Name(), Reason: "no positive records"}
	}
	return wilson(c.tp, c.tp+c.fn), nil
}

// Specificity is the fraction of negatives predicted negative.
type Specificity struct {
	Threshold float64
}

func (Specificity) Name() string { return "Spec" }

func (s Specificity) Compute(truth []string, scores []float64, positive string) (Estimate, error) {
	if err := check(s.Name(), truth, scores); err != nil {
		return Estimate{}, err
	}
	c := tabulate(truth, scores, positive, s.Threshold)
	if c.tn+c.fp == 0 {
		return Estimate{}, &MetricComputationError{Metric: s.Name(), Reason: "no negative records"}
	}
	return wilson(c.tn, c.tn+c.fp), nil
}

// Accuracy is the fraction of records classified correctly.
type Accuracy struct {
	Threshold float64
}

func (Accuracy) Name() string { return "Accuracy" }

func (a Accuracy) Compute(truth []string, scores []float64, positive string) (Estimate, error) {
	if err := check(a.Name(), truth, scores); err != nil {
		return Estimate{}, err
	}
	c := tabulate(truth, scores, positive, a.Threshold)
	return wilson(c.tp+c.tn, len(truth)), nil
}
