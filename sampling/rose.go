package sampling

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"imbalcv/dataset"
)

// ROSEOptions configures the smoothed bootstrap.
type ROSEOptions struct {
	// P is the probability that a generated record belongs to the minority
	// class. Defaults to 0.5. With more than two classes the remaining
	// probability is shared equally.
	P float64
	// HMultMajority and HMultMinority shrink or widen the kernel bandwidth
	// of the respective classes. Both default to 1.
	HMultMajority float64
	HMultMinority float64
	// N is the size of the generated set. Defaults to the training size.
	N int
}

func (o ROSEOptions) withDefaults() ROSEOptions {
	if o.P <= 0 || o.P >= 1 {
		o.P = 0.5
	}
	if o.HMultMajority <= 0 {
		o.HMultMajority = 1
	}
	if o.HMultMinority <= 0 {
		o.HMultMinority = 1
	}
	return o
}

type roseSampler struct {
	opts ROSEOptions
}

// Sample generates an entirely synthetic frame. Each record picks a class
// with the configured probabilities, bootstraps one record of that class and
// perturbs its numeric columns with Gaussian kernel noise of bandwidth
//
//	h_j = hmult * (4 / ((d+2) n_c))^(1/(d+4)) * sd_j
//
// where d is the number of numeric columns, n_c the class size and sd_j the
// class standard deviation of column j. Categorical values are kept as drawn.
func (s roseSampler) Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	classes, index, err := checkClasses(train)
	if err != nil {
		return dataset.Frame{}, err
	}
	minority := smallest(classes, index)
	total := s.opts.N
	if total <= 0 {
		total = train.Len()
	}

	weights := make([]float64, len(classes))
	for i, c := range classes {
		if c == minority {
			weights[i] = s.opts.P
		} else {
			weights[i] = (1 - s.opts.P) / float64(len(classes)-1)
		}
	}
	counts := make([]int, len(classes))
	for t := 0; t < total; t++ {
		u := rng.Float64()
		pick := len(classes) - 1
		acc := 0.0
		for i, w := range weights {
			acc += w
			if u < acc {
				pick = i
				break
			}
		}
		counts[pick]++
	}
	for i, c := range classes {
		if counts[i] == 0 {
			return dataset.Frame{}, &DegenerateClassError{
				Class: c, Count: len(index[c]),
				Reason: fmt.Sprintf("p=%v with N=%d generated no records for the class", s.opts.P, total),
			}
		}
	}

	numeric := train.Schema.NumericColumns()
	d := float64(len(numeric))
	width := train.Schema.Width()
	out := train.Empty(total)
	col := make([]float64, 0, train.Len())
	for ci, c := range classes {
		members := index[c]
		hmult := s.opts.HMultMajority
		if c == minority {
			hmult = s.opts.HMultMinority
		}
		factor := hmult * math.Pow(4/((d+2)*float64(len(members))), 1/(d+4))
		bandwidth := make([]float64, width)
		for _, j := range numeric {
			col = col[:0]
			for _, i := range members {
				col = append(col, train.Features[i][j])
			}
			bandwidth[j] = factor * stat.StdDev(col, nil)
		}
		for t := 0; t < counts[ci]; t++ {
			base := train.Features[members[rng.Intn(len(members))]]
			row := make([]float64, width)
			copy(row, base)
			for _, j := range numeric {
				row[j] += bandwidth[j] * rng.NormFloat64()
			}
			out.Add(row, c, dataset.Synthetic)
		}
	}
	return out, nil
}
