package sampling

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"imbalcv/dataset"
)

// SMOTEOptions configures synthetic minority over-sampling.
type SMOTEOptions struct {
	// K is the number of same-class nearest neighbors to interpolate
	// towards. Defaults to 5; capped at minority size - 1.
	K int
	// PercOver is the number of synthetic records per minority record, in
	// percent. 200 means two each. Defaults to 200.
	PercOver float64
	// PercUnder is the number of non-minority records kept, in percent of
	// the synthetic count. Defaults to 200.
	PercUnder float64
}

func (o SMOTEOptions) withDefaults() SMOTEOptions {
	if o.K <= 0 {
		o.K = 5
	}
	if o.PercOver <= 0 {
		o.PercOver = 200
	}
	if o.PercUnder <= 0 {
		o.PercUnder = 200
	}
	return o
}

type smoteSampler struct {
	opts SMOTEOptions
}

// Sample keeps every minority record, adds PercOver/100 synthetic records
// per minority record and draws PercUnder/100 times the synthetic count from
// the other classes without replacement.
//
// Distances scale numeric columns by their range over the minority class and
// count a categorical mismatch as 1. A synthetic record lies on the segment
// between a minority record and one of its neighbors; each categorical value
// is copied from one of the two at random.
func (s smoteSampler) Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	classes, index, err := checkClasses(train)
	if err != nil {
		return dataset.Frame{}, err
	}
	minority := smallest(classes, index)
	minIdx := index[minority]
	nMin := len(minIdx)

	var bases []int
	if s.opts.PercOver < 100 {
		take := int(s.opts.PercOver / 100 * float64(nMin))
		perm := rng.Perm(nMin)[:take]
		sort.Ints(perm)
		bases = append(bases, perm...)
	} else {
		per := int(s.opts.PercOver / 100)
		for p := 0; p < nMin; p++ {
			for j := 0; j < per; j++ {
				bases = append(bases, p)
			}
		}
	}
	if len(bases) == 0 {
		return dataset.Frame{}, &DegenerateClassError{
			Class: minority, Count: nMin,
			Reason: fmt.Sprintf("perc_over=%v yields no synthetic records", s.opts.PercOver),
		}
	}
	nMajor := int(s.opts.PercUnder / 100 * float64(len(bases)))
	if nMajor == 0 {
		return dataset.Frame{}, &DegenerateClassError{
			Reason: fmt.Sprintf("perc_under=%v keeps no majority records", s.opts.PercUnder),
		}
	}

	k := s.opts.K
	if k > nMin-1 {
		k = nMin - 1
	}
	rows := make([][]float64, nMin)
	for p, i := range minIdx {
		rows[p] = train.Features[i]
	}
	numeric := train.Schema.NumericColumns()
	categorical := categoricalColumns(train.Schema)
	scale := columnRanges(rows, numeric)
	neighbors := nearest(rows, numeric, categorical, scale, k)

	var pool []int
	for _, c := range classes {
		if c != minority {
			pool = append(pool, index[c]...)
		}
	}
	if nMajor > len(pool) {
		nMajor = len(pool)
	}
	chosen := rng.Perm(len(pool))[:nMajor]
	sort.Ints(chosen)

	out := train.Empty(nMin + len(bases) + nMajor)
	for _, i := range minIdx {
		out.Add(train.Features[i], train.Labels[i], train.Origin[i])
	}
	width := train.Schema.Width()
	diff := make([]float64, width)
	for _, p := range bases {
		x := rows[p]
		nb := rows[neighbors[p][rng.Intn(k)]]
		gap := rng.Float64()
		floats.SubTo(diff, nb, x)
		synth := make([]float64, width)
		floats.AddScaledTo(synth, x, gap, diff)
		for _, j := range categorical {
			if rng.Intn(2) == 0 {
				synth[j] = x[j]
			} else {
				synth[j] = nb[j]
			}
		}
		out.Add(synth, minority, dataset.Synthetic)
	}
	kept := make(map[string]int)
	for _, p := range chosen {
		i := pool[p]
		out.Add(train.Features[i], train.Labels[i], train.Origin[i])
		kept[train.Labels[i]]++
	}
	for _, c := range classes {
		if c != minority && kept[c] == 0 {
			return dataset.Frame{}, &DegenerateClassError{
				Class: c, Count: len(index[c]),
				Reason: fmt.Sprintf("perc_under=%v leaves the class with no records", s.opts.PercUnder),
			}
		}
	}
	return out, nil
}

func categoricalColumns(schema dataset.Schema) []int {
	var cols []int
	for j, c := range schema.Columns {
		if c.Kind == dataset.Categorical {
			cols = append(cols, j)
		}
	}
	return cols
}

// columnRanges returns, per column, 1/(max-min) over rows for numeric
// columns with a non-zero range, and 0 everywhere else.
func columnRanges(rows [][]float64, numeric []int) []float64 {
	if len(rows) == 0 {
		return nil
	}
	scale := make([]float64, len(rows[0]))
	col := make([]float64, len(rows))
	for _, j := range numeric {
		for i, row := range rows {
			col[i] = row[j]
		}
		if r := floats.Max(col) - floats.Min(col); r > 0 {
			scale[j] = 1 / r
		}
	}
	return scale
}

// nearest returns, for every row, the positions of its k nearest other rows.
func nearest(rows [][]float64, numeric, categorical []int, scale []float64, k int) [][]int {
	n := len(rows)
	out := make([][]int, n)
	diff := make([]float64, len(numeric))
	type cand struct {
		pos  int
		dist float64
	}
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			for d, c := range numeric {
				diff[d] = (rows[i][c] - rows[j][c]) * scale[c]
			}
			dist := floats.Dot(diff, diff)
			for _, c := range categorical {
				if rows[i][c] != rows[j][c] {
					dist++
				}
			}
			cands = append(cands, cand{pos: j, dist: dist})
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
		nb := make([]int, k)
		for m := 0; m < k; m++ {
			nb[m] = cands[m].pos
		}
		out[i] = nb
	}
	return out
}
