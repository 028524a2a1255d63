package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// SimulateOptions shapes the simulated two-class problem.
type SimulateOptions struct {
	// MinorityFraction is the exact share of Class1 records. Defaults to 0.05.
	MinorityFraction float64
	// Linear is the number of linear predictors. Defaults to 3.
	Linear int
	// Noise is the number of pure noise predictors. Defaults to 5.
	Noise int
}

const (
	MinorityClass = "Class1"
	MajorityClass = "Class2"
)

// Simulate draws n records: two interacting correlated factors, linear,
// nonlinear and noise predictors. The round(n*MinorityFraction) records with
// the highest noisy latent score are labeled MinorityClass.
func Simulate(n int, opts SimulateOptions, seed int64) (Frame, error) {
	if n < 2 {
		return Frame{}, fmt.Errorf("simulate: n must be at least 2, got %d", n)
	}
	if opts.MinorityFraction == 0 {
		opts.MinorityFraction = 0.05
	}
	if opts.MinorityFraction < 0 || opts.MinorityFraction >= 1 {
		return Frame{}, fmt.Errorf("simulate: minority fraction must be in (0, 1), got %v", opts.MinorityFraction)
	}
	if opts.Linear == 0 {
		opts.Linear = 3
	}
	if opts.Noise < 0 || opts.Linear < 0 {
		return Frame{}, fmt.Errorf("simulate: negative predictor count")
	}

	names := []string{"TwoFactor1", "TwoFactor2"}
	for i := 1; i <= opts.Linear; i++ {
		names = append(names, fmt.Sprintf("Linear%02d", i))
	}
	names = append(names, "Nonlinear1", "Nonlinear2", "Nonlinear3")
	for i := 1; i <= opts.Noise; i++ {
		names = append(names, fmt.Sprintf("Noise%02d", i))
	}
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Kind: Numeric}
	}

	rng := rand.New(rand.NewSource(seed))
	features := make([][]float64, n)
	latent := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, len(names))
		// TwoFactor pair: variance 2, covariance 1.3
		z1, z2 := rng.NormFloat64(), rng.NormFloat64()
		a := math.Sqrt2 * z1
		b := math.Sqrt2 * (0.65*z1 + math.Sqrt(1-0.65*0.65)*z2)
		row = append(row, a, b)
		lp := -4*a + 4*b + 2*a*b
		for j := 0; j < opts.Linear; j++ {
			x := rng.NormFloat64()
			row = append(row, x)
			lp += x * (1 - float64(j)/float64(opts.Linear+1))
		}
		nl1 := rng.Float64()*2 - 1
		nl2 := rng.Float64()
		nl3 := rng.Float64()
		row = append(row, nl1, nl2, nl3)
		lp += nl1*nl1*nl1 + 2*math.Exp(-6*(nl1-0.3)*(nl1-0.3)) + 2*math.Sin(math.Pi*nl2*nl3)
		for j := 0; j < opts.Noise; j++ {
			row = append(row, rng.NormFloat64())
		}
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		latent[i] = lp + math.Log(u/(1-u))
		features[i] = row
	}

	minority := int(math.Round(float64(n) * opts.MinorityFraction))
	if minority < 1 {
		minority = 1
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return latent[order[i]] > latent[order[j]] })
	labels := make([]string, n)
	for rank, i := range order {
		if rank < minority {
			labels[i] = MinorityClass
		} else {
			labels[i] = MajorityClass
		}
	}

	return New(Schema{Columns: columns, Label: "Class"}, features, labels)
}

// StratifiedSplit moves round(count*testFraction) records of every class to
// the test frame. Origins are preserved.
func StratifiedSplit(f Frame, testFraction float64, seed int64) (train, test Frame, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return Frame{}, Frame{}, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}
	if f.Len() == 0 {
		return Frame{}, Frame{}, ErrEmpty
	}
	rng := rand.New(rand.NewSource(seed))
	index := f.ClassIndex()
	var trainIdx, testIdx []int
	for _, class := range f.Classes() {
		members := index[class]
		perm := rng.Perm(len(members))
		nTest := int(math.Round(float64(len(members)) * testFraction))
		for i, p := range perm {
			if i < nTest {
				testIdx = append(testIdx, members[p])
			} else {
				trainIdx = append(trainIdx, members[p])
			}
		}
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return f.Subset(trainIdx), f.Subset(testIdx), nil
}
