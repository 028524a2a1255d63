package folds

import (
	"sort"

	"imbalcv/seeds"
)

// Partition is one train/holdout split over dataset positions. Train may
// contain repeated positions (bootstrap); Holdout never intersects Train.
type Partition struct {
	Repeat  int
	Fold    int
	Train   []int
	Holdout []int
}

// Plan produces the partitions for labels under scheme. The result depends
// only on (labels, scheme, seed). When the scheme is stratified every class
// is spread over the folds separately, so each holdout keeps the class ratio
// of the whole set.
//
// Partitions are ordered repeat-major, fold-minor. Index slices are sorted.
func Plan(labels []string, scheme Scheme, seed int64) ([]Partition, error) {
	n := len(labels)
	if err := scheme.Validate(n); err != nil {
		return nil, err
	}
	groups := strata(labels, scheme.Stratified)

	if scheme.Kind == Bootstrap {
		return planBootstrap(n, groups, scheme.Resamples, seed), nil
	}

	plan := make([]Partition, 0, scheme.Size())
	for r := 0; r < scheme.Repeats; r++ {
		rng := seeds.New(seed, "plan", r)
		assign := make([]int, n)
		// Walk the strata in order and deal the shuffled members round-robin,
		// carrying the counter across strata so fold sizes stay balanced.
		next := 0
		for _, members := range groups {
			perm := rng.Perm(len(members))
			for _, p := range perm {
				assign[members[p]] = next % scheme.Folds
				next++
			}
		}
		for k := 0; k < scheme.Folds; k++ {
			part := Partition{Repeat: r, Fold: k}
			for i, fold := range assign {
				if fold == k {
					part.Holdout = append(part.Holdout, i)
				} else {
					part.Train = append(part.Train, i)
				}
			}
			plan = append(plan, part)
		}
	}
	return plan, nil
}

func planBootstrap(n int, groups [][]int, resamples int, seed int64) []Partition {
	plan := make([]Partition, 0, resamples)
	for b := 0; b < resamples; b++ {
		rng := seeds.New(seed, "plan", b)
		inBag := make([]bool, n)
		train := make([]int, 0, n)
		for _, members := range groups {
			for range members {
				i := members[rng.Intn(len(members))]
				train = append(train, i)
				inBag[i] = true
			}
		}
		sort.Ints(train)
		holdout := make([]int, 0, n/3+1)
		for i, in := range inBag {
			if !in {
				holdout = append(holdout, i)
			}
		}
		plan = append(plan, Partition{Repeat: b, Fold: 0, Train: train, Holdout: holdout})
	}
	return plan
}

// strata groups positions by label in sorted label order, or returns a
// single group of every position.
func strata(labels []string, stratified bool) [][]int {
	if !stratified {
		all := make([]int, len(labels))
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}
	index := make(map[string][]int)
	for i, l := range labels {
		index[l] = append(index[l], i)
	}
	classes := make([]string, 0, len(index))
	for c := range index {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	groups := make([][]int, len(classes))
	for i, c := range classes {
		groups[i] = index[c]
	}
	return groups
}
