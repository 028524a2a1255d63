package sampling

import (
	"math/rand"
	"sort"

	"imbalcv/dataset"
)

// downSampler keeps m records of every class, m being the size of the
// smallest class, drawn without replacement.
type downSampler struct{}

func (downSampler) Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	classes, index, err := checkClasses(train)
	if err != nil {
		return dataset.Frame{}, err
	}
	m := len(index[smallest(classes, index)])

	out := train.Empty(m * len(classes))
	for _, c := range classes {
		members := index[c]
		chosen := rng.Perm(len(members))[:m]
		sort.Ints(chosen)
		for _, p := range chosen {
			i := members[p]
			out.Add(train.Features[i], train.Labels[i], train.Origin[i])
		}
	}
	return out, nil
}

// upSampler brings every class to M records, M being the size of the
// largest class. Classes already at M pass through unchanged; smaller
// classes are drawn M times with replacement.
type upSampler struct{}

func (upSampler) Sample(train dataset.Frame, rng *rand.Rand) (dataset.Frame, error) {
	classes, index, err := checkClasses(train)
	if err != nil {
		return dataset.Frame{}, err
	}
	big := 0
	for _, c := range classes {
		if n := len(index[c]); n > big {
			big = n
		}
	}

	out := train.Empty(big * len(classes))
	for _, c := range classes {
		members := index[c]
		if len(members) == big {
			for _, i := range members {
				out.Add(train.Features[i], train.Labels[i], train.Origin[i])
			}
			continue
		}
		for j := 0; j < big; j++ {
			i := members[rng.Intn(len(members))]
			out.Add(train.Features[i], train.Labels[i], train.Origin[i])
		}
	}
	return out, nil
}
