package export

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Split names, in dataset order.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// splitSizes returns the train, val and test image counts for n images.
// Train and val are rounded; test takes the remainder.
func splitSizes(n int, train, val float64) (int, int, int) {
	t := min(int(math.Round(float64(n)*train)), n)
	v := min(int(math.Round(float64(n)*val)), n-t)
	return t, v, n - t - v
}

// partition assigns images to subsets. Without splitting there is a single
// unnamed subset. Each subset keeps the first-seen order of its images.
func partition(images []*imageEntry, split Split) []*subset {
	if !split.Enabled {
		return []*subset{{images: images}}
	}

	rng := rand.New(rand.NewPCG(split.Seed, split.Seed))
	perm := rng.Perm(len(images))
	t, v, _ := splitSizes(len(images), split.Train, split.Val)

	bounds := []struct {
		name     string
		from, to int
	}{
		{SplitTrain, 0, t},
		{SplitVal, t, t + v},
		{SplitTest, t + v, len(images)},
	}
	subsets := make([]*subset, len(bounds))
	for i, b := range bounds {
		idx := append([]int(nil), perm[b.from:b.to]...)
		sort.Ints(idx)
		s := &subset{name: b.name, images: make([]*imageEntry, len(idx))}
		for j, k := range idx {
			s.images[j] = images[k]
		}
		subsets[i] = s
	}
	return subsets
}
