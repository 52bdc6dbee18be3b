package clustering

import "math/rand"

// gaussianBlobs builds n points around len(centers) 2-D centers with the
// given standard deviation, labelling each instance's Target with the
// blob's own index as a string so supervised tests have ground truth to
// compare against.
func gaussianBlobs(rng *rand.Rand, centers [][2]float64, perBlob int, stddev float64) []Instance {
	instances := make([]Instance, 0, perBlob*len(centers))
	id := int64(0)
	for bi, c := range centers {
		for i := 0; i < perBlob; i++ {
			x := c[0] + rng.NormFloat64()*stddev
			y := c[1] + rng.NormFloat64()*stddev
			instances = append(instances, Instance{
				ID:     id,
				Values: []float64{x, y},
				Target: string(rune('A' + bi)),
			})
			id++
		}
	}
	return instances
}

func fullMask(dim int) []int {
	mask := make([]int, dim)
	for i := range mask {
		mask[i] = i
	}
	return mask
}

func distinctTargets(instances []Instance) []string {
	seen := map[string]bool{}
	var out []string
	for _, inst := range instances {
		if inst.Target == "" || seen[inst.Target] {
			continue
		}
		seen[inst.Target] = true
		out = append(out, inst.Target)
	}
	return out
}

// fakeStreamingSource is an in-memory StreamingSource test double for
// MiniBatchEngine, satisfying the restartable + sampleable contract of §6.
type fakeStreamingSource struct {
	all    []Instance
	cursor int
}

func newFakeStreamingSource(instances []Instance) *fakeStreamingSource {
	return &fakeStreamingSource{all: instances}
}

func (f *fakeStreamingSource) OpenForRead() error {
	f.cursor = 0
	return nil
}

func (f *fakeStreamingSource) ReadOne() (Instance, bool, error) {
	if f.cursor >= len(f.all) {
		return Instance{}, false, nil
	}
	inst := f.all[f.cursor]
	f.cursor++
	return inst, true, nil
}

func (f *fakeStreamingSource) Close() error {
	return nil
}

func (f *fakeStreamingSource) Sample(percent float64, seed int64) ([]Instance, error) {
	rng := rand.New(rand.NewSource(seed))
	n := int(float64(len(f.all)) * percent)
	if n < 1 {
		n = 1
	}
	if n > len(f.all) {
		n = len(f.all)
	}
	perm := rng.Perm(len(f.all))[:n]
	out := make([]Instance, n)
	for i, idx := range perm {
		out[i] = f.all[idx]
	}
	return out, nil
}
