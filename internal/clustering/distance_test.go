package clustering

import (
	"math"
	"math/rand"
	"testing"
)

func TestDistanceAllFeatures_L1(t *testing.T) {
	mask := []int{0, 1, 2}
	p := []float64{1, 2, 3}
	c := []float64{4, 0, 3}
	got := DistanceAllFeatures(DistanceL1, p, c, mask, noEarlyAbort)
	want := 3.0 + 2.0 + 0.0
	if got != want {
		t.Errorf("L1 distance = %v, want %v", got, want)
	}
}

func TestDistanceAllFeatures_L2_IsSquared(t *testing.T) {
	mask := []int{0, 1}
	p := []float64{0, 0}
	c := []float64{3, 4}
	got := DistanceAllFeatures(DistanceL2, p, c, mask, noEarlyAbort)
	want := 9.0 + 16.0 // squared, not the euclidean norm (5)
	if got != want {
		t.Errorf("L2 distance = %v, want squared sum %v", got, want)
	}
}

func TestDistanceAllFeatures_Cosine_ZeroVectorConvention(t *testing.T) {
	mask := []int{0, 1}
	p := []float64{0, 0}
	c := []float64{1, 1}
	got := DistanceAllFeatures(DistanceCosine, p, c, mask, noEarlyAbort)
	if got != 1.0 {
		t.Errorf("cosine distance with zero-norm point = %v, want 1.0 by convention", got)
	}
}

func TestDistanceAllFeatures_Cosine_IdenticalDirection(t *testing.T) {
	mask := []int{0, 1}
	p := []float64{2, 2}
	c := []float64{1, 1}
	got := DistanceAllFeatures(DistanceCosine, p, c, mask, noEarlyAbort)
	if math.Abs(got) > 1e-9 {
		t.Errorf("cosine distance between parallel vectors = %v, want ~0", got)
	}
}

func TestDistanceAllFeatures_MaskSkipsInactive(t *testing.T) {
	mask := []int{0, FeatureInactive, 2}
	p := []float64{1, 100, 3}
	c := []float64{1, -100, 3}
	got := DistanceAllFeatures(DistanceL1, p, c, mask, noEarlyAbort)
	if got != 0 {
		t.Errorf("inactive feature leaked into distance: got %v, want 0", got)
	}
}

func TestDistanceAllFeatures_EarlyAbort(t *testing.T) {
	mask := []int{0, 1, 2, 3}
	p := []float64{10, 10, 10, 10}
	c := []float64{0, 0, 0, 0}
	threshold := 50.0
	got := DistanceAllFeatures(DistanceL2, p, c, mask, threshold)
	if got <= threshold {
		t.Fatalf("expected early-abort partial to exceed threshold %v, got %v", threshold, got)
	}
	full := DistanceAllFeatures(DistanceL2, p, c, mask, noEarlyAbort)
	if got > full {
		t.Errorf("early-abort partial %v must never exceed the true distance %v", got, full)
	}
}

func TestDistanceSingleFeature(t *testing.T) {
	if got := DistanceSingleFeature(DistanceL1, 5, 2); got != 3 {
		t.Errorf("single-feature L1 = %v, want 3", got)
	}
	if got := DistanceSingleFeature(DistanceL2, 5, 2); got != 9 {
		t.Errorf("single-feature L2 = %v, want 9", got)
	}
}

// TestElkanPruningSafety checks that for random instances and random
// centroids, the pruned nearest-cluster search agrees with exhaustive
// search, for all three norms.
func TestElkanPruningSafety(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	mask := fullMask(4)

	for trial := 0; trial < 40; trial++ {
		k := 3 + rng.Intn(5)
		centroids := make([][]float64, k)
		for i := range centroids {
			centroids[i] = randomVector(rng, 4)
		}

		x := randomVector(rng, 4)

		for _, norm := range []DistanceNorm{DistanceL1, DistanceL2, DistanceCosine} {
			cl := &Clustering{mask: mask, norm: norm}
			clusters := make([]*Cluster, k)
			for i, c := range centroids {
				cc := NewCluster("c", i, 4)
				cc.SetCentroid(c)
				clusters[i] = cc
			}
			cl.Clusters = clusters
			cl.instances = []Instance{{Values: x}}
			cl.k = k
			cl.RefreshInterCentroidMatrix()

			// exhaustive
			wantDist := DistanceAllFeatures(norm, x, centroids[0], mask, noEarlyAbort)
			for j := 1; j < k; j++ {
				d := DistanceAllFeatures(norm, x, centroids[j], mask, noEarlyAbort)
				if d < wantDist {
					wantDist = d
				}
			}

			// pruned, starting from every possible "current cluster"
			ie := &IterationEngine{Distance: norm}
			for current := 0; current < k; current++ {
				got := ie.nearestCluster(cl, 0, current, true)
				gotDist := DistanceAllFeatures(norm, x, clusters[got].ModellingCentroid, mask, noEarlyAbort)
				if math.Abs(gotDist-wantDist) > 1e-9 {
					t.Errorf("norm=%v current=%d: pruned search found distance %v, exhaustive found %v", norm, current, gotDist, wantDist)
				}
			}
		}
	}
}

func randomVector(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.Float64()*10 - 5
	}
	return v
}
