package clustering

import (
	"math"
	"testing"
)

func buildScoredClustering(t *testing.T, instances []Instance, assign []int, targets []string) *Clustering {
	t.Helper()
	k := 0
	for _, a := range assign {
		if a+1 > k {
			k = a + 1
		}
	}
	seeds := make([][]float64, k)
	for i := range seeds {
		seeds[i] = []float64{0, 0}
	}
	cl := buildTestClustering(t, seeds, instances)
	cl.SetTargetValues(targets)
	for idx, a := range assign {
		cl.Reassign(idx, a)
	}
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(instances, cl.mask, DistanceL2, false)
	}
	cl.RefreshInterCentroidMatrix()
	cl.ComputeTargetProbabilities()
	return cl
}

func TestEVA_ZeroAtSingleCluster(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{1, 1}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 0}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	if got := scorer.EVA(cl); got != 0 {
		t.Errorf("EVA() = %v with a single cluster, want 0", got)
	}
}

// TestEVA_PerfectPartitionIsHigherThanRandom checks EVA increases when
// clusters perfectly separate targets compared to a mixed partition.
func TestEVA_PerfectPartitionIsHigherThanRandom(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{0, 0}, Target: "A"},
		{ID: 3, Values: []float64{5, 5}, Target: "B"},
		{ID: 4, Values: []float64{5, 5}, Target: "B"},
		{ID: 5, Values: []float64{5, 5}, Target: "B"},
	}
	perfect := buildScoredClustering(t, instances, []int{0, 0, 0, 1, 1, 1}, []string{"A", "B"})
	mixed := buildScoredClustering(t, instances, []int{0, 1, 0, 1, 0, 1}, []string{"A", "B"})

	scorer := NewQualityScorer(nil)
	evaPerfect := scorer.EVA(perfect)
	evaMixed := scorer.EVA(mixed)
	if evaPerfect <= evaMixed {
		t.Errorf("EVA(perfect) = %v, EVA(mixed) = %v, want perfect > mixed", evaPerfect, evaMixed)
	}
}

func TestARIByClasses_PerfectPartitionIsOne(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{5, 5}, Target: "B"},
		{ID: 3, Values: []float64{5, 5}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 0, 1, 1}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	if got := scorer.ARIByClasses(cl); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("ARIByClasses() = %v, want 1.0 for a partition matching targets exactly", got)
	}
}

func TestNMIByClasses_BoundedZeroToOne(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{1, 0}, Target: "B"},
		{ID: 2, Values: []float64{0, 1}, Target: "A"},
		{ID: 3, Values: []float64{1, 1}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 1, 0, 1}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	got := scorer.NMIByClasses(cl)
	if got < 0 || got > 1+1e-9 {
		t.Errorf("NMIByClasses() = %v, want in [0,1]", got)
	}
}

func TestVI_ZeroWhenPartitionsMatch(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{5, 5}, Target: "B"},
		{ID: 3, Values: []float64{5, 5}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 0, 1, 1}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	if got := scorer.VI(cl); math.Abs(got) > 1e-9 {
		t.Errorf("VI() = %v, want 0 when the cluster partition matches the target partition exactly", got)
	}
}

func TestDaviesBouldin_ZeroWithFewerThanTwoClusters(t *testing.T) {
	instances := []Instance{{ID: 0, Values: []float64{0, 0}}}
	cl := buildScoredClustering(t, instances, []int{0}, nil)
	scorer := NewQualityScorer(nil)
	if got := scorer.DaviesBouldin(cl, DistanceL2); got != 0 {
		t.Errorf("DaviesBouldin() = %v with one cluster, want 0", got)
	}
}

func TestDaviesBouldin_WellSeparatedLowerThanOverlapping(t *testing.T) {
	separated := []Instance{
		{ID: 0, Values: []float64{0, 0}},
		{ID: 1, Values: []float64{0, 0}},
		{ID: 2, Values: []float64{100, 100}},
		{ID: 3, Values: []float64{100, 100}},
	}
	overlapping := []Instance{
		{ID: 0, Values: []float64{0, 0}},
		{ID: 1, Values: []float64{1, 1}},
		{ID: 2, Values: []float64{1.5, 1.5}},
		{ID: 3, Values: []float64{2, 2}},
	}
	clSep := buildScoredClustering(t, separated, []int{0, 0, 1, 1}, nil)
	clOverlap := buildScoredClustering(t, overlapping, []int{0, 0, 1, 1}, nil)

	scorer := NewQualityScorer(nil)
	dbSep := scorer.DaviesBouldin(clSep, DistanceL2)
	dbOverlap := scorer.DaviesBouldin(clOverlap, DistanceL2)
	if dbSep >= dbOverlap {
		t.Errorf("DaviesBouldin(separated) = %v, DaviesBouldin(overlapping) = %v, want separated < overlapping", dbSep, dbOverlap)
	}
}

// TestLEVA_WellDefinedForPurePartition checks that an all-pure-cluster
// partition yields one well-defined LEVA value per cluster.
func TestLEVA_WellDefinedForPurePartition(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{5, 5}, Target: "B"},
		{ID: 3, Values: []float64{5, 5}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 0, 1, 1}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	leva := scorer.LEVA(cl)
	if len(leva) != 2 {
		t.Fatalf("len(LEVA()) = %d, want 2", len(leva))
	}
	for i, v := range leva {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("LEVA()[%d] = %v, want a finite value", i, v)
		}
	}
}

func TestPredictiveClustering_WeightsBetweenEVAAndCompactness(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{5, 5}, Target: "B"},
		{ID: 3, Values: []float64{5, 5}, Target: "B"},
	}
	cl := buildScoredClustering(t, instances, []int{0, 0, 1, 1}, []string{"A", "B"})
	scorer := NewQualityScorer(nil)
	pureEVA := scorer.PredictiveClustering(cl, 1.0)
	pureCompactness := scorer.PredictiveClustering(cl, 0.0)
	if math.Abs(pureEVA-scorer.EVA(cl)) > 1e-9 {
		t.Errorf("PredictiveClustering(weight=1) = %v, want EVA() = %v", pureEVA, scorer.EVA(cl))
	}
	if pureCompactness < 0 || pureCompactness > 1+1e-9 {
		t.Errorf("PredictiveClustering(weight=0) = %v, want a compactness fraction in [0,1]", pureCompactness)
	}
}
