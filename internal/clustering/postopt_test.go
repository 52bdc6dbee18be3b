package clustering

import (
	"context"
	"math/rand"
	"testing"
)

func realRandSource(seed int64) *randSource {
	rng := rand.New(rand.NewSource(seed))
	return &randSource{
		Intn:  rng.Intn,
		Perm:  rng.Perm,
		Float: rng.Float64,
	}
}

func buildSupervisedClustering(t *testing.T, rng *rand.Rand, k int) *Clustering {
	t.Helper()
	centers := [][2]float64{{0, 0}, {20, 0}, {0, 20}, {20, 20}, {40, 0}}
	instances := gaussianBlobs(rng, centers[:k], 60, 1.0)
	targets := distinctTargets(instances)
	mask := fullMask(2)

	init := NewInitialiser(rng.Int63(), nil)
	p := blobParams(k)
	p.Supervised = true
	cl, err := init.Seed(context.Background(), p, instances, mask, targets)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	cl.SetTargetValues(targets)
	ie := NewIterationEngine(p, nil)
	if err := ie.Run(context.Background(), cl); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return cl
}

// TestPostOptimiser_GreedyDescentNeverWorsensEVA checks the returned
// Clustering's EVA is never below the EVA of the replicate it started from.
func TestPostOptimiser_GreedyDescentNeverWorsensEVA(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cl := buildSupervisedClustering(t, rng, 5)
	scorer := NewQualityScorer(nil)
	startEVA := scorer.EVA(cl)

	po := NewPostOptimiser(DistanceL2, scorer, realRandSource(7), nil)
	result, err := po.Run(context.Background(), cl, 2, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	resultEVA := scorer.EVA(result)
	if resultEVA < startEVA-1e-9 {
		t.Errorf("post-optimised EVA = %v, want >= starting EVA %v", resultEVA, startEVA)
	}
}

// TestPostOptimiser_StopsAtMinK checks the greedy descent never drops below
// minKPostOpt clusters.
func TestPostOptimiser_StopsAtMinK(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cl := buildSupervisedClustering(t, rng, 5)
	scorer := NewQualityScorer(nil)

	po := NewPostOptimiser(DistanceL2, scorer, realRandSource(11), nil)
	result, err := po.Run(context.Background(), cl, 3, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Clusters) < 3 {
		t.Errorf("len(Clusters) = %d, want >= 3 (minKPostOpt)", len(result.Clusters))
	}
}

// TestPostOptimiser_VNSNeverWorsensBestEVA checks that the VNS shell's
// accept/reject rule only ever moves to a strictly better EVA, so the
// returned Clustering's EVA is never lower than the greedy descent's.
func TestPostOptimiser_VNSNeverWorsensBestEVA(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	cl := buildSupervisedClustering(t, rng, 5)
	scorer := NewQualityScorer(nil)

	po := NewPostOptimiser(DistanceL2, scorer, realRandSource(21), nil)
	greedyOnly, _, err := po.greedyDescent(context.Background(), cl, 2)
	if err != nil {
		t.Fatalf("greedyDescent: %v", err)
	}
	greedyEVA := scorer.EVA(greedyOnly)

	withVNS, err := po.Run(context.Background(), cl, 2, 2)
	if err != nil {
		t.Fatalf("Run with vnsLevel=2: %v", err)
	}
	vnsEVA := scorer.EVA(withVNS)
	if vnsEVA < greedyEVA-1e-9 {
		t.Errorf("VNS result EVA = %v, want >= greedy-only EVA %v", vnsEVA, greedyEVA)
	}
}

// TestPostOptimiser_CancellationStopsDescent checks a cancelled context
// aborts the descent and returns an error without panicking.
func TestPostOptimiser_CancellationStopsDescent(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	cl := buildSupervisedClustering(t, rng, 5)
	scorer := NewQualityScorer(nil)
	po := NewPostOptimiser(DistanceL2, scorer, realRandSource(9), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := po.Run(ctx, cl, 2, 0)
	if err == nil {
		t.Error("expected a cancellation error")
	}
}

func TestRemoveClusterAndReassign_PreservesAllInstances(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cl := buildSupervisedClustering(t, rng, 3)
	before := len(cl.instances)

	out := removeClusterAndReassign(cl, cl.Clusters[0].Index, DistanceL2)
	if len(out.Clusters) != len(cl.Clusters)-1 {
		t.Fatalf("len(Clusters) = %d, want %d", len(out.Clusters), len(cl.Clusters)-1)
	}
	total := 0
	for _, c := range out.Clusters {
		total += c.Frequency
	}
	if total != before {
		t.Errorf("surviving clusters hold %d instances, want %d", total, before)
	}
}
