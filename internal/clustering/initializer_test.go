package clustering

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func blobParams(k int) Parameters {
	p := DefaultParameters()
	p.K = k
	p.Distance = DistanceL2
	p.InitMethod = InitRandom
	p.MaxIterations = 0
	p.KMeansFeatureMask = []int{0, 1}
	return p
}

func TestInitialiser_Random_Seeds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {20, 0}, {0, 20}}, 30, 0.5)
	mask := fullMask(2)
	init := NewInitialiser(42, nil)

	p := blobParams(3)
	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 3 {
		t.Fatalf("len(Clusters) = %d, want 3", len(cl.Clusters))
	}
	total := 0
	for _, c := range cl.Clusters {
		total += c.Frequency
	}
	if total != len(instances) {
		t.Errorf("total assigned = %d, want %d (no orphans among complete rows)", total, len(instances))
	}
}

// TestInitialiser_DegenerateInit_TooFewCompleteRows is §4.3's hard failure:
// fewer complete rows than K.
func TestInitialiser_DegenerateInit_TooFewCompleteRows(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{1, 1}},
		{ID: 1, Values: []float64{2, 2}},
	}
	mask := fullMask(2)
	init := NewInitialiser(1, nil)
	p := blobParams(5)

	_, err := init.Seed(context.Background(), p, instances, mask, nil)
	if !errors.Is(err, ErrDegenerateInit) {
		t.Errorf("Seed() error = %v, want ErrDegenerateInit", err)
	}
}

// TestInitialiser_AllIdenticalRows checks that K=5 on 100 identical rows
// either hard-fails with ErrDegenerateInit or still accounts for every row.
func TestInitialiser_AllIdenticalRows(t *testing.T) {
	instances := make([]Instance, 100)
	for i := range instances {
		instances[i] = Instance{ID: int64(i), Values: []float64{3, 3}}
	}
	mask := fullMask(2)
	init := NewInitialiser(1, nil)
	p := blobParams(5)

	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		if !errors.Is(err, ErrDegenerateInit) {
			t.Fatalf("unexpected error kind: %v", err)
		}
		return // ErrDegenerateInit is an acceptable outcome for all-identical rows
	}
	if len(cl.Clusters) < 1 {
		t.Fatal("expected at least one surviving cluster")
	}
	total := 0
	for _, c := range cl.Clusters {
		total += c.Frequency
	}
	if total != 100 {
		t.Errorf("surviving clusters hold %d instances total, want 100", total)
	}
}

func TestInitialiser_KMeansPlusPlus_SeparatesBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {50, 0}, {0, 50}}, 20, 1.0)
	mask := fullMask(2)
	init := NewInitialiser(9, nil)
	p := blobParams(3)
	p.InitMethod = InitKMeansPlusPlus

	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 3 {
		t.Fatalf("len(Clusters) = %d, want 3", len(cl.Clusters))
	}
}

func TestInitialiser_KMeansPlusPlusR_RequiresSupervision(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {50, 0}, {0, 50}}, 20, 1.0)
	mask := fullMask(2)
	init := NewInitialiser(9, nil)
	p := blobParams(3)
	p.InitMethod = InitKMeansPlusPlusR
	p.Supervised = true

	targets := distinctTargets(instances)
	cl, err := init.Seed(context.Background(), p, instances, mask, targets)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 3 {
		t.Fatalf("len(Clusters) = %d, want 3", len(cl.Clusters))
	}
}

func TestInitialiser_ClassDecomposition_ProducesSeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {50, 0}}, 30, 1.0)
	mask := fullMask(2)
	init := NewInitialiser(11, nil)
	p := blobParams(6)
	p.InitMethod = InitClassDecomposition
	p.Supervised = true

	targets := distinctTargets(instances)
	cl, err := init.Seed(context.Background(), p, instances, mask, targets)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) < 2 {
		t.Errorf("len(Clusters) = %d, want at least 2", len(cl.Clusters))
	}
}

func TestInitialiser_MinMaxDeterministic_FirstCentreIsNearDataCentroid(t *testing.T) {
	instances := sampleInstances()
	mask := fullMask(2)
	init := NewInitialiser(1, nil)
	p := blobParams(2)
	p.InitMethod = InitMinMaxDeterministic

	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 2 {
		t.Fatalf("len(Clusters) = %d, want 2", len(cl.Clusters))
	}
}

func TestInitialiser_Bisecting_ReachesK(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {30, 0}, {0, 30}, {30, 30}}, 15, 0.8)
	mask := fullMask(2)
	init := NewInitialiser(2, nil)
	p := blobParams(4)
	p.InitMethod = InitBisecting

	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 4 {
		t.Errorf("len(Clusters) = %d, want 4", len(cl.Clusters))
	}
}

func TestInitialiser_VariancePartitioning_ReachesK(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {30, 0}, {0, 30}}, 20, 1.0)
	mask := fullMask(2)
	init := NewInitialiser(2, nil)
	p := blobParams(3)
	p.InitMethod = InitVariancePartitioning

	cl, err := init.Seed(context.Background(), p, instances, mask, nil)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(cl.Clusters) != 3 {
		t.Errorf("len(Clusters) = %d, want 3", len(cl.Clusters))
	}
}
