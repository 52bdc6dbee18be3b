package clustering

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

type memoryOracleFunc func() int64

func (f memoryOracleFunc) RemainingAvailableMemory() int64 { return f() }

func TestEngine_Train_EndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {40, 0}, {0, 40}}, 80, 1.0)
	source := SliceSource(instances)

	p := blobParams(3)
	p.NReplicates = 3
	e := NewEngine(nil, nil, nil)

	result, err := e.Train(context.Background(), p, source, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if result.Replicates != 3 {
		t.Errorf("Replicates = %d, want 3", result.Replicates)
	}
	if len(result.Clustering.Clusters) != 3 {
		t.Errorf("len(Clusters) = %d, want 3", len(result.Clustering.Clusters))
	}
}

func TestEngine_Train_InvalidParametersPropagate(t *testing.T) {
	instances := sampleInstances()
	source := SliceSource(instances)
	p := blobParams(0) // K=0 is invalid

	e := NewEngine(nil, nil, nil)
	_, err := e.Train(context.Background(), p, source, nil)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("Train() error = %v, want ErrInvalidParameters", err)
	}
}

func TestEngine_Train_EmptySourceFails(t *testing.T) {
	source := SliceSource(nil)
	p := blobParams(2)

	e := NewEngine(nil, nil, nil)
	_, err := e.Train(context.Background(), p, source, nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Train() error = %v, want ErrEmptyInput", err)
	}
}

func TestEngine_Train_InsufficientMemoryFails(t *testing.T) {
	instances := sampleInstances()
	source := SliceSource(instances)
	p := blobParams(2)

	e := NewEngine(nil, memoryOracleFunc(func() int64 { return 0 }), nil)
	_, err := e.Train(context.Background(), p, source, nil)
	if !errors.Is(err, ErrInsufficientMemory) {
		t.Errorf("Train() error = %v, want ErrInsufficientMemory", err)
	}
}

func TestEngine_Train_CancellationLeavesNoResult(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {20, 0}}, 50, 1.0)
	source := SliceSource(instances)
	p := blobParams(2)

	e := NewEngine(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Train(ctx, p, source, nil)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
}

func TestEngine_Train_SupervisedRunsPostOptimisation(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {20, 0}, {0, 20}, {20, 20}}, 40, 1.0)
	targets := distinctTargets(instances)
	source := SliceSource(instances)

	p := blobParams(4)
	p.Supervised = true
	p.PostOptimisation = PostOptimisationFast
	p.MinKPostOpt = 2
	p.NReplicates = 1

	e := NewEngine(nil, nil, nil)
	result, err := e.Train(context.Background(), p, source, targets)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(result.Clustering.Clusters) > 4 {
		t.Errorf("len(Clusters) = %d, want <= 4 after post-optimisation", len(result.Clustering.Clusters))
	}
	if len(result.Clustering.Clusters) < p.MinKPostOpt {
		t.Errorf("len(Clusters) = %d, want >= MinKPostOpt %d", len(result.Clustering.Clusters), p.MinKPostOpt)
	}
}

func TestEngine_TrainMiniBatch_EndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	instances := gaussianBlobs(rng, [][2]float64{{0, 0}, {30, 0}}, 100, 1.0)
	source := newFakeStreamingSource(instances)

	p := blobParams(2)
	e := NewEngine(nil, nil, nil)

	result, err := e.TrainMiniBatch(context.Background(), p, source, nil, 10, 0.2, nil)
	if err != nil {
		t.Fatalf("TrainMiniBatch: %v", err)
	}
	if result.Replicates != 1 {
		t.Errorf("Replicates = %d, want 1", result.Replicates)
	}
	if len(result.Clustering.Clusters) != 2 {
		t.Errorf("len(Clusters) = %d, want 2", len(result.Clustering.Clusters))
	}
}

func TestEngine_TrainMiniBatch_InvalidParametersPropagate(t *testing.T) {
	source := newFakeStreamingSource(sampleInstances())
	p := blobParams(0)

	e := NewEngine(nil, nil, nil)
	_, err := e.TrainMiniBatch(context.Background(), p, source, nil, 5, 0.5, nil)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("TrainMiniBatch() error = %v, want ErrInvalidParameters", err)
	}
}
