package clustering

import (
	"context"
	"fmt"
	"math/rand"
)

// Engine is the single validated entry point into the clustering core:
// Train and TrainMiniBatch are the only two public operations, grounded
// on a single-call-wraps-the-primitive idiom where every failure is
// wrapped with context before it reaches the caller.
type Engine struct {
	Log    Logger
	Memory MemoryOracle
	Side   QualitySideInputs
}

// NewEngine builds an Engine; a nil Memory defaults to UnboundedMemory and
// a nil Side defaults to DefaultQualitySideInputs.
func NewEngine(log Logger, memory MemoryOracle, side QualitySideInputs) *Engine {
	if memory == nil {
		memory = UnboundedMemory{}
	}
	if side == nil {
		side = DefaultQualitySideInputs{}
	}
	return &Engine{Log: log, Memory: memory, Side: side}
}

// RunResult wraps the trained Clustering together with the quality score
// the replicate-choice policy selected it on, for callers (C13, the CLI)
// that want to report it without recomputing.
type RunResult struct {
	Clustering *Clustering
	Score      float64
	Replicates int
}

// Train validates params, runs NReplicates independent replicates over
// the full in-memory instance vector read from source, selects the best
// by the resolved replicate-choice criterion, and — in supervised mode —
// runs the post-optimiser. ctx is polled throughout; a cancellation
// surfaces as context.Canceled via errors.Is on the returned error.
func (e *Engine) Train(ctx context.Context, params Parameters, source Source, targetValues []string) (*RunResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	instances, err := source.Instances()
	if err != nil {
		return nil, fmt.Errorf("clustering: reading instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, ErrEmptyInput
	}
	if err := e.checkMemory(int64(len(instances))); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask := params.ActiveFeatures()
	rng := rand.New(rand.NewSource(params.Seed))
	scorer := NewQualityScorer(e.Side)
	choice := params.resolveReplicateChoice()

	var best *Clustering
	var bestScore float64
	for r := 0; r < params.NReplicates; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		replicateParams := params
		replicateParams.Seed = params.Seed + int64(r)

		cl, err := e.computeReplicate(ctx, replicateParams, shuffled(instances, rng), mask, targetValues, scorer)
		if err != nil {
			return nil, fmt.Errorf("clustering: replicate %d: %w", r, err)
		}

		score := e.scoreFor(scorer, cl, choice, params.Distance)
		if best == nil || score > bestScore {
			best = cl
			bestScore = score
		}
	}

	if params.Supervised && params.PostOptimisation != PostOptimisationNone {
		post := NewPostOptimiser(params.Distance, scorer, randSourceFrom(rng), e.Log)
		optimised, err := post.Run(ctx, best, params.MinKPostOpt, params.VNSLevel)
		if err != nil {
			return nil, fmt.Errorf("clustering: post-optimisation: %w", err)
		}
		best = optimised
		bestScore = scorer.EVA(best)
	}

	return &RunResult{Clustering: best, Score: bestScore, Replicates: params.NReplicates}, nil
}

// TrainMiniBatch validates params, then runs the streaming MiniBatchEngine
// of §4.6 over source instead of materialising the full instance vector.
func (e *Engine) TrainMiniBatch(ctx context.Context, params Parameters, source StreamingSource, targetValues []string, batchCount int, batchPercent float64, progress ProgressSink) (*RunResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask := params.ActiveFeatures()
	init := NewInitialiser(params.Seed, e.Log)
	mb := NewMiniBatchEngine(params, batchCount, batchPercent, init, progress, e.Log)

	cl, err := mb.Run(ctx, params, source, mask, targetValues)
	if err != nil {
		return nil, fmt.Errorf("clustering: mini-batch training: %w", err)
	}

	scorer := NewQualityScorer(e.Side)
	choice := params.resolveReplicateChoice()
	score := e.scoreFor(scorer, cl, choice, params.Distance)
	return &RunResult{Clustering: cl, Score: score, Replicates: 1}, nil
}

// computeReplicate is C5's public operation: builds or reuses the global
// cluster, seeds via the Initialiser, runs the convergence loop, then
// finalises stats and target probabilities.
func (e *Engine) computeReplicate(ctx context.Context, params Parameters, instances []Instance, mask []int, targetValues []string, scorer *QualityScorer) (*Clustering, error) {
	init := NewInitialiser(params.Seed, e.Log)
	cl, err := init.Seed(ctx, params, instances, mask, targetValues)
	if err != nil {
		return nil, err
	}

	iter := NewIterationEngine(params, e.Log)
	if err := iter.Run(ctx, cl); err != nil {
		return nil, err
	}

	if len(targetValues) > 0 {
		cl.ComputeTargetProbabilities()
		cl.ComputeConfusionMatrix()
	}
	return cl, nil
}

func (e *Engine) scoreFor(scorer *QualityScorer, cl *Clustering, choice ReplicateChoice, norm DistanceNorm) float64 {
	switch choice {
	case ReplicateChoiceDistance:
		return -scorer.Distance(cl, norm) // lower distance is better; negate so "higher is better" holds uniformly
	case ReplicateChoiceEVA:
		return scorer.EVA(cl)
	case ReplicateChoiceARIByClusters:
		return scorer.ARIByClusters(cl)
	case ReplicateChoiceARIByClasses:
		return scorer.ARIByClasses(cl)
	case ReplicateChoiceVI:
		return -scorer.VI(cl) // lower VI is better
	case ReplicateChoiceLEVA:
		return averageOf(scorer.LEVA(cl))
	case ReplicateChoiceDaviesBouldin:
		return -scorer.DaviesBouldin(cl, norm) // lower DB is better
	case ReplicateChoicePredictiveClustering:
		return scorer.PredictiveClustering(cl, 0.5)
	case ReplicateChoiceNMIByClusters:
		return scorer.NMIByClusters(cl)
	case ReplicateChoiceNMIByClasses:
		return scorer.NMIByClasses(cl)
	default:
		return -scorer.Distance(cl, norm)
	}
}

func averageOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func (e *Engine) checkMemory(instanceCount int64) error {
	const bytesPerInstanceEstimate = 256
	needed := instanceCount * bytesPerInstanceEstimate
	if e.Memory.RemainingAvailableMemory() < needed {
		return fmt.Errorf("%w: estimated %d bytes needed, oracle reports less available", ErrInsufficientMemory, needed)
	}
	return nil
}

func shuffled(instances []Instance, rng *rand.Rand) []Instance {
	out := make([]Instance, len(instances))
	copy(out, instances)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func randSourceFrom(rng *rand.Rand) *randSource {
	return &randSource{
		Intn:  rng.Intn,
		Perm:  rng.Perm,
		Float: rng.Float64,
	}
}
