package clustering

import (
	"context"
	"fmt"
)

// MiniBatchEngine runs the streaming online k-means variant of §4.6. It
// runs only when the caller asks for it through Engine.TrainMiniBatch;
// Engine.Train does not switch to it on memory pressure, its memory check
// fails with ErrInsufficientMemory instead.
type MiniBatchEngine struct {
	Distance     DistanceNorm
	BatchCount   int
	BatchPercent float64
	Init         *Initialiser
	Log          Logger
	Progress     ProgressSink
}

// NewMiniBatchEngine builds a MiniBatchEngine from Parameters; batchCount
// and batchPercent are supplied separately since they are not part of the
// core Parameters struct's engine-facing contract (they are driven by the
// streaming Source's own sizing, per §6).
func NewMiniBatchEngine(p Parameters, batchCount int, batchPercent float64, init *Initialiser, progress ProgressSink, log Logger) *MiniBatchEngine {
	if progress == nil {
		progress = NoopProgress{}
	}
	return &MiniBatchEngine{
		Distance:     p.Distance,
		BatchCount:   batchCount,
		BatchPercent: batchPercent,
		Init:         init,
		Log:          log,
		Progress:     progress,
	}
}

// clusterAccumulator tracks the cumulative-assignment counter each
// cluster's harmonic learning rate depends on.
type clusterAccumulator struct {
	cumulativeAssigned int
}

// Run streams BatchCount mini-batches from source, seeding on batch 0 and
// performing streaming centroid updates on every later batch, then
// finalises over the whole database (see finalPasses). On failure mid
// final-pass, every cluster is MarkStale()'d and Run returns a nil
// Clustering together with the error, so the partial result is discarded.
func (mb *MiniBatchEngine) Run(ctx context.Context, p Parameters, source StreamingSource, mask []int, targetValues []string) (*Clustering, error) {
	if err := source.OpenForRead(); err != nil {
		return nil, fmt.Errorf("clustering: mini-batch open: %w", err)
	}
	defer source.Close()

	var cl *Clustering
	acc := make([]clusterAccumulator, 0)

	for batch := 0; batch < mb.BatchCount; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mb.Progress.SetLabel(fmt.Sprintf("mini-batch %d/%d", batch+1, mb.BatchCount))
		mb.Progress.SetProgress(float64(batch) / float64(mb.BatchCount))

		sample, err := source.Sample(mb.BatchPercent, p.Seed+int64(batch))
		if err != nil {
			return nil, fmt.Errorf("clustering: mini-batch sample: %w", err)
		}
		if len(sample) == 0 {
			continue
		}

		if batch == 0 {
			cl, err = mb.Init.Seed(ctx, p, sample, mask, targetValues)
			if err != nil {
				return nil, err
			}
			acc = make([]clusterAccumulator, len(cl.Clusters))
			continue
		}

		mb.assignAndUpdate(cl, sample, mask, acc)
	}

	if cl == nil {
		return nil, fmt.Errorf("%w: mini-batch training produced no batches", ErrEmptyInput)
	}

	if err := mb.finalPasses(ctx, cl, source, mask, targetValues); err != nil {
		for _, c := range cl.Clusters {
			c.MarkStale()
		}
		return nil, err
	}
	return cl, nil
}

// assignAndUpdate assigns every instance in a batch sample to its nearest
// existing centroid, then advances that centroid by
// (1-eta)*centroid + eta*x with eta = 1/cumulative_instances_assigned.
func (mb *MiniBatchEngine) assignAndUpdate(cl *Clustering, sample []Instance, mask []int, acc []clusterAccumulator) {
	for _, inst := range sample {
		if !inst.HasCompleteFeatures(mask) {
			continue
		}
		best, bestDist := 0, DistanceAllFeatures(mb.Distance, inst.Values, cl.Clusters[0].ModellingCentroid, mask, noEarlyAbort)
		for j := 1; j < len(cl.Clusters); j++ {
			d := DistanceAllFeatures(mb.Distance, inst.Values, cl.Clusters[j].ModellingCentroid, mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		acc[best].cumulativeAssigned++
		eta := 1.0 / float64(acc[best].cumulativeAssigned)
		centroid := cl.Clusters[best].ModellingCentroid
		for _, idx := range mask {
			if idx == FeatureInactive {
				continue
			}
			centroid[idx] = (1-eta)*centroid[idx] + eta*inst.Values[idx]
		}
	}
}

// finalPasses reads the whole database once, assigning every complete row
// to its nearest centroid and buffering it, then computes frequencies,
// target probabilities and majorities from that membership, and finally
// centroids (recomputed as member means), distance sums in
// all three norms, intra-inertias and the per-feature intra-inertia needed
// for Davies-Bouldin from the buffered rows. The source is read once, not
// twice.
func (mb *MiniBatchEngine) finalPasses(ctx context.Context, cl *Clustering, source StreamingSource, mask []int, targetValues []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, c := range cl.Clusters {
		c.members = nil
	}
	cl.instances = nil
	cl.instanceToCluster = make(map[int]int)
	if err := source.OpenForRead(); err != nil {
		return fmt.Errorf("clustering: mini-batch final pass 1 open: %w", err)
	}
	for {
		inst, ok, err := source.ReadOne()
		if err != nil {
			source.Close()
			return fmt.Errorf("clustering: mini-batch final pass 1: %w", err)
		}
		if !ok {
			break
		}
		if !inst.HasCompleteFeatures(mask) {
			continue
		}
		best, bestDist := 0, DistanceAllFeatures(mb.Distance, inst.Values, cl.Clusters[0].ModellingCentroid, mask, noEarlyAbort)
		for j := 1; j < len(cl.Clusters); j++ {
			d := DistanceAllFeatures(mb.Distance, inst.Values, cl.Clusters[j].ModellingCentroid, mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		cl.instances = append(cl.instances, inst)
		newIdx := len(cl.instances) - 1
		cl.Clusters[best].Add(newIdx)
		cl.instanceToCluster[newIdx] = best
	}
	source.Close()

	for _, c := range cl.Clusters {
		c.Frequency = len(c.Members())
	}
	if len(targetValues) > 0 {
		cl.SetTargetValues(targetValues)
		cl.ComputeTargetProbabilities()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, c := range cl.Clusters {
		c.ComputeIterationStats(cl.instances, mask, mb.Distance, false)
	}
	cl.RecomputeTotalDistanceSum()
	cl.RefreshInterCentroidMatrix()
	cl.Iterations = mb.BatchCount
	return nil
}
