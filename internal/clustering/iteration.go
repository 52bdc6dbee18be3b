package clustering

import (
	"context"
	"math"
)

// IterationEngine runs the Lloyd-style convergence loop of §4.2 over an
// already-initialised Clustering.
type IterationEngine struct {
	Distance             DistanceNorm
	MaxIterations        int
	Epsilon              float64
	EpsilonMaxIterations int
	UseMedianCentroid    bool
	Log                  Logger
}

// NewIterationEngine builds an IterationEngine from Parameters.
func NewIterationEngine(p Parameters, log Logger) *IterationEngine {
	return &IterationEngine{
		Distance:             p.Distance,
		MaxIterations:        p.MaxIterations,
		Epsilon:              p.Epsilon,
		EpsilonMaxIterations: p.EpsilonMaxIterations,
		UseMedianCentroid:    false,
		Log:                  log,
	}
}

// snapshot captures just enough of a Clustering's partition to be restored
// as "the best observed partition" at loop exit (§4.2 step 6).
type snapshot struct {
	assignment []int // instance idx -> cluster idx, -1 if unassigned
	centroids  [][]float64
	total      [3]float64
}

func (e *IterationEngine) snapshotOf(cl *Clustering) snapshot {
	s := snapshot{
		assignment: make([]int, len(cl.instances)),
		centroids:  make([][]float64, len(cl.Clusters)),
		total:      cl.TotalDistanceSum,
	}
	for i := range s.assignment {
		s.assignment[i] = -1
	}
	for idx, c := range cl.instanceToCluster {
		s.assignment[idx] = c
	}
	for i, c := range cl.Clusters {
		s.centroids[i] = append([]float64(nil), c.ModellingCentroid...)
	}
	return s
}

func (e *IterationEngine) restore(cl *Clustering, s snapshot) {
	for i, c := range cl.Clusters {
		if i < len(s.centroids) {
			c.SetCentroid(s.centroids[i])
		}
		c.members = nil
	}
	cl.instanceToCluster = make(map[int]int, len(s.assignment))
	for instIdx, clusterIdx := range s.assignment {
		if clusterIdx == -1 {
			continue
		}
		cl.Clusters[clusterIdx].Add(instIdx)
		cl.instanceToCluster[instIdx] = clusterIdx
	}
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
	}
	cl.RecomputeTotalDistanceSum()
	cl.TotalDistanceSum = s.total
}

// Run executes the convergence loop. It is a no-op (loop skipped, init-time
// centroids kept) when MaxIterations == -1, per the documented overload in
// §4.1/§9. ctx is polled before each iteration and before each instance
// sweep (§4.2, §5); a cancellation leaves cl well-formed per §5's
// "stats_up_to_date true, or recomputed before use" guarantee.
func (e *IterationEngine) Run(ctx context.Context, cl *Clustering) error {
	if e.MaxIterations == -1 {
		// Loop skipped entirely: init-time centroids stand, but stats must
		// still be computed once so the Clustering is well-formed.
		for _, c := range cl.Clusters {
			c.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
		}
		cl.RecomputeTotalDistanceSum()
		return nil
	}

	for _, c := range cl.Clusters {
		c.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
	}
	cl.RecomputeTotalDistanceSum()

	best := e.snapshotOf(cl)
	epsilonIters := 0
	n := len(cl.instances)

	for {
		if err := ctx.Err(); err != nil {
			e.restore(cl, best)
			return err
		}
		if e.MaxIterations > 0 && cl.Iterations >= e.MaxIterations {
			break
		}

		cl.RefreshInterCentroidMatrix()

		movements := 0
		for instIdx := range cl.instances {
			if instIdx%4096 == 0 {
				if err := ctx.Err(); err != nil {
					e.restore(cl, best)
					return err
				}
			}
			if !cl.instances[instIdx].HasCompleteFeatures(cl.mask) {
				continue
			}
			current, hasCurrent := cl.ClusterOf(instIdx)
			nearest := e.nearestCluster(cl, instIdx, current, hasCurrent)
			if !hasCurrent || nearest != current {
				cl.Reassign(instIdx, nearest)
				movements++
			}
		}

		for _, c := range cl.Clusters {
			c.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
		}
		dOld := cl.TotalDistanceSum
		cl.RecomputeTotalDistanceSum()
		dNew := cl.TotalDistanceSum

		improving := relativeImprovement(dOld, dNew, n) >= e.Epsilon
		if improving {
			epsilonIters = 0
			best = e.snapshotOf(cl)
		} else {
			epsilonIters++
		}

		if err := e.repairEmptyClusters(cl); err != nil && e.Log != nil {
			e.Log.Warn("clustering: could not repair every empty cluster", map[string]interface{}{"error": err.Error()})
		}

		cl.Iterations++

		if movements == 0 {
			break
		}
		if e.EpsilonMaxIterations > 0 && epsilonIters >= e.EpsilonMaxIterations {
			break
		}
	}

	e.restore(cl, best)
	return nil
}

// relativeImprovement returns |D_old - D_new| / n summed across norms'
// primary channel (the norm the run was configured with contributes the
// dominant share; the other two sums still move together in practice).
func relativeImprovement(dOld, dNew [3]float64, n int) float64 {
	if n == 0 {
		return 0
	}
	var diff float64
	for i := range dOld {
		diff += math.Abs(dOld[i] - dNew[i])
	}
	return diff / float64(n)
}

// nearestCluster implements the Elkan-pruned search of §4.2. current/
// hasCurrent describe the instance's cluster before this sweep; at the
// very first invocation (hasCurrent == false) distance-to-cluster-0 seeds
// the initial minimum, per the documented first-invocation rule.
func (e *IterationEngine) nearestCluster(cl *Clustering, instIdx, current int, hasCurrent bool) int {
	x := cl.instances[instIdx].Values
	mask := cl.mask
	norm := e.Distance

	if !hasCurrent {
		return e.exhaustiveNearest(cl, x)
	}

	c := cl.Clusters[current]
	dCurrent := DistanceAllFeatures(norm, x, c.ModellingCentroid, mask, noEarlyAbort)

	// InterCentroidDistance returns whatever quantity DistanceAllFeatures
	// produces for norm. L1 is a metric, so half the centroid-pair value
	// bounds the search directly. The L2 kernel returns a squared distance
	// and 1-cos is half the squared distance between the normalised
	// vectors, so for those two norms the bound is a quarter of the stored
	// value. Each candidate is tested against the current best cluster.
	divisor := 2.0
	if norm != DistanceL1 {
		divisor = 4.0
	}
	sibling := c.NearestSibling
	if sibling >= 0 {
		half := cl.InterCentroidDistance(current, sibling) / divisor
		if half > dCurrent {
			return current
		}
	}

	best := current
	bestDist := dCurrent
	for j, other := range cl.Clusters {
		if j == current {
			continue
		}
		half := cl.InterCentroidDistance(best, j) / divisor
		if half > bestDist {
			continue
		}
		d := DistanceAllFeatures(norm, x, other.ModellingCentroid, mask, bestDist)
		if d < bestDist || (d == bestDist && j < best) {
			bestDist = d
			best = j
		}
	}
	return best
}

// exhaustiveNearest is used only for an instance's first-ever assignment,
// when there is no current cluster to prune against.
func (e *IterationEngine) exhaustiveNearest(cl *Clustering, x []float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for j, c := range cl.Clusters {
		d := DistanceAllFeatures(e.Distance, x, c.ModellingCentroid, cl.mask, bestDist)
		if d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}

// repairEmptyClusters implements the B3 boundary behaviour: each empty
// cluster steals the farthest-from-its-centroid instance from the cluster
// currently holding the largest membership, one steal per empty slot.
func (e *IterationEngine) repairEmptyClusters(cl *Clustering) error {
	for _, empty := range cl.Clusters {
		if empty.Frequency != 0 {
			continue
		}
		donor := largestCluster(cl.Clusters, empty.Index)
		if donor == nil || donor.Frequency <= 1 {
			continue
		}
		victim := farthestMember(cl, donor)
		cl.Reassign(victim, empty.Index)
		donor.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
		empty.ComputeIterationStats(cl.instances, cl.mask, e.Distance, e.UseMedianCentroid)
	}
	return nil
}

func largestCluster(clusters []*Cluster, excludeIdx int) *Cluster {
	var best *Cluster
	for _, c := range clusters {
		if c.Index == excludeIdx {
			continue
		}
		if best == nil || c.Frequency > best.Frequency {
			best = c
		}
	}
	return best
}

func farthestMember(cl *Clustering, from *Cluster) int {
	best := from.Members()[0]
	bestDist := -1.0
	for _, instIdx := range from.Members() {
		d := DistanceAllFeatures(cl.norm, cl.instances[instIdx].Values, from.ModellingCentroid, cl.mask, noEarlyAbort)
		if d > bestDist {
			bestDist = d
			best = instIdx
		}
	}
	return best
}
