package clustering

import (
	"fmt"
	"sort"
)

// Cluster is one partition cell, owned by exactly one Clustering. Its
// NearestSibling field is a back-reference index into the owning
// Clustering's cluster slice, never a pointer — see DESIGN.md for why weak
// pointers from the original source are modelled as plain indices here.
type Cluster struct {
	Label string
	Index int

	ModellingCentroid []float64 // current, mutated by compute_iteration_stats
	InitialCentroid   []float64 // frozen after initialisation
	EvaluationCentroid []float64 // written only by the evaluation collaborator; never by this engine

	members []int // indices into the owning Clustering's instance slice
	Frequency int

	DistanceSum       [3]float64 // indexed by DistanceNorm
	IntraInertia      [3]float64
	IntraInertiaByFeature map[int][3]float64
	InterInertia      [3]float64

	TargetProbabilities []float64 // length = number of target symbols, supervised only
	MajorityTargetIndex int
	MajorityTargetValue string

	NearestSibling int // index into the owning Clustering's Clusters slice, or -1

	statsUpToDate bool
}

// NewCluster creates an empty cluster with the given label/index and a
// centroid pre-sized to dim positions (zeroed; the caller fills it in via
// SetCentroid before first use).
func NewCluster(label string, index, dim int) *Cluster {
	return &Cluster{
		Label:                 label,
		Index:                 index,
		ModellingCentroid:     make([]float64, dim),
		InitialCentroid:       make([]float64, dim),
		IntraInertiaByFeature: make(map[int][3]float64),
		NearestSibling:        -1,
	}
}

// SetCentroid copies centroid into both the modelling and initial centroid
// slots, matching every initialiser strategy's rule that "the centroid is
// always an Instance's feature vector, copied, not referenced" (§4.3).
func (c *Cluster) SetCentroid(centroid []float64) {
	cp := make([]float64, len(centroid))
	copy(cp, centroid)
	c.ModellingCentroid = cp
	init := make([]float64, len(centroid))
	copy(init, centroid)
	c.InitialCentroid = init
}

// Add appends an instance (by its index into the owning Clustering's
// instance slice) to the cluster's membership and marks stats stale.
func (c *Cluster) Add(instanceIdx int) {
	c.members = append(c.members, instanceIdx)
	c.statsUpToDate = false
}

// Remove drops instanceIdx from membership using swap-remove — order
// inside a cluster carries no meaning (§9) — and marks stats stale. It is
// a no-op if instanceIdx is not a member.
func (c *Cluster) Remove(instanceIdx int) {
	for i, m := range c.members {
		if m == instanceIdx {
			last := len(c.members) - 1
			c.members[i] = c.members[last]
			c.members = c.members[:last]
			c.statsUpToDate = false
			return
		}
	}
}

// Members returns the instance indices currently assigned to this cluster.
// The returned slice is owned by the cluster; callers must not mutate it.
func (c *Cluster) Members() []int {
	return c.members
}

// StatsUpToDate reports whether cached sums/inertias are known consistent
// with the current centroid and Frequency.
func (c *Cluster) StatsUpToDate() bool {
	return c.statsUpToDate
}

// MarkStale forces a future ComputeIterationStats/FinalizeStreamingStats
// call before the cached stats may be trusted again.
func (c *Cluster) MarkStale() {
	c.statsUpToDate = false
}

// ComputeIterationStats recomputes the centroid (mean, or median when
// useMedian), the raw per-norm distance sums, and the per-member-average
// IntraInertia (DistanceSum divided by Frequency) from current membership,
// per §4.7. It is the "mutation phase" half of the dirty-flag split
// described in DESIGN.md: callers run this once per Lloyd iteration for
// every cluster whose membership changed, then call FinalizeStreamingStats
// to derive the same per-member average from sums accumulated incrementally
// in mini-batch/scoring passes.
func (c *Cluster) ComputeIterationStats(instances []Instance, mask []int, norm DistanceNorm, useMedian bool) {
	c.Frequency = len(c.members)
	dim := len(c.ModellingCentroid)

	if c.Frequency == 0 {
		c.DistanceSum = [3]float64{}
		c.IntraInertia = [3]float64{}
		c.statsUpToDate = true
		return
	}

	newCentroid := make([]float64, dim)
	if useMedian {
		computeMedian(newCentroid, instances, c.members, mask)
	} else {
		computeMean(newCentroid, instances, c.members, mask)
	}
	c.ModellingCentroid = newCentroid

	var sumL1, sumL2, sumCos float64
	byFeature := make(map[int][3]float64, len(mask))
	for _, instIdx := range c.members {
		x := instances[instIdx].Values
		sumL1 += DistanceAllFeatures(DistanceL1, x, newCentroid, mask, noEarlyAbort)
		sumL2 += DistanceAllFeatures(DistanceL2, x, newCentroid, mask, noEarlyAbort)
		sumCos += DistanceAllFeatures(DistanceCosine, x, newCentroid, mask, noEarlyAbort)
		for _, idx := range mask {
			if idx == FeatureInactive {
				continue
			}
			entry := byFeature[idx]
			entry[DistanceL1] += DistanceSingleFeature(DistanceL1, x[idx], newCentroid[idx])
			entry[DistanceL2] += DistanceSingleFeature(DistanceL2, x[idx], newCentroid[idx])
			entry[DistanceCosine] += DistanceSingleFeature(DistanceCosine, x[idx], newCentroid[idx])
			byFeature[idx] = entry
		}
	}
	c.DistanceSum = [3]float64{sumL1, sumL2, sumCos}
	n := float64(c.Frequency)
	c.IntraInertia = [3]float64{sumL1 / n, sumL2 / n, sumCos / n}
	for idx, sums := range byFeature {
		byFeature[idx] = [3]float64{sums[DistanceL1] / n, sums[DistanceL2] / n, sums[DistanceCosine] / n}
	}
	c.IntraInertiaByFeature = byFeature
	c.statsUpToDate = true
}

// FinalizeStreamingStats divides accumulated sums by Frequency. It is used
// by MiniBatchEngine's final passes (§4.6) and by the second QualityScorer
// pass, both of which accumulate raw sums incrementally rather than via
// ComputeIterationStats's single sweep.
func (c *Cluster) FinalizeStreamingStats() {
	if c.Frequency == 0 {
		c.statsUpToDate = true
		return
	}
	for i := range c.IntraInertia {
		c.IntraInertia[i] = c.DistanceSum[i] / float64(c.Frequency)
	}
	c.statsUpToDate = true
}

// Clone deep-copies centroids and cached stats but not membership. It
// requires StatsUpToDate(); calling it on a dirty cluster is a programming
// error (§4.7) and returns an error rather than silently cloning stale data.
func (c *Cluster) Clone() (*Cluster, error) {
	if !c.statsUpToDate {
		return nil, fmt.Errorf("clustering: Clone called on a cluster whose stats are not up to date")
	}
	clone := &Cluster{
		Label:                 c.Label,
		Index:                 c.Index,
		ModellingCentroid:     append([]float64(nil), c.ModellingCentroid...),
		InitialCentroid:       append([]float64(nil), c.InitialCentroid...),
		EvaluationCentroid:    append([]float64(nil), c.EvaluationCentroid...),
		Frequency:             c.Frequency,
		DistanceSum:           c.DistanceSum,
		IntraInertia:          c.IntraInertia,
		InterInertia:          c.InterInertia,
		MajorityTargetIndex:   c.MajorityTargetIndex,
		MajorityTargetValue:   c.MajorityTargetValue,
		NearestSibling:        c.NearestSibling,
		statsUpToDate:         true,
		IntraInertiaByFeature: make(map[int][3]float64, len(c.IntraInertiaByFeature)),
	}
	for k, v := range c.IntraInertiaByFeature {
		clone.IntraInertiaByFeature[k] = v
	}
	if c.TargetProbabilities != nil {
		clone.TargetProbabilities = append([]float64(nil), c.TargetProbabilities...)
	}
	return clone, nil
}

func computeMean(dst []float64, instances []Instance, members []int, mask []int) {
	n := float64(len(members))
	for _, idx := range mask {
		if idx == FeatureInactive {
			continue
		}
		var sum float64
		for _, m := range members {
			sum += instances[m].Values[idx]
		}
		dst[idx] = sum / n
	}
}

func computeMedian(dst []float64, instances []Instance, members []int, mask []int) {
	col := make([]float64, len(members))
	for _, idx := range mask {
		if idx == FeatureInactive {
			continue
		}
		for i, m := range members {
			col[i] = instances[m].Values[idx]
		}
		dst[idx] = median(col)
	}
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
