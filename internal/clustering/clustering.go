package clustering

import "fmt"

// Clustering is the aggregate root of one replicate: its Clusters slice,
// the global cluster, the inter-centroid distance matrix, and per-run
// bookkeeping. Clusters are owned by exactly one Clustering; an
// instance→cluster map is kept here (not inside Cluster) per DESIGN.md's
// "cluster-as-dictionary-of-instances" re-architecture note.
type Clustering struct {
	Clusters []*Cluster
	Global   *Cluster // aggregates all instances; centroid = data centroid

	instances []Instance
	mask      []int
	norm      DistanceNorm

	// interCentroid is a single contiguous K*K row-major buffer, rebuilt
	// whole on RefreshInterCentroidMatrix (§9: never incrementally patched).
	interCentroid []float64
	k             int

	instanceToCluster map[int]int // instance slice index -> cluster index; full-memory training only

	TotalDistanceSum [3]float64

	TargetValues   []string // distinct target symbols, main modality first
	targetIndex    map[string]int

	DroppedClusters int
	Iterations      int

	ConfusionMatrix [][]int // [predictedMajorityIdx][actualTargetIdx], supervised only
}

// NewClustering builds an empty Clustering over instances, ready for the
// Initialiser to populate Clusters.
func NewClustering(instances []Instance, mask []int, norm DistanceNorm) *Clustering {
	cl := &Clustering{
		instances:         instances,
		mask:              mask,
		norm:              norm,
		instanceToCluster: make(map[int]int, len(instances)),
	}
	cl.Global = NewCluster("global", -1, dimOf(instances))
	for i := range instances {
		cl.Global.Add(i)
	}
	cl.Global.ComputeIterationStats(instances, mask, norm, false)
	return cl
}

func dimOf(instances []Instance) int {
	if len(instances) == 0 {
		return 0
	}
	return len(instances[0].Values)
}

// SetClusters installs the given clusters as the Clustering's partition,
// (re)building the instance->cluster map from their current membership.
func (cl *Clustering) SetClusters(clusters []*Cluster) {
	cl.Clusters = clusters
	cl.k = len(clusters)
	cl.instanceToCluster = make(map[int]int, len(cl.instances))
	for _, c := range clusters {
		for _, instIdx := range c.Members() {
			cl.instanceToCluster[instIdx] = c.Index
		}
	}
}

// ClusterOf returns the cluster index currently owning instance idx, or
// false if idx has not been assigned (e.g. it was missing a feature).
func (cl *Clustering) ClusterOf(idx int) (int, bool) {
	c, ok := cl.instanceToCluster[idx]
	return c, ok
}

// Reassign moves instance idx from its current cluster (if any) to
// cluster toIdx, keeping the instance->cluster map consistent.
func (cl *Clustering) Reassign(idx, toIdx int) {
	if from, ok := cl.instanceToCluster[idx]; ok {
		if from == toIdx {
			return
		}
		cl.Clusters[from].Remove(idx)
	}
	cl.Clusters[toIdx].Add(idx)
	cl.instanceToCluster[idx] = toIdx
}

// RefreshInterCentroidMatrix rebuilds the symmetric K*K distance matrix and
// each cluster's NearestSibling pointer (§4.2 step 1, §9: rebuilt whole).
func (cl *Clustering) RefreshInterCentroidMatrix() {
	k := len(cl.Clusters)
	cl.k = k
	if cap(cl.interCentroid) < k*k {
		cl.interCentroid = make([]float64, k*k)
	} else {
		cl.interCentroid = cl.interCentroid[:k*k]
		for i := range cl.interCentroid {
			cl.interCentroid[i] = 0
		}
	}

	for i := 0; i < k; i++ {
		best := -1
		bestDist := 0.0
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			var d float64
			if j < i {
				d = cl.interCentroid[j*k+i] // symmetric, already computed
			} else {
				d = DistanceAllFeatures(cl.norm, cl.Clusters[i].ModellingCentroid, cl.Clusters[j].ModellingCentroid, cl.mask, noEarlyAbort)
			}
			cl.interCentroid[i*k+j] = d
			if best == -1 || d < bestDist {
				best = j
				bestDist = d
			}
		}
		cl.Clusters[i].NearestSibling = best
	}
}

// InterCentroidDistance returns the (i,j) entry of the inter-centroid
// matrix; it is symmetric and zero on the diagonal (I6).
func (cl *Clustering) InterCentroidDistance(i, j int) float64 {
	return cl.interCentroid[i*cl.k+j]
}

// Instances returns the instance slice this Clustering was built over.
func (cl *Clustering) Instances() []Instance {
	return cl.instances
}

// Mask returns the active-feature mask this Clustering was built with.
func (cl *Clustering) Mask() []int {
	return cl.mask
}

// Norm returns the distance norm this Clustering was built with.
func (cl *Clustering) Norm() DistanceNorm {
	return cl.norm
}

// RecomputeTotalDistanceSum sums every cluster's per-norm DistanceSum,
// feeding the D_new quantity of §4.2 step 4.
func (cl *Clustering) RecomputeTotalDistanceSum() {
	var total [3]float64
	for _, c := range cl.Clusters {
		for n := 0; n < 3; n++ {
			total[n] += c.DistanceSum[n]
		}
	}
	cl.TotalDistanceSum = total
}

// SetTargetValues installs the distinct target symbols, main modality
// first, and rebuilds the symbol->index map. It does not compute target
// probabilities; call ComputeTargetProbabilities for that. Supervised runs
// only.
func (cl *Clustering) SetTargetValues(values []string) {
	cl.TargetValues = values
	cl.targetIndex = make(map[string]int, len(values))
	for i, v := range values {
		cl.targetIndex[v] = i
	}
}

// TargetIndexOf returns the index of a target symbol in TargetValues.
func (cl *Clustering) TargetIndexOf(target string) (int, bool) {
	i, ok := cl.targetIndex[target]
	return i, ok
}

// ComputeTargetProbabilities fills each cluster's TargetProbabilities,
// MajorityTargetIndex and MajorityTargetValue from current membership.
// Probabilities sum to 1.0 whenever Frequency > 0.
func (cl *Clustering) ComputeTargetProbabilities() {
	nTargets := len(cl.TargetValues)
	for _, c := range cl.Clusters {
		probs := make([]float64, nTargets)
		for _, instIdx := range c.Members() {
			if t, ok := cl.targetIndex[cl.instances[instIdx].Target]; ok {
				probs[t]++
			}
		}
		if c.Frequency > 0 {
			for i := range probs {
				probs[i] /= float64(c.Frequency)
			}
		}
		c.TargetProbabilities = probs
		best, bestV := 0, -1.0
		for i, p := range probs {
			if p > bestV {
				best, bestV = i, p
			}
		}
		c.MajorityTargetIndex = best
		if nTargets > 0 {
			c.MajorityTargetValue = cl.TargetValues[best]
		}
	}
}

// ComputeConfusionMatrix fills ConfusionMatrix[predictedMajority][actual]
// from current cluster majority targets and membership. Supervised only.
func (cl *Clustering) ComputeConfusionMatrix() {
	n := len(cl.TargetValues)
	matrix := make([][]int, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
	}
	for _, c := range cl.Clusters {
		for _, instIdx := range c.Members() {
			actual, ok := cl.targetIndex[cl.instances[instIdx].Target]
			if !ok {
				continue
			}
			matrix[c.MajorityTargetIndex][actual]++
		}
	}
	cl.ConfusionMatrix = matrix
}

// DropEmptyClusters removes every cluster with no members, compacting
// indices and incrementing DroppedClusters. It returns an error if fewer
// than minSurvivors clusters would remain.
func (cl *Clustering) DropEmptyClusters(minSurvivors int) error {
	survivors := make([]*Cluster, 0, len(cl.Clusters))
	for _, c := range cl.Clusters {
		if len(c.Members()) > 0 {
			survivors = append(survivors, c)
		} else {
			cl.DroppedClusters++
		}
	}
	if len(survivors) < minSurvivors {
		return fmt.Errorf("%w: only %d clusters survived, need at least %d", ErrDegenerateInit, len(survivors), minSurvivors)
	}
	for i, c := range survivors {
		c.Index = i
	}
	cl.SetClusters(survivors)
	return nil
}
