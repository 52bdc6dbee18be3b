package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Initialiser seeds K centroids before the iteration loop, per §4.3. Every
// strategy rejects as a hard failure the case where fewer than K instances
// have every active feature present.
type Initialiser struct {
	Rand *rand.Rand
	Log  Logger
}

// NewInitialiser builds an Initialiser whose randomness is driven
// exclusively by seed, so a run is reproducible given identical inputs.
func NewInitialiser(seed int64, log Logger) *Initialiser {
	return &Initialiser{Rand: rand.New(rand.NewSource(seed)), Log: log}
}

// Seed builds a Clustering with K populated clusters according to
// p.resolveInitMethod(), then assigns every instance to its nearest seed
// and drops empty clusters (§4.3's closing rule). In KNN mode dropping
// below K is tolerated as long as the remaining count is >= p.MinKPostOpt.
func (init *Initialiser) Seed(ctx context.Context, p Parameters, instances []Instance, mask []int, targetValues []string) (*Clustering, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	complete := completeIndices(instances, mask)
	if len(complete) < p.K {
		return nil, fmt.Errorf("%w: only %d instances have every active feature present, need >= %d", ErrDegenerateInit, len(complete), p.K)
	}

	cl := NewClustering(instances, mask, p.Distance)
	if len(targetValues) > 0 {
		cl.SetTargetValues(targetValues)
	}

	var seeds [][]float64
	var err error

	switch p.resolveInitMethod() {
	case InitRandom:
		seeds, err = init.seedRandom(instances, complete, mask, p.K)
	case InitSample:
		seeds, err = init.seedSample(ctx, p, instances, complete, mask)
	case InitKMeansPlusPlus:
		seeds, err = init.seedKMeansPlusPlus(instances, complete, mask, p.Distance, p.K)
	case InitKMeansPlusPlusR:
		seeds, err = init.seedKMeansPlusPlusR(instances, complete, mask, p.Distance, p.K, targetValues)
	case InitRocchioThenSplit:
		seeds, err = init.seedRocchioThenSplit(instances, complete, mask, p.Distance, p.K, targetValues)
	case InitBisecting:
		seeds, err = init.seedBisecting(ctx, instances, complete, mask, p.Distance, p.K)
	case InitMinMaxRandom:
		seeds, err = init.seedMinMax(instances, complete, mask, p.Distance, p.K, true)
	case InitMinMaxDeterministic:
		seeds, err = init.seedMinMax(instances, complete, mask, p.Distance, p.K, false)
	case InitVariancePartitioning:
		seeds, err = init.seedVariancePartitioning(instances, complete, mask, p.Distance, p.K)
	case InitClassDecomposition:
		seeds, err = init.seedClassDecomposition(instances, complete, mask, p.Distance, p.K, targetValues)
	default:
		seeds, err = init.seedKMeansPlusPlus(instances, complete, mask, p.Distance, p.K)
	}
	if err != nil {
		return nil, err
	}

	clusters := make([]*Cluster, len(seeds))
	for i, centroid := range seeds {
		c := NewCluster(fmt.Sprintf("cluster-%d", i), i, dimOf(instances))
		c.SetCentroid(centroid)
		clusters[i] = c
	}
	cl.SetClusters(clusters)

	assignAllToNearest(cl, clusters, p.Distance, mask)

	minSurvivors := p.K
	if p.ClusteringType == ClusteringKNN {
		minSurvivors = p.MinKPostOpt
	}
	if err := cl.DropEmptyClusters(minSurvivors); err != nil {
		return nil, err
	}
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(instances, mask, p.Distance, false)
	}
	cl.RecomputeTotalDistanceSum()
	if len(targetValues) > 0 {
		cl.ComputeTargetProbabilities()
	}
	return cl, nil
}

func completeIndices(instances []Instance, mask []int) []int {
	out := make([]int, 0, len(instances))
	for i, inst := range instances {
		if inst.HasCompleteFeatures(mask) {
			out = append(out, i)
		}
	}
	return out
}

func copyRow(instances []Instance, idx int) []float64 {
	return append([]float64(nil), instances[idx].Values...)
}

// assignAllToNearest assigns every instance (including ones missing a
// feature, which simply never move from unassigned) to its nearest
// cluster under norm, by exhaustive search — initial seeding does not
// need Elkan pruning, only correctness.
func assignAllToNearest(cl *Clustering, clusters []*Cluster, norm DistanceNorm, mask []int) {
	for instIdx, inst := range cl.instances {
		if !inst.HasCompleteFeatures(mask) {
			continue
		}
		best, bestDist := 0, DistanceAllFeatures(norm, inst.Values, clusters[0].ModellingCentroid, mask, noEarlyAbort)
		for j := 1; j < len(clusters); j++ {
			d := DistanceAllFeatures(norm, inst.Values, clusters[j].ModellingCentroid, mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		cl.Reassign(instIdx, best)
	}
}

// seedRandom samples K distinct instances uniformly from the complete
// rows without replacement, via a random permutation.
func (init *Initialiser) seedRandom(instances []Instance, complete []int, mask []int, k int) ([][]float64, error) {
	perm := init.Rand.Perm(len(complete))
	if k > len(perm) {
		return nil, fmt.Errorf("%w: cannot sample %d distinct instances from %d complete rows", ErrDegenerateInit, k, len(complete))
	}
	seeds := make([][]float64, k)
	for i := 0; i < k; i++ {
		seeds[i] = copyRow(instances, complete[perm[i]])
	}
	return seeds, nil
}

// seedSample runs Random init on a sub-sample of size
// x * (1/(2x))^0.23 (x = |instances|, floor bounded below by K), then a
// full convergence loop on that sub-sample, and returns the resulting
// centroids as the full-data run's seed.
func (init *Initialiser) seedSample(ctx context.Context, p Parameters, instances []Instance, complete []int, mask []int) ([][]float64, error) {
	x := float64(len(instances))
	size := int(x * pow(1/(2*x), 0.23))
	if size < p.K {
		size = p.K
	}
	if size > len(complete) {
		size = len(complete)
	}

	perm := init.Rand.Perm(len(complete))
	subIdx := make([]int, size)
	for i := 0; i < size; i++ {
		subIdx[i] = complete[perm[i]]
	}
	subInstances := make([]Instance, size)
	for i, idx := range subIdx {
		subInstances[i] = instances[idx]
	}

	subComplete := completeIndices(subInstances, mask)
	seeds, err := init.seedRandom(subInstances, subComplete, mask, p.K)
	if err != nil {
		return nil, err
	}

	subClusters := make([]*Cluster, len(seeds))
	for i, centroid := range seeds {
		c := NewCluster(fmt.Sprintf("sample-%d", i), i, dimOf(subInstances))
		c.SetCentroid(centroid)
		subClusters[i] = c
	}
	subCl := NewClustering(subInstances, mask, p.Distance)
	subCl.SetClusters(subClusters)
	assignAllToNearest(subCl, subClusters, p.Distance, mask)
	if err := subCl.DropEmptyClusters(1); err != nil {
		return nil, err
	}

	sub := &IterationEngine{Distance: p.Distance, MaxIterations: p.MaxIterations, Epsilon: p.Epsilon, EpsilonMaxIterations: p.EpsilonMaxIterations, Log: init.Log}
	if err := sub.Run(ctx, subCl); err != nil {
		return nil, err
	}

	out := make([][]float64, len(subCl.Clusters))
	for i, c := range subCl.Clusters {
		out[i] = append([]float64(nil), c.ModellingCentroid...)
	}
	if len(out) < p.K {
		return nil, fmt.Errorf("%w: sample sub-clustering converged to only %d clusters, need %d", ErrDegenerateInit, len(out), p.K)
	}
	return out, nil
}

func pow(base, exp float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Pow(base, exp)
}

// seedKMeansPlusPlus picks the first centre uniformly at random, then each
// subsequent centre with probability proportional to squared distance to
// its nearest already-chosen centre.
func (init *Initialiser) seedKMeansPlusPlus(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int) ([][]float64, error) {
	if k > len(complete) {
		return nil, fmt.Errorf("%w: cannot seed %d centres from %d complete rows", ErrDegenerateInit, k, len(complete))
	}
	seeds := make([][]float64, 0, k)
	first := complete[init.Rand.Intn(len(complete))]
	seeds = append(seeds, copyRow(instances, first))

	nearestDist := make([]float64, len(complete))
	for i, idx := range complete {
		nearestDist[i] = DistanceAllFeatures(norm, instances[idx].Values, seeds[0], mask, noEarlyAbort)
	}

	for len(seeds) < k {
		var total float64
		for _, d := range nearestDist {
			total += d * d
		}
		var chosen int
		if total == 0 {
			chosen = init.Rand.Intn(len(complete))
		} else {
			target := init.Rand.Float64() * total
			var cum float64
			for i, d := range nearestDist {
				cum += d * d
				if cum >= target {
					chosen = i
					break
				}
			}
		}
		newCentroid := copyRow(instances, complete[chosen])
		seeds = append(seeds, newCentroid)
		for i, idx := range complete {
			d := DistanceAllFeatures(norm, instances[idx].Values, newCentroid, mask, nearestDist[i])
			if d < nearestDist[i] {
				nearestDist[i] = d
			}
		}
	}
	return seeds, nil
}

// seedKMeansPlusPlusR builds one Rocchio cluster (mean centroid) per
// distinct target modality, then tops up with KMeans++-style centres
// until K are present.
func (init *Initialiser) seedKMeansPlusPlusR(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int, targetValues []string) ([][]float64, error) {
	if k <= len(targetValues) {
		if k < len(targetValues) {
			return nil, fmt.Errorf("%w: k_value %d is below the %d distinct target modalities", ErrInvalidParameters, k, len(targetValues))
		}
	}
	seeds := rocchioSeeds(instances, complete, mask, targetValues)
	if len(seeds) > k {
		return nil, fmt.Errorf("%w: k_value %d is below the %d distinct target modalities", ErrInvalidParameters, k, len(seeds))
	}

	nearestDist := make([]float64, len(complete))
	for i, idx := range complete {
		best := noEarlyAbort
		for _, s := range seeds {
			d := DistanceAllFeatures(norm, instances[idx].Values, s, mask, best)
			if d < best {
				best = d
			}
		}
		nearestDist[i] = best
	}

	for len(seeds) < k {
		var total float64
		for _, d := range nearestDist {
			total += d * d
		}
		var chosen int
		if total == 0 {
			chosen = init.Rand.Intn(len(complete))
		} else {
			target := init.Rand.Float64() * total
			var cum float64
			for i, d := range nearestDist {
				cum += d * d
				if cum >= target {
					chosen = i
					break
				}
			}
		}
		newCentroid := copyRow(instances, complete[chosen])
		seeds = append(seeds, newCentroid)
		for i, idx := range complete {
			d := DistanceAllFeatures(norm, instances[idx].Values, newCentroid, mask, nearestDist[i])
			if d < nearestDist[i] {
				nearestDist[i] = d
			}
		}
	}
	return seeds, nil
}

// rocchioSeeds returns the mean feature vector of every distinct target
// modality present among the complete rows, in targetValues order.
func rocchioSeeds(instances []Instance, complete []int, mask []int, targetValues []string) [][]float64 {
	dim := dimOf(instances)
	byTarget := make(map[string][]int, len(targetValues))
	for _, idx := range complete {
		t := instances[idx].Target
		byTarget[t] = append(byTarget[t], idx)
	}
	seeds := make([][]float64, 0, len(targetValues))
	for _, t := range targetValues {
		members := byTarget[t]
		if len(members) == 0 {
			continue
		}
		mean := make([]float64, dim)
		computeMean(mean, instances, members, mask)
		seeds = append(seeds, mean)
	}
	return seeds
}

// seedRocchioThenSplit builds the Rocchio clusters, then repeatedly splits
// the highest-intra-inertia cluster into two, using the member pair with
// maximum mutual distance as the new centres, until K centres exist.
func (init *Initialiser) seedRocchioThenSplit(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int, targetValues []string) ([][]float64, error) {
	seeds := rocchioSeeds(instances, complete, mask, targetValues)
	if len(seeds) > k {
		return nil, fmt.Errorf("%w: k_value %d is below the %d distinct target modalities", ErrInvalidParameters, k, len(seeds))
	}

	clusters := seedToWorkingClusters(instances, complete, mask, norm, seeds)

	for len(clusters) < k {
		worst := highestInertiaCluster(clusters)
		if worst == nil || len(worst.members) < 2 {
			break
		}
		a, b := farthestPairWithin(instances, worst.members, mask, norm)
		newA := NewCluster(fmt.Sprintf("split-%d", len(clusters)), len(clusters), dimOf(instances))
		newA.SetCentroid(copyRow(instances, a))
		newB := NewCluster(worst.Label, worst.Index, dimOf(instances))
		newB.SetCentroid(copyRow(instances, b))
		clusters[indexOfCluster(clusters, worst)] = newB
		clusters = append(clusters, newA)
		reassignMembersToNearestOfTwo(instances, worst.members, mask, norm, newA, newB)
	}

	out := make([][]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.ModellingCentroid
	}
	return out, nil
}

func seedToWorkingClusters(instances []Instance, complete []int, mask []int, norm DistanceNorm, seeds [][]float64) []*Cluster {
	clusters := make([]*Cluster, len(seeds))
	for i, s := range seeds {
		c := NewCluster(fmt.Sprintf("seed-%d", i), i, dimOf(instances))
		c.SetCentroid(s)
		clusters[i] = c
	}
	assignMembers(instances, complete, mask, norm, clusters)
	for _, c := range clusters {
		c.ComputeIterationStats(instances, mask, norm, false)
	}
	return clusters
}

func assignMembers(instances []Instance, complete []int, mask []int, norm DistanceNorm, clusters []*Cluster) {
	for _, idx := range complete {
		best, bestDist := 0, DistanceAllFeatures(norm, instances[idx].Values, clusters[0].ModellingCentroid, mask, noEarlyAbort)
		for j := 1; j < len(clusters); j++ {
			d := DistanceAllFeatures(norm, instances[idx].Values, clusters[j].ModellingCentroid, mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		clusters[best].Add(idx)
	}
}

func highestInertiaCluster(clusters []*Cluster) *Cluster {
	var worst *Cluster
	var worstSum float64
	for _, c := range clusters {
		sum := c.IntraInertia[0] + c.IntraInertia[1] + c.IntraInertia[2]
		if worst == nil || sum > worstSum {
			worst, worstSum = c, sum
		}
	}
	return worst
}

func indexOfCluster(clusters []*Cluster, target *Cluster) int {
	for i, c := range clusters {
		if c == target {
			return i
		}
	}
	return -1
}

func farthestPairWithin(instances []Instance, members []int, mask []int, norm DistanceNorm) (int, int) {
	bestA, bestB := members[0], members[0]
	bestDist := -1.0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := DistanceAllFeatures(norm, instances[members[i]].Values, instances[members[j]].Values, mask, noEarlyAbort)
			if d > bestDist {
				bestDist = d
				bestA, bestB = members[i], members[j]
			}
		}
	}
	return bestA, bestB
}

func reassignMembersToNearestOfTwo(instances []Instance, members []int, mask []int, norm DistanceNorm, a, b *Cluster) {
	for _, idx := range members {
		da := DistanceAllFeatures(norm, instances[idx].Values, a.ModellingCentroid, mask, noEarlyAbort)
		db := DistanceAllFeatures(norm, instances[idx].Values, b.ModellingCentroid, mask, da)
		if da <= db {
			a.Add(idx)
		} else {
			b.Add(idx)
		}
	}
	a.ComputeIterationStats(instances, mask, norm, false)
	b.ComputeIterationStats(instances, mask, norm, false)
}

// seedBisecting starts from a single cluster covering every complete row,
// then repeatedly splits the cluster with the largest intra-inertia via a
// 2-means sub-clustering on its members, until K clusters exist.
func (init *Initialiser) seedBisecting(ctx context.Context, instances []Instance, complete []int, mask []int, norm DistanceNorm, k int) ([][]float64, error) {
	root := NewCluster("bisect-root", 0, dimOf(instances))
	for _, idx := range complete {
		root.Add(idx)
	}
	root.ComputeIterationStats(instances, mask, norm, false)
	clusters := []*Cluster{root}

	for len(clusters) < k {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		worst := highestInertiaCluster(clusters)
		if worst == nil || len(worst.members) < 2 {
			break
		}
		a, b := init.twoMeans(instances, worst.members, mask, norm)
		newA := NewCluster(fmt.Sprintf("bisect-%d", len(clusters)), len(clusters), dimOf(instances))
		newA.SetCentroid(a.ModellingCentroid)
		newB := NewCluster(worst.Label, worst.Index, dimOf(instances))
		newB.SetCentroid(b.ModellingCentroid)
		for _, idx := range a.members {
			newA.Add(idx)
		}
		for _, idx := range b.members {
			newB.Add(idx)
		}
		newA.ComputeIterationStats(instances, mask, norm, false)
		newB.ComputeIterationStats(instances, mask, norm, false)
		clusters[indexOfCluster(clusters, worst)] = newB
		clusters = append(clusters, newA)
	}

	out := make([][]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.ModellingCentroid
	}
	return out, nil
}

// twoMeans runs a small bounded 2-means sub-clustering over members,
// seeded by the farthest pair within them.
func (init *Initialiser) twoMeans(instances []Instance, members []int, mask []int, norm DistanceNorm) (*Cluster, *Cluster) {
	aIdx, bIdx := farthestPairWithin(instances, members, mask, norm)
	a := NewCluster("sub-a", 0, dimOf(instances))
	a.SetCentroid(copyRow(instances, aIdx))
	b := NewCluster("sub-b", 1, dimOf(instances))
	b.SetCentroid(copyRow(instances, bIdx))

	const subReplicateIterations = 10
	for iter := 0; iter < subReplicateIterations; iter++ {
		a.members, b.members = nil, nil
		reassignMembersToNearestOfTwo(instances, members, mask, norm, a, b)
		if len(a.members) == 0 || len(b.members) == 0 {
			break
		}
	}
	return a, b
}

// seedMinMax picks its first centre randomly (Random variant) or as the
// data centroid's nearest complete row (Deterministic variant); every
// subsequent centre is the instance maximising distance to its nearest
// already-chosen centre.
func (init *Initialiser) seedMinMax(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int, random bool) ([][]float64, error) {
	if k > len(complete) {
		return nil, fmt.Errorf("%w: cannot seed %d centres from %d complete rows", ErrDegenerateInit, k, len(complete))
	}
	var first int
	if random {
		first = complete[init.Rand.Intn(len(complete))]
	} else {
		dataCentroid := make([]float64, dimOf(instances))
		computeMean(dataCentroid, instances, complete, mask)
		best, bestDist := complete[0], noEarlyAbort
		for _, idx := range complete {
			d := DistanceAllFeatures(norm, instances[idx].Values, dataCentroid, mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = idx
			}
		}
		first = best
	}

	seeds := [][]float64{copyRow(instances, first)}
	nearestDist := make([]float64, len(complete))
	for i, idx := range complete {
		nearestDist[i] = DistanceAllFeatures(norm, instances[idx].Values, seeds[0], mask, noEarlyAbort)
	}

	for len(seeds) < k {
		bestI, bestDist := 0, -1.0
		for i, d := range nearestDist {
			if d > bestDist {
				bestDist = d
				bestI = i
			}
		}
		newCentroid := copyRow(instances, complete[bestI])
		seeds = append(seeds, newCentroid)
		for i, idx := range complete {
			d := DistanceAllFeatures(norm, instances[idx].Values, newCentroid, mask, nearestDist[i])
			if d < nearestDist[i] {
				nearestDist[i] = d
			}
		}
	}
	return seeds, nil
}

// seedVariancePartitioning iteratively selects the cluster with highest
// intra-variance on its own highest-variance feature and splits it along
// that feature's median.
func (init *Initialiser) seedVariancePartitioning(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int) ([][]float64, error) {
	root := NewCluster("var-root", 0, dimOf(instances))
	for _, idx := range complete {
		root.Add(idx)
	}
	root.ComputeIterationStats(instances, mask, norm, false)
	clusters := []*Cluster{root}

	for len(clusters) < k {
		worst, feature := highestVarianceFeatureCluster(clusters, mask)
		if worst == nil || len(worst.members) < 2 {
			break
		}
		col := make([]float64, len(worst.members))
		for i, idx := range worst.members {
			col[i] = instances[idx].Values[feature]
		}
		m := median(col)

		low := NewCluster(fmt.Sprintf("var-%d", len(clusters)), len(clusters), dimOf(instances))
		high := NewCluster(worst.Label, worst.Index, dimOf(instances))
		for _, idx := range worst.members {
			if instances[idx].Values[feature] <= m {
				low.Add(idx)
			} else {
				high.Add(idx)
			}
		}
		if len(low.members) == 0 || len(high.members) == 0 {
			break
		}
		low.ComputeIterationStats(instances, mask, norm, false)
		high.ComputeIterationStats(instances, mask, norm, false)
		clusters[indexOfCluster(clusters, worst)] = high
		clusters = append(clusters, low)
	}

	out := make([][]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.ModellingCentroid
	}
	return out, nil
}

func highestVarianceFeatureCluster(clusters []*Cluster, mask []int) (*Cluster, int) {
	var worst *Cluster
	worstVar := -1.0
	worstFeature := 0
	for _, c := range clusters {
		for _, idx := range mask {
			if idx == FeatureInactive {
				continue
			}
			v := c.IntraInertiaByFeature[idx][DistanceL2]
			if v > worstVar {
				worstVar = v
				worst = c
				worstFeature = idx
			}
		}
	}
	return worst, worstFeature
}

// seedClassDecomposition runs an independent K-means inside every target
// modality, with each modality's share of K proportional to its
// frequency among the complete rows.
func (init *Initialiser) seedClassDecomposition(instances []Instance, complete []int, mask []int, norm DistanceNorm, k int, targetValues []string) ([][]float64, error) {
	byTarget := make(map[string][]int, len(targetValues))
	for _, idx := range complete {
		t := instances[idx].Target
		byTarget[t] = append(byTarget[t], idx)
	}

	shares := proportionalShares(targetValues, byTarget, k)

	var seeds [][]float64
	for _, t := range targetValues {
		members := byTarget[t]
		share := shares[t]
		if share <= 0 || len(members) == 0 {
			continue
		}
		if share > len(members) {
			share = len(members)
		}
		subInstances := make([]Instance, len(members))
		for i, idx := range members {
			subInstances[i] = instances[idx]
		}
		subComplete := completeIndices(subInstances, mask)
		sub, err := init.seedKMeansPlusPlus(subInstances, subComplete, mask, norm, share)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, sub...)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: class decomposition produced no seeds", ErrDegenerateInit)
	}
	return seeds, nil
}

// proportionalShares allocates K seeds across target modalities in
// proportion to each modality's frequency, guaranteeing every non-empty
// modality at least one seed. Shares above one are then trimmed, smallest
// remainder first, until the total is at most K; the total exceeds K only
// when there are more non-empty modalities than K.
func proportionalShares(targetValues []string, byTarget map[string][]int, k int) map[string]int {
	total := 0
	for _, m := range byTarget {
		total += len(m)
	}
	shares := make(map[string]int, len(targetValues))
	if total == 0 {
		return shares
	}
	assigned := 0
	type frac struct {
		t    string
		frac float64
	}
	remainders := make([]frac, 0, len(targetValues))
	for _, t := range targetValues {
		n := len(byTarget[t])
		if n == 0 {
			continue
		}
		raw := float64(k) * float64(n) / float64(total)
		share := int(raw)
		if share < 1 {
			share = 1
		}
		shares[t] = share
		assigned += share
		remainders = append(remainders, frac{t, raw - float64(share)})
	}
	sort.Slice(remainders, func(i, j int) bool { return remainders[i].frac > remainders[j].frac })
	for assigned > k {
		trimmed := false
		for i := len(remainders) - 1; i >= 0 && assigned > k; i-- {
			if t := remainders[i].t; shares[t] > 1 {
				shares[t]--
				assigned--
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}
	return shares
}
