package clustering

import (
	"context"
	"math"
)

// PostOptimiser runs the greedy cluster-removal descent of §4.5, engaged
// only in supervised mode after the best replicate has been chosen, plus
// an optional VNS restart shell.
type PostOptimiser struct {
	Distance DistanceNorm
	Scorer   *QualityScorer
	Rand     *randSource
	Log      Logger
}

// randSource is the narrow slice of *rand.Rand the post-optimiser needs;
// kept as a struct of function fields so VNS's random subset/shuffle steps
// are testable without a full PRNG.
type randSource struct {
	Intn  func(n int) int
	Perm  func(n int) []int
	Float func() float64
}

// NewPostOptimiser builds a PostOptimiser over the given scorer and
// randomness source.
func NewPostOptimiser(norm DistanceNorm, scorer *QualityScorer, rnd *randSource, log Logger) *PostOptimiser {
	return &PostOptimiser{Distance: norm, Scorer: scorer, Rand: rnd, Log: log}
}

// Run executes the greedy removal descent (always), then the VNS shell
// when vnsLevel > 0. It returns the best-overall Clustering observed
// across the entire descent, which may carry more than minKPostOpt
// clusters if the best EVA was seen earlier in the descent. The result's
// EVA is never worse than the starting replicate's EVA.
func (po *PostOptimiser) Run(ctx context.Context, cl *Clustering, minKPostOpt, vnsLevel int) (*Clustering, error) {
	best, bestEVA, err := po.greedyDescent(ctx, cl, minKPostOpt)
	if err != nil {
		return nil, err
	}
	if vnsLevel <= 0 {
		return best, nil
	}
	return po.vnsShell(ctx, best, bestEVA, minKPostOpt, vnsLevel)
}

// greedyDescent repeatedly removes the cluster whose hypothetical
// reassignment yields the largest EVA, stopping at minKPostOpt clusters
// or when no removal improves the best-overall EVA seen so far. It
// returns the best-overall Clustering (by EVA) and that EVA value.
func (po *PostOptimiser) greedyDescent(ctx context.Context, cl *Clustering, minKPostOpt int) (*Clustering, float64, error) {
	current := cl
	bestEVA := po.Scorer.EVA(current)
	best := current

	for len(current.Clusters) > minKPostOpt {
		if err := ctx.Err(); err != nil {
			return best, bestEVA, err
		}
		candidate, candidateEVA, improved := po.bestRemoval(current)
		if !improved || candidateEVA <= bestEVA {
			break
		}
		current = candidate
		if candidateEVA > bestEVA {
			bestEVA = candidateEVA
			best = current
		}
	}
	return best, bestEVA, nil
}

// bestRemoval tries removing each surviving cluster in turn, reassigning
// its members to their next-nearest surviving cluster, and returns the
// hypothetical result with the largest EVA.
func (po *PostOptimiser) bestRemoval(cl *Clustering) (*Clustering, float64, bool) {
	var best *Clustering
	bestEVA := math.Inf(-1)
	found := false

	for _, victim := range cl.Clusters {
		hypothetical := removeClusterAndReassign(cl, victim.Index, po.Distance)
		hypothetical.ComputeTargetProbabilities()
		eva := po.Scorer.EVA(hypothetical)
		if eva > bestEVA {
			bestEVA = eva
			best = hypothetical
			found = true
		}
	}
	return best, bestEVA, found
}

// removeClusterAndReassign builds a new Clustering with victimIdx removed
// and every one of its members reassigned to its next-nearest surviving
// cluster.
func removeClusterAndReassign(cl *Clustering, victimIdx int, norm DistanceNorm) *Clustering {
	survivors := make([]*Cluster, 0, len(cl.Clusters)-1)
	var victim *Cluster
	for _, c := range cl.Clusters {
		if c.Index == victimIdx {
			victim = c
			continue
		}
		clone, err := c.Clone()
		if err != nil {
			clone = c
		}
		clone.members = append([]int(nil), c.members...)
		survivors = append(survivors, clone)
	}
	for i, c := range survivors {
		c.Index = i
	}

	out := NewClustering(cl.instances, cl.mask, norm)
	out.SetTargetValues(cl.TargetValues)
	out.SetClusters(survivors)

	if victim != nil {
		for _, instIdx := range victim.members {
			best, bestDist := 0, DistanceAllFeatures(norm, cl.instances[instIdx].Values, survivors[0].ModellingCentroid, cl.mask, noEarlyAbort)
			for j := 1; j < len(survivors); j++ {
				d := DistanceAllFeatures(norm, cl.instances[instIdx].Values, survivors[j].ModellingCentroid, cl.mask, bestDist)
				if d < bestDist {
					bestDist = d
					best = j
				}
			}
			out.Reassign(instIdx, best)
		}
	}
	for _, c := range survivors {
		c.ComputeIterationStats(cl.instances, cl.mask, norm, false)
	}
	out.RecomputeTotalDistanceSum()
	return out
}

// vnsShell implements the variable-neighbourhood-search restart loop of
// §4.5: reseed a growing fraction of clusters from pooled, shuffled
// instances, re-run the greedy descent, and accept the result whenever it
// beats the best-so-far EVA.
func (po *PostOptimiser) vnsShell(ctx context.Context, cl *Clustering, bestEVA float64, minKPostOpt, vnsLevel int) (*Clustering, error) {
	n := len(cl.instances)
	maxLevel := vnsMaxLevel(n)
	if vnsLevel > maxLevel {
		if po.Log != nil {
			po.Log.Warn("post-optimisation vns level is set too high, resetting", map[string]interface{}{
				"requested": vnsLevel,
				"reset_to":  maxLevel,
			})
		}
		vnsLevel = maxLevel
	}
	kMax := kMaxForVNS(n, vnsLevel, maxLevel)
	maxDegree := 1 << uint(vnsLevel)

	current := cl
	degree := 1
	for degree < maxDegree {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		k := len(current.Clusters)
		subsetSize := ceilDiv(degree*k, maxDegree)
		if subsetSize < 1 {
			subsetSize = 1
		}
		if subsetSize > k {
			subsetSize = k
		}

		subset := po.Rand.Perm(k)[:subsetSize]
		pool := pooledMembers(current, subset)
		po.shuffle(pool)

		newCentreCount := ceilDiv(degree*len(pool), maxDegree)
		if newCentreCount < 1 {
			newCentreCount = 1
		}
		if newCentreCount > kMax {
			newCentreCount = kMax
		}
		if newCentreCount > len(pool) {
			newCentreCount = len(pool)
		}

		reseeded := reseedFromPool(current, subset, pool, newCentreCount, po.Distance)
		if err := reseeded.DropEmptyClusters(1); err != nil {
			degree++
			continue
		}
		for _, c := range reseeded.Clusters {
			c.ComputeIterationStats(reseeded.instances, reseeded.mask, po.Distance, false)
		}
		reseeded.RecomputeTotalDistanceSum()
		reseeded.ComputeTargetProbabilities()

		candidate, candidateEVA, err := po.greedyDescent(ctx, reseeded, minKPostOpt)
		if err != nil {
			return current, err
		}

		if candidateEVA > bestEVA {
			bestEVA = candidateEVA
			current = candidate
			degree = 1
		} else {
			degree++
		}
	}
	return current, nil
}

// vnsMaxLevel is the original's bound on how many VNS doublings make sense
// for N instances: round(ln(N) + 0.5).
func vnsMaxLevel(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Round(math.Log(float64(n)) + 0.5))
}

// kMaxForVNS reproduces the original PostOptimizeVns's KMax: a blend of
// KMaxZero = N/ln(N) toward N, weighted by the ratio of the geometric
// partial sum up to vnsLevel against the partial sum up to maxLevel —
// (2^vnsLevel-1)/(2^maxLevel-1) — so KMax grows from KMaxZero at level 0
// toward N as vnsLevel approaches maxLevel.
func kMaxForVNS(n, vnsLevel, maxLevel int) int {
	if n < 2 {
		return n
	}
	nf := float64(n)
	kMaxZero := nf / math.Log(nf)
	if maxLevel <= 0 {
		return int(kMaxZero)
	}
	numerator := math.Pow(2, float64(vnsLevel)) - 1
	denominator := math.Pow(2, float64(maxLevel)) - 1
	if denominator == 0 {
		return int(kMaxZero)
	}
	kMax := (numerator/denominator)*(nf-kMaxZero) + kMaxZero
	return int(kMax)
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

func pooledMembers(cl *Clustering, clusterIndices []int) []int {
	set := make(map[int]bool, len(clusterIndices))
	for _, i := range clusterIndices {
		set[i] = true
	}
	var pool []int
	for _, c := range cl.Clusters {
		if set[c.Index] {
			pool = append(pool, c.members...)
		}
	}
	return pool
}

func (po *PostOptimiser) shuffle(xs []int) {
	for i := len(xs) - 1; i > 0; i-- {
		j := po.Rand.Intn(i + 1)
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// reseedFromPool replaces the clusters named by reseedIdx with
// newCentreCount fresh clusters centred on the first newCentreCount
// shuffled pool members, keeping every other cluster unchanged, then
// reassigns the whole pool to its nearest of the new full cluster set.
func reseedFromPool(cl *Clustering, reseedIdx []int, pool []int, newCentreCount int, norm DistanceNorm) *Clustering {
	reseed := make(map[int]bool, len(reseedIdx))
	for _, i := range reseedIdx {
		reseed[i] = true
	}

	kept := make([]*Cluster, 0, len(cl.Clusters))
	for _, c := range cl.Clusters {
		if reseed[c.Index] {
			continue
		}
		clone, err := c.Clone()
		if err != nil {
			clone = c
		}
		clone.members = append([]int(nil), c.members...)
		kept = append(kept, clone)
	}
	fresh := make([]*Cluster, newCentreCount)
	for i := 0; i < newCentreCount; i++ {
		c := NewCluster("vns-seed", 0, dimOf(cl.instances))
		c.SetCentroid(copyRow(cl.instances, pool[i]))
		fresh[i] = c
	}
	all := append(kept, fresh...)
	for i, c := range all {
		c.Index = i
	}

	// kept clusters retain their original (non-pooled) membership as-is;
	// only pool instances — drawn solely from the reseeded clusters — need
	// reassignment below, so SetClusters can seed instanceToCluster from
	// kept clusters' membership untouched.
	out := NewClustering(cl.instances, cl.mask, norm)
	out.SetTargetValues(cl.TargetValues)
	out.SetClusters(all)

	for _, instIdx := range pool {
		best, bestDist := 0, DistanceAllFeatures(norm, cl.instances[instIdx].Values, all[0].ModellingCentroid, cl.mask, noEarlyAbort)
		for j := 1; j < len(all); j++ {
			d := DistanceAllFeatures(norm, cl.instances[instIdx].Values, all[j].ModellingCentroid, cl.mask, bestDist)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		out.Reassign(instIdx, best)
	}
	return out
}
