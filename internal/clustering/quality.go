package clustering

import "math"

// QualityScorer computes the scalar criteria of §4.4 over a Clustering
// snapshot. Every method is a pure function of its arguments; none mutate
// cluster state.
type QualityScorer struct {
	Side QualitySideInputs
}

// NewQualityScorer builds a scorer with the given MODL cost collaborator,
// defaulting to DefaultQualitySideInputs when side is nil.
func NewQualityScorer(side QualitySideInputs) *QualityScorer {
	if side == nil {
		side = DefaultQualitySideInputs{}
	}
	return &QualityScorer{Side: side}
}

// Distance returns the average per-instance distance, under norm, to its
// cluster's modelling centroid.
func (q *QualityScorer) Distance(cl *Clustering, norm DistanceNorm) float64 {
	n := len(cl.instances)
	if n == 0 {
		return 0
	}
	var total float64
	for _, c := range cl.Clusters {
		total += c.DistanceSum[norm]
	}
	return total / float64(n)
}

// contingency builds n_{k,t}, the cluster-by-target count table, plus the
// row/column margins and N.
func contingency(cl *Clustering) (table [][]int, rowSum, colSum []int, n int) {
	k := len(cl.Clusters)
	t := len(cl.TargetValues)
	table = make([][]int, k)
	for i := range table {
		table[i] = make([]int, t)
	}
	rowSum = make([]int, k)
	colSum = make([]int, t)
	for ci, c := range cl.Clusters {
		for _, instIdx := range c.Members() {
			ti, ok := cl.targetIndex[cl.instances[instIdx].Target]
			if !ok {
				continue
			}
			table[ci][ti]++
			rowSum[ci]++
			colSum[ti]++
			n++
		}
	}
	return table, rowSum, colSum, n
}

// majorityContingency builds the same table but with clusters
// collapsed onto the target value each cluster's majority maps to —
// the partition ARI-by-clusters compares against the class partition.
func majorityContingency(cl *Clustering) (table [][]int, rowSum, colSum []int, n int) {
	t := len(cl.TargetValues)
	table = make([][]int, t)
	for i := range table {
		table[i] = make([]int, t)
	}
	rowSum = make([]int, t)
	colSum = make([]int, t)
	for _, c := range cl.Clusters {
		for _, instIdx := range c.Members() {
			ti, ok := cl.targetIndex[cl.instances[instIdx].Target]
			if !ok {
				continue
			}
			table[c.MajorityTargetIndex][ti]++
			rowSum[c.MajorityTargetIndex]++
			colSum[ti]++
			n++
		}
	}
	return table, rowSum, colSum, n
}

func choose2(x int) float64 {
	if x < 2 {
		return 0
	}
	return float64(x) * float64(x-1) / 2
}

// adjustedRandIndex is the Hubert-Arabie ARI over an arbitrary k-by-t
// contingency table.
func adjustedRandIndex(table [][]int, rowSum, colSum []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var sumComb float64
	for _, row := range table {
		for _, v := range row {
			sumComb += choose2(v)
		}
	}
	var rowComb, colComb float64
	for _, v := range rowSum {
		rowComb += choose2(v)
	}
	for _, v := range colSum {
		colComb += choose2(v)
	}
	totalComb := choose2(n)
	if totalComb == 0 {
		return 0
	}
	expected := rowComb * colComb / totalComb
	maxIdx := (rowComb + colComb) / 2
	denom := maxIdx - expected
	if denom == 0 {
		return 0
	}
	return (sumComb - expected) / denom
}

// ARIByClusters is the ARI between the clustering partition and the
// partition induced by each cluster's majority target.
func (q *QualityScorer) ARIByClusters(cl *Clustering) float64 {
	table, rowSum, colSum, n := majorityContingency(cl)
	return adjustedRandIndex(table, rowSum, colSum, n)
}

// ARIByClasses is the ARI between the clustering partition and the
// partition induced by actual target values.
func (q *QualityScorer) ARIByClasses(cl *Clustering) float64 {
	table, rowSum, colSum, n := contingency(cl)
	return adjustedRandIndex(table, rowSum, colSum, n)
}

func entropy(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		h -= p * math.Log(p)
	}
	return h
}

func mutualInformation(table [][]int, rowSum, colSum []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var mi float64
	nf := float64(n)
	for i, row := range table {
		for j, v := range row {
			if v == 0 {
				continue
			}
			pij := float64(v) / nf
			pi := float64(rowSum[i]) / nf
			pj := float64(colSum[j]) / nf
			mi += pij * math.Log(pij/(pi*pj))
		}
	}
	return mi
}

// NMIByClusters is the normalised mutual information between the
// clustering partition and the partition induced by cluster majorities,
// normalised by the entropy of that induced partition.
func (q *QualityScorer) NMIByClusters(cl *Clustering) float64 {
	table, rowSum, colSum, n := majorityContingency(cl)
	hc := entropy(rowSum, n)
	if hc == 0 {
		return 0
	}
	return mutualInformation(table, rowSum, colSum, n) / hc
}

// NMIByClasses is the normalised mutual information between the clustering
// partition and the actual target partition, normalised by class entropy.
func (q *QualityScorer) NMIByClasses(cl *Clustering) float64 {
	table, rowSum, colSum, n := contingency(cl)
	ht := entropy(colSum, n)
	if ht == 0 {
		return 0
	}
	return mutualInformation(table, rowSum, colSum, n) / ht
}

// VI is the Variation of Information between the clustering partition and
// the actual target partition: H(C) + H(T) - 2*I(C;T).
func (q *QualityScorer) VI(cl *Clustering) float64 {
	table, rowSum, colSum, n := contingency(cl)
	hc := entropy(rowSum, n)
	ht := entropy(colSum, n)
	mi := mutualInformation(table, rowSum, colSum, n)
	return hc + ht - 2*mi
}

// clusterFrequencies returns the per-cluster frequency table used as the
// MODL partition-granularity term's input.
func clusterFrequencies(cl *Clustering) []int {
	freq := make([]int, len(cl.Clusters))
	for i, c := range cl.Clusters {
		freq[i] = c.Frequency
	}
	return freq
}

// cost computes the three-term MODL-style description length of encoding
// the target distribution given a clustering into k groups: a
// construction term (choice of k), a partition-granularity term
// (DiscretisationCost over the cluster frequency table) and a data term
// (GroupingCost over the per-cluster target contingency, conditioned on
// each cluster's own size).
func (q *QualityScorer) cost(cl *Clustering) float64 {
	k := len(cl.Clusters)
	if k == 0 {
		return 0
	}
	construction := math.Log(float64(k))
	partition := q.Side.DiscretisationCost(clusterFrequencies(cl))
	var data float64
	nTargets := len(cl.TargetValues)
	for _, c := range cl.Clusters {
		row := make([]int, nTargets)
		for _, instIdx := range c.Members() {
			if t, ok := cl.targetIndex[cl.instances[instIdx].Target]; ok {
				row[t]++
			}
		}
		data += q.Side.GroupingCost(row, nTargets)
	}
	return construction + partition + data
}

// nullCost is cost({.}, T): the description length of the single-cluster
// partition, the EVA denominator.
func (q *QualityScorer) nullCost(cl *Clustering) float64 {
	nTargets := len(cl.TargetValues)
	row := make([]int, nTargets)
	for _, c := range cl.Clusters {
		for _, instIdx := range c.Members() {
			if t, ok := cl.targetIndex[cl.instances[instIdx].Target]; ok {
				row[t]++
			}
		}
	}
	return q.Side.GroupingCost(row, nTargets)
}

// EVA is the Bayesian criterion 1 - cost(C,T)/cost({.},T). Undefined (by
// convention, 0) when there is exactly one cluster.
func (q *QualityScorer) EVA(cl *Clustering) float64 {
	if len(cl.Clusters) <= 1 {
		return 0
	}
	null := q.nullCost(cl)
	if null == 0 {
		return 0
	}
	return 1 - q.cost(cl)/null
}

// LEVA is the per-cluster local variant of EVA: 1 minus the cluster's
// per-instance grouping cost over the single-cluster partition's
// per-instance null cost.
func (q *QualityScorer) LEVA(cl *Clustering) []float64 {
	n := len(cl.instances)
	out := make([]float64, len(cl.Clusters))
	if len(cl.Clusters) <= 1 || n == 0 {
		return out
	}
	nullPerInstance := q.nullCost(cl) / float64(n)
	nTargets := len(cl.TargetValues)
	for i, c := range cl.Clusters {
		if c.Frequency == 0 || nullPerInstance == 0 {
			continue
		}
		row := make([]int, nTargets)
		for _, instIdx := range c.Members() {
			if t, ok := cl.targetIndex[cl.instances[instIdx].Target]; ok {
				row[t]++
			}
		}
		localCost := q.Side.GroupingCost(row, nTargets) / float64(c.Frequency)
		out[i] = 1 - localCost/nullPerInstance
	}
	return out
}

// compactness is the similarity measure on majority-target agreement:
// the fraction of instances whose target equals their cluster's majority.
func compactness(cl *Clustering) float64 {
	n := len(cl.instances)
	if n == 0 {
		return 0
	}
	var agree int
	for _, c := range cl.Clusters {
		for _, instIdx := range c.Members() {
			if cl.instances[instIdx].Target == c.MajorityTargetValue {
				agree++
			}
		}
	}
	return float64(agree) / float64(n)
}

// PredictiveClustering is a weighted compromise between EVA and
// compactness.
func (q *QualityScorer) PredictiveClustering(cl *Clustering, evaWeight float64) float64 {
	return evaWeight*q.EVA(cl) + (1-evaWeight)*compactness(cl)
}

// DaviesBouldin is the standard DB index over chosen-norm intra-inertia
// and inter-centroid distances.
func (q *QualityScorer) DaviesBouldin(cl *Clustering, norm DistanceNorm) float64 {
	k := len(cl.Clusters)
	if k < 2 {
		return 0
	}
	var total float64
	for i, ci := range cl.Clusters {
		worst := 0.0
		for j, cj := range cl.Clusters {
			if i == j {
				continue
			}
			d := cl.InterCentroidDistance(i, j)
			if d == 0 {
				continue
			}
			r := (ci.IntraInertia[norm] + cj.IntraInertia[norm]) / d
			if r > worst {
				worst = r
			}
		}
		total += worst
	}
	return total / float64(k)
}

// DaviesBouldinFeature restricts the DB index to a single active feature,
// using IntraInertiaByFeature and a single-feature inter-centroid distance.
func (q *QualityScorer) DaviesBouldinFeature(cl *Clustering, norm DistanceNorm, feature int) float64 {
	k := len(cl.Clusters)
	if k < 2 {
		return 0
	}
	var total float64
	for i, ci := range cl.Clusters {
		worst := 0.0
		for j, cj := range cl.Clusters {
			if i == j {
				continue
			}
			d := DistanceSingleFeature(norm, ci.ModellingCentroid[feature], cj.ModellingCentroid[feature])
			if d == 0 {
				continue
			}
			r := (ci.IntraInertiaByFeature[feature][norm] + cj.IntraInertiaByFeature[feature][norm]) / d
			if r > worst {
				worst = r
			}
		}
		total += worst
	}
	return total / float64(k)
}

// modlPartitionCost is the closed-form MODL cost used by
// DefaultQualitySideInputs for both the discretisation and grouping
// terms: log of the number of ways to split N items among the observed
// groups (the standard MODL "choice of multinomial" prior), plus the
// per-group multinomial coding length of freqTable itself.
func modlPartitionCost(freqTable []int) float64 {
	var n int
	for _, f := range freqTable {
		n += f
	}
	if n == 0 {
		return 0
	}
	k := len(freqTable)
	cost := lnFactorial(n+k-1) - lnFactorial(k-1) - lnFactorial(n)
	for _, f := range freqTable {
		cost -= lnFactorial(f)
	}
	cost += lnFactorial(n)
	return cost
}

func lnFactorial(n int) float64 {
	if n <= 1 {
		return 0
	}
	return lnGammaOfIntPlus1(n)
}

func lnGammaOfIntPlus1(n int) float64 {
	g, _ := math.Lgamma(float64(n + 1))
	return g
}
