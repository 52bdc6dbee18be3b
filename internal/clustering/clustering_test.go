package clustering

import "testing"

func buildTestClustering(t *testing.T, seeds [][]float64, instances []Instance) *Clustering {
	t.Helper()
	mask := fullMask(2)
	cl := NewClustering(instances, mask, DistanceL2)
	clusters := make([]*Cluster, len(seeds))
	for i, s := range seeds {
		c := NewCluster("c", i, 2)
		c.SetCentroid(s)
		clusters[i] = c
	}
	cl.SetClusters(clusters)
	return cl
}

// TestRefreshInterCentroidMatrix_SymmetricZeroDiagonal checks the inter-
// centroid distance matrix is symmetric with a zero diagonal.
func TestRefreshInterCentroidMatrix_SymmetricZeroDiagonal(t *testing.T) {
	cl := buildTestClustering(t, [][]float64{{0, 0}, {1, 0}, {0, 1}}, nil)
	cl.RefreshInterCentroidMatrix()
	for i := 0; i < 3; i++ {
		if cl.InterCentroidDistance(i, i) != 0 {
			t.Errorf("diagonal (%d,%d) = %v, want 0", i, i, cl.InterCentroidDistance(i, i))
		}
		for j := 0; j < 3; j++ {
			if cl.InterCentroidDistance(i, j) != cl.InterCentroidDistance(j, i) {
				t.Errorf("matrix not symmetric at (%d,%d): %v vs %v", i, j, cl.InterCentroidDistance(i, j), cl.InterCentroidDistance(j, i))
			}
		}
	}
}

func TestRefreshInterCentroidMatrix_NearestSibling(t *testing.T) {
	cl := buildTestClustering(t, [][]float64{{0, 0}, {1, 0}, {10, 10}}, nil)
	cl.RefreshInterCentroidMatrix()
	if cl.Clusters[0].NearestSibling != 1 {
		t.Errorf("cluster 0's nearest sibling = %d, want 1", cl.Clusters[0].NearestSibling)
	}
	if cl.Clusters[1].NearestSibling != 0 {
		t.Errorf("cluster 1's nearest sibling = %d, want 0", cl.Clusters[1].NearestSibling)
	}
}

func TestReassign_UpdatesInstanceToClusterMap(t *testing.T) {
	instances := sampleInstances()
	cl := buildTestClustering(t, [][]float64{{0, 0}, {6, 0}}, instances)
	cl.Reassign(0, 0)
	cl.Reassign(1, 1)
	if idx, ok := cl.ClusterOf(1); !ok || idx != 1 {
		t.Errorf("ClusterOf(1) = (%d,%v), want (1,true)", idx, ok)
	}
	cl.Reassign(1, 0)
	if idx, ok := cl.ClusterOf(1); !ok || idx != 0 {
		t.Errorf("after reassign, ClusterOf(1) = (%d,%v), want (0,true)", idx, ok)
	}
	// the original cluster must no longer list it as a member
	for _, m := range cl.Clusters[1].Members() {
		if m == 1 {
			t.Error("instance 1 still a member of its former cluster after Reassign")
		}
	}
}

// TestDropEmptyClusters_CompactsIndices checks that empty clusters are
// dropped, DroppedClusters is incremented, and remaining indices compact.
func TestDropEmptyClusters_CompactsIndices(t *testing.T) {
	instances := sampleInstances()
	cl := buildTestClustering(t, [][]float64{{0, 0}, {2, 0}, {99, 99}, {4, 0}}, instances)
	cl.Reassign(0, 0)
	cl.Reassign(1, 1)
	cl.Reassign(2, 3)
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(instances, cl.mask, DistanceL2, false)
	}

	if err := cl.DropEmptyClusters(1); err != nil {
		t.Fatalf("DropEmptyClusters: %v", err)
	}
	if len(cl.Clusters) != 3 {
		t.Fatalf("len(Clusters) = %d, want 3", len(cl.Clusters))
	}
	if cl.DroppedClusters != 1 {
		t.Errorf("DroppedClusters = %d, want 1", cl.DroppedClusters)
	}
	for i, c := range cl.Clusters {
		if c.Index != i {
			t.Errorf("cluster at position %d has Index %d, want compacted index %d", i, c.Index, i)
		}
	}
}

func TestDropEmptyClusters_FailsBelowMinimum(t *testing.T) {
	instances := sampleInstances()
	cl := buildTestClustering(t, [][]float64{{0, 0}, {99, 99}}, instances)
	cl.Reassign(0, 0)
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(instances, cl.mask, DistanceL2, false)
	}
	if err := cl.DropEmptyClusters(2); err == nil {
		t.Error("expected an error when fewer than minSurvivors clusters remain")
	}
}

// TestComputeTargetProbabilities_Normalised checks target probabilities
// within a cluster sum to 1 and the majority target value is selected.
func TestComputeTargetProbabilities_Normalised(t *testing.T) {
	instances := []Instance{
		{ID: 0, Values: []float64{0, 0}, Target: "A"},
		{ID: 1, Values: []float64{0, 0}, Target: "A"},
		{ID: 2, Values: []float64{0, 0}, Target: "B"},
	}
	cl := buildTestClustering(t, [][]float64{{0, 0}}, instances)
	cl.SetTargetValues([]string{"A", "B"})
	cl.Reassign(0, 0)
	cl.Reassign(1, 0)
	cl.Reassign(2, 0)
	for _, c := range cl.Clusters {
		c.ComputeIterationStats(instances, cl.mask, DistanceL2, false)
	}
	cl.ComputeTargetProbabilities()

	c := cl.Clusters[0]
	var sum float64
	for _, p := range c.TargetProbabilities {
		sum += p
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("target probabilities sum to %v, want 1.0", sum)
	}
	if c.MajorityTargetValue != "A" {
		t.Errorf("majority target = %q, want A", c.MajorityTargetValue)
	}
}
