package clustering

import "testing"

func sampleInstances() []Instance {
	return []Instance{
		{ID: 0, Values: []float64{0, 0}},
		{ID: 1, Values: []float64{2, 0}},
		{ID: 2, Values: []float64{4, 0}},
		{ID: 3, Values: []float64{6, 0}},
	}
}

// TestComputeIterationStats_CentroidIsMean checks that after
// ComputeIterationStats, each active-feature position of a cluster's
// centroid equals the arithmetic mean over its members at that position.
func TestComputeIterationStats_CentroidIsMean(t *testing.T) {
	instances := sampleInstances()
	mask := fullMask(2)
	c := NewCluster("c0", 0, 2)
	c.Add(0)
	c.Add(1)
	c.Add(2)
	c.Add(3)
	c.ComputeIterationStats(instances, mask, DistanceL2, false)

	wantX := (0.0 + 2.0 + 4.0 + 6.0) / 4
	if c.ModellingCentroid[0] != wantX {
		t.Errorf("centroid[0] = %v, want mean %v", c.ModellingCentroid[0], wantX)
	}
	if c.ModellingCentroid[1] != 0 {
		t.Errorf("centroid[1] = %v, want 0", c.ModellingCentroid[1])
	}
	if !c.StatsUpToDate() {
		t.Error("expected stats up to date after ComputeIterationStats")
	}
	if c.Frequency != 4 {
		t.Errorf("Frequency = %d, want 4", c.Frequency)
	}
}

func TestComputeIterationStats_EmptyClusterZeroesStats(t *testing.T) {
	instances := sampleInstances()
	mask := fullMask(2)
	c := NewCluster("c0", 0, 2)
	c.ComputeIterationStats(instances, mask, DistanceL2, false)
	if c.Frequency != 0 {
		t.Errorf("Frequency = %d, want 0", c.Frequency)
	}
	if !c.StatsUpToDate() {
		t.Error("an empty cluster's stats should still be marked up to date")
	}
}

func TestAddRemove_MarksStale(t *testing.T) {
	c := NewCluster("c0", 0, 2)
	c.ComputeIterationStats(nil, nil, DistanceL2, false)
	if !c.StatsUpToDate() {
		t.Fatal("setup: expected stats up to date")
	}
	c.Add(3)
	if c.StatsUpToDate() {
		t.Error("Add must mark stats stale")
	}
	c.ComputeIterationStats(sampleInstances(), fullMask(2), DistanceL2, false)
	c.Remove(3)
	if c.StatsUpToDate() {
		t.Error("Remove must mark stats stale")
	}
}

func TestRemove_SwapRemoveDropsExactlyOneMember(t *testing.T) {
	c := NewCluster("c0", 0, 2)
	c.Add(0)
	c.Add(1)
	c.Add(2)
	c.Remove(1)
	members := c.Members()
	if len(members) != 2 {
		t.Fatalf("len(members) = %d, want 2", len(members))
	}
	for _, m := range members {
		if m == 1 {
			t.Error("member 1 was not removed")
		}
	}
}

// TestClone_RequiresStatsUpToDate exercises §4.7's "Clone requires
// stats_up_to_date == true" rule.
func TestClone_RequiresStatsUpToDate(t *testing.T) {
	c := NewCluster("c0", 0, 2)
	c.Add(0)
	if _, err := c.Clone(); err == nil {
		t.Error("Clone on a dirty cluster should return an error")
	}
	c.ComputeIterationStats(sampleInstances(), fullMask(2), DistanceL2, false)
	clone, err := c.Clone()
	if err != nil {
		t.Fatalf("Clone on a clean cluster returned an error: %v", err)
	}
	if clone.Frequency != c.Frequency {
		t.Errorf("clone Frequency = %d, want %d", clone.Frequency, c.Frequency)
	}
	if len(clone.Members()) != 0 {
		t.Error("Clone must not copy membership")
	}
}

// TestFinalizeStreamingStats_Idempotent checks that cloning a cluster with
// stats_up_to_date, then calling FinalizeStreamingStats again, is a no-op
// up to floating tolerance — DistanceSum (the accumulated raw sums a
// streaming pass builds up) is untouched by finalisation, so dividing
// through by Frequency a second time reproduces the same IntraInertia.
func TestFinalizeStreamingStats_Idempotent(t *testing.T) {
	c := NewCluster("c0", 0, 2)
	c.DistanceSum = [3]float64{10, 20, 0.5}
	c.Frequency = 4
	c.FinalizeStreamingStats()
	firstPass := c.IntraInertia

	clone, err := c.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	clone.FinalizeStreamingStats()
	for i := range firstPass {
		if clone.IntraInertia[i] != firstPass[i] {
			t.Errorf("IntraInertia[%d] = %v after re-finalising, want unchanged %v", i, clone.IntraInertia[i], firstPass[i])
		}
	}
}

// TestComputeIterationStatsThenFinalize_Idempotent checks that a cluster
// whose stats came from ComputeIterationStats (the main Lloyd-loop path, as
// opposed to streaming accumulation) behaves identically to one finalised
// directly: cloning it and calling FinalizeStreamingStats again must not
// change IntraInertia, since both paths converge on DistanceSum/Frequency.
func TestComputeIterationStatsThenFinalize_Idempotent(t *testing.T) {
	instances := sampleInstances()
	c := NewCluster("c0", 0, 2)
	c.Add(0)
	c.Add(1)
	c.Add(2)
	c.Add(3)
	c.ComputeIterationStats(instances, fullMask(2), DistanceL2, false)
	firstPass := c.IntraInertia

	clone, err := c.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	clone.FinalizeStreamingStats()
	for i := range firstPass {
		if clone.IntraInertia[i] != firstPass[i] {
			t.Errorf("IntraInertia[%d] = %v after re-finalising, want unchanged %v", i, clone.IntraInertia[i], firstPass[i])
		}
	}
}

func TestSetCentroid_CopiesNotReferences(t *testing.T) {
	c := NewCluster("c0", 0, 2)
	src := []float64{1, 2}
	c.SetCentroid(src)
	src[0] = 999
	if c.ModellingCentroid[0] == 999 {
		t.Error("SetCentroid must copy, not alias, the source slice")
	}
	if c.InitialCentroid[0] == 999 {
		t.Error("SetCentroid must copy into InitialCentroid too")
	}
}
