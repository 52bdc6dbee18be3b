package clustering

// Dictionary is the (external) metadata collaborator of §6: feature arity,
// per-feature type, the K-Means active/inactive mask, the recoded↔native
// name table, and an optional target-attribute index. The engine queries
// it but never modifies it.
type Dictionary interface {
	FeatureArity() int
	KMeansFeatureMask() []int
	TargetAttributeIndex() (int, bool)
	NativeName(recodedName string) (string, bool)
}

// MemoryOracle reports remaining available memory, consulted at row
// milestones inside mini-batch passes and before sizable allocations
// elsewhere in the engine (§5).
type MemoryOracle interface {
	RemainingAvailableMemory() int64
}

// UnboundedMemory is a MemoryOracle that never reports a breach; it is the
// default used when the caller supplies none.
type UnboundedMemory struct{}

func (UnboundedMemory) RemainingAvailableMemory() int64 {
	return int64(^uint64(0) >> 1) // math.MaxInt64, without importing math for one constant
}

// Logger is the structured-logging collaborator engine components emit
// diagnostics through. *observability.Logger satisfies it without this
// package importing observability directly.
type Logger interface {
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
}

// ProgressSink is the optional progress collaborator of §6. Both methods
// may be no-ops; NoopProgress supplies exactly that.
type ProgressSink interface {
	SetLabel(label string)
	SetProgress(percent float64)
}

// NoopProgress is a ProgressSink that discards every call.
type NoopProgress struct{}

func (NoopProgress) SetLabel(string)       {}
func (NoopProgress) SetProgress(float64)   {}

// QualitySideInputs are the pure MODL-style cost functions fed to the
// QualityScorer for EVA/LEVA (§6). They are implementation details of the
// (external) preprocessing collaborator; the engine only calls them.
type QualitySideInputs interface {
	// DiscretisationCost returns the MODL description length of encoding
	// a continuous partition whose per-cluster frequencies are freqTable.
	DiscretisationCost(freqTable []int) float64

	// GroupingCost returns the MODL description length of encoding a
	// categorical grouping over numDistinctValues modalities with the
	// given per-group frequency table.
	GroupingCost(freqTable []int, numDistinctValues int) float64
}

// DefaultQualitySideInputs is the closed-form MODL cost pair used when the
// caller does not supply its own preprocessing-derived collaborator. It
// implements the same three-term construction+partition+data shape
// described in §4.4 using a standard Bayesian/MDL prior over the number of
// groups, which is sufficient for EVA/LEVA to be well-defined and monotone
// without requiring the full preprocessing pipeline (explicitly out of
// scope per §1).
type DefaultQualitySideInputs struct{}

func (DefaultQualitySideInputs) DiscretisationCost(freqTable []int) float64 {
	return modlPartitionCost(freqTable)
}

func (DefaultQualitySideInputs) GroupingCost(freqTable []int, numDistinctValues int) float64 {
	return modlPartitionCost(freqTable)
}
