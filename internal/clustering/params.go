package clustering

import "fmt"

// ClusteringType selects whether Parameters describes a K-Means run or a
// KNN-flavoured run (tolerant of clusters dropping below K, see
// Initialiser.Seed).
type ClusteringType int

const (
	ClusteringKMeans ClusteringType = iota
	ClusteringKNN
)

// DistanceNorm selects the geometry used by the DistanceKernel and every
// downstream centroid computation.
type DistanceNorm int

const (
	DistanceL1 DistanceNorm = iota
	DistanceL2
	DistanceCosine
)

func (d DistanceNorm) String() string {
	switch d {
	case DistanceL1:
		return "L1"
	case DistanceL2:
		return "L2"
	case DistanceCosine:
		return "Cosine"
	default:
		return "unknown"
	}
}

// CentroidKind selects whether a cluster's centroid is a virtual point (the
// mean, or median, of its members) or snapped to the nearest real instance.
type CentroidKind int

const (
	CentroidVirtual CentroidKind = iota
	CentroidRealInstance
)

// PreprocessingKind enumerates the recoding strategies recognised by the
// (external) preprocessing collaborator. The engine only records which one
// was used; it never applies them itself.
type PreprocessingKind int

const (
	PreprocessingUnused PreprocessingKind = iota
	PreprocessingNone
	PreprocessingRankNorm
	PreprocessingNormalise
	PreprocessingCenterReduce
	PreprocessingBasicGrouping
	PreprocessingBinarise
	PreprocessingConditionalInfo
	PreprocessingEntropy
	PreprocessingAuto
	PreprocessingSourceConditionalInfo
)

// InitMethod enumerates the eight centroid-seeding strategies of §4.3, plus
// Auto which resolves at validation time.
type InitMethod int

const (
	InitAuto InitMethod = iota
	InitRandom
	InitSample
	InitKMeansPlusPlus
	InitKMeansPlusPlusR
	InitRocchioThenSplit
	InitBisecting
	InitMinMaxRandom
	InitMinMaxDeterministic
	InitVariancePartitioning
	InitClassDecomposition
)

func (m InitMethod) requiresSupervision() bool {
	switch m {
	case InitKMeansPlusPlusR, InitRocchioThenSplit, InitClassDecomposition:
		return true
	default:
		return false
	}
}

// ReplicateChoice enumerates the criteria that may select the best
// replicate across n_replicates independent runs.
type ReplicateChoice int

const (
	ReplicateChoiceAuto ReplicateChoice = iota
	ReplicateChoiceDistance
	ReplicateChoiceEVA
	ReplicateChoiceARIByClusters
	ReplicateChoiceARIByClasses
	ReplicateChoiceVI
	ReplicateChoiceLEVA
	ReplicateChoiceDaviesBouldin
	ReplicateChoicePredictiveClustering
	ReplicateChoiceNMIByClusters
	ReplicateChoiceNMIByClasses
)

// PostOptimisationKind selects whether the greedy cluster-removal pass of
// §4.5 runs at all.
type PostOptimisationKind int

const (
	PostOptimisationNone PostOptimisationKind = iota
	PostOptimisationFast
)

// K_MAX is the compile-time cap on k_value referenced by §4.1's check-rules.
const K_MAX = 1000

// Parameters is the immutable configuration of one clustering run. It is
// built once (via DefaultParameters or a zero value plus field assignment) and
// never mutated afterward; any local override (e.g. a "run this quietly"
// flag used by a sub-clustering init strategy) is threaded explicitly as a
// plain function argument instead of being written back into Parameters.
type Parameters struct {
	// Clustering kind
	ClusteringType ClusteringType
	K              int
	MinKPostOpt    int

	// Geometry
	Distance DistanceNorm
	Centroid CentroidKind

	// Preprocessing hints, recorded only
	ContinuousPreprocessing PreprocessingKind
	CategoricalPreprocessing PreprocessingKind

	// Initialisation
	InitMethod InitMethod

	// Convergence. MaxIterations: -1 = skip the Lloyd loop entirely and
	// keep init-time centroids; 0 = unbounded; positive = hard cap.
	MaxIterations        int
	Epsilon              float64
	EpsilonMaxIterations int

	// Replicates
	NReplicates       int
	ReplicateChoice   ReplicateChoice
	PostOptimisation  PostOptimisationKind
	VNSLevel          int

	// Mini-batch
	MiniBatchMode bool
	MiniBatchSize int

	// Misc
	Supervised         bool
	Verbose            bool
	MainTargetModality string

	// Bookkeeping
	KMeansFeatureMask []int // INACTIVE (see FeatureInactive) or feature index
	RecodedToNative   map[string]string

	// Seed drives every source of randomness in a run (initialisers, VNS,
	// replicate shuffling) so a run is reproducible given identical inputs.
	Seed int64
}

// FeatureInactive is the sentinel KMeansFeatureMask entry meaning "this
// position is carried through but never used for distance computation".
const FeatureInactive = -1

// DefaultParameters returns a Parameters record with the engine's
// recommended defaults, mirroring the teacher's Default()/DefaultConfig()
// convention of returning a ready-to-validate baseline rather than a bare
// zero value.
func DefaultParameters() Parameters {
	return Parameters{
		ClusteringType:   ClusteringKMeans,
		K:                1,
		MinKPostOpt:      1,
		Distance:         DistanceL2,
		Centroid:         CentroidVirtual,
		InitMethod:       InitAuto,
		MaxIterations:    0,
		Epsilon:          1e-4,
		EpsilonMaxIterations: 3,
		NReplicates:      1,
		ReplicateChoice:  ReplicateChoiceAuto,
		PostOptimisation: PostOptimisationNone,
		VNSLevel:         0,
		MiniBatchSize:    1000,
		Seed:             42,
	}
}

// resolveInitMethod applies the Auto resolution rule: KMeans++R supervised,
// KMeans++ otherwise.
func (p Parameters) resolveInitMethod() InitMethod {
	if p.InitMethod != InitAuto {
		return p.InitMethod
	}
	if p.Supervised {
		return InitKMeansPlusPlusR
	}
	return InitKMeansPlusPlus
}

// resolveReplicateChoice applies the Auto resolution rule: ARIByClusters
// supervised, Distance otherwise.
func (p Parameters) resolveReplicateChoice() ReplicateChoice {
	if p.ReplicateChoice != ReplicateChoiceAuto {
		return p.ReplicateChoice
	}
	if p.Supervised {
		return ReplicateChoiceARIByClusters
	}
	return ReplicateChoiceDistance
}

// Validate applies every check-rule of §4.1. It never mutates p.
func (p Parameters) Validate() error {
	if p.K < 1 {
		return fmt.Errorf("%w: k_value must be >= 1, got %d", ErrInvalidParameters, p.K)
	}
	if p.K > K_MAX {
		return fmt.Errorf("%w: k_value %d exceeds K_MAX %d", ErrInvalidParameters, p.K, K_MAX)
	}
	if p.MinKPostOpt < 1 {
		return fmt.Errorf("%w: min_k_post_opt must be >= 1, got %d", ErrInvalidParameters, p.MinKPostOpt)
	}
	if p.NReplicates < 1 {
		return fmt.Errorf("%w: n_replicates must be >= 1, got %d", ErrInvalidParameters, p.NReplicates)
	}

	resolved := p.resolveInitMethod()
	if resolved.requiresSupervision() && !p.Supervised {
		return fmt.Errorf("%w: init method requires a supervised run", ErrInvalidParameters)
	}
	if (resolved == InitKMeansPlusPlusR || resolved == InitRocchioThenSplit || resolved == InitClassDecomposition) && p.K <= 1 {
		return fmt.Errorf("%w: init method requires k_value > 1", ErrInvalidParameters)
	}
	if p.MiniBatchMode && !p.Supervised && resolved.requiresSupervision() {
		return fmt.Errorf("%w: mini-batch with a supervised-only init method requires a target", ErrInvalidParameters)
	}
	if p.PostOptimisation != PostOptimisationNone && !p.Supervised {
		return fmt.Errorf("%w: post_optimisation requires a supervised run", ErrInvalidParameters)
	}
	if p.VNSLevel < 0 {
		return fmt.Errorf("%w: vns_level must be >= 0, got %d", ErrInvalidParameters, p.VNSLevel)
	}
	if p.MiniBatchMode && p.MiniBatchSize < 1 {
		return fmt.Errorf("%w: mini_batch_size must be >= 1, got %d", ErrInvalidParameters, p.MiniBatchSize)
	}
	return nil
}

// ActiveFeatures returns the feature indices that participate in distance
// computation, derived from KMeansFeatureMask.
func (p Parameters) ActiveFeatures() []int {
	active := make([]int, 0, len(p.KMeansFeatureMask))
	for _, idx := range p.KMeansFeatureMask {
		if idx != FeatureInactive {
			active = append(active, idx)
		}
	}
	return active
}
