package rest

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

// TrainRequest is the JSON body of POST /v1/train. Enum fields are plain
// strings at the wire boundary — the teacher's generated protobuf enums
// are not available here (§10), so the boundary translation is hand-rolled
// the way the teacher's own REST handlers decode plain JSON request
// bodies before forwarding them.
type TrainRequest struct {
	KValue               int     `json:"k_value"`
	MinKPostOpt          int     `json:"min_k_post_opt,omitempty"`
	Distance             string  `json:"distance,omitempty"`              // "l1" | "l2" | "cosine", default "l2"
	InitMethod           string  `json:"init_method,omitempty"`           // default "auto"
	MaxIterations        int     `json:"max_iterations,omitempty"`
	Epsilon              float64 `json:"epsilon,omitempty"`
	EpsilonMaxIterations int     `json:"epsilon_max_iterations,omitempty"`
	NReplicates          int     `json:"n_replicates,omitempty"`
	ReplicateChoice      string  `json:"replicate_choice,omitempty"` // default "auto"
	PostOptimisation     string  `json:"post_optimisation,omitempty"`
	VNSLevel             int     `json:"vns_level,omitempty"`
	Supervised           bool    `json:"supervised,omitempty"`
	Seed                 int64   `json:"seed,omitempty"`

	MiniBatch     bool    `json:"mini_batch,omitempty"`
	MiniBatchSize int     `json:"mini_batch_size,omitempty"`
	BatchCount    int     `json:"batch_count,omitempty"`
	BatchPercent  float64 `json:"batch_percent,omitempty"`

	Instances [][]float64 `json:"instances"`
	Targets   []string    `json:"targets,omitempty"`
}

// toParameters builds a clustering.Parameters from the request,
// layering request fields over the service's configured training defaults.
// It does not itself call Validate — callers do that once, at submission.
func (req TrainRequest) toParameters(defaultMaxIter int, defaultEpsilon float64, defaultReplicates int) (clustering.Parameters, error) {
	p := clustering.DefaultParameters()
	p.K = req.KValue
	if req.MinKPostOpt > 0 {
		p.MinKPostOpt = req.MinKPostOpt
	}

	dist, err := parseDistance(req.Distance)
	if err != nil {
		return p, err
	}
	p.Distance = dist

	init, err := parseInitMethod(req.InitMethod)
	if err != nil {
		return p, err
	}
	p.InitMethod = init

	p.MaxIterations = defaultMaxIter
	if req.MaxIterations != 0 {
		p.MaxIterations = req.MaxIterations
	}
	p.Epsilon = defaultEpsilon
	if req.Epsilon != 0 {
		p.Epsilon = req.Epsilon
	}
	if req.EpsilonMaxIterations > 0 {
		p.EpsilonMaxIterations = req.EpsilonMaxIterations
	}

	p.NReplicates = defaultReplicates
	if req.NReplicates > 0 {
		p.NReplicates = req.NReplicates
	}

	choice, err := parseReplicateChoice(req.ReplicateChoice)
	if err != nil {
		return p, err
	}
	p.ReplicateChoice = choice

	post, err := parsePostOptimisation(req.PostOptimisation)
	if err != nil {
		return p, err
	}
	p.PostOptimisation = post

	p.VNSLevel = req.VNSLevel
	p.Supervised = req.Supervised
	if req.Seed != 0 {
		p.Seed = req.Seed
	}

	p.MiniBatchMode = req.MiniBatch
	if req.MiniBatchSize > 0 {
		p.MiniBatchSize = req.MiniBatchSize
	}

	dim := 0
	if len(req.Instances) > 0 {
		dim = len(req.Instances[0])
	}
	mask := make([]int, dim)
	for i := range mask {
		mask[i] = i
	}
	p.KMeansFeatureMask = mask

	return p, nil
}

func (req TrainRequest) toInstances() clustering.SliceSource {
	out := make(clustering.SliceSource, len(req.Instances))
	for i, values := range req.Instances {
		inst := clustering.Instance{ID: int64(i), Values: values}
		if i < len(req.Targets) {
			inst.Target = req.Targets[i]
		}
		out[i] = inst
	}
	return out
}

func distinctTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func parseDistance(s string) (clustering.DistanceNorm, error) {
	switch s {
	case "", "l2":
		return clustering.DistanceL2, nil
	case "l1":
		return clustering.DistanceL1, nil
	case "cosine":
		return clustering.DistanceCosine, nil
	default:
		return 0, fmt.Errorf("%w: unknown distance %q", clustering.ErrInvalidParameters, s)
	}
}

func parseInitMethod(s string) (clustering.InitMethod, error) {
	switch s {
	case "", "auto":
		return clustering.InitAuto, nil
	case "random":
		return clustering.InitRandom, nil
	case "sample":
		return clustering.InitSample, nil
	case "kmeans++":
		return clustering.InitKMeansPlusPlus, nil
	case "kmeans++r":
		return clustering.InitKMeansPlusPlusR, nil
	case "rocchio_then_split":
		return clustering.InitRocchioThenSplit, nil
	case "bisecting":
		return clustering.InitBisecting, nil
	case "minmax_random":
		return clustering.InitMinMaxRandom, nil
	case "minmax_deterministic":
		return clustering.InitMinMaxDeterministic, nil
	case "variance_partitioning":
		return clustering.InitVariancePartitioning, nil
	case "class_decomposition":
		return clustering.InitClassDecomposition, nil
	default:
		return 0, fmt.Errorf("%w: unknown init_method %q", clustering.ErrInvalidParameters, s)
	}
}

func parseReplicateChoice(s string) (clustering.ReplicateChoice, error) {
	switch s {
	case "", "auto":
		return clustering.ReplicateChoiceAuto, nil
	case "distance":
		return clustering.ReplicateChoiceDistance, nil
	case "eva":
		return clustering.ReplicateChoiceEVA, nil
	case "ari_by_clusters":
		return clustering.ReplicateChoiceARIByClusters, nil
	case "ari_by_classes":
		return clustering.ReplicateChoiceARIByClasses, nil
	case "vi":
		return clustering.ReplicateChoiceVI, nil
	case "leva":
		return clustering.ReplicateChoiceLEVA, nil
	case "davies_bouldin":
		return clustering.ReplicateChoiceDaviesBouldin, nil
	case "predictive_clustering":
		return clustering.ReplicateChoicePredictiveClustering, nil
	case "nmi_by_clusters":
		return clustering.ReplicateChoiceNMIByClusters, nil
	case "nmi_by_classes":
		return clustering.ReplicateChoiceNMIByClasses, nil
	default:
		return 0, fmt.Errorf("%w: unknown replicate_choice %q", clustering.ErrInvalidParameters, s)
	}
}

func parsePostOptimisation(s string) (clustering.PostOptimisationKind, error) {
	switch s {
	case "", "none":
		return clustering.PostOptimisationNone, nil
	case "fast":
		return clustering.PostOptimisationFast, nil
	default:
		return 0, fmt.Errorf("%w: unknown post_optimisation %q", clustering.ErrInvalidParameters, s)
	}
}

// ClusterSummary is one cluster's reported shape in a TrainResult response.
type ClusterSummary struct {
	Index               int       `json:"index"`
	Frequency           int       `json:"frequency"`
	Centroid            []float64 `json:"centroid"`
	MajorityTargetValue string    `json:"majority_target_value,omitempty"`
	TargetProbabilities []float64 `json:"target_probabilities,omitempty"`
}

// TrainResult is the JSON shape of a finished job's result.
type TrainResult struct {
	Iterations      int              `json:"iterations"`
	DroppedClusters int              `json:"dropped_clusters"`
	Score           float64          `json:"score"`
	Replicates      int              `json:"replicates"`
	Clusters        []ClusterSummary `json:"clusters"`
	ConfusionMatrix [][]int          `json:"confusion_matrix,omitempty"`
}

func toTrainResult(r *clustering.RunResult) TrainResult {
	out := TrainResult{
		Iterations:      r.Clustering.Iterations,
		DroppedClusters: r.Clustering.DroppedClusters,
		Score:           r.Score,
		Replicates:      r.Replicates,
		ConfusionMatrix: r.Clustering.ConfusionMatrix,
	}
	for _, c := range r.Clustering.Clusters {
		out.Clusters = append(out.Clusters, ClusterSummary{
			Index:                c.Index,
			Frequency:            c.Frequency,
			Centroid:             c.ModellingCentroid,
			MajorityTargetValue:  c.MajorityTargetValue,
			TargetProbabilities:  c.TargetProbabilities,
		})
	}
	return out
}

// JobStatusResponse is the JSON shape of GET /v1/train/{job_id}.
type JobStatusResponse struct {
	JobID     string       `json:"job_id"`
	State     JobState     `json:"state"`
	CreatedAt string       `json:"created_at"`
	StartedAt string       `json:"started_at,omitempty"`
	EndedAt   string       `json:"ended_at,omitempty"`
	Error     string       `json:"error,omitempty"`
	Result    *TrainResult `json:"result,omitempty"`
}
