package main

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

func parseDistance(s string) (clustering.DistanceNorm, error) {
	switch s {
	case "", "l2":
		return clustering.DistanceL2, nil
	case "l1":
		return clustering.DistanceL1, nil
	case "cosine":
		return clustering.DistanceCosine, nil
	default:
		return 0, fmt.Errorf("unknown -distance %q", s)
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
		return 0, fmt.Errorf("unknown -init %q", s)
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
		return 0, fmt.Errorf("unknown -replicate-choice %q", s)
	}
}

func parsePostOptimisation(s string) (clustering.PostOptimisationKind, error) {
	switch s {
	case "", "none":
		return clustering.PostOptimisationNone, nil
	case "fast":
		return clustering.PostOptimisationFast, nil
	default:
		return 0, fmt.Errorf("unknown -post-optimisation %q", s)
	}
}
