package clustering

import "math"

// noEarlyAbort disables the early_abort short-circuit in DistanceL1/DistanceL2.
const noEarlyAbort = math.MaxFloat64

// DistanceAllFeatures computes the distance between point and centroid over
// every active position named by mask, under the given norm. earlyAbort is
// honoured by L1 and L2 only (see §4.7); pass noEarlyAbort to disable it.
// When the running partial sum exceeds earlyAbort, the kernel stops
// accumulating and returns the partial sum — the caller must treat the
// result as "at least earlyAbort", never as the true distance.
func DistanceAllFeatures(norm DistanceNorm, point, centroid []float64, mask []int, earlyAbort float64) float64 {
	switch norm {
	case DistanceL1:
		return distanceL1(point, centroid, mask, earlyAbort)
	case DistanceL2:
		return distanceL2(point, centroid, mask, earlyAbort)
	case DistanceCosine:
		return distanceCosine(point, centroid, mask)
	default:
		return distanceL2(point, centroid, mask, earlyAbort)
	}
}

// DistanceSingleFeature computes the single-feature flavour of the kernel,
// used by Davies-Bouldin's per-feature variant (§4.4) and by
// VariancePartitioning's per-feature split (§4.3).
func DistanceSingleFeature(norm DistanceNorm, pointValue, centroidValue float64) float64 {
	switch norm {
	case DistanceL1:
		return math.Abs(pointValue - centroidValue)
	case DistanceL2:
		diff := pointValue - centroidValue
		return diff * diff
	case DistanceCosine:
		// A single coordinate carries no direction information; by
		// convention the per-feature cosine term is the squared
		// difference, consistent with L2's role as the fallback
		// geometry for single-feature restrictions.
		diff := pointValue - centroidValue
		return diff * diff
	default:
		diff := pointValue - centroidValue
		return diff * diff
	}
}

func distanceL1(point, centroid []float64, mask []int, earlyAbort float64) float64 {
	var sum float64
	for _, idx := range mask {
		if idx == FeatureInactive {
			continue
		}
		sum += math.Abs(point[idx] - centroid[idx])
		if sum > earlyAbort {
			return sum
		}
	}
	return sum
}

func distanceL2(point, centroid []float64, mask []int, earlyAbort float64) float64 {
	var sum float64
	for _, idx := range mask {
		if idx == FeatureInactive {
			continue
		}
		diff := point[idx] - centroid[idx]
		sum += diff * diff
		if sum > earlyAbort {
			return sum
		}
	}
	return sum
}

func distanceCosine(point, centroid []float64, mask []int) float64 {
	var dot, normA, normB float64
	for _, idx := range mask {
		if idx == FeatureInactive {
			continue
		}
		dot += point[idx] * centroid[idx]
		normA += point[idx] * point[idx]
		normB += centroid[idx] * centroid[idx]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - cos
}

// interClusterHalfDistance returns half the distance, under norm, between
// two centroids. For Cosine it is half of the raw 1-cos value; no square
// root is involved for any norm. For L1 this is the bound Elkan pruning
// compares against the current best distance; nearestCluster uses a
// quarter of the stored value for L2 and Cosine instead.
func interClusterHalfDistance(norm DistanceNorm, a, b []float64, mask []int) float64 {
	return DistanceAllFeatures(norm, a, b, mask, noEarlyAbort) / 2
}
