// Package stats provides the robust statistics primitives used by the
// provenance engine: consensus aggregation, MAD/IQR outlier detection, and
// relative deviation. All functions are pure and total; degenerate inputs
// (too few points, zero spread) yield "no signal" results rather than errors.
package stats

import (
	"math"
	"sort"
)

// ConsensusMethod selects how a representative value is derived from
// multiple independent observations.
type ConsensusMethod string

const (
	MethodMedian ConsensusMethod = "median"
	MethodMean   ConsensusMethod = "mean"
	MethodMode   ConsensusMethod = "mode"
)

// madScale is the standard modified z-score constant relating MAD to the
// standard deviation of a normal distribution.
const madScale = 0.6745

// DefaultMADThreshold is the conventional modified z-score cutoff.
const DefaultMADThreshold = 3.0

// Consensus aggregates values into a single representative value. A single
// value is returned as-is for any method. Callers must not pass an empty
// slice.
func Consensus(values []float64, method ConsensusMethod) float64 {
	if len(values) == 1 {
		return values[0]
	}

	switch method {
	case MethodMean:
		return mean(values)
	case MethodMode:
		return mode(values)
	default:
		return median(values)
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the most frequent value; frequency ties resolve to the value
// encountered first in input order.
func mode(values []float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	best := values[0]
	bestCount := 0
	for _, v := range values {
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

// DetectOutliersMAD flags values whose modified z-score exceeds threshold in
// absolute value. Fewer than 3 values yields no outliers. When the median
// absolute deviation is zero (more than half the sample is identical) the
// z-score is unbounded, so any value differing from the median is flagged;
// an all-identical sample flags nothing.
func DetectOutliersMAD(values []float64, threshold float64) []int {
	if len(values) < 3 {
		return nil
	}

	med := median(values)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)

	var outliers []int
	if mad == 0 {
		for i, v := range values {
			if v != med {
				outliers = append(outliers, i)
			}
		}
		return outliers
	}

	for i, v := range values {
		score := madScale * (v - med) / mad
		if math.Abs(score) > threshold {
			outliers = append(outliers, i)
		}
	}
	return outliers
}

// DetectOutliersIQR flags values outside the Tukey fences
// [Q1 − 1.5·IQR, Q3 + 1.5·IQR]. Quartile positions truncate rather than
// interpolate. Fewer than 4 values yields no outliers.
func DetectOutliersIQR(values []float64) []int {
	if len(values) < 4 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := sorted[len(sorted)/4]
	q3 := sorted[(len(sorted)*3)/4]
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var outliers []int
	for i, v := range values {
		if v < lower || v > upper {
			outliers = append(outliers, i)
		}
	}
	return outliers
}

// RelativeDeviation returns |value − consensus| / consensus as a percentage.
// A zero consensus yields 0 rather than dividing by zero.
func RelativeDeviation(value, consensus float64) float64 {
	if consensus == 0 {
		return 0
	}
	return math.Abs(value-consensus) / consensus * 100
}
