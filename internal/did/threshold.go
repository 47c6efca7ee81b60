package did

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ThresholdPolicy selects the statistic that splits the regional
// treatment-intensity distribution into treated and control.
type ThresholdPolicy string

const (
	PolicyMedian ThresholdPolicy = "median"
	PolicyMean   ThresholdPolicy = "mean"
	PolicyP40    ThresholdPolicy = "p40"
	PolicyP60    ThresholdPolicy = "p60"
	PolicyP75    ThresholdPolicy = "p75"
)

// AllPolicies returns every supported policy in sweep order.
func AllPolicies() []ThresholdPolicy {
	return []ThresholdPolicy{PolicyMedian, PolicyMean, PolicyP40, PolicyP60, PolicyP75}
}

// Valid reports whether the policy is one of the supported values.
func (p ThresholdPolicy) Valid() bool {
	switch p {
	case PolicyMedian, PolicyMean, PolicyP40, PolicyP60, PolicyP75:
		return true
	}
	return false
}

// String returns the policy name.
func (p ThresholdPolicy) String() string {
	return string(p)
}

// ComputeThreshold evaluates the policy statistic over the regional
// intensity values. The policy is a pure parameter: every downstream
// specification consumes the resulting scalar the same way.
func ComputeThreshold(values []float64, policy ThresholdPolicy) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no intensity values", ErrInsufficientData)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite intensity value %v", v)
		}
	}

	switch policy {
	case PolicyMean:
		return stat.Mean(values, nil), nil
	case PolicyMedian:
		return percentile(values, 0.50), nil
	case PolicyP40:
		return percentile(values, 0.40), nil
	case PolicyP60:
		return percentile(values, 0.60), nil
	case PolicyP75:
		return percentile(values, 0.75), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// percentile returns the q-th quantile with linear interpolation between
// order statistics.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}

	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
