package estimator

import (
	"math"
)

// CIResult contains confidence interval metadata.
type CIResult struct {
	Estimate        float64 `json:"estimate"`
	StdError        float64 `json:"std_error"`
	ConfidenceLevel float64 `json:"confidence_level"`
	Lower           float64 `json:"ci_low"`
	Upper           float64 `json:"ci_high"`
	RelativeError   float64 `json:"relative_error"`
}

// ZScore returns z for a two-sided confidence level (e.g., 0.95 -> ~1.96).
// A level of 1 yields +Inf; levels outside [-1,1] yield NaN.
func ZScore(confidence float64) float64 {
	return math.Sqrt2 * math.Erfinv(confidence)
}

// SketchCI computes a normal-approximation interval around a cardinality
// estimate whose relative standard error is relStdError.
// The lower bound never drops below zero.
func SketchCI(estimate, relStdError, confidence float64) CIResult {
	se := estimate * relStdError
	z := ZScore(confidence)

	return CIResult{
		Estimate:        estimate,
		StdError:        se,
		ConfidenceLevel: confidence,
		Lower:           math.Max(0, estimate-z*se),
		Upper:           estimate + z*se,
		RelativeError:   relStdError,
	}
}

// RelativeDeviation is |approx - exact| / exact, or 0 when both are zero.
func RelativeDeviation(approx, exact float64) float64 {
	if exact == 0 {
		if approx == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(approx-exact) / math.Abs(exact)
}
