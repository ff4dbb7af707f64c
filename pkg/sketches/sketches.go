// Package sketches provides probabilistic data structures for approximate query processing
package sketches

// SketchType represents the type of sketch
type SketchType string

const (
	HyperLogLogType SketchType = "hyperloglog"
)

// EstimateResult contains the result of a sketch query
type EstimateResult struct {
	Estimate      float64 `json:"estimate"`
	StandardError float64 `json:"standard_error"`
	Confidence    float64 `json:"confidence,omitempty"`
	Lower         float64 `json:"ci_low"`
	Upper         float64 `json:"ci_high"`
	SketchType    string  `json:"sketch_type"`
	Registers     int     `json:"registers,omitempty"`
}
