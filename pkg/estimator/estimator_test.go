package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZScore(t *testing.T) {
	require.InDelta(t, 1.645, ZScore(0.90), 1e-3)
	require.InDelta(t, 1.960, ZScore(0.95), 1e-3)
	require.InDelta(t, 2.576, ZScore(0.99), 1e-3)
	require.InDelta(t, 1.282, ZScore(0.80), 1e-3)
	require.True(t, math.IsInf(ZScore(1), 1))
	require.True(t, math.IsNaN(ZScore(1.5)))
}

func TestSketchCIWidthFollowsConfidence(t *testing.T) {
	var (
		narrow = SketchCI(1000, 0.01, 0.80)
		wide   = SketchCI(1000, 0.01, 0.95)
	)

	require.Equal(t, 0.80, narrow.ConfidenceLevel)
	require.Greater(t, narrow.Lower, wide.Lower)
	require.Less(t, narrow.Upper, wide.Upper)
	require.InDelta(t, 1000+12.815515655446004, narrow.Upper, 1e-6)
}

func TestSketchCI(t *testing.T) {
	ci := SketchCI(1000, 0.01, 0.95)

	require.Equal(t, 1000.0, ci.Estimate)
	require.InDelta(t, 10.0, ci.StdError, 1e-9)
	require.InDelta(t, 1000-19.59963984540054, ci.Lower, 1e-6)
	require.InDelta(t, 1000+19.59963984540054, ci.Upper, 1e-6)
	require.Equal(t, 0.01, ci.RelativeError)
}

func TestSketchCIEmpty(t *testing.T) {
	ci := SketchCI(0, 0.0057, 0.99)
	require.Equal(t, 0.0, ci.Lower)
	require.Equal(t, 0.0, ci.Upper)
}

func TestRelativeDeviation(t *testing.T) {
	require.Equal(t, 0.0, RelativeDeviation(0, 0))
	require.True(t, math.IsInf(RelativeDeviation(1, 0), 1))
	require.InDelta(t, 0.05, RelativeDeviation(950, 1000), 1e-12)
	require.InDelta(t, 0.05, RelativeDeviation(1050, 1000), 1e-12)
}
