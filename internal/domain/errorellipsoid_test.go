package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisAlignedResiduals builds a well-conditioned design: two unit rows per
// coordinate axis, so the SVD is diagonal and every singular value equals
// sqrt(2).
func axisAlignedResiduals() []WeightedResidual {
	var out []WeightedResidual
	for k := 0; k < 3; k++ {
		var design [3]float64
		design[k] = 1
		out = append(out, wr(0.1, 1, design), wr(-0.1, 1, design))
	}
	return out
}

func TestNewErrorEllipsoid_AxisAlignedDesign(t *testing.T) {
	hypo := NewHypocenter(0, 36.0, -118.0, 15.0)
	ee, err := NewErrorEllipsoid(axisAlignedResiduals(), 0.04, hypo)
	require.NoError(t, err)

	assert.Equal(t, 3, ee.DegreesOfFreedom)
	for k := 0; k < 3; k++ {
		assert.Greater(t, ee.SemiAxesKm[k], 0.0)
	}
	// Symmetric design: all three semi-axes equal.
	assert.InDelta(t, ee.SemiAxesKm[0], ee.SemiAxesKm[1], 1e-9)
	assert.InDelta(t, ee.SemiAxesKm[1], ee.SemiAxesKm[2], 1e-9)

	// Axis-aligned design: every projection equals the per-axis semi-axis.
	assert.InDelta(t, ee.SemiAxesKm[0], ee.NorthStdErrKm(), 1e-9)
	assert.InDelta(t, ee.SemiAxesKm[0], ee.EastStdErrKm(), 1e-9)
	assert.InDelta(t, ee.SemiAxesKm[0], ee.VerticalKm(), 1e-9)
	assert.InDelta(t, ee.SemiAxesKm[0], ee.HorizontalMaxKm(), 1e-9)
	assert.InDelta(t, ee.SemiAxesKm[0], ee.AveragedHorizontalKm(), 1e-9)
}

func TestNewErrorEllipsoid_ScalesWithVariance(t *testing.T) {
	hypo := NewHypocenter(0, 36.0, -118.0, 15.0)
	small, err := NewErrorEllipsoid(axisAlignedResiduals(), 0.01, hypo)
	require.NoError(t, err)
	large, err := NewErrorEllipsoid(axisAlignedResiduals(), 1.0, hypo)
	require.NoError(t, err)

	// Semi-axis scales with the standard error: x100 variance -> x10 axis.
	assert.InDelta(t, 10.0, large.SemiAxesKm[0]/small.SemiAxesKm[0], 1e-9)
}

func TestNewErrorEllipsoid_TwoDOFHasNoVerticalAxis(t *testing.T) {
	hypo := NewHypocenter(0, 36.0, -118.0, 15.0)
	hypo.DegreesOfFreedom = 2

	residuals := []WeightedResidual{
		wr(0.1, 1, [3]float64{1, 0, 0}),
		wr(-0.1, 1, [3]float64{1, 0, 0}),
		wr(0.1, 1, [3]float64{0, 1, 0}),
		wr(-0.1, 1, [3]float64{0, 1, 0}),
	}
	ee, err := NewErrorEllipsoid(residuals, 0.04, hypo)
	require.NoError(t, err)

	assert.Equal(t, 0.0, ee.VerticalKm())
	assert.Equal(t, 0.0, ee.SemiAxesKm[2])
	assert.Greater(t, ee.HorizontalMaxKm(), 0.0)
}

func TestNewErrorEllipsoid_EmptyResidualsIsDegenerate(t *testing.T) {
	hypo := NewHypocenter(0, 36.0, -118.0, 15.0)
	ee, err := NewErrorEllipsoid(nil, 1.0, hypo)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{}, ee.SemiAxesKm)
	assert.Equal(t, 0.0, ee.HorizontalMaxKm())
}

func TestBayesDepthImportance_SplitsPriorAndGeometry(t *testing.T) {
	hypo := NewHypocenter(0, 36.0, -118.0, 15.0)

	// No prior set: importance is zero.
	ee, err := NewErrorEllipsoid(axisAlignedResiduals(), 0.04, hypo)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ee.BayesDepthImportance)

	// Strong prior, weak geometry: importance approaches one.
	hypo.SetBayesDepth(10.0, 0.01)
	residuals := append(axisAlignedResiduals(), NewDepthPriorResidual(hypo))
	ee, err = NewErrorEllipsoid(residuals, 0.04, hypo)
	require.NoError(t, err)
	assert.Greater(t, ee.BayesDepthImportance, 0.5)
	assert.LessOrEqual(t, ee.BayesDepthImportance, 1.0)

	// Weak prior: importance drops below half.
	hypo.SetBayesDepth(10.0, 1000.0)
	residuals = append(axisAlignedResiduals(), NewDepthPriorResidual(hypo))
	ee, err = NewErrorEllipsoid(residuals, 0.04, hypo)
	require.NoError(t, err)
	assert.Less(t, ee.BayesDepthImportance, 0.5)
	assert.Greater(t, ee.BayesDepthImportance, 0.0)
}
