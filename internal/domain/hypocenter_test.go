package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHypocenter_TrigCachesConsistent(t *testing.T) {
	h := NewHypocenter(1_700_000_000, 36.0, -118.0, 15.0)
	assert.InDelta(t, 1.0, h.SinColat*h.SinColat+h.CosColat*h.CosColat, 1e-15)
	assert.InDelta(t, 1.0, h.SinLon*h.SinLon+h.CosLon*h.CosLon, 1e-15)
	assert.InDelta(t, colatitudeFromLatitude(h.Latitude), h.ColatitudeDeg, 1e-12)
}

func TestNewHypocenter_ClampsDepthAndNormalizesLongitude(t *testing.T) {
	h := NewHypocenter(0, 10.0, 365.0, -50.0)
	assert.Equal(t, DepthMin, h.DepthKm)
	assert.Equal(t, 5.0, h.Longitude)

	h = NewHypocenter(0, 10.0, -200.0, 2000.0)
	assert.Equal(t, DepthMax, h.DepthKm)
	assert.Equal(t, 160.0, h.Longitude)
}

func TestUpdateStep_DepthStaysClampedLongitudeStaysNormalized(t *testing.T) {
	h := NewHypocenter(1_700_000_000, 36.0, 179.9, 795.0)

	// A large step in every coordinate must not escape the legal domain.
	for i := 0; i < 5; i++ {
		h.UpdateStep(500.0, []float64{0.3, 0.9, 0.3}, 1.0)
		assert.GreaterOrEqual(t, h.DepthKm, DepthMin)
		assert.LessOrEqual(t, h.DepthKm, DepthMax)
		assert.Greater(t, h.Longitude, -180.0)
		assert.LessOrEqual(t, h.Longitude, 180.0)
		assert.InDelta(t, 1.0, h.SinColat*h.SinColat+h.CosColat*h.CosColat, 1e-15)
	}
}

func TestUpdateStep_AppliesTimeShiftAndDirection(t *testing.T) {
	h := NewHypocenter(1_700_000_000, 36.0, -118.0, 15.0)
	startColat := h.ColatitudeDeg
	startOrigin := h.OriginTime

	h.UpdateStep(DEG2KM, []float64{1, 0, 0}, -2.5)

	assert.InDelta(t, startColat+1.0, h.ColatitudeDeg, 1e-6)
	assert.Equal(t, startOrigin-2.5, h.OriginTime)
	assert.Equal(t, DEG2KM, h.StepLen)
	assert.Equal(t, -2.5, h.TimeShift)
}

func TestUpdateStep_TwoDOFLeavesDepthAlone(t *testing.T) {
	h := NewHypocenter(0, 36.0, -118.0, 15.0)
	h.DegreesOfFreedom = 2

	h.UpdateStep(10.0, []float64{0, 1}, 0)
	assert.Equal(t, 15.0, h.DepthKm)
}

func TestUpdateStep_PoleWraparound(t *testing.T) {
	// Start 0.2 degrees of colatitude from the north pole and step well past
	// it: colatitude must reflect and longitude shift by 180.
	startLat := latitudeFromColatitude(0.2)
	h := NewHypocenter(0, startLat, 10.0, 15.0)

	h.UpdateStep(-1.0*DEG2KM, []float64{1, 0, 0}, 0)

	assert.InDelta(t, 0.8, h.ColatitudeDeg, 1e-6)
	assert.InDelta(t, -170.0, h.Longitude, 1e-6)
}

func TestResetHypo_RestoresPrimaryCoordinatesOnly(t *testing.T) {
	h := NewHypocenter(1_700_000_000, 36.0, -118.0, 15.0)
	audit := h.Snapshot(0, 0, UnknownStatus)

	h.UpdateStep(50.0, []float64{0.6, 0.8, 0}, 3.0)
	h.DampingCount = 4
	require.NotEqual(t, audit.Latitude, h.Latitude)

	h.ResetHypo(audit)

	assert.Equal(t, audit.OriginTime, h.OriginTime)
	assert.Equal(t, audit.Latitude, h.Latitude)
	assert.Equal(t, audit.Longitude, h.Longitude)
	assert.Equal(t, audit.DepthKm, h.DepthKm)
	assert.Equal(t, 4, h.DampingCount, "iteration state survives a reset")
	assert.InDelta(t, colatitudeFromLatitude(h.Latitude), h.ColatitudeDeg, 1e-12)
}

func TestBayesDepth_ResidualAndWeight(t *testing.T) {
	h := NewHypocenter(0, 36.0, -118.0, 15.0)
	assert.Equal(t, 0.0, h.BayesDepthResidual())
	assert.Equal(t, 0.0, h.BayesDepthWeight())

	h.SetBayesDepth(10.0, 3.0)
	assert.Equal(t, -5.0, h.BayesDepthResidual())
	assert.Equal(t, 1.0, h.BayesDepthWeight())
}

func TestUnitLength(t *testing.T) {
	assert.True(t, UnitLength([]float64{1, 0, 0}, 1e-12))
	assert.True(t, UnitLength([]float64{math.Sqrt(0.5), math.Sqrt(0.5)}, 1e-12))
	assert.False(t, UnitLength([]float64{0.5, 0.5, 0.5}, 1e-12))
}
