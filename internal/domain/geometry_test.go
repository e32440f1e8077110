package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegRadRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, -30, 179.5} {
		assert.InDelta(t, deg, Rad2Deg(Deg2Rad(deg)), 1e-9)
	}
}

func TestColatitudeLatitudeRoundTrip(t *testing.T) {
	for _, lat := range []float64{0, 10, -10, 45, -45, 89, -89} {
		colat := colatitudeFromLatitude(lat)
		got := latitudeFromColatitude(colat)
		assert.InDelta(t, lat, got, 1e-6)
	}
}

func TestColatitudeAtEquatorAndPoles(t *testing.T) {
	assert.InDelta(t, 90.0, colatitudeFromLatitude(0), 1e-9)
	assert.InDelta(t, 0.0, colatitudeFromLatitude(90), 1e-6)
	assert.InDelta(t, 180.0, colatitudeFromLatitude(-90), 1e-6)
}

func TestClampDepth(t *testing.T) {
	assert.Equal(t, DepthMin, clampDepth(-5))
	assert.Equal(t, DepthMax, clampDepth(10000))
	assert.Equal(t, 33.0, clampDepth(33))
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{360, 0},
		{540, 180},
	}
	for _, tt := range tests {
		got := normalizeLongitude(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "normalizeLongitude(%v)", tt.in)
		assert.True(t, got > -180 && got <= 180)
	}
}

func TestEpicentralDistanceAzimuth_ZeroAtSource(t *testing.T) {
	dist, _ := EpicentralDistanceAzimuth(35.0, -117.0, 35.0, -117.0)
	assert.InDelta(t, 0, dist, 1e-6)
}

func TestEpicentralDistanceAzimuth_NorthIsZeroAzimuth(t *testing.T) {
	dist, az := EpicentralDistanceAzimuth(0, 0, 1, 0)
	assert.Greater(t, dist, 0.0)
	assert.InDelta(t, 0, math.Mod(az+360, 360), 1.0)
}
