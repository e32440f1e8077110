package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPicks_EmptyIsDegenerate(t *testing.T) {
	d := NewDecorrelator()
	_, ok := d.ProjectPicks(nil)
	assert.False(t, ok)
}

func TestProjectPicks_AllZeroDesignIsDegenerate(t *testing.T) {
	d := NewDecorrelator()
	residuals := []WeightedResidual{
		wr(1, 1, [3]float64{0, 0, 0}),
		wr(2, 1, [3]float64{0, 0, 0}),
	}
	_, ok := d.ProjectPicks(residuals)
	assert.False(t, ok)
}

func TestProjectPicks_PreservesEnergy(t *testing.T) {
	// Decorrelation preserves total weighted energy (an orthogonal change
	// of basis) when the covariance is full rank and every eigenvector is
	// retained: these three design rows are linearly independent.
	d := NewDecorrelator()
	residuals := []WeightedResidual{
		wr(2, 1, [3]float64{1, 0, 0}),
		wr(-1, 1, [3]float64{0, 1, 0}),
		wr(3, 1, [3]float64{1, 1, 1}),
	}
	projected, ok := d.ProjectPicks(residuals)
	require.True(t, ok)
	require.NotEmpty(t, projected)

	inputEnergy := 0.0
	for _, r := range residuals {
		v := r.Weight * r.Residual
		inputEnergy += v * v
	}
	outputEnergy := 0.0
	for _, r := range projected {
		v := r.Weight * r.Residual
		outputEnergy += v * v
	}
	assert.InDelta(t, inputEnergy, outputEnergy, 1e-6)
}

func TestProjectPicks_SingleResidualIsPassthroughUpToSign(t *testing.T) {
	d := NewDecorrelator()
	residuals := []WeightedResidual{wr(4, 2, [3]float64{1, 0, 0})}
	projected, ok := d.ProjectPicks(residuals)
	require.True(t, ok)
	require.Len(t, projected, 1)
	// Eigenvector sign is arbitrary; only the magnitude is preserved.
	assert.InDelta(t, 8.0, math.Abs(projected[0].Weight*projected[0].Residual), 1e-6)
}
