package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// CovarianceCoverage is the fraction of the total eigenvalue sum the
// decorrelator must retain before it stops adding eigenvectors.
const CovarianceCoverage = 0.999

// Decorrelator projects a de-medianed WeightedResidual vector onto the
// leading eigenvectors of an empirical covariance built from the picks'
// design rows, producing a projected vector whose entries are
// statistically decorrelated.
type Decorrelator struct{}

// NewDecorrelator constructs a Decorrelator.
func NewDecorrelator() *Decorrelator { return &Decorrelator{} }

// buildCovariance forms the n x n Gram matrix of design rows: C_ij = D_i . D_j,
// the empirical covariance of residuals implied by ray-path geometry.
func buildCovariance(residuals []WeightedResidual) *mat.SymDense {
	n := len(residuals)
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := 0.0
			for k := 0; k < 3; k++ {
				v += residuals[i].Design[k] * residuals[j].Design[k]
			}
			c.SetSym(i, j, v)
		}
	}
	return c
}

// ProjectPicks builds the covariance from the residuals' design rows,
// retains the leading eigenvectors covering CovarianceCoverage of the total
// eigenvalue mass, and returns the projected WeightedResidual vector.
// Returns (nil, false) if the covariance is degenerate (all residuals zero
// design rows, e.g. fewer than one real pick).
func (Decorrelator) ProjectPicks(residuals []WeightedResidual) ([]WeightedResidual, bool) {
	n := len(residuals)
	if n == 0 {
		return nil, false
	}

	cov := buildCovariance(residuals)
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, false
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back ascending; sort indices descending by value.
	type idxVal struct {
		idx int
		val float64
	}
	sorted := make([]idxVal, n)
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		sorted[i] = idxVal{i, v}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })

	total := 0.0
	for _, iv := range sorted {
		total += iv.val
	}
	if total <= 0 {
		return nil, false
	}

	var kept []idxVal
	running := 0.0
	for _, iv := range sorted {
		kept = append(kept, iv)
		running += iv.val
		if running/total >= CovarianceCoverage {
			break
		}
	}

	x := make([]float64, n)
	for i, r := range residuals {
		x[i] = r.Weight * r.Residual
	}

	out := make([]WeightedResidual, 0, len(kept))
	for _, iv := range kept {
		lambda := iv.val
		sqrtLambda := math.Sqrt(lambda)

		y := 0.0
		var design [3]float64
		for i := 0; i < n; i++ {
			u := vectors.At(i, iv.idx)
			y += u * x[i]
			for k := 0; k < 3; k++ {
				design[k] += u * residuals[i].Design[k]
			}
		}

		residual := 0.0
		if sqrtLambda > 1e-12 {
			residual = y / sqrtLambda
		}

		out = append(out, WeightedResidual{
			Residual: residual,
			Weight:   sqrtLambda,
			Design:   design,
			SortKey:  float64(len(out)),
		})
	}

	return out, true
}
