package domain

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConfidenceLevel is the confidence used to scale the error ellipsoid's
// semi-axes from the raw covariance eigenvalues.
const ConfidenceLevel = 0.90

// ErrorEllipsoid is the confidence ellipsoid on the converged hypocenter,
// derived from the SVD of the (weighted) design matrix and scaled by an
// F-distribution quantile at ConfidenceLevel.
type ErrorEllipsoid struct {
	DegreesOfFreedom int

	// SemiAxesKm are the three semi-axis lengths (km), descending, aligned
	// with Orientation's columns. Index 2 is zero when DegreesOfFreedom==2.
	SemiAxesKm [3]float64

	// Orientation columns are the corresponding unit eigenvectors in
	// (north, east, depth) coordinates.
	Orientation *mat.Dense

	// BayesDepthImportance is the fraction of the depth estimate's
	// precision contributed by the Bayesian depth prior rather than by
	// pick geometry (0 when no prior is set).
	BayesDepthImportance float64
}

// NewErrorEllipsoid builds the confidence ellipsoid from the final
// (de-medianed) weighted residual vector, the dispersion-based variance
// estimate, and the hypocenter's Bayesian depth state.
func NewErrorEllipsoid(residuals []WeightedResidual, varianceEstimate float64, hypo *Hypocenter) (*ErrorEllipsoid, error) {
	dof := hypo.DegreesOfFreedom
	n := len(residuals)
	if n == 0 || dof <= 0 {
		return &ErrorEllipsoid{DegreesOfFreedom: dof, Orientation: mat.NewDense(3, 3, nil)}, nil
	}

	a := mat.NewDense(n, dof, nil)
	for i, r := range residuals {
		w := r.Weight
		for k := 0; k < dof; k++ {
			v := w * r.Design[k]
			if k == 0 {
				v = -v // Design[0] is per colatitude (southward) km; Orientation uses north
			}
			a.Set(i, k, v)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errSVDFailed
	}
	singulars := svd.Values(nil)

	var vMat mat.Dense
	svd.VTo(&vMat)

	fFactor := confidenceFactor(dof, n-dof)

	axes := [3]float64{}
	orientation := mat.NewDense(3, 3, nil)
	for k := 0; k < dof; k++ {
		sv := singulars[k]
		variance := 0.0
		if sv > 1e-12 {
			variance = varianceEstimate / (sv * sv)
		}
		axes[k] = math.Sqrt(math.Max(variance, 0) * fFactor)
		for row := 0; row < dof; row++ {
			orientation.Set(row, k, vMat.At(row, k))
		}
	}

	ee := &ErrorEllipsoid{
		DegreesOfFreedom:     dof,
		SemiAxesKm:           axes,
		Orientation:          orientation,
		BayesDepthImportance: bayesDepthImportance(hypo, residuals),
	}
	return ee, nil
}

// confidenceFactor returns d1 times the F-distribution quantile at
// ConfidenceLevel for (numerator, denominator) degrees of freedom, used to
// scale the raw covariance eigenvalues into a confidence ellipsoid.
func confidenceFactor(d1, d2 int) float64 {
	if d2 < 1 {
		d2 = 1
	}
	f := distuv.F{D1: float64(d1), D2: float64(d2)}
	return float64(d1) * f.Quantile(ConfidenceLevel)
}

// HorizontalMaxKm returns the length of the longest horizontal projection
// of any one of the ellipsoid's semi-axes onto the north-east plane.
func (e *ErrorEllipsoid) HorizontalMaxKm() float64 {
	if e.Orientation == nil {
		return 0
	}
	return e.projectPlane(0, 1)
}

// VerticalKm returns the ellipsoid's vertical (depth) semi-axis, or 0 for a
// 2-degree-of-freedom (epicenter-only) solution.
func (e *ErrorEllipsoid) VerticalKm() float64 {
	if e.DegreesOfFreedom < 3 {
		return 0
	}
	return e.projectAxis(2)
}

// AveragedHorizontalKm returns the geometric mean of the north and east
// projections, the averaged-horizontal radius of the ellipsoid footprint.
func (e *ErrorEllipsoid) AveragedHorizontalKm() float64 {
	if e.Orientation == nil {
		return 0
	}
	north := e.projectAxis(0)
	east := e.projectAxis(1)
	return math.Sqrt(north * east)
}

// NorthStdErrKm returns the ellipsoid's projection onto the north axis.
func (e *ErrorEllipsoid) NorthStdErrKm() float64 {
	if e.Orientation == nil {
		return 0
	}
	return e.projectAxis(0)
}

// EastStdErrKm returns the ellipsoid's projection onto the east axis.
func (e *ErrorEllipsoid) EastStdErrKm() float64 {
	if e.Orientation == nil {
		return 0
	}
	return e.projectAxis(1)
}

// projectAxis returns the projection of the full ellipsoid onto coordinate
// axis idx (0=north, 1=east, 2=depth): sqrt(sum_k (axis_k * orientation[idx,k])^2).
func (e *ErrorEllipsoid) projectAxis(idx int) float64 {
	sum := 0.0
	for k := 0; k < e.DegreesOfFreedom; k++ {
		c := e.Orientation.At(idx, k)
		sum += (e.SemiAxesKm[k] * c) * (e.SemiAxesKm[k] * c)
	}
	return math.Sqrt(sum)
}

// projectPlane returns the largest projection of a single semi-axis onto
// the plane spanned by coordinate axes i and j.
func (e *ErrorEllipsoid) projectPlane(i, j int) float64 {
	best := 0.0
	for k := 0; k < e.DegreesOfFreedom; k++ {
		h := e.SemiAxesKm[k] * math.Hypot(e.Orientation.At(i, k), e.Orientation.At(j, k))
		if h > best {
			best = h
		}
	}
	return best
}

// bayesDepthImportance is 1 - (depth variance with the prior applied /
// depth variance from pick geometry alone): the fraction of depth
// precision the Bayesian constraint contributes. Squared weights act as
// precisions, so the ratio reduces to priorPrecision / totalPrecision.
func bayesDepthImportance(hypo *Hypocenter, residuals []WeightedResidual) float64 {
	if !hypo.BayesDepthSet || hypo.DegreesOfFreedom < 3 {
		return 0
	}
	w := hypo.BayesDepthWeight()
	priorPrecision := w * w
	geomPrecision := 0.0
	for _, r := range residuals {
		if r.IsDepthPrior {
			continue
		}
		d := r.Weight * r.Design[2]
		geomPrecision += d * d
	}
	total := priorPrecision + geomPrecision
	if total <= 0 {
		return 0
	}
	return priorPrecision / total
}

type svdFailedErr struct{}

func (svdFailedErr) Error() string { return "error ellipsoid: design matrix SVD did not converge" }

var errSVDFailed = svdFailedErr{}
