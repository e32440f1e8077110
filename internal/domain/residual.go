package domain

import "math"

// WeightedResidual is one row of the design system feeding the rank-sum
// estimator: a residual, its weight, and the design row (colatitude-step,
// longitude-step, depth-step) it contributes to the steepest-descent
// direction.
//
// The Bayesian-depth virtual observation is encoded as a tagged variant
// (IsDepthPrior = true, Pick = nil) rather than a nullable pick pointer, so
// every entry's design row is always total.
type WeightedResidual struct {
	Pick         *Pick // nil iff IsDepthPrior
	IsDepthPrior bool

	Residual float64
	Weight   float64

	// Design row: partial derivative of travel time w.r.t. (colatitude
	// step, longitude step, depth step), in the same units as Hypocenter's
	// step direction.
	Design [3]float64

	// SortKey orders the vector deterministically: arrival time for real
	// picks, math.MaxFloat64 for the depth prior (which is always last).
	SortKey float64
}

// NewDepthPriorResidual builds the always-present, always-last virtual
// observation representing the Bayesian depth prior.
func NewDepthPriorResidual(h *Hypocenter) WeightedResidual {
	return WeightedResidual{
		IsDepthPrior: true,
		Residual:     h.BayesDepthResidual(),
		Weight:       h.BayesDepthWeight(),
		Design:       [3]float64{0, 0, 1},
		SortKey:      math.MaxFloat64, // always sorts last
	}
}

// NewPickResidual builds a WeightedResidual for one used pick, given the
// theoretical phase it was identified to, the current source-to-station
// azimuth, and the source origin time (seconds since epoch) that converts
// the phase's travel time into an absolute predicted arrival. The design row
// is the travel-time gradient w.r.t. a small (colatitude-km, east-km,
// depth-km) move of the source, matching Hypocenter.UpdateStep: a southward
// (increasing colatitude) move lengthens the distance to a station to the
// north, while an eastward move toward the station (along azimuthDeg)
// shortens it.
func NewPickResidual(pick *Pick, ph TheoreticalPhase, azimuthDeg, originTime float64) WeightedResidual {
	azRad := Deg2Rad(azimuthDeg)
	slownessPerKm := ph.RayParamSecPerDeg / DEG2KM

	design := [3]float64{
		slownessPerKm * math.Cos(azRad),
		-slownessPerKm * math.Sin(azRad),
		ph.DTdZ,
	}

	weight := pick.Affinity
	if pick.Quality > 0 {
		weight = pick.Affinity / pick.Quality
	}

	return WeightedResidual{
		Pick:     pick,
		Residual: pick.ArrivalTime - (originTime + ph.ArrivalTime),
		Weight:   weight,
		Design:   design,
		SortKey:  pick.ArrivalTime,
	}
}
