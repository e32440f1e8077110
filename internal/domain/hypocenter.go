package domain

import (
	"math"

	"github.com/google/uuid"
)

// Hypocenter is the mutable current solution for an Event: origin time,
// geographic position, depth, and the trigonometric/iteration caches the
// step controller carries between passes.
type Hypocenter struct {
	ID uuid.UUID

	OriginTime float64 // seconds since epoch
	Latitude   float64 // geographic, degrees
	Longitude  float64 // degrees, normalized to (-180, 180]
	DepthKm    float64 // clamped to [DepthMin, DepthMax]

	// Bayesian depth prior, undefined unless BayesDepthSet.
	BayesDepthSet bool
	BayesDepth    float64
	BayesSpread   float64

	// IsTectonic is true iff the epicenter falls outside every known
	// craton, set by Stepper.SetEnvironment each pass.
	IsTectonic bool

	// Trig caches, kept consistent with Latitude/Longitude by recompute().
	ColatitudeDeg float64
	SinColat      float64
	CosColat      float64
	SinLon        float64
	CosLon        float64

	// Degrees of freedom for this pass: 2 (epicenter only) or 3 (+ depth).
	DegreesOfFreedom int

	// Iteration state, reset/used by Stepper.
	StepLen      float64
	HorizStepKm  float64
	VertStepKm   float64
	DampingCount int
	TimeShift    float64
	Dispersion   float64
	RMSEquiv     float64
	StepDir      []float64 // unit length, length == DegreesOfFreedom
}

// NewHypocenter constructs a Hypocenter at the given origin time/lat/lon/depth
// with 3 degrees of freedom by default, and recomputes its trig caches.
func NewHypocenter(originTime, lat, lon, depthKm float64) *Hypocenter {
	h := &Hypocenter{
		ID:               uuid.New(),
		OriginTime:       originTime,
		Latitude:         lat,
		Longitude:        normalizeLongitude(lon),
		DepthKm:          clampDepth(depthKm),
		DegreesOfFreedom: 3,
	}
	h.recompute()
	return h
}

// recompute refreshes the colatitude/trig caches from Latitude/Longitude.
// Must be called after any direct mutation of those two fields.
func (h *Hypocenter) recompute() {
	h.ColatitudeDeg = colatitudeFromLatitude(h.Latitude)
	colatRad := Deg2Rad(h.ColatitudeDeg)
	lonRad := Deg2Rad(h.Longitude)
	h.SinColat = math.Sin(colatRad)
	h.CosColat = math.Cos(colatRad)
	h.SinLon = math.Sin(lonRad)
	h.CosLon = math.Cos(lonRad)
}

// SetBayesDepth records an analyst-set or auto-derived Bayesian depth prior.
func (h *Hypocenter) SetBayesDepth(depth, spread float64) {
	h.BayesDepthSet = true
	h.BayesDepth = depth
	h.BayesSpread = spread
}

// BayesDepthResidual returns bayesDepth - depth, or 0 if no prior is set.
func (h *Hypocenter) BayesDepthResidual() float64 {
	if !h.BayesDepthSet {
		return 0
	}
	return h.BayesDepth - h.DepthKm
}

// BayesDepthWeight returns 3/spread, or 0 if no prior is set.
func (h *Hypocenter) BayesDepthWeight() float64 {
	if !h.BayesDepthSet || h.BayesSpread <= 0 {
		return 0
	}
	return 3.0 / h.BayesSpread
}

// UpdateStep applies a linearized step of length stepLen along unit
// direction dir (length 2 or 3, matching DegreesOfFreedom) plus a time
// shift dT. Wraparound and depth clamping are applied, and all
// trig caches are recomputed.
func (h *Hypocenter) UpdateStep(stepLen float64, dir []float64, dT float64) {
	colatDeg := h.ColatitudeDeg + stepLen*dir[0]/DEG2KM

	sinColat := math.Sin(Deg2Rad(h.ColatitudeDeg))
	if sinColat == 0 {
		sinColat = 1e-12
	}
	lonDeg := h.Longitude + stepLen*dir[1]/(DEG2KM*sinColat)

	// Colatitude wraparound.
	if colatDeg < 0 {
		colatDeg = -colatDeg
		lonDeg += 180
	}
	if colatDeg > 180 {
		colatDeg = 360 - colatDeg
		lonDeg += 180
	}

	h.Latitude = latitudeFromColatitude(colatDeg)
	h.Longitude = normalizeLongitude(lonDeg)

	if h.DegreesOfFreedom == 3 && len(dir) >= 3 {
		h.DepthKm = clampDepth(h.DepthKm + stepLen*dir[2])
	}

	h.OriginTime += dT
	h.StepLen = stepLen
	h.TimeShift = dT
	h.StepDir = dir

	h.recompute()
}

// ResetHypo restores the four primary coordinates (origin time, lat, lon,
// depth) from a HypoAudit snapshot, leaving iteration state untouched.
func (h *Hypocenter) ResetHypo(audit HypoAudit) {
	h.OriginTime = audit.OriginTime
	h.Latitude = audit.Latitude
	h.Longitude = normalizeLongitude(audit.Longitude)
	h.DepthKm = clampDepth(audit.DepthKm)
	h.recompute()
}

// Snapshot produces a HypoAudit capturing the current hypocenter and
// iteration coordinates.
func (h *Hypocenter) Snapshot(stage, iteration int, status ExitCode) HypoAudit {
	dir := make([]float64, len(h.StepDir))
	copy(dir, h.StepDir)
	return HypoAudit{
		ID:           uuid.New(),
		OriginTime:   h.OriginTime,
		Latitude:     h.Latitude,
		Longitude:    h.Longitude,
		DepthKm:      h.DepthKm,
		StepLen:      h.StepLen,
		Dispersion:   h.Dispersion,
		RMSEquiv:     h.RMSEquiv,
		StepDir:      dir,
		Stage:        stage,
		Iteration:    iteration,
		Status:       status,
	}
}

// UnitLength reports whether v has unit length within tol.
func UnitLength(v []float64, tol float64) bool {
	sumSq := 0.0
	for _, x := range v {
		sumSq += x * x
	}
	return math.Abs(sumSq-1.0) <= tol
}
