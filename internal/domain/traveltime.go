package domain

// TheoreticalPhase is one candidate arrival returned by the travel-time
// service for a given source depth and station geometry.
type TheoreticalPhase struct {
	Code          string
	Group         string
	AuxGroup      string
	ArrivalTime   float64 // travel time from the source origin, seconds
	Spread        float64 // scale parameter, seconds
	Observability float64

	// RayParamSecPerDeg and DTdZ are the travel-time partial derivatives
	// w.r.t. epicentral distance (sec/degree) and source depth (sec/km),
	// used to build a pick's design row.
	RayParamSecPerDeg float64
	DTdZ              float64

	DistanceDiscriminated bool // not observable at this range
	Regional              bool
}

// ArrivalType returns "P" or "S" from the leading character of the phase
// code, used for the non-automatic-pick type-penalty in PhaseID.
func (t TheoreticalPhase) ArrivalType() string {
	for _, c := range t.Code {
		switch c {
		case 'P', 'p':
			return "P"
		case 'S', 's':
			return "S"
		}
		break
	}
	return ""
}

// TravelTimeService is the external travel-time collaborator:
// given a source depth and station geometry, it returns an ordered list of
// theoretical phases.
type TravelTimeService interface {
	// GetPhases returns theoretical phases for a source at depthKm, observed
	// at a station with the given elevation, epicentral distance (degrees)
	// and azimuth (degrees), ordered by arrival time.
	GetPhases(depthKm float64, staLat, staLon, staElevKm, distanceDeg, azimuthDeg float64) ([]TheoreticalPhase, error)

	// SetEarthModel switches the underlying velocity model, invalidating any
	// depth-keyed session cache.
	SetEarthModel(model string) error
}

// CratonMap reports whether a geographic point falls inside any of a set of
// continental craton polygons.
type CratonMap interface {
	InsideAnyCraton(lat, lon float64) bool
}

// ZoneStats supplies the Bayesian depth prior (mean, spread) for the
// one-degree grid cell containing a point, or ok=false if the cell carries
// no prior.
type ZoneStats interface {
	DepthPrior(lat, lon float64) (mean, spread float64, ok bool)
}
