package domain

import "github.com/google/uuid"

// AuthorType classifies who/what produced a pick.
type AuthorType int

const (
	ContribAuto AuthorType = iota
	LocalAuto
	ContribHuman
	LocalHuman
)

// NullAffinity is the default affinity for a pick with no analyst-set
// confidence multiplier.
const NullAffinity = 1.0

// Pick is one observed arrival-time observation.
type Pick struct {
	ID uuid.UUID

	Agency     string
	Author     string
	AuthorType AuthorType

	// Channel is the recording channel code (e.g. "BHZ"), carried through
	// purely as I/O metadata — it plays no role in association or location.
	Channel string

	ArrivalTime float64 // seconds since epoch

	ObservedPhase   string
	AssociatedPhase string
	CurrentPhase    string // mutated by PhaseID

	Affinity float64 // >= 1, default NullAffinity
	Quality  float64

	Residual float64
	Weight   float64

	// StatisticalFoM is the affinity-weighted absolute residual recorded by
	// PhaseID for the chosen identification.
	StatisticalFoM float64

	Used             bool
	Triage           bool
	SurfaceWave      bool
	ForceAssociation bool

	station       Station
	matchedPhase  TheoreticalPhase
	hasMatchedPhase bool
}

// MatchedPhase returns the theoretical phase PhaseID last matched this pick
// to, used by the Stepper to build the pick's design row without re-querying
// the travel-time service.
func (p Pick) MatchedPhase() (TheoreticalPhase, bool) { return p.matchedPhase, p.hasMatchedPhase }

// SetMatchedPhase records the theoretical phase PhaseID matched this pick
// to.
func (p *Pick) SetMatchedPhase(ph TheoreticalPhase) {
	p.matchedPhase = ph
	p.hasMatchedPhase = true
}

// IsAutomatic reports whether the pick's author type is one of the two
// automatic-origin kinds.
func (p Pick) IsAutomatic() bool {
	return p.AuthorType == ContribAuto || p.AuthorType == LocalAuto
}

// IsTrustedSource reports whether this pick's author is a human analyst
// (local or contributed), used for surface-wave pre-fixing.
func (p Pick) IsTrustedSource() bool {
	return p.AuthorType == ContribHuman || p.AuthorType == LocalHuman
}

// Station returns the station this pick was recorded at.
func (p Pick) Station() Station { return p.station }
