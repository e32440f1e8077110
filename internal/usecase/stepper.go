// Package usecase orchestrates the location engine: Stepper drives one
// iteration of phase identification plus a robust step, LocationLoop
// sequences stages of Stepper calls, Engine owns a single event's run, and
// batch.go fans Engine instances out across a worker pool.
package usecase

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/usgs/neic-locator-go/internal/domain"
)

// DefaultDepthSE is the minimum depth-prior standard error used when a zone
// cell's historical spread would otherwise collapse the prior.
const DefaultDepthSE = 10.0

// MaxDampingRounds bounds Stepper.makeStep's damping loop; the give-up
// conditions (damped step below epsS, or no movement) are expected to fire
// well before this is reached.
const MaxDampingRounds = 20

// StepState names Stepper.makeStep's explicit state machine.
type StepState int

const (
	StateEntering StepState = iota
	StateStepped
	StateDamping
	StateConverged
	StateFailed
)

func (s StepState) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateStepped:
		return "stepped"
	case StateDamping:
		return "damping"
	case StateConverged:
		return "converged"
	default:
		return "failed"
	}
}

// StageConfig is one row of LocationLoop's stage table.
type StageConfig struct {
	OtherWeight   float64
	StickyWeight  float64
	Reidentify    bool
	Reweight      bool
	EpsS          float64 // stage convergence limit
	LMax          float64 // stage max step length
	MaxIterations int
}

// Stepper is the iteration kernel coupling PhaseID and the rank-sum
// estimator for one Event.
type Stepper struct {
	Event  *domain.Event
	TT     domain.TravelTimeService
	Craton domain.CratonMap
	Zones  domain.ZoneStats

	PhaseID      *domain.PhaseID
	Estimator    domain.RankSumEstimator
	Decorrelator *domain.Decorrelator
	LinearStep   *domain.LinearStep

	Log *logrus.Entry

	lastDispersion float64
	lastMedian     float64
	lastDirection  []float64
}

// NewStepper constructs a Stepper bound to one event and its collaborators.
func NewStepper(event *domain.Event, tt domain.TravelTimeService, craton domain.CratonMap, zones domain.ZoneStats, log *logrus.Entry) *Stepper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Stepper{
		Event:        event,
		TT:           tt,
		Craton:       craton,
		Zones:        zones,
		PhaseID:      domain.NewPhaseID(tt),
		Decorrelator: domain.NewDecorrelator(),
		LinearStep:   domain.NewLinearStep(),
		Log:          log,
	}
}

// SetEnvironment sets isTectonic from the craton map and, unless the
// Bayesian depth was analyst-set, refreshes the depth prior from
// ZoneStats. Idempotent: calling twice with an unchanged hypocenter position
// yields identical isTectonic/bayesDepth/bayesSpread.
func (s *Stepper) SetEnvironment() {
	hypo := s.Event.Hypo
	hypo.IsTectonic = !s.Craton.InsideAnyCraton(hypo.Latitude, hypo.Longitude)

	if s.Event.DepthManual {
		return
	}
	mean, spread, ok := s.Zones.DepthPrior(hypo.Latitude, hypo.Longitude)
	if !ok {
		return
	}
	if spread < DefaultDepthSE {
		spread = DefaultDepthSE
	}
	hypo.SetBayesDepth(mean, spread)
}

// internalPhaseID runs PhaseID, requires at least 3 used stations, and
// refreshes the estimator's median/dispersion/direction state, optionally
// through the decorrelated path.
func (s *Stepper) internalPhaseID(cfg StageConfig) (changed bool, status domain.ExitCode, err error) {
	changed, err = s.PhaseID.Identify(s.Event, domain.PhaseIDConfig{
		GroupWeight:                   domain.DefaultGroupWeight,
		OtherWeight:                   cfg.OtherWeight,
		StickyWeight:                  cfg.StickyWeight,
		TypePenalty:                   domain.DefaultTypePenalty,
		DistanceDiscriminationPenalty: domain.DefaultDistanceDiscriminationPenalty,
		FirstArrivalBoost:             domain.DefaultFirstArrivalBoost,
		FirstArrivalBoostRangeDeg:     domain.DefaultFirstArrivalBoostRangeDeg,
		Reidentify:                    cfg.Reidentify,
	})
	if err != nil {
		return false, domain.LocationFailed, err
	}

	if cfg.Reweight {
		reweightPicks(s.Event)
	}

	if s.Event.UsedStationCount() < 3 {
		return changed, domain.InsufficientData, nil
	}

	residuals := buildResidualVector(s.Event)
	s.Event.RawResiduals = residuals

	working := residuals
	if s.Event.UseDecorrelation {
		if projected, ok := s.Decorrelator.ProjectPicks(residuals); ok {
			s.Event.ProjectedResiduals = projected
			working = projected
		}
	}

	median := s.Estimator.ComputeMedian(working)
	deMedianed := s.Estimator.DeMedianResiduals(working)
	deMedianed = s.Estimator.DeMedianDesignMatrix(deMedianed)
	dispersion := s.Estimator.ComputeDispersionValue(deMedianed)
	direction := s.Estimator.CompSteepestDescDir(deMedianed, s.Event.Hypo.DegreesOfFreedom)

	s.lastMedian = median
	s.lastDispersion = dispersion
	s.lastDirection = direction
	s.Event.Hypo.Dispersion = dispersion
	s.Event.Hypo.RMSEquiv = s.Estimator.SummarizeResiduals(residuals).RMSEquiv

	return changed, domain.Success, nil
}

// buildResidualVector assembles the raw WeightedResidual vector from every
// used, non-triage pick's matched theoretical phase, plus the trailing
// Bayesian depth-prior entry.
func buildResidualVector(event *domain.Event) []domain.WeightedResidual {
	out := make([]domain.WeightedResidual, 0, len(event.Picks)+1)
	for _, group := range event.Groups {
		for _, pick := range group.Picks {
			if !pick.Used || pick.Triage {
				continue
			}
			ph, ok := pick.MatchedPhase()
			if !ok {
				continue
			}
			out = append(out, domain.NewPickResidual(pick, ph, group.AzimuthDeg, event.Hypo.OriginTime))
		}
	}
	out = append(out, domain.NewDepthPriorResidual(event.Hypo))
	return out
}

// reweightPicks recomputes each used pick's weight from its current
// affinity/quality, used between stages when the stage table calls for a
// reweight pass independent of re-identification.
func reweightPicks(event *domain.Event) {
	for _, pick := range event.Picks {
		if !pick.Used || pick.Triage {
			continue
		}
		if pick.Quality > 0 {
			pick.Weight = pick.Affinity / pick.Quality
		} else {
			pick.Weight = pick.Affinity
		}
	}
}

// rebuildTrialResiduals recomputes the residual vector for a hypothetical
// move of lambda*dir from the event's current hypocenter, without
// re-running phase identification: it re-queries the travel-time service
// at the trial geometry and looks up each pick's already-matched phase
// code.
func (s *Stepper) rebuildTrialResiduals(dir []float64) domain.ResidualRebuilder {
	return func(lambda float64) ([]domain.WeightedResidual, error) {
		trial := *s.Event.Hypo
		trialPtr := &trial
		trialPtr.UpdateStep(lambda, dir, 0)

		out := make([]domain.WeightedResidual, 0, len(s.Event.Picks)+1)
		for _, group := range s.Event.Groups {
			distDeg, azDeg := domain.EpicentralDistanceAzimuth(trialPtr.Latitude, trialPtr.Longitude, group.Station.Latitude, group.Station.Longitude)
			phases, err := s.TT.GetPhases(trialPtr.DepthKm, group.Station.Latitude, group.Station.Longitude, group.Station.ElevKm, distDeg, azDeg)
			if err != nil {
				return nil, err
			}
			for _, pick := range group.Picks {
				if !pick.Used || pick.Triage {
					continue
				}
				for _, ph := range phases {
					if ph.Code == pick.CurrentPhase {
						out = append(out, domain.NewPickResidual(pick, ph, azDeg, trialPtr.OriginTime))
						break
					}
				}
			}
		}
		out = append(out, domain.NewDepthPriorResidual(trialPtr))
		return out, nil
	}
}

// computeDampeningFactor is a monotone, step-count-indexed schedule in
// (0,1), bounded to [0.1, 0.9].
func computeDampeningFactor(dampCount int) float64 {
	factor := 1.0 / (1.0 + float64(dampCount))
	if factor < 0.1 {
		return 0.1
	}
	if factor > 0.9 {
		return 0.9
	}
	return factor
}

// makeStep runs one outer-loop iteration: snapshot, line search, apply,
// re-identify, and damp on failure to improve.
func (s *Stepper) makeStep(stage, iter int, cfg StageConfig) domain.ExitCode {
	hypo := s.Event.Hypo
	audit := hypo.Snapshot(stage, iter, domain.UnknownStatus)
	s.Event.Audits.Push(audit)

	log := s.Log.WithFields(logrus.Fields{"stage": stage, "iter": iter})
	log.WithField("state", StateEntering).Debug("makeStep")

	stepLen := math.Max(hypo.StepLen, 2*cfg.EpsS)
	hypo.DampingCount = 0

	dir := s.lastDirection
	if len(dir) == 0 {
		dir = make([]float64, hypo.DegreesOfFreedom)
	}

	acceptedLen, median, dispersion, err := s.LinearStep.Search(stepLen, cfg.EpsS, cfg.LMax, s.rebuildTrialResiduals(dir))
	if err != nil {
		log.WithError(err).Warn("linear step search failed")
		if dispersion >= s.lastDispersion && stepLen < cfg.EpsS {
			log.WithField("state", StateConverged).Debug("makeStep")
			hypo.StepLen = 0
			return domain.NearlyConverged
		}
		log.WithField("state", StateFailed).Debug("makeStep")
		return domain.DidNotConverge
	}
	log.WithField("state", StateStepped).Debug("makeStep")

	hypo.UpdateStep(acceptedLen, dir, median)
	s.Event.UpdateAllGeometry()

	refDispersion := s.lastDispersion
	changed, status, err := s.internalPhaseID(StageConfig{
		OtherWeight:  cfg.OtherWeight,
		StickyWeight: cfg.StickyWeight,
		Reidentify:   cfg.Reidentify,
		Reweight:     false,
	})
	if err != nil {
		return domain.LocationFailed
	}
	if status == domain.InsufficientData {
		return status
	}

	if changed {
		return domain.PhaseIDChanged
	}
	if s.lastDispersion < refDispersion {
		log.WithField("state", StateConverged).Debug("makeStep")
		return domain.Success
	}

	// Damping: dispersion failed to improve.
	log.WithField("state", StateDamping).Debug("makeStep")
	dampStepLen := acceptedLen
	dampDT := median
	for hypo.DampingCount = 1; hypo.DampingCount <= MaxDampingRounds; hypo.DampingCount++ {
		factor := computeDampeningFactor(hypo.DampingCount)
		dampStepLen *= factor
		dampDT *= factor

		hypo.ResetHypo(audit)
		hypo.UpdateStep(dampStepLen, dir, dampDT)
		s.Event.UpdateAllGeometry()

		changed, status, err = s.internalPhaseID(StageConfig{
			OtherWeight:  cfg.OtherWeight,
			StickyWeight: cfg.StickyWeight,
			Reidentify:   cfg.Reidentify,
			Reweight:     false,
		})
		if err != nil {
			return domain.LocationFailed
		}
		if status == domain.InsufficientData {
			return status
		}
		if changed {
			return domain.PhaseIDChanged
		}
		if s.lastDispersion < refDispersion {
			log.WithField("state", StateConverged).Debug("makeStep")
			return domain.Success
		}

		samePosition := hypo.Latitude == audit.Latitude && hypo.Longitude == audit.Longitude && hypo.DepthKm == audit.DepthKm
		if math.Abs(dampStepLen) <= cfg.EpsS || samePosition {
			log.WithField("state", StateFailed).Debug("makeStep")
			switch {
			case math.Abs(dampStepLen) <= cfg.EpsS*2:
				return domain.NearlyConverged
			case hypo.DampingCount >= MaxDampingRounds:
				return domain.DidNotConverge
			default:
				return domain.UnstableSolution
			}
		}
	}

	log.WithField("state", StateFailed).Debug("makeStep")
	return domain.DidNotConverge
}
