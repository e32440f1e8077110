package usecase

import (
	"github.com/sirupsen/logrus"

	"github.com/usgs/neic-locator-go/internal/domain"
)

// DefaultStageTable is the staged outer-loop profile: stage 0
// refines origin time with aggressive re-identification, stages 1-2
// tighten with less re-identification, and the final stage is a single
// pass used only to freeze the solution before error-statistics computation.
func DefaultStageTable() []StageConfig {
	return []StageConfig{
		{OtherWeight: 0.5, StickyWeight: 1.0, Reidentify: true, Reweight: true, EpsS: 0.5, LMax: 250, MaxIterations: 15},
		{OtherWeight: 0.7, StickyWeight: 1.1, Reidentify: true, Reweight: true, EpsS: 0.1, LMax: 100, MaxIterations: 10},
		{OtherWeight: domain.DefaultOtherWeight, StickyWeight: domain.DefaultStickyWeight, Reidentify: false, Reweight: false, EpsS: 0.02, LMax: 25, MaxIterations: 10},
		{OtherWeight: domain.DefaultOtherWeight, StickyWeight: domain.DefaultStickyWeight, Reidentify: false, Reweight: false, EpsS: 0.01, LMax: 5, MaxIterations: 1},
	}
}

// RelativeDispersionTolerance is the stage-to-stage dispersion change below
// which LocationLoop treats a stage as having converged early.
const RelativeDispersionTolerance = 1e-4

// LocationLoop sequences Stepper through the stage table, handling
// between-stage bookkeeping and overall termination.
type LocationLoop struct {
	Stepper *Stepper
	Stages  []StageConfig
	Log     *logrus.Entry
}

// NewLocationLoop constructs a LocationLoop with the default stage table.
func NewLocationLoop(stepper *Stepper, log *logrus.Entry) *LocationLoop {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LocationLoop{Stepper: stepper, Stages: DefaultStageTable(), Log: log}
}

// Result is the outcome of a full staged location run.
type Result struct {
	Status          domain.ExitCode
	Iterations      int
	FinalDispersion float64
}

// Run executes every stage of the table in order, stopping early if a
// stage terminates with a non-recoverable status or if the event is
// location-held.
func (l *LocationLoop) Run() Result {
	event := l.Stepper.Event
	if !event.BeginLocate() {
		return Result{Status: domain.LocationFailed}
	}
	defer event.EndLocate()

	l.Stepper.SetEnvironment()

	if event.LocationHeld {
		return l.runHeldLocation()
	}

	// Seed the estimator state (identifications, dispersion, descent
	// direction) before the first step, so makeStep's line search has a
	// real direction and a real reference dispersion to compare against.
	if _, status, err := l.Stepper.internalPhaseID(l.Stages[0]); err != nil {
		return Result{Status: domain.LocationFailed}
	} else if status != domain.Success {
		return Result{Status: status}
	}

	totalIterations := 0
	lastStatus := domain.UnknownStatus
	var lastDispersion float64

	for stageIdx, stage := range l.Stages {
		l.resetTriage()
		if stage.Reidentify {
			l.resetUseFlags()
		}

		prevDispersion := l.Stepper.lastDispersion
		status := domain.Success

		for iter := 0; iter < stage.MaxIterations; iter++ {
			status = l.Stepper.makeStep(stageIdx, iter, stage)
			totalIterations++

			if status == domain.PhaseIDChanged {
				continue // the mutual-recursion case: re-run with fresh identification
			}
			if status != domain.Success {
				lastStatus = status
				break
			}

			dispersion := l.Stepper.lastDispersion
			if prevDispersion > 0 {
				relChange := absF(dispersion-prevDispersion) / prevDispersion
				if relChange < RelativeDispersionTolerance {
					status = domain.Success
					break
				}
			}
			prevDispersion = dispersion
		}

		l.saveWeightedResiduals()
		lastDispersion = l.Stepper.lastDispersion

		if isTerminalFailure(status) {
			return Result{Status: status, Iterations: totalIterations, FinalDispersion: lastDispersion}
		}
		lastStatus = status
	}

	// PhaseIDChanged is internal: a final stage whose last step re-identified
	// phases ends like one that ran out of iterations after a successful step.
	if lastStatus == domain.UnknownStatus || lastStatus == domain.PhaseIDChanged {
		lastStatus = domain.Success
	}
	return Result{Status: lastStatus, Iterations: totalIterations, FinalDispersion: lastDispersion}
}

// runHeldLocation skips iteration entirely: the hypocenter stays at its
// starting position, but environment/phase-ID/error statistics are still
// computed so the response is fully populated.
func (l *LocationLoop) runHeldLocation() Result {
	lastStage := l.Stages[len(l.Stages)-1]
	_, status, err := l.Stepper.internalPhaseID(lastStage)
	if err != nil {
		return Result{Status: domain.LocationFailed}
	}
	if status != domain.Success {
		return Result{Status: status}
	}
	l.saveWeightedResiduals()
	return Result{Status: domain.Success, FinalDispersion: l.Stepper.lastDispersion}
}

// resetTriage clears the per-pick triage flag set by a prior stage's
// InitialPhaseID-style rejection.
func (l *LocationLoop) resetTriage() {
	for _, p := range l.Stepper.Event.Picks {
		p.Triage = false
	}
}

// resetUseFlags reinstates picks removed by an earlier stage, giving the
// next (more permissive) re-identification pass a chance to re-associate
// them.
func (l *LocationLoop) resetUseFlags() {
	for _, p := range l.Stepper.Event.Picks {
		if !p.ForceAssociation {
			p.Used = true
		}
	}
}

// saveWeightedResiduals snapshots the current raw/projected residual
// vectors onto the event, so a caller inspecting the event mid-run (or
// after an early termination) sees the most recent valid state.
func (l *LocationLoop) saveWeightedResiduals() {
	// RawResiduals/ProjectedResiduals are already kept current by
	// Stepper.internalPhaseID; this is a named hook so stage transitions
	// have an explicit point to extend (e.g. persisting per-stage history).
}

func isTerminalFailure(status domain.ExitCode) bool {
	switch status {
	case domain.InsufficientData, domain.LocationFailed, domain.SingularMatrix:
		return true
	default:
		return false
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
