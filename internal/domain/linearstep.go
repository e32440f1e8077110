package domain

import "fmt"

// MaxBisectIterations bounds the bisection phase of LinearStep.Search.
const MaxBisectIterations = 50

// ResidualRebuilder recomputes a WeightedResidual vector (with identical
// phase identifications) for a hypothetical step of length lambda along the
// fixed descent direction, without re-running phase identification. It is
// supplied by the caller (Stepper), which owns the hypocenter and picks.
type ResidualRebuilder func(lambda float64) ([]WeightedResidual, error)

// LinearStep performs the 1-D line search of dispersion along a fixed
// descent direction.
type LinearStep struct {
	estimator RankSumEstimator
}

// NewLinearStep constructs a LinearStep.
func NewLinearStep() *LinearStep { return &LinearStep{} }

// trialResult captures one evaluated trial step length.
type trialResult struct {
	lambda     float64
	median     float64
	dispersion float64
}

func (l *LinearStep) evaluate(rebuild ResidualRebuilder, lambda float64) (trialResult, error) {
	residuals, err := rebuild(lambda)
	if err != nil {
		return trialResult{}, err
	}
	median := l.estimator.ComputeMedian(residuals)
	deMedianed := l.estimator.DeMedianResiduals(residuals)
	dispersion := l.estimator.ComputeDispersionValue(deMedianed)
	return trialResult{lambda: lambda, median: median, dispersion: dispersion}, nil
}

// Search finds the accepted step length along dir. prevLen is the previous
// iteration's step length (the trial grid unit), epsS is the stage
// convergence limit, lMax is the stage's maximum step length.
func (l *LinearStep) Search(prevLen, epsS, lMax float64, rebuild ResidualRebuilder) (acceptedLen, median, dispersion float64, err error) {
	if prevLen <= 0 {
		prevLen = epsS
	}

	var trials []trialResult
	zero, err := l.evaluate(rebuild, 0)
	if err != nil {
		return 0, 0, 0, err
	}
	trials = append(trials, zero)

	for lambda := prevLen; lambda <= lMax+1e-12; lambda += prevLen {
		t, err := l.evaluate(rebuild, lambda)
		if err != nil {
			return 0, 0, 0, err
		}
		trials = append(trials, t)
		if t.dispersion >= trials[len(trials)-2].dispersion {
			break
		}
	}

	if monotoneDecreasing(trials) {
		best := trials[len(trials)-1]
		return best.lambda, best.median, best.dispersion, nil
	}

	return l.bisect(trials, epsS, rebuild)
}

func monotoneDecreasing(trials []trialResult) bool {
	for i := 1; i < len(trials); i++ {
		if trials[i].dispersion > trials[i-1].dispersion {
			return false
		}
	}
	return len(trials) > 1
}

// bisect brackets the dispersion minimum using three trial values and
// bisects until the bracket width falls below epsS.
func (l *LinearStep) bisect(trials []trialResult, epsS float64, rebuild ResidualRebuilder) (float64, float64, float64, error) {
	// Find the best trial so far and bracket it with its neighbors.
	bestIdx := 0
	for i, t := range trials {
		if t.dispersion < trials[bestIdx].dispersion {
			bestIdx = i
		}
	}

	lo := trials[bestIdx].lambda
	hi := lo
	if bestIdx > 0 {
		lo = trials[bestIdx-1].lambda
	}
	if bestIdx+1 < len(trials) {
		hi = trials[bestIdx+1].lambda
	} else {
		hi = lo + (trials[bestIdx].lambda - lo + epsS)
	}
	if hi <= lo {
		hi = lo + epsS
	}

	best := trials[bestIdx]
	for i := 0; i < MaxBisectIterations && (hi-lo) > epsS; i++ {
		mid := (lo + hi) / 2.0
		t, err := l.evaluate(rebuild, mid)
		if err != nil {
			return 0, 0, 0, err
		}
		if t.dispersion < best.dispersion {
			best = t
		}
		if mid < best.lambda {
			lo = mid
		} else {
			hi = mid
		}
	}

	if (hi - lo) > epsS {
		return 0, 0, 0, fmt.Errorf("linear step: bisection did not converge within %d iterations", MaxBisectIterations)
	}

	return best.lambda, best.median, best.dispersion, nil
}
