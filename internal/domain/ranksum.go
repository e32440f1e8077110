package domain

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// RankSumEstimator computes the robust (L1-like) statistics the step
// controller drives on: the weighted median (origin-time correction), the
// dispersion value it descends on, and the steepest-descent direction.
type RankSumEstimator struct{}

// NewRankSumEstimator constructs a RankSumEstimator. It carries no state of
// its own; every method is a pure function of the residual vector passed
// to it.
func NewRankSumEstimator() *RankSumEstimator { return &RankSumEstimator{} }

// rankedResidual pairs a residual's value/weight with its rank among the
// vector, used by both the median and the steepest-descent direction.
type rankedResidual struct {
	index  int
	value  float64
	weight float64
	rank   float64 // 1-based, averaged across ties
}

// rankResiduals sorts residuals ascending by value and assigns 1-based
// ranks, averaging ranks across ties.
func rankResiduals(residuals []WeightedResidual) []rankedResidual {
	ranked := make([]rankedResidual, len(residuals))
	for i, r := range residuals {
		ranked[i] = rankedResidual{index: i, value: r.Residual, weight: r.Weight}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value < ranked[j].value })

	i := 0
	for i < len(ranked) {
		j := i
		for j+1 < len(ranked) && ranked[j+1].value == ranked[i].value {
			j++
		}
		avgRank := float64(i+j+2) / 2.0 // 1-based average of (i+1)..(j+1)
		for k := i; k <= j; k++ {
			ranked[k].rank = avgRank
		}
		i = j + 1
	}
	return ranked
}

// ComputeMedian returns the weighted median of the residuals: the point at
// which the cumulative weight function crosses half the total weight,
// linearly interpolated between adjacent residual values.
func (RankSumEstimator) ComputeMedian(residuals []WeightedResidual) float64 {
	if len(residuals) == 0 {
		return 0
	}
	ranked := make([]rankedResidual, len(residuals))
	for i, r := range residuals {
		ranked[i] = rankedResidual{value: r.Residual, weight: r.Weight}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value < ranked[j].value })

	total := 0.0
	for _, r := range ranked {
		total += r.weight
	}
	if total <= 0 {
		return ranked[len(ranked)/2].value
	}
	half := total / 2.0

	cum := 0.0
	for i, r := range ranked {
		prevCum := cum
		cum += r.weight
		if cum >= half {
			if i == 0 || prevCum == cum {
				return r.value
			}
			prev := ranked[i-1]
			frac := (half - prevCum) / (cum - prevCum)
			return prev.value + frac*(r.value-prev.value)
		}
	}
	return ranked[len(ranked)-1].value
}

// DeMedianResiduals returns a copy of residuals with the weighted median
// subtracted from every residual; the input slice is left unchanged.
func (e RankSumEstimator) DeMedianResiduals(residuals []WeightedResidual) []WeightedResidual {
	median := e.ComputeMedian(residuals)
	out := make([]WeightedResidual, len(residuals))
	for i, r := range residuals {
		r.Residual -= median
		out[i] = r
	}
	return out
}

// DeMedianDesignMatrix subtracts the weighted column means from each design
// row, used before computing the steepest-descent direction.
func (RankSumEstimator) DeMedianDesignMatrix(residuals []WeightedResidual) []WeightedResidual {
	var totalWeight float64
	var colSum [3]float64
	for _, r := range residuals {
		totalWeight += r.Weight
		for k := 0; k < 3; k++ {
			colSum[k] += r.Weight * r.Design[k]
		}
	}
	var colMean [3]float64
	if totalWeight > 0 {
		for k := 0; k < 3; k++ {
			colMean[k] = colSum[k] / totalWeight
		}
	}

	out := make([]WeightedResidual, len(residuals))
	for i, r := range residuals {
		for k := 0; k < 3; k++ {
			r.Design[k] -= colMean[k]
		}
		out[i] = r
	}
	return out
}

// rho is the piecewise-linear rank-sum penalty: even-symmetric, convex and
// monotone in |x|. Degenerates to the L1 penalty (the choice the rest of the engine
// assumes when asserting dispersion properties in tests).
func rho(x float64) float64 {
	return math.Abs(x)
}

// ComputeDispersionValue returns sum_i rho(w_i * residual_i).
func (RankSumEstimator) ComputeDispersionValue(residuals []WeightedResidual) float64 {
	sum := 0.0
	for _, r := range residuals {
		sum += rho(r.Weight * r.Residual)
	}
	return sum
}

// ResidualSummary is a diagnostic spread summary of a weighted residual
// vector, reported alongside the dispersion value the estimator actually
// descends on.
type ResidualSummary struct {
	Median   float64 // unweighted median of the residuals
	RMSEquiv float64 // weighted RMS of the residuals
	Spread90 float64 // 90th percentile of the absolute residuals
}

// SummarizeResiduals computes the diagnostic summary for a residual vector.
// The depth-prior entry is excluded: its residual is in km, not seconds.
func (RankSumEstimator) SummarizeResiduals(residuals []WeightedResidual) ResidualSummary {
	values := make(stats.Float64Data, 0, len(residuals))
	absValues := make(stats.Float64Data, 0, len(residuals))
	sumSq, sumW := 0.0, 0.0
	for _, r := range residuals {
		if r.IsDepthPrior {
			continue
		}
		values = append(values, r.Residual)
		absValues = append(absValues, math.Abs(r.Residual))
		sumSq += r.Weight * r.Weight * r.Residual * r.Residual
		sumW += r.Weight * r.Weight
	}
	if len(values) == 0 {
		return ResidualSummary{}
	}

	var s ResidualSummary
	if m, err := stats.Median(values); err == nil {
		s.Median = m
	}
	if p, err := stats.Percentile(absValues, 90); err == nil {
		s.Spread90 = p
	}
	if sumW > 0 {
		s.RMSEquiv = math.Sqrt(sumSq / sumW)
	}
	return s
}

// CompSteepestDescDir returns the unit-length steepest-descent direction
// (dof-vector) for the de-medianed residual vector: a weighted sum of
// score(rank)·designRow, normalized to unit length. Returns a zero vector
// if every residual ranks at the center (all residuals effectively equal).
func (RankSumEstimator) CompSteepestDescDir(residuals []WeightedResidual, dof int) []float64 {
	n := len(residuals)
	dir := make([]float64, dof)
	if n == 0 {
		return dir
	}
	ranked := rankResiduals(residuals)

	for _, rr := range ranked {
		score := (2*rr.rank - float64(n) - 1) / float64(n)
		design := residuals[rr.index].Design
		w := rr.weight
		for k := 0; k < dof; k++ {
			dir[k] += w * score * design[k]
		}
	}

	norm := 0.0
	for _, v := range dir {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm < 1e-15 {
		return make([]float64, dof)
	}
	for k := range dir {
		dir[k] /= norm
	}
	return dir
}
