package domain

import "math"

// AssocTolerance is the arrival-time window (seconds) within which the
// no-reidentification path treats a theoretical phase with the current
// phase code as still valid.
const AssocTolerance = 3.0

// Tunable figure-of-merit weights: multiplicative factors above 1 boost a
// candidate (sticky, first-arrival), factors below 1 penalize it (other
// group, pick type, distance discrimination). They are exposed on
// PhaseIDConfig so callers can retune per stage.
const (
	DefaultGroupWeight               = 1.0
	DefaultOtherWeight                = 0.5
	DefaultTypePenalty                = 0.2
	DefaultStickyWeight               = 1.2
	DefaultDistanceDiscriminationPenalty = 0.1
	DefaultFirstArrivalBoost          = 1.5
	DefaultFirstArrivalBoostRangeDeg  = 100.0
)

// PhaseIDConfig carries the stage-tunable weights used by the
// figure-of-merit.
type PhaseIDConfig struct {
	GroupWeight                   float64
	OtherWeight                   float64
	StickyWeight                  float64
	TypePenalty                   float64
	DistanceDiscriminationPenalty float64
	FirstArrivalBoost             float64
	FirstArrivalBoostRangeDeg     float64
	Reidentify                    bool
}

// DefaultPhaseIDConfig returns the engine's default figure-of-merit weights.
func DefaultPhaseIDConfig() PhaseIDConfig {
	return PhaseIDConfig{
		GroupWeight:                   DefaultGroupWeight,
		OtherWeight:                   DefaultOtherWeight,
		StickyWeight:                  DefaultStickyWeight,
		TypePenalty:                   DefaultTypePenalty,
		DistanceDiscriminationPenalty: DefaultDistanceDiscriminationPenalty,
		FirstArrivalBoost:             DefaultFirstArrivalBoost,
		FirstArrivalBoostRangeDeg:     DefaultFirstArrivalBoostRangeDeg,
		Reidentify:                    true,
	}
}

// PhaseID assigns a theoretical phase to each observed pick by maximizing a
// cumulative figure-of-merit over permutations of picks and predicted
// arrivals.
type PhaseID struct {
	TT TravelTimeService
}

// NewPhaseID constructs a PhaseID bound to a travel-time service.
func NewPhaseID(tt TravelTimeService) *PhaseID {
	return &PhaseID{TT: tt}
}

// Identify runs phase identification over every pick group in the event and
// returns true iff any used pick's phase code changed.
func (p *PhaseID) Identify(event *Event, cfg PhaseIDConfig) (bool, error) {
	originTime := event.Hypo.OriginTime
	changed := false
	for _, group := range event.Groups {
		phases, err := p.TT.GetPhases(event.Hypo.DepthKm, group.Station.Latitude, group.Station.Longitude,
			group.Station.ElevKm, group.DistanceDeg, group.AzimuthDeg)
		if err != nil {
			return false, err
		}
		if len(phases) == 0 {
			continue
		}

		p.forceAssociateSurfaceWaves(group, phases, originTime)

		var groupChanged bool
		if cfg.Reidentify {
			groupChanged = p.identifyGroup(group, phases, cfg, originTime)
		} else {
			groupChanged = p.noReidentification(group, phases, cfg, originTime)
		}
		changed = changed || groupChanged
	}
	return changed, nil
}

// forceAssociateSurfaceWaves pre-fixes surface-wave picks from trusted
// sources to their matching theoretical phase.
func (p *PhaseID) forceAssociateSurfaceWaves(group *PickGroup, phases []TheoreticalPhase, originTime float64) {
	for _, pick := range group.Picks {
		if !pick.SurfaceWave || !pick.IsTrustedSource() {
			continue
		}
		for _, ph := range phases {
			if ph.Code == pick.ObservedPhase {
				pick.CurrentPhase = ph.Code
				pick.ForceAssociation = true
				pick.Residual = pick.ArrivalTime - (originTime + ph.ArrivalTime)
				pick.StatisticalFoM = math.Abs(pick.Affinity * pick.Residual)
				pick.SetMatchedPhase(ph)
				break
			}
		}
	}
}

// phaseCluster groups theoretical phases whose [t-spread, t+spread]
// intervals overlap.
type phaseCluster struct {
	phases  []TheoreticalPhase
	minTime float64
	maxTime float64
}

func clusterPhases(phases []TheoreticalPhase) []phaseCluster {
	if len(phases) == 0 {
		return nil
	}
	sorted := make([]TheoreticalPhase, len(phases))
	copy(sorted, phases)
	// Phases already arrive pre-ordered by arrival time per the
	// TravelTimeService contract; stable-sort defensively.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].ArrivalTime < sorted[j-1].ArrivalTime; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var clusters []phaseCluster
	cur := phaseCluster{
		phases:  []TheoreticalPhase{sorted[0]},
		minTime: sorted[0].ArrivalTime - sorted[0].Spread,
		maxTime: sorted[0].ArrivalTime + sorted[0].Spread,
	}
	for _, ph := range sorted[1:] {
		lo := ph.ArrivalTime - ph.Spread
		hi := ph.ArrivalTime + ph.Spread
		if lo <= cur.maxTime {
			cur.phases = append(cur.phases, ph)
			if hi > cur.maxTime {
				cur.maxTime = hi
			}
			if lo < cur.minTime {
				cur.minTime = lo
			}
			continue
		}
		clusters = append(clusters, cur)
		cur = phaseCluster{phases: []TheoreticalPhase{ph}, minTime: lo, maxTime: hi}
	}
	clusters = append(clusters, cur)
	return clusters
}

// identifyGroup runs the full cluster/permutation figure-of-merit search
// for one pick group.
func (p *PhaseID) identifyGroup(group *PickGroup, phases []TheoreticalPhase, cfg PhaseIDConfig, originTime float64) bool {
	changed := false
	firstArrivalAssigned := make(map[string]bool) // per phase group

	for _, cluster := range clusterPhases(phases) {
		var picks []*Pick
		for _, pick := range group.Picks {
			if pick.ForceAssociation || pick.Triage {
				continue
			}
			tt := pick.ArrivalTime - originTime
			if tt >= cluster.minTime && tt <= cluster.maxTime {
				picks = append(picks, pick)
			}
		}
		if len(picks) == 0 || len(cluster.phases) == 0 {
			continue
		}

		assignment, _ := bestAssignment(picks, cluster.phases, group, cfg, firstArrivalAssigned, originTime)
		for i, phaseIdx := range assignment {
			if phaseIdx < 0 {
				continue
			}
			pick := picks[i]
			ph := cluster.phases[phaseIdx]
			if pick.Used && pick.CurrentPhase != ph.Code {
				changed = true
			}
			pick.CurrentPhase = ph.Code
			pick.Residual = pick.ArrivalTime - (originTime + ph.ArrivalTime)
			pick.StatisticalFoM = math.Abs(pick.Affinity * pick.Residual)
			pick.SetMatchedPhase(ph)
			firstArrivalAssigned[ph.Group] = true
		}
	}
	return changed
}

// bestAssignment enumerates order-preserving k-permutations matching the
// smaller of (picks, phases) into the larger, returning the assignment
// (index into cluster phases per pick, or -1 if unmatched) with the
// maximum cumulative figure-of-merit.
func bestAssignment(picks []*Pick, phases []TheoreticalPhase, group *PickGroup, cfg PhaseIDConfig, firstArrival map[string]bool, originTime float64) ([]int, float64) {
	nPicks, nPhases := len(picks), len(phases)
	best := make([]int, nPicks)
	for i := range best {
		best[i] = -1
	}
	bestFoM := -1.0

	if nPicks <= nPhases {
		combos := combinations(nPhases, nPicks)
		for _, combo := range combos {
			fom := 1.0
			for i, phaseIdx := range combo {
				fom *= figureOfMerit(picks[i], phases[phaseIdx], group, cfg, firstArrival, originTime)
			}
			if fom > bestFoM {
				bestFoM = fom
				copy(best, combo)
			}
		}
	} else {
		combos := combinations(nPicks, nPhases)
		for _, combo := range combos {
			fom := 1.0
			assignment := make([]int, nPicks)
			for i := range assignment {
				assignment[i] = -1
			}
			for phaseIdx, pickIdx := range combo {
				fom *= figureOfMerit(picks[pickIdx], phases[phaseIdx], group, cfg, firstArrival, originTime)
				assignment[pickIdx] = phaseIdx
			}
			if fom > bestFoM {
				bestFoM = fom
				copy(best, assignment)
			}
		}
	}
	return best, bestFoM
}

// combinations returns every order-preserving k-combination of indices
// from [0,n), e.g. combinations(4,2) = [0 1] [0 2] [0 3] [1 2] [1 3] [2 3].
func combinations(n, k int) [][]int {
	if k <= 0 || k > n {
		return nil
	}
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]int, k)
		copy(combo, idx)
		out = append(out, combo)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}

// figureOfMerit computes probability * observability * proximityBoost for
// one (pick, theoretical phase) pairing, applying the observability
// modifiers in turn.
func figureOfMerit(pick *Pick, ph TheoreticalPhase, group *PickGroup, cfg PhaseIDConfig, firstArrival map[string]bool, originTime float64) float64 {
	dt := pick.ArrivalTime - (originTime + ph.ArrivalTime)
	probability := cauchyPDF(dt, ph.Spread)

	observability := ph.Observability
	if ph.DistanceDiscriminated {
		observability *= cfg.DistanceDiscriminationPenalty
	}

	if phaseGroupMatches(pick.ObservedPhase, ph) {
		observability *= cfg.GroupWeight
	} else {
		observability *= cfg.OtherWeight
	}

	if !pick.IsAutomatic() && pick.ObservedPhase != "" && ph.ArrivalType() != "" {
		if arrivalType(pick.ObservedPhase) != ph.ArrivalType() {
			observability *= cfg.TypePenalty
		}
	}

	if pick.ObservedPhase == ph.Code {
		observability *= pick.Affinity
	}
	if pick.CurrentPhase == ph.Code {
		observability *= cfg.StickyWeight
	}

	if !firstArrival[ph.Group] && group.DistanceDeg > cfg.FirstArrivalBoostRangeDeg {
		observability *= cfg.FirstArrivalBoost
	}

	affinityResidual := pick.Affinity * dt
	proximityBoost := 1.0 / (1.0 + math.Abs(affinityResidual))

	return probability * observability * proximityBoost
}

// cauchyPDF is the Cauchy-kernel probability density used for arrival-time
// proximity, scaled by the theoretical phase's spread.
func cauchyPDF(dt, scale float64) float64 {
	if scale <= 0 {
		scale = 1e-3
	}
	x := dt / scale
	return 1.0 / (math.Pi * scale * (1 + x*x))
}

// isGenericCode reports whether a phase code is a bare primary-group code
// (e.g. "P", "S") rather than a specific phase (e.g. "Pn", "PKP").
func isGenericCode(code string) bool {
	return len(code) == 1
}

// arrivalType returns "P" or "S" for a phase code's leading letter.
func arrivalType(code string) string {
	if len(code) == 0 {
		return ""
	}
	switch code[0] {
	case 'P', 'p':
		return "P"
	case 'S', 's':
		return "S"
	default:
		return ""
	}
}

// phaseGroupMatches reports whether an observed phase code matches a
// theoretical phase's primary group, or its auxiliary group when the
// observed code is generic.
func phaseGroupMatches(observed string, ph TheoreticalPhase) bool {
	if observed == "" {
		return false
	}
	if observed == ph.Group {
		return true
	}
	if isGenericCode(observed) && observed == ph.AuxGroup {
		return true
	}
	return false
}

// noReidentification tries to preserve existing identifications: keep the
// current phase code if a theoretical phase with the same code is within
// AssocTolerance; fall back to the same phase group; fall back to the full
// re-identifier only if nothing matches. The fallback is a single bounded
// pass, never recursive.
func (p *PhaseID) noReidentification(group *PickGroup, phases []TheoreticalPhase, cfg PhaseIDConfig, originTime float64) bool {
	changed := false
	var unresolved []*Pick

	for _, pick := range group.Picks {
		if pick.ForceAssociation || pick.Triage {
			continue
		}
		if pick.CurrentPhase == "" {
			unresolved = append(unresolved, pick)
			continue
		}

		resolved := false
		for _, ph := range phases {
			if ph.Code == pick.CurrentPhase && math.Abs(pick.ArrivalTime-(originTime+ph.ArrivalTime)) <= AssocTolerance {
				pick.Residual = pick.ArrivalTime - (originTime + ph.ArrivalTime)
				pick.StatisticalFoM = math.Abs(pick.Affinity * pick.Residual)
				pick.SetMatchedPhase(ph)
				resolved = true
				break
			}
		}
		if resolved {
			continue
		}

		for _, ph := range phases {
			if phaseGroupMatches(pick.CurrentPhase, ph) {
				if pick.Used && pick.CurrentPhase != ph.Code {
					changed = true
				}
				pick.CurrentPhase = ph.Code
				pick.Residual = pick.ArrivalTime - (originTime + ph.ArrivalTime)
				pick.StatisticalFoM = math.Abs(pick.Affinity * pick.Residual)
				pick.SetMatchedPhase(ph)
				resolved = true
				break
			}
		}
		if !resolved {
			unresolved = append(unresolved, pick)
		}
	}

	if len(unresolved) > 0 {
		sub := &PickGroup{Station: group.Station, Picks: unresolved, DistanceDeg: group.DistanceDeg, AzimuthDeg: group.AzimuthDeg}
		if p.identifyGroup(sub, phases, cfg, originTime) {
			changed = true
		}
	}

	return changed
}
