package domain

import "sort"

// Event is the aggregate root for one location run: the hypocenter, the
// station set, pick groups, the flat pick list, the audit trail, and the
// configured processing flags.
//
// Event owns all of this data; Stepper and PhaseID borrow it mutably for
// the duration of a call — nested Locate calls on the same Event are
// forbidden by the Engine that wraps it.
type Event struct {
	Hypo *Hypocenter

	Stations map[string]Station
	Groups   []*PickGroup
	Picks    []*Pick

	Audits *AuditTrail

	RawResiduals       []WeightedResidual
	ProjectedResiduals []WeightedResidual

	LocationHeld     bool
	DepthHeld        bool
	DepthManual      bool
	UseDecorrelation bool
	LocationRestarted bool

	locating bool
}

// NewEvent builds an Event from a hypocenter and picks keyed by station,
// grouping them per station and sorting both the groups and the flat pick
// list deterministically.
func NewEvent(hypo *Hypocenter, picksByStation map[Station][]*Pick) *Event {
	e := &Event{
		Hypo:     hypo,
		Stations: make(map[string]Station, len(picksByStation)),
		Audits:   NewAuditTrail(64),
	}

	for station, picks := range picksByStation {
		e.Stations[station.ID()] = station
		group := NewPickGroup(station, picks)
		for _, p := range group.Picks {
			*p = withStation(*p, station)
		}
		group.UpdateGeometry(hypo)
		e.Groups = append(e.Groups, group)
	}
	SortPickGroups(e.Groups)

	for _, g := range e.Groups {
		e.Picks = append(e.Picks, g.Picks...)
	}
	sort.SliceStable(e.Picks, func(i, j int) bool {
		gi, gj := e.Picks[i].station, e.Picks[j].station
		if gi.ID() != gj.ID() {
			return gi.ID() < gj.ID()
		}
		return e.Picks[i].ArrivalTime < e.Picks[j].ArrivalTime
	})

	return e
}

func withStation(p Pick, s Station) Pick {
	p.station = s
	return p
}

// UsedStationCount returns the number of distinct stations with at least
// one used pick.
func (e *Event) UsedStationCount() int {
	count := 0
	for _, g := range e.Groups {
		for _, p := range g.Picks {
			if p.Used {
				count++
				break
			}
		}
	}
	return count
}

// UsedPickCount returns the number of used picks across all groups.
func (e *Event) UsedPickCount() int {
	count := 0
	for _, p := range e.Picks {
		if p.Used {
			count++
		}
	}
	return count
}

// UpdateAllGeometry recomputes distance/azimuth for every group against the
// current hypocenter position. Must be called after any hypocenter move.
func (e *Event) UpdateAllGeometry() {
	for _, g := range e.Groups {
		g.UpdateGeometry(e.Hypo)
	}
}

// BeginLocate marks the event as actively locating, returning false if a
// Locate call is already in progress (re-entrancy guard).
func (e *Event) BeginLocate() bool {
	if e.locating {
		return false
	}
	e.locating = true
	return true
}

// EndLocate clears the re-entrancy guard set by BeginLocate.
func (e *Event) EndLocate() {
	e.locating = false
}
