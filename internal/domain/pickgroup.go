package domain

import (
	"math"
	"sort"
)

// PickGroup holds all picks from one station, sorted by arrival time, along
// with the epicentral distance and azimuth derived from the current
// hypocenter.
type PickGroup struct {
	Station Station
	Picks   []*Pick

	DistanceDeg float64 // epicentral distance, degrees
	AzimuthDeg  float64 // degrees from source to station, clockwise from north
}

// NewPickGroup builds a pick group for one station, sorting its picks by
// arrival time, keeping iteration order deterministic.
func NewPickGroup(station Station, picks []*Pick) *PickGroup {
	sorted := make([]*Pick, len(picks))
	copy(sorted, picks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ArrivalTime < sorted[j].ArrivalTime
	})
	return &PickGroup{Station: station, Picks: sorted}
}

// UpdateGeometry recomputes DistanceDeg and AzimuthDeg for the current
// hypocenter position. Must be called whenever the hypocenter moves.
func (g *PickGroup) UpdateGeometry(h *Hypocenter) {
	g.DistanceDeg, g.AzimuthDeg = EpicentralDistanceAzimuth(
		h.Latitude, h.Longitude, g.Station.Latitude, g.Station.Longitude)
}

// EpicentralDistanceAzimuth returns the great-circle distance (degrees) and
// azimuth (degrees clockwise from north, source to station) between a
// source and a station, both given as geographic lat/lon in degrees.
func EpicentralDistanceAzimuth(srcLat, srcLon, staLat, staLon float64) (distDeg, azDeg float64) {
	srcColat := Deg2Rad(colatitudeFromLatitude(srcLat))
	staColat := Deg2Rad(colatitudeFromLatitude(staLat))
	dLon := Deg2Rad(staLon - srcLon)

	cosDist := math.Cos(srcColat)*math.Cos(staColat) + math.Sin(srcColat)*math.Sin(staColat)*math.Cos(dLon)
	cosDist = math.Max(-1, math.Min(1, cosDist))
	distRad := math.Acos(cosDist)
	distDeg = Rad2Deg(distRad)

	y := math.Sin(dLon) * math.Sin(staColat)
	x := math.Sin(srcColat)*math.Cos(staColat) - math.Cos(srcColat)*math.Sin(staColat)*math.Cos(dLon)
	azRad := math.Atan2(y, x)
	azDeg = Rad2Deg(azRad)
	if azDeg < 0 {
		azDeg += 360
	}
	return distDeg, azDeg
}

// SortPickGroups orders pick groups by (distance, then station id), per the
// stably-sorted iteration discipline the engine relies on.
func SortPickGroups(groups []*PickGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].DistanceDeg != groups[j].DistanceDeg {
			return groups[i].DistanceDeg < groups[j].DistanceDeg
		}
		return groups[i].Station.ID() < groups[j].Station.ID()
	})
}
