// Package craton implements domain.CratonMap as a fixed set of named
// continental craton polygons loaded once at process start and shared,
// read-only, across every Engine instance.
package craton

import (
	"encoding/json"
	"fmt"
	"os"
)

// Vertex is one ordered (lat, lon) polygon vertex in degrees.
type Vertex struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is one named craton boundary.
type Polygon struct {
	Name     string   `json:"name"`
	Vertices []Vertex `json:"vertices"`
}

// Map is an immutable set of craton polygons.
type Map struct {
	polygons []Polygon
}

// Load reads a JSON-encoded polygon set from path.
func Load(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("craton: failed to read %s: %w", path, err)
	}
	var polygons []Polygon
	if err := json.Unmarshal(raw, &polygons); err != nil {
		return nil, fmt.Errorf("craton: failed to parse %s: %w", path, err)
	}
	return &Map{polygons: polygons}, nil
}

// NewMap builds a Map directly from an in-memory polygon set (used by
// tests and any in-process default set).
func NewMap(polygons []Polygon) *Map {
	return &Map{polygons: polygons}
}

// InsideAnyCraton reports whether (lat, lon) falls inside any craton
// polygon, via the standard ray-casting point-in-polygon test.
func (m *Map) InsideAnyCraton(lat, lon float64) bool {
	for _, p := range m.polygons {
		if pointInPolygon(lat, lon, p.Vertices) {
			return true
		}
	}
	return false
}

// pointInPolygon is the even-odd ray-casting test against the polygon's
// (lat, lon) vertex ring.
func pointInPolygon(lat, lon float64, vertices []Vertex) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := vertices[i], vertices[j]
		if (vi.Lon > lon) != (vj.Lon > lon) {
			slope := (vj.Lat - vi.Lat) / (vj.Lon - vi.Lon)
			latAtLon := vi.Lat + slope*(lon-vi.Lon)
			if lat < latAtLon {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// DefaultCratons returns a conservative built-in set covering the stable
// continental interiors the craton-flag fixtures exercise
// (North American craton, used as the "isTectonic=false" fixture).
func DefaultCratons() []Polygon {
	return []Polygon{
		{
			Name: "north_american_craton",
			Vertices: []Vertex{
				{Lat: 60, Lon: -110}, {Lat: 60, Lon: -90}, {Lat: 40, Lon: -80},
				{Lat: 30, Lon: -95}, {Lat: 40, Lon: -110},
			},
		},
	}
}
