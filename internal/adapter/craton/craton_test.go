package craton

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() Polygon {
	return Polygon{
		Name: "square",
		Vertices: []Vertex{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10}, {Lat: 10, Lon: 0},
		},
	}
}

func TestMap_InsideAnyCraton(t *testing.T) {
	m := NewMap([]Polygon{square()})

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"well inside", 5, 5, true},
		{"well outside", 20, 20, false},
		{"outside west of polygon", 5, -5, false},
		{"outside north of polygon", 15, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.InsideAnyCraton(tt.lat, tt.lon))
		})
	}
}

func TestMap_InsideAnyCraton_DegeneratePolygonIsNeverInside(t *testing.T) {
	m := NewMap([]Polygon{{Name: "line", Vertices: []Vertex{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}}})
	assert.False(t, m.InsideAnyCraton(0.5, 0.5))
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cratons.json")
	err := os.WriteFile(path, []byte(`[{"name":"square","vertices":[{"lat":0,"lon":0},{"lat":0,"lon":10},{"lat":10,"lon":10},{"lat":10,"lon":0}]}]`), 0o644)
	require.NoError(t, err)

	m, err := Load(path)
	require.NoError(t, err)
	assert.True(t, m.InsideAnyCraton(5, 5))
	assert.False(t, m.InsideAnyCraton(50, 50))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/cratons.json")
	assert.Error(t, err)
}

func TestDefaultCratons_CoversNorthAmericanInterior(t *testing.T) {
	m := NewMap(DefaultCratons())
	assert.True(t, m.InsideAnyCraton(45, -100))
	assert.False(t, m.InsideAnyCraton(0, 0))
}
