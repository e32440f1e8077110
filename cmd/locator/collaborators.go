package main

import (
	"path/filepath"

	"github.com/usgs/neic-locator-go/internal/adapter/craton"
	"github.com/usgs/neic-locator-go/internal/adapter/traveltime"
	"github.com/usgs/neic-locator-go/internal/adapter/zonestats"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

// buildCollaborators wires the process-wide, read-only auxiliary data every
// Engine shares: a travel-time service, a craton map and a zone-stats
// table. The travel-time grids and zone statistics are loaded lazily on
// first use; the craton file is read here, falling back to the built-in
// craton set if it cannot be loaded.
func buildCollaborators() (usecase.Collaborators, error) {
	tt := traveltime.NewService(modelPath)

	var cratonMap *craton.Map
	if cratonPath != "" {
		loaded, err := craton.Load(cratonPath)
		if err != nil {
			loaded = craton.NewMap(craton.DefaultCratons())
		}
		cratonMap = loaded
	} else {
		cratonMap = craton.NewMap(craton.DefaultCratons())
	}

	zoneCache := filepath.Join(cacheDir, "zonestats.gob")
	zones := zonestats.NewLoader(zoneKeyPath, zoneStatPath, zoneCache)

	return usecase.Collaborators{
		TravelTime: tt,
		Craton:     cratonMap,
		Zones:      zones,
	}, nil
}
