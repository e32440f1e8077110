// Package traveltime implements domain.TravelTimeService against ak135-style
// travel-time tables stored as NetCDF grids keyed by (epicentral distance,
// source depth), one file per earth model. Tables load lazily behind a
// shared/exclusive lock and are cached per earth model.
package traveltime

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/usgs/neic-locator-go/internal/adapter/interp"
	"github.com/usgs/neic-locator-go/internal/domain"
	"github.com/usgs/neic-locator-go/internal/locerr"
)

// phaseMeta is the static (non-gridded) metadata for one modeled phase.
type phaseMeta struct {
	code                  string
	group                 string
	auxGroup              string
	distanceDiscriminated bool
	regional              bool
}

// modeledPhases is the fixed set of phases this service's NetCDF tables
// carry. Real ak135 tables carry many more; this is the working subset the
// reference data ships for the pack's test fixtures.
var modeledPhases = []phaseMeta{
	{code: "P", group: "P", auxGroup: "P"},
	{code: "Pn", group: "P", auxGroup: "P", regional: true},
	{code: "pP", group: "P", auxGroup: "P"},
	{code: "PcP", group: "P", auxGroup: "P", distanceDiscriminated: true},
	{code: "PKP", group: "P", auxGroup: "P", distanceDiscriminated: true},
	{code: "S", group: "S", auxGroup: "S"},
	{code: "Sn", group: "S", auxGroup: "S", regional: true},
	{code: "sS", group: "S", auxGroup: "S"},
	{code: "ScS", group: "S", auxGroup: "S", distanceDiscriminated: true},
}

// grids holds the interpolable (distance, depth) tables for one phase.
type grids struct {
	time          *interp.Grid2D
	spread        *interp.Grid2D
	observability *interp.Grid2D
	rayParam      *interp.Grid2D
	dtdz          *interp.Grid2D
}

// session is the loaded state for one earth model.
type session struct {
	phases map[string]grids
}

// Service implements domain.TravelTimeService, caching one session per
// earth model behind a shared/exclusive lock.
type Service struct {
	dataDir string

	mu         sync.RWMutex
	earthModel string
	sessions   map[string]*session
}

// NewService constructs a Service reading NetCDF grids from dataDir
// (one file per earth model, named "<model>.nc").
func NewService(dataDir string) *Service {
	return &Service{dataDir: dataDir, sessions: make(map[string]*session)}
}

// SetEarthModel switches the active earth model. The underlying session is
// loaded lazily on first GetPhases call, not here.
func (s *Service) SetEarthModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earthModel = model
	return nil
}

// GetPhases interpolates every modeled phase's table at (distanceDeg,
// depthKm) and returns the ones that are defined there (a phase is
// undefined where its time grid holds NaN, e.g. outside its shadow-zone
// boundary), ordered by arrival time.
func (s *Service) GetPhases(depthKm, staLat, staLon, staElevKm, distanceDeg, azimuthDeg float64) ([]domain.TheoreticalPhase, error) {
	if depthKm < domain.DepthMin || depthKm > domain.DepthMax {
		return nil, locerr.Wrap(locerr.ErrBadDepth, "traveltime: depth %.2f km outside table range", depthKm)
	}

	sess, err := s.getSession()
	if err != nil {
		return nil, err
	}

	var out []domain.TheoreticalPhase
	for _, meta := range modeledPhases {
		g, ok := sess.phases[meta.code]
		if !ok {
			continue
		}
		t, err := g.time.InterpolateAt(distanceDeg, depthKm)
		if err != nil || math.IsNaN(t) {
			continue
		}
		spread, _ := g.spread.InterpolateAt(distanceDeg, depthKm)
		observability, _ := g.observability.InterpolateAt(distanceDeg, depthKm)
		rayParam, _ := g.rayParam.InterpolateAt(distanceDeg, depthKm)
		dtdz, _ := g.dtdz.InterpolateAt(distanceDeg, depthKm)

		out = append(out, domain.TheoreticalPhase{
			Code:                  meta.code,
			Group:                 meta.group,
			AuxGroup:              meta.auxGroup,
			ArrivalTime:           t,
			Spread:                spread,
			Observability:         observability,
			RayParamSecPerDeg:     rayParam,
			DTdZ:                  dtdz,
			DistanceDiscriminated: meta.distanceDiscriminated,
			Regional:              meta.regional,
		})
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ArrivalTime < out[j-1].ArrivalTime; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// getSession returns the cached session for the current earth model,
// loading it from disk on first use.
func (s *Service) getSession() (*session, error) {
	s.mu.RLock()
	model := s.earthModel
	if sess, ok := s.sessions[model]; ok {
		s.mu.RUnlock()
		return sess, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[model]; ok {
		return sess, nil
	}

	sess, err := s.loadSession(model)
	if err != nil {
		return nil, err
	}
	s.sessions[model] = sess
	return sess, nil
}

// loadSession opens "<dataDir>/<model>.nc" and builds one Grid2D per
// (phase, quantity), with the grid axes keyed to (distance, depth).
func (s *Service) loadSession(model string) (*session, error) {
	path := filepath.Join(s.dataDir, model+".nc")
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("traveltime: failed to open %s: %w", path, err)
	}
	defer nc.Close()

	distance, err := readDim(nc, "distance")
	if err != nil {
		return nil, err
	}
	depth, err := readDim(nc, "depth")
	if err != nil {
		return nil, err
	}

	sess := &session{phases: make(map[string]grids, len(modeledPhases))}
	for _, meta := range modeledPhases {
		g, err := loadPhaseGrids(nc, meta.code, distance, depth)
		if err != nil {
			continue // phase not present in this model's table
		}
		sess.phases[meta.code] = g
	}
	return sess, nil
}

func loadPhaseGrids(nc netcdf.File, code string, distance, depth []float64) (grids, error) {
	t, err := readVarGrid(nc, code+"_time", distance, depth)
	if err != nil {
		return grids{}, err
	}
	spread, err := readVarGrid(nc, code+"_spread", distance, depth)
	if err != nil {
		return grids{}, err
	}
	obs, err := readVarGrid(nc, code+"_observability", distance, depth)
	if err != nil {
		return grids{}, err
	}
	rayParam, err := readVarGrid(nc, code+"_dtdd", distance, depth)
	if err != nil {
		return grids{}, err
	}
	dtdz, err := readVarGrid(nc, code+"_dtdz", distance, depth)
	if err != nil {
		return grids{}, err
	}
	return grids{time: t, spread: spread, observability: obs, rayParam: rayParam, dtdz: dtdz}, nil
}

func readDim(nc netcdf.File, name string) ([]float64, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("traveltime: missing dimension variable %q: %w", name, err)
	}
	return readFloat64Var(v)
}

func readVarGrid(nc netcdf.File, name string, distance, depth []float64) (*interp.Grid2D, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("traveltime: missing variable %q: %w", name, err)
	}
	flat, err := readFloat64Var(v)
	if err != nil {
		return nil, err
	}
	nDist, nDepth := len(distance), len(depth)
	if len(flat) != nDist*nDepth {
		return nil, fmt.Errorf("traveltime: variable %q has %d values, expected %d", name, len(flat), nDist*nDepth)
	}

	values := make([][]float64, nDepth)
	for i := 0; i < nDepth; i++ {
		row := make([]float64, nDist)
		copy(row, flat[i*nDist:(i+1)*nDist])
		values[i] = row
	}
	return &interp.Grid2D{X: distance, Y: depth, Values: values}, nil
}

// readFloat64Var reads an entire 1-D or flattened N-D NetCDF float variable.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("traveltime: failed to get dimensions: %w", err)
	}
	n := uint64(1)
	for _, d := range dims {
		l, err := d.Len()
		if err != nil {
			return nil, err
		}
		n *= l
	}

	if t, err := v.Type(); err == nil && t == netcdf.DOUBLE {
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	}

	buf := make([]float32, n)
	if err := v.ReadFloat32s(buf); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, x := range buf {
		out[i] = float64(x)
	}
	return out, nil
}
