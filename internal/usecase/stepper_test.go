package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usgs/neic-locator-go/internal/domain"
)

type fixedCraton struct{ inside bool }

func (c fixedCraton) InsideAnyCraton(lat, lon float64) bool { return c.inside }

type fixedZonePrior struct {
	mean, spread float64
	ok           bool
}

func (z fixedZonePrior) DepthPrior(lat, lon float64) (float64, float64, bool) {
	return z.mean, z.spread, z.ok
}

func testEvent(t *testing.T) *domain.Event {
	t.Helper()
	hypo := domain.NewHypocenter(1_700_000_000, 45.0, -100.0, 15.0)
	return domain.NewEvent(hypo, map[domain.Station][]*domain.Pick{})
}

func TestSetEnvironment_TectonicFlagFromCraton(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}

	event := testEvent(t)
	inside := NewStepper(event, model, fixedCraton{inside: true}, fixedZonePrior{}, nil)
	inside.SetEnvironment()
	assert.False(t, event.Hypo.IsTectonic, "inside a craton is not tectonic")

	event = testEvent(t)
	outside := NewStepper(event, model, fixedCraton{inside: false}, fixedZonePrior{}, nil)
	outside.SetEnvironment()
	assert.True(t, event.Hypo.IsTectonic)
}

func TestSetEnvironment_Idempotent(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	event := testEvent(t)
	s := NewStepper(event, model, fixedCraton{inside: true}, fixedZonePrior{mean: 33.0, spread: 25.0, ok: true}, nil)

	s.SetEnvironment()
	tectonic1 := event.Hypo.IsTectonic
	depth1, spread1 := event.Hypo.BayesDepth, event.Hypo.BayesSpread

	s.SetEnvironment()
	assert.Equal(t, tectonic1, event.Hypo.IsTectonic)
	assert.Equal(t, depth1, event.Hypo.BayesDepth)
	assert.Equal(t, spread1, event.Hypo.BayesSpread)
}

func TestSetEnvironment_FloorsZoneSpread(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	event := testEvent(t)
	s := NewStepper(event, model, fixedCraton{}, fixedZonePrior{mean: 12.0, spread: 1.0, ok: true}, nil)

	s.SetEnvironment()
	require.True(t, event.Hypo.BayesDepthSet)
	assert.Equal(t, 12.0, event.Hypo.BayesDepth)
	assert.Equal(t, DefaultDepthSE, event.Hypo.BayesSpread)
}

func TestSetEnvironment_AnalystPriorIsNotOverwritten(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	event := testEvent(t)
	event.DepthManual = true
	event.Hypo.SetBayesDepth(10.0, 3.0)

	s := NewStepper(event, model, fixedCraton{}, fixedZonePrior{mean: 500.0, spread: 100.0, ok: true}, nil)
	s.SetEnvironment()

	assert.Equal(t, 10.0, event.Hypo.BayesDepth)
	assert.Equal(t, 3.0, event.Hypo.BayesSpread)
}

func TestComputeDampeningFactor_BoundedAndMonotone(t *testing.T) {
	prev := 1.0
	for count := 1; count <= 30; count++ {
		f := computeDampeningFactor(count)
		assert.GreaterOrEqual(t, f, 0.1)
		assert.LessOrEqual(t, f, 0.9)
		assert.LessOrEqual(t, f, prev)
		prev = f
	}
}

func TestBuildResidualVector_DepthPriorIsAlwaysLast(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	const origin = 1_700_000_000.0

	stations := []domain.Station{
		{Code: "AAA", Network: "XX", Latitude: 36.5, Longitude: -118.0},
		{Code: "BBB", Network: "XX", Latitude: 35.5, Longitude: -118.0},
		{Code: "CCC", Network: "XX", Latitude: 36.0, Longitude: -117.3},
	}
	var picks []PickInput
	for _, s := range stations {
		distDeg, _ := domain.EpicentralDistanceAzimuth(36.0, -118.0, s.Latitude, s.Longitude)
		picks = append(picks, PickInput{
			StationCode:     s.Code,
			Network:         s.Network,
			Latitude:        s.Latitude,
			Longitude:       s.Longitude,
			TimeEpochMs:     int64((origin + model.distSlope*distDeg) * 1000),
			AssociatedPhase: "P",
			Use:             true,
			Quality:         1.0,
			Affinity:        domain.NullAffinity,
		})
	}
	req := LocateRequest{
		SourceOriginTimeEpochMs: int64(origin * 1000),
		SourceLatitude:          36.0,
		SourceLongitude:         -118.0,
		SourceDepthKm:           10.0,
		Picks:                   picks,
	}
	engine, err := NewEngine(req, model, fixedCraton{}, fixedZonePrior{}, nil)
	require.NoError(t, err)

	_, status, err := engine.Stepper.internalPhaseID(DefaultStageTable()[0])
	require.NoError(t, err)
	require.Equal(t, domain.Success, status)

	residuals := engine.Event.RawResiduals
	require.NotEmpty(t, residuals)
	last := residuals[len(residuals)-1]
	assert.True(t, last.IsDepthPrior)
	assert.Nil(t, last.Pick)
	assert.Equal(t, [3]float64{0, 0, 1}, last.Design)
	for _, r := range residuals[:len(residuals)-1] {
		assert.False(t, r.IsDepthPrior)
		assert.NotNil(t, r.Pick)
	}
}

func TestEngine_Locate_TwoStationsIsInsufficient(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	const origin = 1_700_000_000.0
	const lat, lon, depth = 36.0, -118.0, 15.0

	stations := []domain.Station{
		{Code: "AAA", Network: "XX", Latitude: 36.5, Longitude: -118.0},
		{Code: "BBB", Network: "XX", Latitude: 35.5, Longitude: -118.0},
	}
	var picks []PickInput
	for _, s := range stations {
		distDeg, _ := domain.EpicentralDistanceAzimuth(lat, lon, s.Latitude, s.Longitude)
		picks = append(picks, PickInput{
			StationCode:     s.Code,
			Network:         s.Network,
			Latitude:        s.Latitude,
			Longitude:       s.Longitude,
			TimeEpochMs:     int64((origin + model.distSlope*distDeg + model.depthSlope*depth) * 1000),
			AssociatedPhase: "P",
			Use:             true,
			Quality:         1.0,
			Affinity:        domain.NullAffinity,
		})
	}
	req := LocateRequest{
		SourceOriginTimeEpochMs: int64(origin * 1000),
		SourceLatitude:          lat,
		SourceLongitude:         lon,
		SourceDepthKm:           depth,
		Picks:                   picks,
	}
	engine, err := NewEngine(req, model, fixedCraton{}, fixedZonePrior{}, nil)
	require.NoError(t, err)

	resp := engine.Locate()
	assert.Equal(t, domain.InsufficientData.String(), resp.ExitCode)
	assert.Equal(t, lat, resp.Latitude, "hypocenter must not move")
	assert.Equal(t, lon, resp.Longitude)
	assert.Equal(t, depth, resp.DepthKm)
}

func TestEngine_Locate_BayesianDepthReportsImportance(t *testing.T) {
	model := linearTravelTime{distSlope: 10.0, depthSlope: 0.05}
	const origin = 1_700_000_000.0
	const lat, lon, depth = 36.0, -118.0, 10.0

	stations := []domain.Station{
		{Code: "AAA", Network: "XX", Latitude: 36.5, Longitude: -118.0},
		{Code: "BBB", Network: "XX", Latitude: 35.5, Longitude: -118.0},
		{Code: "CCC", Network: "XX", Latitude: 36.0, Longitude: -117.3},
		{Code: "DDD", Network: "XX", Latitude: 36.0, Longitude: -118.7},
	}
	var picks []PickInput
	for _, s := range stations {
		distDeg, _ := domain.EpicentralDistanceAzimuth(lat, lon, s.Latitude, s.Longitude)
		picks = append(picks, PickInput{
			StationCode:     s.Code,
			Network:         s.Network,
			Latitude:        s.Latitude,
			Longitude:       s.Longitude,
			TimeEpochMs:     int64((origin + model.distSlope*distDeg + model.depthSlope*depth) * 1000),
			AssociatedPhase: "P",
			Use:             true,
			Quality:         1.0,
			Affinity:        domain.NullAffinity,
		})
	}
	req := LocateRequest{
		SourceOriginTimeEpochMs: int64(origin * 1000),
		SourceLatitude:          lat,
		SourceLongitude:         lon,
		SourceDepthKm:           depth,
		IsBayesianDepth:         true,
		BayesianDepthKm:         10.0,
		BayesianSpreadKm:        3.0,
		Picks:                   picks,
	}
	engine, err := NewEngine(req, model, fixedCraton{}, fixedZonePrior{}, nil)
	require.NoError(t, err)

	resp := engine.Locate()
	assert.NotEqual(t, domain.InsufficientData.String(), resp.ExitCode)
	assert.NotEqual(t, domain.LocationFailed.String(), resp.ExitCode)
	assert.Greater(t, resp.BayesianDepthImportance, 0.0)
	assert.InDelta(t, 10.0, resp.DepthKm, 5.0, "strong prior keeps depth near its mean")
}
