package usecase

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/usgs/neic-locator-go/internal/domain"
)

// PickInput is one observed arrival as received over JSON/hydra.
type PickInput struct {
	StationCode, Network, Location, Channel string
	Latitude, Longitude, ElevKm             float64

	Agency     string
	Author     string
	AuthorType domain.AuthorType

	ID              string
	TimeEpochMs     int64
	LocatedPhase    string
	AssociatedPhase string
	Use             bool
	Quality         float64
	Affinity        float64
	SurfaceWave     bool
}

// LocateRequest is the location-request payload.
type LocateRequest struct {
	SourceOriginTimeEpochMs int64
	SourceLatitude          float64
	SourceLongitude         float64
	SourceDepthKm           float64

	IsLocationNew           bool
	IsLocationHeld          bool
	IsDepthHeld             bool
	IsBayesianDepth         bool
	UseRSTT                 bool
	UseSVD                  bool
	ReassessInitialPhaseIDs bool

	BayesianDepthKm  float64
	BayesianSpreadKm float64
	EarthModel       string

	Picks []PickInput
}

// StdErr carries the response's formal standard-error components.
type StdErr struct {
	TimeSec  float64
	LatKm    float64
	LonKm    float64
	DepthKm  float64
	Residual float64
}

// EllipsoidAxis is one semi-axis of the reported error ellipsoid.
type EllipsoidAxis struct {
	SemiMajorKm float64
	AzimuthDeg  float64
	PlungeDeg   float64
}

// PickOutput is one pick's row in the location response.
type PickOutput struct {
	StationCode, Network, Location, Channel string
	Phase                                   string
	Residual                                float64
	DistanceDeg                             float64
	AzimuthDeg                              float64
	Weight                                  float64
	Importance                              float64
	Used                                    bool
}

// LocateResponse is the location-response payload.
type LocateResponse struct {
	OriginTimeEpochMs int64
	Latitude          float64
	Longitude         float64
	DepthKm           float64

	NumStationsAssociated int
	NumStationsUsed       int
	NumPhasesAssociated   int
	NumPhasesUsed         int

	AzimuthGapDeg  float64
	RobustGapDeg   float64
	MinDistanceDeg float64

	Quality string // 3 chars: summary, epicenter, depth

	StdErr                  StdErr
	ErrorEllipsoid          [3]EllipsoidAxis
	BayesianDepthImportance float64

	ExitCode string

	Picks []PickOutput
}

// Engine is the single-event entry point: it owns one Event plus the
// Stepper/LocationLoop/PhaseID/Decorrelator state driving it, and never
// shares any of that state with another event.
type Engine struct {
	Event   *domain.Event
	Stepper *Stepper
	Loop    *LocationLoop
	Log     *logrus.Entry
}

// NewEngine builds an Event from the request, wiring it to the supplied
// collaborators (travel-time service, craton map, zone stats).
func NewEngine(req LocateRequest, tt domain.TravelTimeService, craton domain.CratonMap, zones domain.ZoneStats, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if req.EarthModel == "" {
		req.EarthModel = "ak135"
	}
	if err := tt.SetEarthModel(req.EarthModel); err != nil {
		return nil, err
	}

	hypo := domain.NewHypocenter(float64(req.SourceOriginTimeEpochMs)/1000.0, req.SourceLatitude, req.SourceLongitude, req.SourceDepthKm)
	if req.IsBayesianDepth {
		hypo.SetBayesDepth(req.BayesianDepthKm, req.BayesianSpreadKm)
	}
	if req.IsDepthHeld {
		hypo.DegreesOfFreedom = 2
	}

	picksByStation := make(map[domain.Station][]*domain.Pick)
	for _, in := range req.Picks {
		station := domain.Station{
			Code:      in.StationCode,
			Network:   in.Network,
			Location:  in.Location,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			ElevKm:    in.ElevKm,
		}
		affinity := in.Affinity
		if affinity < domain.NullAffinity {
			affinity = domain.NullAffinity
		}
		pick := &domain.Pick{
			Agency:          in.Agency,
			Author:          in.Author,
			AuthorType:      in.AuthorType,
			Channel:         in.Channel,
			ArrivalTime:     float64(in.TimeEpochMs) / 1000.0,
			ObservedPhase:   in.LocatedPhase,
			AssociatedPhase: in.AssociatedPhase,
			CurrentPhase:    in.AssociatedPhase,
			Affinity:        affinity,
			Quality:         in.Quality,
			Used:            in.Use,
			SurfaceWave:     in.SurfaceWave,
		}
		picksByStation[station] = append(picksByStation[station], pick)
	}

	event := domain.NewEvent(hypo, picksByStation)
	event.LocationHeld = req.IsLocationHeld
	event.DepthHeld = req.IsDepthHeld
	event.DepthManual = req.IsBayesianDepth
	event.UseDecorrelation = req.UseSVD
	event.LocationRestarted = req.IsLocationNew

	stepper := NewStepper(event, tt, craton, zones, log)
	loop := NewLocationLoop(stepper, log)
	if !req.ReassessInitialPhaseIDs {
		for i := range loop.Stages {
			loop.Stages[i].Reidentify = false
		}
	}

	return &Engine{Event: event, Stepper: stepper, Loop: loop, Log: log}, nil
}

// Locate runs the full staged location and assembles the response.
func (e *Engine) Locate() LocateResponse {
	result := e.Loop.Run()
	return e.buildResponse(result)
}

func (e *Engine) buildResponse(result Result) LocateResponse {
	hypo := e.Event.Hypo
	resp := LocateResponse{
		OriginTimeEpochMs:     int64(hypo.OriginTime * 1000),
		Latitude:              hypo.Latitude,
		Longitude:             hypo.Longitude,
		DepthKm:               hypo.DepthKm,
		NumStationsAssociated: len(e.Event.Stations),
		NumStationsUsed:       e.Event.UsedStationCount(),
		NumPhasesAssociated:   len(e.Event.Picks),
		NumPhasesUsed:         e.Event.UsedPickCount(),
		ExitCode:              result.Status.String(),
	}

	usedAzimuths := make([]float64, 0, len(e.Event.Groups))
	minDistance := math.MaxFloat64
	for _, group := range e.Event.Groups {
		used := false
		for _, p := range group.Picks {
			if p.Used {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		usedAzimuths = append(usedAzimuths, group.AzimuthDeg)
		if group.DistanceDeg < minDistance {
			minDistance = group.DistanceDeg
		}
	}
	if minDistance == math.MaxFloat64 {
		minDistance = 0
	}
	resp.MinDistanceDeg = minDistance
	resp.AzimuthGapDeg, resp.RobustGapDeg = azimuthalGaps(usedAzimuths)

	varianceEstimate := 0.0
	if resp.NumPhasesUsed > hypo.DegreesOfFreedom {
		varianceEstimate = result.FinalDispersion * result.FinalDispersion / float64(resp.NumPhasesUsed-hypo.DegreesOfFreedom)
	}

	if result.Status != domain.InsufficientData && result.Status != domain.LocationFailed {
		if ee, err := domain.NewErrorEllipsoid(e.Event.RawResiduals, varianceEstimate, hypo); err == nil {
			timeSE := 0.0
			if resp.NumPhasesUsed > 0 {
				timeSE = result.FinalDispersion / math.Sqrt(float64(resp.NumPhasesUsed))
			}
			resp.StdErr = StdErr{
				TimeSec:  timeSE,
				LatKm:    ee.NorthStdErrKm(),
				LonKm:    ee.EastStdErrKm(),
				DepthKm:  ee.VerticalKm(),
				Residual: result.FinalDispersion,
			}
			resp.BayesianDepthImportance = ee.BayesDepthImportance
			resp.ErrorEllipsoid = ellipsoidAxes(ee)
		} else {
			resp.ExitCode = domain.EllipsoidFailed.String()
		}
	}

	resp.Quality = qualityCode(resp.StdErr, resp.NumStationsUsed)

	for _, group := range e.Event.Groups {
		for _, p := range group.Picks {
			resp.Picks = append(resp.Picks, PickOutput{
				StationCode: group.Station.Code,
				Network:     group.Station.Network,
				Location:    group.Station.Location,
				Channel:     p.Channel,
				Phase:       p.CurrentPhase,
				Residual:    p.Residual,
				DistanceDeg: group.DistanceDeg,
				AzimuthDeg:  group.AzimuthDeg,
				Weight:      p.Weight,
				Importance:  p.StatisticalFoM,
				Used:        p.Used,
			})
		}
	}

	return resp
}

// azimuthalGaps returns the primary azimuthal gap (the largest single gap
// between adjacent used-station azimuths) and the robust/secondary gap
// (the largest sum of two adjacent gaps, tolerant of one absent station).
func azimuthalGaps(azimuths []float64) (primary, robust float64) {
	if len(azimuths) == 0 {
		return 360, 360
	}
	if len(azimuths) == 1 {
		return 360, 360
	}
	sorted := make([]float64, len(azimuths))
	copy(sorted, azimuths)
	sort.Float64s(sorted)

	n := len(sorted)
	gaps := make([]float64, n)
	for i := 0; i < n; i++ {
		next := sorted[(i+1)%n]
		if i == n-1 {
			next += 360
		}
		gaps[i] = next - sorted[i]
	}

	for _, g := range gaps {
		if g > primary {
			primary = g
		}
	}
	if n < 2 {
		robust = primary
		return
	}
	for i := 0; i < n; i++ {
		sum := gaps[i] + gaps[(i+1)%n]
		if sum > robust {
			robust = sum
		}
	}
	return
}

// qualityCode renders the three-character quality summary: [summary,
// epicenter, depth] each in {A,B,C,D} from increasingly loose error
// thresholds (km), falling back to 'D' when too few stations are used.
func qualityCode(stderr StdErr, numUsed int) string {
	if numUsed < 3 {
		return "DDD"
	}
	epi := math.Hypot(stderr.LatKm, stderr.LonKm)
	summary := qualityClass(math.Max(epi, stderr.DepthKm))
	epicenter := qualityClass(epi)
	depth := qualityClass(stderr.DepthKm)
	return string([]byte{summary, epicenter, depth})
}

func qualityClass(errKm float64) byte {
	switch {
	case errKm < 1.0:
		return 'A'
	case errKm < 2.5:
		return 'B'
	case errKm < 5.0:
		return 'C'
	default:
		return 'D'
	}
}

func ellipsoidAxes(ee *domain.ErrorEllipsoid) [3]EllipsoidAxis {
	var axes [3]EllipsoidAxis
	for k := 0; k < ee.DegreesOfFreedom; k++ {
		az := 0.0
		if ee.Orientation != nil {
			north := ee.Orientation.At(0, k)
			east := ee.Orientation.At(1, k)
			az = math.Mod(math.Atan2(east, north)*180/math.Pi+360, 360)
		}
		plunge := 0.0
		if ee.Orientation != nil && k < ee.DegreesOfFreedom && ee.DegreesOfFreedom == 3 {
			depthComp := ee.Orientation.At(2, k)
			plunge = math.Asin(math.Max(-1, math.Min(1, depthComp))) * 180 / math.Pi
		}
		axes[k] = EllipsoidAxis{SemiMajorKm: ee.SemiAxesKm[k], AzimuthDeg: az, PlungeDeg: plunge}
	}
	return axes
}
