// Package jsonio implements the JSON request/response codec. Wire DTOs are
// private structs decoupled from the domain types and converted at the
// boundary.
package jsonio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/usgs/neic-locator-go/internal/domain"
	"github.com/usgs/neic-locator-go/internal/locerr"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

type pickRequest struct {
	StationCode string  `json:"station_code"`
	Network     string  `json:"network"`
	Location    string  `json:"location"`
	Channel     string  `json:"channel"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ElevKm      float64 `json:"elevation_km"`

	Agency     string `json:"agency"`
	Author     string `json:"author"`
	AuthorType string `json:"author_type"`

	ID              string  `json:"id,omitempty"`
	TimeEpochMs     int64   `json:"time_epoch_ms"`
	LocatedPhase    string  `json:"located_phase,omitempty"`
	AssociatedPhase string  `json:"associated_phase"`
	Use             bool    `json:"use"`
	Quality         float64 `json:"quality"`
	Affinity        float64 `json:"affinity"`
	SurfaceWave     bool    `json:"surface_wave,omitempty"`
}

type locateRequest struct {
	SourceOriginTimeEpochMs int64   `json:"source_origin_time_epoch_ms"`
	SourceLatitude          float64 `json:"source_latitude"`
	SourceLongitude         float64 `json:"source_longitude"`
	SourceDepthKm           float64 `json:"source_depth_km"`

	IsLocationNew           bool `json:"is_location_new"`
	IsLocationHeld          bool `json:"is_location_held"`
	IsDepthHeld             bool `json:"is_depth_held"`
	IsBayesianDepth         bool `json:"is_bayesian_depth"`
	UseRSTT                 bool `json:"use_rstt"`
	UseSVD                  bool `json:"use_svd"`
	ReassessInitialPhaseIDs bool `json:"reassess_initial_phase_ids"`

	BayesianDepthKm  float64 `json:"bayesian_depth_km,omitempty"`
	BayesianSpreadKm float64 `json:"bayesian_spread_km,omitempty"`
	EarthModel       string  `json:"earth_model,omitempty"`

	InputData []pickRequest `json:"input_data"`
}

type stdErr struct {
	TimeSec  float64 `json:"time_sec"`
	LatKm    float64 `json:"lat_km"`
	LonKm    float64 `json:"lon_km"`
	DepthKm  float64 `json:"depth_km"`
	Residual float64 `json:"residual"`
}

type ellipsoidAxis struct {
	SemiMajorKm float64 `json:"semi_major_km"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	PlungeDeg   float64 `json:"plunge_deg"`
}

type pickResponse struct {
	StationCode string  `json:"station_code"`
	Network     string  `json:"network"`
	Location    string  `json:"location"`
	Channel     string  `json:"channel"`
	Phase       string  `json:"phase"`
	Residual    float64 `json:"residual"`
	DistanceDeg float64 `json:"distance_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	Weight      float64 `json:"weight"`
	Importance  float64 `json:"importance"`
	Used        bool    `json:"used"`
}

type locateResponse struct {
	OriginTimeEpochMs int64   `json:"origin_time_epoch_ms"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	DepthKm           float64 `json:"depth_km"`

	NumStationsAssociated int `json:"num_stations_associated"`
	NumStationsUsed       int `json:"num_stations_used"`
	NumPhasesAssociated   int `json:"num_phases_associated"`
	NumPhasesUsed         int `json:"num_phases_used"`

	AzimuthGapDeg  float64 `json:"azimuth_gap_deg"`
	RobustGapDeg   float64 `json:"robust_gap_deg"`
	MinDistanceDeg float64 `json:"min_distance_deg"`

	Quality string `json:"quality"`

	StdErr                  stdErr           `json:"stderr"`
	ErrorEllipsoid          [3]ellipsoidAxis `json:"error_ellipsoid"`
	BayesianDepthImportance float64          `json:"bayesian_depth_importance"`

	ExitCode string `json:"exit_code"`

	Picks []pickResponse `json:"picks"`
}

// DecodeRequest reads a JSON-encoded location request from r.
func DecodeRequest(r io.Reader) (usecase.LocateRequest, error) {
	var wire locateRequest
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "jsonio: failed to decode request: %v", err)
	}

	req := usecase.LocateRequest{
		SourceOriginTimeEpochMs: wire.SourceOriginTimeEpochMs,
		SourceLatitude:          wire.SourceLatitude,
		SourceLongitude:         wire.SourceLongitude,
		SourceDepthKm:           wire.SourceDepthKm,
		IsLocationNew:           wire.IsLocationNew,
		IsLocationHeld:          wire.IsLocationHeld,
		IsDepthHeld:             wire.IsDepthHeld,
		IsBayesianDepth:         wire.IsBayesianDepth,
		UseRSTT:                 wire.UseRSTT,
		UseSVD:                  wire.UseSVD,
		ReassessInitialPhaseIDs: wire.ReassessInitialPhaseIDs,
		BayesianDepthKm:         wire.BayesianDepthKm,
		BayesianSpreadKm:        wire.BayesianSpreadKm,
		EarthModel:              wire.EarthModel,
	}
	if req.EarthModel == "" {
		req.EarthModel = "ak135"
	}

	for _, p := range wire.InputData {
		authorType, err := decodeAuthorType(p.AuthorType)
		if err != nil {
			return usecase.LocateRequest{}, err
		}
		req.Picks = append(req.Picks, usecase.PickInput{
			StationCode:     p.StationCode,
			Network:         p.Network,
			Location:        p.Location,
			Channel:         p.Channel,
			Latitude:        p.Latitude,
			Longitude:       p.Longitude,
			ElevKm:          p.ElevKm,
			Agency:          p.Agency,
			Author:          p.Author,
			AuthorType:      authorType,
			ID:              p.ID,
			TimeEpochMs:     p.TimeEpochMs,
			LocatedPhase:    p.LocatedPhase,
			AssociatedPhase: p.AssociatedPhase,
			Use:             p.Use,
			Quality:         p.Quality,
			Affinity:        p.Affinity,
			SurfaceWave:     p.SurfaceWave,
		})
	}
	return req, nil
}

// EncodeResponse writes resp as JSON to w.
func EncodeResponse(w io.Writer, resp usecase.LocateResponse) error {
	wire := locateResponse{
		OriginTimeEpochMs:       resp.OriginTimeEpochMs,
		Latitude:                resp.Latitude,
		Longitude:               resp.Longitude,
		DepthKm:                 resp.DepthKm,
		NumStationsAssociated:   resp.NumStationsAssociated,
		NumStationsUsed:         resp.NumStationsUsed,
		NumPhasesAssociated:     resp.NumPhasesAssociated,
		NumPhasesUsed:           resp.NumPhasesUsed,
		AzimuthGapDeg:           resp.AzimuthGapDeg,
		RobustGapDeg:            resp.RobustGapDeg,
		MinDistanceDeg:          resp.MinDistanceDeg,
		Quality:                 resp.Quality,
		BayesianDepthImportance: resp.BayesianDepthImportance,
		ExitCode:                resp.ExitCode,
		StdErr: stdErr{
			TimeSec:  resp.StdErr.TimeSec,
			LatKm:    resp.StdErr.LatKm,
			LonKm:    resp.StdErr.LonKm,
			DepthKm:  resp.StdErr.DepthKm,
			Residual: resp.StdErr.Residual,
		},
	}
	for i, axis := range resp.ErrorEllipsoid {
		wire.ErrorEllipsoid[i] = ellipsoidAxis{
			SemiMajorKm: axis.SemiMajorKm,
			AzimuthDeg:  axis.AzimuthDeg,
			PlungeDeg:   axis.PlungeDeg,
		}
	}
	for _, p := range resp.Picks {
		wire.Picks = append(wire.Picks, pickResponse{
			StationCode: p.StationCode,
			Network:     p.Network,
			Location:    p.Location,
			Channel:     p.Channel,
			Phase:       p.Phase,
			Residual:    p.Residual,
			DistanceDeg: p.DistanceDeg,
			AzimuthDeg:  p.AzimuthDeg,
			Weight:      p.Weight,
			Importance:  p.Importance,
			Used:        p.Used,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wire); err != nil {
		return fmt.Errorf("jsonio: failed to encode response: %w", err)
	}
	return nil
}

func decodeAuthorType(s string) (domain.AuthorType, error) {
	switch s {
	case "", "contrib_auto":
		return domain.ContribAuto, nil
	case "local_auto":
		return domain.LocalAuto, nil
	case "contrib_human":
		return domain.ContribHuman, nil
	case "local_human":
		return domain.LocalHuman, nil
	default:
		return 0, locerr.Wrap(locerr.ErrBadInput, "jsonio: unrecognized author_type %q", s)
	}
}
