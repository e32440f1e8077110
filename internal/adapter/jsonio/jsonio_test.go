package jsonio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usgs/neic-locator-go/internal/domain"
	"github.com/usgs/neic-locator-go/internal/locerr"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

const sampleJSON = `{
  "source_origin_time_epoch_ms": 1685620800000,
  "source_latitude": 35.1,
  "source_longitude": -117.5,
  "source_depth_km": 8.2,
  "is_location_new": true,
  "is_bayesian_depth": true,
  "bayesian_depth_km": 12.0,
  "bayesian_spread_km": 5.0,
  "input_data": [
    {
      "station_code": "PAS",
      "network": "CI",
      "associated_phase": "P",
      "time_epoch_ms": 1685620812500,
      "use": true,
      "quality": 0.8,
      "affinity": 1.5,
      "author_type": "contrib_human"
    }
  ]
}`

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, 35.1, req.SourceLatitude)
	assert.True(t, req.IsLocationNew)
	assert.True(t, req.IsBayesianDepth)
	assert.Equal(t, "ak135", req.EarthModel)
	require.Len(t, req.Picks, 1)
	assert.Equal(t, "PAS", req.Picks[0].StationCode)
	assert.Equal(t, domain.ContribHuman, req.Picks[0].AuthorType)
}

func TestDecodeRequest_UnknownAuthorType(t *testing.T) {
	_, err := DecodeRequest(strings.NewReader(`{"input_data":[{"author_type":"bogus"}]}`))
	require.Error(t, err)
	assert.True(t, locerr.Is(err, locerr.ErrBadInput))
}

func TestEncodeResponse_RoundTripsThroughJSON(t *testing.T) {
	resp := usecase.LocateResponse{
		Latitude:  35.1,
		Longitude: -117.5,
		DepthKm:   8.2,
		Quality:   "AAB",
		ExitCode:  "SUCCESS",
		Picks: []usecase.PickOutput{
			{StationCode: "PAS", Phase: "P", Used: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, resp))

	out := buf.String()
	assert.Contains(t, out, `"quality": "AAB"`)
	assert.Contains(t, out, `"station_code": "PAS"`)
}
