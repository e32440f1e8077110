// Package hydra implements the legacy fixed-format line-oriented text
// codec: one header line followed by one line per pick. It is a thin,
// allocation-light alternative to the JSON codec for callers that still
// speak the historical wire format.
package hydra

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/usgs/neic-locator-go/internal/domain"
	"github.com/usgs/neic-locator-go/internal/locerr"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

const timeLayout = "2006-01-02 15:04:05.000"

// flagOrder fixes the bit order of the header's flags field, matching the
// order LocateRequest lists its boolean flags in.
var flagOrder = []string{
	"isLocationNew", "isLocationHeld", "isDepthHeld", "isBayesianDepth",
	"useRSTT", "useSVD", "reassessInitialPhaseIDs",
}

// ParseRequest reads one hydra-format location request from r.
func ParseRequest(r io.Reader) (usecase.LocateRequest, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: empty request")
	}
	header := strings.Fields(scanner.Text())
	if len(header) < 8 {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: header line has %d fields, want at least 8", len(header))
	}

	originTime, err := time.Parse(timeLayout, header[0]+" "+header[1])
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad origin time %q %q: %v", header[0], header[1], err)
	}
	lat, err := strconv.ParseFloat(header[2], 64)
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad latitude %q: %v", header[2], err)
	}
	lon, err := strconv.ParseFloat(header[3], 64)
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad longitude %q: %v", header[3], err)
	}
	depth, err := strconv.ParseFloat(header[4], 64)
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad depth %q: %v", header[4], err)
	}
	flags := parseFlags(header[5])
	bayesDepth, err := strconv.ParseFloat(header[6], 64)
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad bayesDepth %q: %v", header[6], err)
	}
	bayesSpread, err := strconv.ParseFloat(header[7], 64)
	if err != nil {
		return usecase.LocateRequest{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad bayesSpread %q: %v", header[7], err)
	}

	req := usecase.LocateRequest{
		SourceOriginTimeEpochMs: originTime.UnixMilli(),
		SourceLatitude:          lat,
		SourceLongitude:         lon,
		SourceDepthKm:           depth,
		BayesianDepthKm:         bayesDepth,
		BayesianSpreadKm:        bayesSpread,
		EarthModel:              "ak135",
	}
	applyFlags(&req, flags)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pick, err := parsePickLine(line)
		if err != nil {
			return usecase.LocateRequest{}, err
		}
		req.Picks = append(req.Picks, pick)
	}
	if err := scanner.Err(); err != nil {
		return usecase.LocateRequest{}, fmt.Errorf("hydra: scan failure: %w", err)
	}
	return req, nil
}

// parsePickLine decodes: station, channel, network, location, elevation,
// picked epoch time (ms), use flag, associated phase, affinity, quality,
// source, author, author-type (extended with the author-type field the
// automated/human/contributed/local distinction requires to round-trip).
func parsePickLine(line string) (usecase.PickInput, error) {
	f := strings.Fields(line)
	if len(f) < 13 {
		return usecase.PickInput{}, locerr.Wrap(locerr.ErrBadInput, "hydra: pick line has %d fields, want at least 13: %q", len(f), line)
	}
	elev, err := strconv.ParseFloat(f[4], 64)
	if err != nil {
		return usecase.PickInput{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad elevation %q: %v", f[4], err)
	}
	timeMs, err := strconv.ParseInt(f[5], 10, 64)
	if err != nil {
		return usecase.PickInput{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad pick time %q: %v", f[5], err)
	}
	use := f[6] == "1" || strings.EqualFold(f[6], "true")
	affinity, err := strconv.ParseFloat(f[8], 64)
	if err != nil {
		return usecase.PickInput{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad affinity %q: %v", f[8], err)
	}
	quality, err := strconv.ParseFloat(f[9], 64)
	if err != nil {
		return usecase.PickInput{}, locerr.Wrap(locerr.ErrBadInput, "hydra: bad quality %q: %v", f[9], err)
	}
	authorType, err := parseAuthorType(f[12])
	if err != nil {
		return usecase.PickInput{}, err
	}

	return usecase.PickInput{
		StationCode:     f[0],
		Channel:         f[1],
		Network:         f[2],
		Location:        f[3],
		ElevKm:          elev,
		TimeEpochMs:     timeMs,
		Use:             use,
		AssociatedPhase: f[7],
		Affinity:        affinity,
		Quality:         quality,
		Agency:          f[10],
		Author:          f[11],
		AuthorType:      authorType,
	}, nil
}

// WriteResponse renders a LocateResponse in the hydra response format: the
// header echoed and extended with stderrs/quality, then one rewritten pick
// line per response pick.
func WriteResponse(w io.Writer, resp usecase.LocateResponse) error {
	bw := bufio.NewWriter(w)

	originTime := time.UnixMilli(resp.OriginTimeEpochMs).UTC()
	if _, err := fmt.Fprintf(bw, "%s %.4f %.4f %.3f %.3f %.3f %.3f %.3f %.3f %.3f %s %s\n",
		originTime.Format(timeLayout),
		resp.Latitude, resp.Longitude, resp.DepthKm,
		resp.StdErr.TimeSec, resp.StdErr.LatKm, resp.StdErr.LonKm, resp.StdErr.DepthKm, resp.StdErr.Residual,
		resp.AzimuthGapDeg,
		resp.Quality, resp.ExitCode,
	); err != nil {
		return err
	}

	for _, p := range resp.Picks {
		if _, err := fmt.Fprintf(bw, "%s %s %s %s %s %.4f %.4f %.4f %.4f %.4f %t\n",
			p.StationCode, p.Channel, p.Network, p.Location, p.Phase,
			p.Residual, p.DistanceDeg, p.AzimuthDeg, p.Weight, p.Importance,
			p.Used,
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseFlags(s string) [7]bool {
	var out [7]bool
	for i := 0; i < len(flagOrder) && i < len(s); i++ {
		out[i] = s[i] == '1'
	}
	return out
}

func applyFlags(req *usecase.LocateRequest, f [7]bool) {
	req.IsLocationNew = f[0]
	req.IsLocationHeld = f[1]
	req.IsDepthHeld = f[2]
	req.IsBayesianDepth = f[3]
	req.UseRSTT = f[4]
	req.UseSVD = f[5]
	req.ReassessInitialPhaseIDs = f[6]
}

func parseAuthorType(s string) (domain.AuthorType, error) {
	switch strings.ToLower(s) {
	case "ca", "0":
		return domain.ContribAuto, nil
	case "la", "1":
		return domain.LocalAuto, nil
	case "ch", "2":
		return domain.ContribHuman, nil
	case "lh", "3":
		return domain.LocalHuman, nil
	default:
		return 0, locerr.Wrap(locerr.ErrBadInput, "hydra: unrecognized author type %q", s)
	}
}
