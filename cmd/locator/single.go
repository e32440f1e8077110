package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usgs/neic-locator-go/internal/adapter/hydra"
	"github.com/usgs/neic-locator-go/internal/adapter/jsonio"
	"github.com/usgs/neic-locator-go/internal/usecase"
)

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Locate a single event read from --filePath (or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()

		var in *os.File
		if filePath != "" {
			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("locator: failed to open %s: %w", filePath, err)
			}
			defer f.Close()
			in = f
		} else {
			in = os.Stdin
		}

		req, err := decodeRequest(in, inputType)
		if err != nil {
			return err
		}

		collab, err := buildCollaborators()
		if err != nil {
			return err
		}

		engine, err := usecase.NewEngine(req, collab.TravelTime, collab.Craton, collab.Zones, log.WithField("mode", "single"))
		if err != nil {
			return err
		}

		resp := engine.Locate()
		return encodeResponse(os.Stdout, resp, outputType)
	},
}

// decodeRequest dispatches on --inputType (hydra|json).
func decodeRequest(f *os.File, kind string) (usecase.LocateRequest, error) {
	switch kind {
	case "hydra":
		return hydra.ParseRequest(f)
	case "json", "":
		return jsonio.DecodeRequest(f)
	default:
		return usecase.LocateRequest{}, fmt.Errorf("locator: unknown inputType %q", kind)
	}
}

// encodeResponse dispatches on --outputType (hydra|json).
func encodeResponse(f *os.File, resp usecase.LocateResponse, kind string) error {
	switch kind {
	case "hydra":
		return hydra.WriteResponse(f, resp)
	case "json", "":
		return jsonio.EncodeResponse(f, resp)
	default:
		return fmt.Errorf("locator: unknown outputType %q", kind)
	}
}
