package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/usgs/neic-locator-go/internal/usecase"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Locate every event file in --inputDir, writing results to --outputDir",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputDir == "" || outputDir == "" {
			return fmt.Errorf("locator: batch mode requires --inputDir and --outputDir")
		}
		log := configureLogging()

		entries, err := os.ReadDir(inputDir)
		if err != nil {
			return fmt.Errorf("locator: failed to read %s: %w", inputDir, err)
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
		if archiveDir != "" {
			if err := os.MkdirAll(archiveDir, 0o755); err != nil {
				return err
			}
		}

		collab, err := buildCollaborators()
		if err != nil {
			return err
		}

		var jobs []usecase.BatchJob
		var inputPaths []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(inputDir, entry.Name())
			f, err := os.Open(path)
			if err != nil {
				log.WithError(err).Warnf("skipping %s", path)
				continue
			}
			req, err := decodeRequest(f, inputType)
			f.Close()
			if err != nil {
				log.WithError(err).Warnf("skipping %s", path)
				continue
			}
			jobs = append(jobs, usecase.BatchJob{ID: entry.Name(), Request: req})
			inputPaths = append(inputPaths, path)
		}

		results, err := usecase.RunBatch(context.Background(), jobs, collab, workers, log.WithField("mode", "batch"))
		if err != nil {
			return fmt.Errorf("locator: batch run failed: %w", err)
		}

		var summaryRows [][]string
		failed := 0
		for i, result := range results {
			if result.Err != nil {
				failed++
				log.WithError(result.Err).Warnf("job %s failed", result.ID)
				continue
			}
			outPath := filepath.Join(outputDir, result.ID+outputExt(outputType))
			out, err := os.Create(outPath)
			if err != nil {
				log.WithError(err).Warnf("failed to create %s", outPath)
				continue
			}
			err = encodeResponse(out, result.Response, outputType)
			out.Close()
			if err != nil {
				log.WithError(err).Warnf("failed to write %s", outPath)
				continue
			}

			if archiveDir != "" && i < len(inputPaths) {
				archived := filepath.Join(archiveDir, filepath.Base(inputPaths[i]))
				_ = os.Rename(inputPaths[i], archived)
			}

			summaryRows = append(summaryRows, []string{
				result.ID, result.Response.ExitCode, result.Response.Quality,
				strconv.FormatFloat(result.Response.Latitude, 'f', 4, 64),
				strconv.FormatFloat(result.Response.Longitude, 'f', 4, 64),
				strconv.FormatFloat(result.Response.DepthKm, 'f', 2, 64),
				strconv.Itoa(result.Response.NumPhasesUsed),
			})
		}

		if csvFile != "" {
			if err := writeCSVSummary(csvFile, summaryRows); err != nil {
				log.WithError(err).Warn("failed to write CSV summary")
			}
		}

		log.Infof("batch complete: %d succeeded, %d failed", len(results)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("locator: %d of %d jobs failed", failed, len(results))
		}
		return nil
	},
}

func outputExt(kind string) string {
	if kind == "hydra" {
		return ".txt"
	}
	return ".json"
}

func writeCSVSummary(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "exit_code", "quality", "latitude", "longitude", "depth_km", "num_phases_used"}); err != nil {
		return err
	}
	return w.WriteAll(rows)
}
