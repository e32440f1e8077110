// Package main provides the locator CLI driver: single-event, batch and
// HTTP-service modes over the hydra and JSON codecs.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/usgs/neic-locator-go/internal/config"
)

const version = "0.1.0"

var (
	modelPath   string
	filePath    string
	inputDir    string
	outputDir   string
	archiveDir  string
	inputType   string
	outputType  string
	logPath     string
	logLevel    string
	csvFile     string
	cratonPath  string
	zoneKeyPath string
	zoneStatPath string
	cacheDir    string
	workers     int
	servicePort int
)

var rootCmd = &cobra.Command{
	Use:     "locator",
	Short:   "Seismic event locator",
	Version: version,
}

func init() {
	// Environment (and .env) values become the flag defaults, so an explicit
	// flag overrides the environment, which overrides the built-in defaults.
	cfg := config.Load()

	rootCmd.PersistentFlags().StringVar(&modelPath, "modelPath", cfg.TravelTimeDir, "travel-time model directory")
	rootCmd.PersistentFlags().StringVar(&cratonPath, "cratonPath", cfg.CratonPath, "craton polygon file")
	rootCmd.PersistentFlags().StringVar(&zoneKeyPath, "zoneKeyPath", cfg.ZoneKeyPath, "zone-key binary file")
	rootCmd.PersistentFlags().StringVar(&zoneStatPath, "zoneStatPath", cfg.ZoneStatPath, "zone-stat binary file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cacheDir", cfg.CacheDir, "auxiliary-data gob cache directory")
	rootCmd.PersistentFlags().StringVar(&logPath, "logPath", cfg.LogPath, "log file path (stderr if empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "logLevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", cfg.Workers, "batch worker count (GOMAXPROCS if 0; not used by service mode)")

	singleCmd.Flags().StringVar(&filePath, "filePath", "", "single location input file")
	singleCmd.Flags().StringVar(&inputType, "inputType", "json", "input format: hydra|json")
	singleCmd.Flags().StringVar(&outputType, "outputType", "json", "output format: hydra|json")

	batchCmd.Flags().StringVar(&inputDir, "inputDir", "", "batch input directory")
	batchCmd.Flags().StringVar(&outputDir, "outputDir", "", "batch output directory")
	batchCmd.Flags().StringVar(&archiveDir, "archiveDir", "", "batch archive directory (processed inputs moved here)")
	batchCmd.Flags().StringVar(&inputType, "inputType", "json", "input format: hydra|json")
	batchCmd.Flags().StringVar(&outputType, "outputType", "json", "output format: hydra|json")
	batchCmd.Flags().StringVar(&csvFile, "csvFile", "", "optional CSV summary of batch results")

	serviceCmd.Flags().IntVar(&servicePort, "port", cfg.ServicePort, "HTTP service port")

	rootCmd.AddCommand(singleCmd, batchCmd, serviceCmd)
}

func configureLogging() *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("failed to open log file, logging to stderr")
		} else {
			log.SetOutput(f)
		}
	}
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
