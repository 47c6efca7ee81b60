// Command panel-build merges the raw administrative tables (crime,
// population, foreign residents, unemployment) into the balanced
// region-by-year analysis panel and persists it for the analysis runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/foxymadeit/did-refugees-crime/internal/config"
	"github.com/foxymadeit/did-refugees-crime/internal/panel"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file overriding env configuration")
	baseDir := flag.String("base", "", "base directory for data paths (defaults to the working directory)")
	outFile := flag.String("out", "", "output panel CSV (defaults to the configured processed panel path)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg.Logging)

	paths, err := config.ResolvePaths(cfg.Paths, *baseDir)
	if err != nil {
		logger.Error("Failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureOutputDirs(); err != nil {
		logger.Error("Failed to create output directories", "error", err)
		os.Exit(1)
	}

	panelPath := paths.PanelCSV
	if *outFile != "" {
		panelPath = *outFile
	}

	ctx := context.Background()
	logger.Info("Building analysis panel",
		"raw_dir", paths.RawDir,
		"panel", panelPath,
		"regions", len(cfg.Study.Regions),
		"years", len(cfg.Study.Years()),
	)

	tables := panel.RawTables{
		CrimeCSV:        paths.CrimeCSV,
		PopulationCSV:   paths.PopulationCSV,
		ForeignersCSV:   paths.ForeignersCSV,
		UnemploymentCSV: paths.UnemploymentCSV,
	}

	p, err := panel.Build(ctx, logger, tables, cfg.Study.Regions, cfg.Study.Years())
	if err != nil {
		logger.Error("Panel build failed", "error", err)
		os.Exit(1)
	}

	if err := panel.Save(p, panelPath); err != nil {
		logger.Error("Failed to save panel", "path", panelPath, "error", err)
		os.Exit(1)
	}

	logger.Info("Panel saved", "path", panelPath, "rows", len(p.Rows))
}
