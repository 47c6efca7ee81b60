package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths holds the resolved absolute locations used by the pipeline.
// This is the single source of truth for file paths: components receive
// these values, they never consult the working directory themselves.
type Paths struct {
	DataDir      string
	RawDir       string
	ProcessedDir string
	ReportsDir   string

	// Well-known files
	PanelCSV string

	// Raw input tables
	CrimeCSV        string
	PopulationCSV   string
	ForeignersCSV   string
	UnemploymentCSV string
}

// ResolvePaths turns the configured (possibly relative) directories into
// absolute paths anchored at baseDir. An empty baseDir anchors at the
// current working directory.
func ResolvePaths(cfg PathsConfig, baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		baseDir = wd
	}

	abs := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(baseDir, dir)
	}

	rawDir := abs(cfg.RawDir)
	processedDir := abs(cfg.ProcessedDir)

	return &Paths{
		DataDir:         abs(cfg.DataDir),
		RawDir:          rawDir,
		ProcessedDir:    processedDir,
		ReportsDir:      abs(cfg.ReportsDir),
		PanelCSV:        filepath.Join(processedDir, cfg.PanelFile),
		CrimeCSV:        filepath.Join(rawDir, "crime.csv"),
		PopulationCSV:   filepath.Join(rawDir, "population.csv"),
		ForeignersCSV:   filepath.Join(rawDir, "foreigners.csv"),
		UnemploymentCSV: filepath.Join(rawDir, "unemployment.csv"),
	}, nil
}

// EnsureOutputDirs creates the directories the pipeline writes into.
func (p *Paths) EnsureOutputDirs() error {
	for _, dir := range []string{p.ProcessedDir, p.ReportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
