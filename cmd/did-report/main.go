// Command did-report runs the full estimation suite over the processed
// panel: treatment assignment under the configured threshold policy, the
// six regression specifications, the threshold-sensitivity sweep, and
// the report artifacts (results CSV, Excel workbook, plot series).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/foxymadeit/did-refugees-crime/internal/config"
	"github.com/foxymadeit/did-refugees-crime/internal/did"
	"github.com/foxymadeit/did-refugees-crime/internal/panel"
	"github.com/foxymadeit/did-refugees-crime/internal/report"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file overriding env configuration")
	baseDir := flag.String("base", "", "base directory for data paths (defaults to the working directory)")
	panelFile := flag.String("panel", "", "processed panel CSV (defaults to the configured panel path)")
	policy := flag.String("policy", "", "threshold policy override: median, mean, p40, p60 or p75")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *policy != "" {
		cfg.Study.ThresholdPolicy = *policy
		if err := cfg.Validate(); err != nil {
			slog.Error("Invalid threshold policy override", "policy", *policy, "error", err)
			os.Exit(1)
		}
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
	if *panelFile != "" {
		panelPath = *panelFile
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	ctx := context.Background()

	logger.Info("Loading processed panel", "path", panelPath)
	p, err := panel.Load(panelPath, cfg.Study.Regions, cfg.Study.Years())
	if err != nil {
		logger.Error("Failed to load panel",
			"path", panelPath,
			"error", err,
			"hint", "Run panel-build first to generate the processed panel")
		os.Exit(1)
	}
	logger.Info("Loaded panel", "rows", len(p.Rows))

	params := did.StudyParams{
		TreatmentYear:      cfg.Study.TreatmentYear,
		IntensityYear:      cfg.Study.IntensityYear,
		Policy:             did.ThresholdPolicy(cfg.Study.ThresholdPolicy),
		PlaceboCutoffYear:  cfg.Study.PlaceboCutoffYear,
		EventReferenceYear: cfg.Study.EventReferenceYear,
	}

	frame, err := did.BuildFrame(ctx, logger, p, params)
	if err != nil {
		logger.Error("Treatment assignment failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Assigned treatment",
		"policy", params.Policy.String(),
		"threshold", frame.Threshold,
		"treated", frame.TreatedRegions(),
	)

	results := did.RunAll(ctx, logger, frame)
	if len(results.Fits) == 0 {
		logger.Error("Every specification failed", "failures", len(results.Failures))
		os.Exit(1)
	}
	for _, fit := range results.Fits {
		for _, c := range fit.InterestTerms() {
			logger.Info("Estimate",
				"model", fit.Model,
				"term", c.Name,
				"estimate", c.Estimate,
				"robust_se", c.StdErr,
				"p_value", c.PValue,
			)
		}
	}

	sensitivity, sensitivityFailures := did.RunSensitivity(ctx, logger, p, params)
	results.Failures = append(results.Failures, sensitivityFailures...)

	var eventPoints []did.EventPoint
	if eventFit, ok := results.Fit(did.ModelEventStudy); ok {
		eventPoints, err = did.EventStudyPoints(eventFit, params)
		if err != nil {
			logger.Error("Failed to extract event-study path", "error", err)
			os.Exit(1)
		}
	}

	if err := did.SaveResultsCSV(results, filepath.Join(paths.ReportsDir, "did_results.csv")); err != nil {
		logger.Error("Failed to save results CSV", "error", err)
		os.Exit(1)
	}
	if len(sensitivity) > 0 {
		if err := did.SaveSensitivityCSV(sensitivity, filepath.Join(paths.ReportsDir, "threshold_sensitivity.csv")); err != nil {
			logger.Error("Failed to save sensitivity CSV", "error", err)
			os.Exit(1)
		}
	}

	if err := report.SaveIntensityCSV(report.IntensitySeries(frame), frame.Threshold, filepath.Join(paths.ReportsDir, "intensity_distribution.csv")); err != nil {
		logger.Error("Failed to save intensity series", "error", err)
		os.Exit(1)
	}
	if err := report.SaveGroupMeansCSV(report.GroupMeanSeries(frame), filepath.Join(paths.ReportsDir, "parallel_trends.csv")); err != nil {
		logger.Error("Failed to save parallel-trends series", "error", err)
		os.Exit(1)
	}
	if len(eventPoints) > 0 {
		if err := report.SaveEventStudyCSV(eventPoints, filepath.Join(paths.ReportsDir, "event_study.csv")); err != nil {
			logger.Error("Failed to save event-study series", "error", err)
			os.Exit(1)
		}
	}

	info := report.RunInfo{
		RunID:          runID,
		Policy:         params.Policy,
		Threshold:      frame.Threshold,
		TreatedRegions: frame.TreatedRegions(),
		ControlRegions: frame.ControlRegions(),
		TreatmentYear:  params.TreatmentYear,
		IntensityYear:  params.IntensityYear,
		PlaceboCutoff:  params.PlaceboCutoffYear,
		EventReference: params.EventReferenceYear,
		PanelRows:      len(p.Rows),
	}
	workbookPath := filepath.Join(paths.ReportsDir, "did_report.xlsx")
	if err := report.WriteWorkbook(info, results, sensitivity, eventPoints, workbookPath); err != nil {
		logger.Error("Failed to write workbook", "error", err)
		os.Exit(1)
	}

	logger.Info("Report completed",
		"workbook", workbookPath,
		"fitted", len(results.Fits),
		"failed", len(results.Failures),
	)
}
