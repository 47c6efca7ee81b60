package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/foxymadeit/did-refugees-crime/internal/did"
)

// RunInfo identifies one estimation run on the workbook summary sheet.
type RunInfo struct {
	RunID          string
	Policy         did.ThresholdPolicy
	Threshold      float64
	TreatedRegions []string
	ControlRegions []string
	TreatmentYear  int
	IntensityYear  int
	PlaceboCutoff  int
	EventReference int
	PanelRows      int
}

// WriteWorkbook renders the full estimation run into one Excel workbook:
// a summary sheet with the run configuration and the interest
// coefficients per specification, one sheet per fitted specification,
// the threshold-sensitivity sweep and the event-study path.
func WriteWorkbook(info RunInfo, results *did.Results, sensitivity []did.SensitivityResult, eventPoints []did.EventPoint, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, info, results); err != nil {
		return err
	}

	for _, fit := range results.Fits {
		if err := writeFitSheet(f, fit); err != nil {
			return err
		}
	}

	if len(sensitivity) > 0 {
		if err := writeSensitivitySheet(f, sensitivity); err != nil {
			return err
		}
	}

	if len(eventPoints) > 0 {
		if err := writeEventStudySheet(f, eventPoints); err != nil {
			return err
		}
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("save workbook %s: %w", outputPath, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, info RunInfo, results *did.Results) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Run", info.RunID},
		{"Panel rows", info.PanelRows},
		{"Threshold policy", info.Policy.String()},
		{"Threshold", info.Threshold},
		{"Treatment year", info.TreatmentYear},
		{"Intensity year", info.IntensityYear},
		{"Placebo cutoff", info.PlaceboCutoff},
		{"Event reference year", info.EventReference},
		{"Treated regions", len(info.TreatedRegions)},
		{"Control regions", len(info.ControlRegions)},
		{},
		{"Model", "Interest term", "Estimate", "Robust SE", "p-value", "95% CI low", "95% CI high"},
	}

	for _, fit := range results.Fits {
		for _, c := range fit.InterestTerms() {
			rows = append(rows, []interface{}{
				fit.Model, c.Name, c.Estimate, c.StdErr, c.PValue, c.CILower, c.CIUpper,
			})
		}
	}
	for _, failure := range results.Failures {
		rows = append(rows, []interface{}{failure.Model, "FAILED", failure.Err.Error()})
	}

	return writeRows(f, sheet, rows)
}

func writeFitSheet(f *excelize.File, fit *did.FitResult) error {
	sheet := fit.Model
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Term", "Estimate", "Robust SE", "z", "p-value", "95% CI low", "95% CI high", "Interest"},
	}
	for _, c := range fit.Coefficients {
		rows = append(rows, []interface{}{
			c.Name, c.Estimate, c.StdErr, c.Z, c.PValue, c.CILower, c.CIUpper, c.Interest,
		})
	}
	rows = append(rows,
		[]interface{}{},
		[]interface{}{"N", fit.N},
		[]interface{}{"Rank", fit.Rank},
		[]interface{}{"Condition number", fit.Cond},
	)
	for _, warning := range fit.Warnings {
		rows = append(rows, []interface{}{"Warning", warning})
	}

	return writeRows(f, sheet, rows)
}

func writeSensitivitySheet(f *excelize.File, entries []did.SensitivityResult) error {
	const sheet = "Sensitivity"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Policy", "Threshold", "Treated regions", "Estimate", "Robust SE", "p-value", "95% CI low", "95% CI high"},
	}
	for _, e := range entries {
		rows = append(rows, []interface{}{
			e.Policy.String(), e.Threshold, e.TreatedCount, e.Estimate, e.StdErr, e.PValue, e.CILower, e.CIUpper,
		})
	}

	return writeRows(f, sheet, rows)
}

func writeEventStudySheet(f *excelize.File, points []did.EventPoint) error {
	const sheet = "EventStudy"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Offset", "Year", "Estimate", "Robust SE", "p-value", "95% CI low", "95% CI high"},
	}
	for _, p := range points {
		rows = append(rows, []interface{}{
			p.RelYear, p.Year, p.Estimate, p.StdErr, p.PValue, p.CILower, p.CIUpper,
		})
	}

	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("cell coordinates (%d,%d): %w", j+1, i+1, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}
