package did

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SaveResultsCSV writes every coefficient of every fitted specification
// to one CSV table, one row per (model, regressor).
func SaveResultsCSV(results *Results, outputPath string) error {
	if len(results.Fits) == 0 {
		return fmt.Errorf("no fitted specifications to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"model", "term", "estimate", "std_err", "z", "p_value",
		"ci_lower", "ci_upper", "interest", "n", "rank",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}

	for _, fit := range results.Fits {
		for _, c := range fit.Coefficients {
			record := []string{
				fit.Model,
				c.Name,
				formatFloat(c.Estimate, 6),
				formatFloat(c.StdErr, 6),
				formatFloat(c.Z, 4),
				formatFloat(c.PValue, 6),
				formatFloat(c.CILower, 6),
				formatFloat(c.CIUpper, 6),
				strconv.FormatBool(c.Interest),
				strconv.Itoa(fit.N),
				strconv.Itoa(fit.Rank),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write results row %s/%s: %w", fit.Model, c.Name, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveSensitivityCSV writes the threshold-sensitivity sweep, one row per
// policy.
func SaveSensitivityCSV(entries []SensitivityResult, outputPath string) error {
	if len(entries) == 0 {
		return fmt.Errorf("no sensitivity entries to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create sensitivity file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"policy", "threshold", "treated_regions", "estimate", "std_err",
		"p_value", "ci_lower", "ci_upper",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write sensitivity header: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.Policy.String(),
			formatFloat(entry.Threshold, 2),
			strconv.Itoa(entry.TreatedCount),
			formatFloat(entry.Estimate, 6),
			formatFloat(entry.StdErr, 6),
			formatFloat(entry.PValue, 6),
			formatFloat(entry.CILower, 6),
			formatFloat(entry.CIUpper, 6),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write sensitivity row %s: %w", entry.Policy, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}
