package panel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// panelHeader is the persisted column layout of the processed panel.
var panelHeader = []string{
	"region",
	"year",
	"total_cases",
	"population_total",
	"crime_rate_per_100k",
	"foreigners_total",
	"foreigners_share_pct",
	"ilo_unemployment_rate_pct",
}

// Save writes the processed panel to a CSV file so subsequent analysis
// runs can skip the raw-table merge.
func Save(p *Panel, outputPath string) error {
	if len(p.Rows) == 0 {
		return fmt.Errorf("no panel rows to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create panel file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(panelHeader); err != nil {
		return fmt.Errorf("write panel header: %w", err)
	}

	for _, row := range p.Rows {
		record := []string{
			row.Region,
			strconv.Itoa(row.Year),
			formatFloat(row.TotalCases),
			formatFloat(row.PopulationTotal),
			formatFloat(row.CrimeRatePer100k),
			formatFloat(row.ForeignersTotal),
			formatFloat(row.ForeignersSharePct),
			formatFloat(row.UnemploymentRatePct),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write panel row %s/%d: %w", row.Region, row.Year, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Load reads a processed panel CSV written by Save and validates it
// against the expected regions and years.
func Load(panelPath string, regions []string, years []int) (*Panel, error) {
	file, err := os.Open(panelPath)
	if err != nil {
		return nil, fmt.Errorf("open panel file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read panel file %s: %w", panelPath, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("panel file %s has no data rows", panelPath)
	}

	// Column positions come from the header so a reordered but complete
	// file still loads.
	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range panelHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: panel file %s has no column %q", ErrMissingColumn, panelPath, name)
		}
	}

	p := &Panel{}
	for line, record := range records[1:] {
		obs, err := parsePanelRecord(record, col)
		if err != nil {
			return nil, fmt.Errorf("panel file %s line %d: %w", panelPath, line+2, err)
		}
		p.Rows = append(p.Rows, obs)
	}
	p.sortRows()

	if err := ValidateBalance(p, regions, years); err != nil {
		return nil, err
	}

	return p, nil
}

func parsePanelRecord(record []string, col map[string]int) (Observation, error) {
	region := record[col["region"]]
	if region == "" {
		return Observation{}, fmt.Errorf("empty region")
	}

	year, err := strconv.Atoi(record[col["year"]])
	if err != nil {
		return Observation{}, fmt.Errorf("parse year %q: %w", record[col["year"]], err)
	}

	obs := Observation{Region: region, Year: year}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"total_cases", &obs.TotalCases},
		{"population_total", &obs.PopulationTotal},
		{"crime_rate_per_100k", &obs.CrimeRatePer100k},
		{"foreigners_total", &obs.ForeignersTotal},
		{"foreigners_share_pct", &obs.ForeignersSharePct},
		{"ilo_unemployment_rate_pct", &obs.UnemploymentRatePct},
	}
	for _, f := range fields {
		raw := record[col[f.name]]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Observation{}, fmt.Errorf("parse %s %q: %w", f.name, raw, err)
		}
		*f.dst = v
	}

	if !obs.IsValid() {
		return Observation{}, fmt.Errorf("%w: %s/%d", ErrInvalidObservation, obs.Region, obs.Year)
	}

	return obs, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
