package panel

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"
)

// RawTables names the four raw input files, each keyed by (region, year).
type RawTables struct {
	CrimeCSV        string // region,year,total_cases
	PopulationCSV   string // region,year,population_total
	ForeignersCSV   string // region,year,foreigners_total,foreigners_share_pct
	UnemploymentCSV string // region,year,ilo_unemployment_rate_pct
}

// Build merges the raw tables into one balanced panel covering exactly
// the given regions and years. The merge is an inner join on
// (region, year); any combination missing from any source surfaces as a
// balance error, never as a silently shorter panel.
func Build(ctx context.Context, logger *slog.Logger, tables RawTables, regions []string, years []int) (*Panel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "building analysis panel",
		"regions", len(regions),
		"years", len(years),
	)

	crime, err := loadTable(tables.CrimeCSV, "total_cases")
	if err != nil {
		return nil, fmt.Errorf("load crime table: %w", err)
	}
	population, err := loadTable(tables.PopulationCSV, "population_total")
	if err != nil {
		return nil, fmt.Errorf("load population table: %w", err)
	}
	foreigners, err := loadTable(tables.ForeignersCSV, "foreigners_total", "foreigners_share_pct")
	if err != nil {
		return nil, fmt.Errorf("load foreigners table: %w", err)
	}
	unemployment, err := loadTable(tables.UnemploymentCSV, "ilo_unemployment_rate_pct")
	if err != nil {
		return nil, fmt.Errorf("load unemployment table: %w", err)
	}

	merged := crime.InnerJoin(population, "region", "year")
	if merged.Err != nil {
		return nil, fmt.Errorf("join crime and population tables: %w", merged.Err)
	}
	merged = merged.InnerJoin(foreigners, "region", "year")
	if merged.Err != nil {
		return nil, fmt.Errorf("join foreigners table: %w", merged.Err)
	}
	merged = merged.InnerJoin(unemployment, "region", "year")
	if merged.Err != nil {
		return nil, fmt.Errorf("join unemployment table: %w", merged.Err)
	}

	logger.DebugContext(ctx, "merged raw tables", "rows", merged.Nrow())

	p := &Panel{}
	for _, record := range merged.Maps() {
		obs, err := observationFromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("convert merged row: %w", err)
		}
		p.Rows = append(p.Rows, obs)
	}
	p.sortRows()

	if err := deriveCrimeRates(p); err != nil {
		return nil, err
	}

	if err := ValidateBalance(p, regions, years); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "panel build completed",
		"rows", len(p.Rows),
		"regions", len(regions),
		"years", len(years),
	)

	return p, nil
}

// loadTable reads one raw CSV into a dataframe and checks the expected
// columns are present.
func loadTable(path string, valueColumns ...string) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	df := dataframe.ReadCSV(file)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("parse %s: %w", path, df.Err)
	}

	required := append([]string{"region", "year"}, valueColumns...)
	have := make(map[string]bool, len(df.Names()))
	for _, name := range df.Names() {
		have[name] = true
	}
	for _, col := range required {
		if !have[col] {
			return dataframe.DataFrame{}, fmt.Errorf("%w: table %s has no column %q", ErrMissingColumn, path, col)
		}
	}

	return df, nil
}

// observationFromRecord converts one gota record into a typed observation.
// gota infers column types per file, so numeric cells may arrive as int,
// float64 or string depending on formatting.
func observationFromRecord(record map[string]interface{}) (Observation, error) {
	region, ok := record["region"].(string)
	if !ok || region == "" {
		return Observation{}, fmt.Errorf("row has no region: %v", record)
	}

	year, err := intField(record, "year")
	if err != nil {
		return Observation{}, err
	}

	obs := Observation{Region: region, Year: year}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"total_cases", &obs.TotalCases},
		{"population_total", &obs.PopulationTotal},
		{"foreigners_total", &obs.ForeignersTotal},
		{"foreigners_share_pct", &obs.ForeignersSharePct},
		{"ilo_unemployment_rate_pct", &obs.UnemploymentRatePct},
	}
	for _, f := range fields {
		v, err := floatField(record, f.name)
		if err != nil {
			return Observation{}, fmt.Errorf("region %s year %d: %w", region, year, err)
		}
		*f.dst = v
	}

	return obs, nil
}

// deriveCrimeRates fills crime_rate_per_100k from total_cases and
// population_total. A non-positive population makes the rate undefined
// and fails the build.
func deriveCrimeRates(p *Panel) error {
	for i := range p.Rows {
		row := &p.Rows[i]
		if row.PopulationTotal <= 0 {
			return fmt.Errorf("%w: region %s year %d has population %v", ErrInvalidObservation, row.Region, row.Year, row.PopulationTotal)
		}
		row.CrimeRatePer100k = row.TotalCases / row.PopulationTotal * 100_000
	}
	return nil
}

func intField(record map[string]interface{}, name string) (int, error) {
	switch v := record[name].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("column %q has non-numeric value %v", name, record[name])
	}
}

func floatField(record map[string]interface{}, name string) (float64, error) {
	switch v := record[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("column %q has non-numeric value %v", name, record[name])
	}
}
