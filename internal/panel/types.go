package panel

import (
	"fmt"
	"sort"
)

// Observation is a single region-year row of the analysis panel.
// Column names in the persisted CSV mirror the field comments.
type Observation struct {
	Region              string  // region
	Year                int     // year
	TotalCases          float64 // total_cases
	PopulationTotal     float64 // population_total
	CrimeRatePer100k    float64 // crime_rate_per_100k
	ForeignersTotal     float64 // foreigners_total
	ForeignersSharePct  float64 // foreigners_share_pct
	UnemploymentRatePct float64 // ilo_unemployment_rate_pct
}

// IsValid checks basic plausibility of a single observation.
func (o Observation) IsValid() bool {
	return o.Region != "" && o.Year > 0 &&
		o.TotalCases >= 0 && o.PopulationTotal > 0 &&
		o.ForeignersTotal >= 0 && o.ForeignersSharePct >= 0 &&
		o.UnemploymentRatePct >= 0
}

// Panel is a balanced region-by-year table. Rows are sorted by region,
// then year, and are immutable once built.
type Panel struct {
	Rows []Observation
}

// Regions returns the distinct regions in row order.
func (p *Panel) Regions() []string {
	seen := make(map[string]bool)
	var regions []string
	for _, row := range p.Rows {
		if !seen[row.Region] {
			seen[row.Region] = true
			regions = append(regions, row.Region)
		}
	}
	sort.Strings(regions)
	return regions
}

// Years returns the distinct years in ascending order.
func (p *Panel) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, row := range p.Rows {
		if !seen[row.Year] {
			seen[row.Year] = true
			years = append(years, row.Year)
		}
	}
	sort.Ints(years)
	return years
}

// Filter returns a new panel containing the rows for which keep returns
// true. The receiver is not modified.
func (p *Panel) Filter(keep func(Observation) bool) *Panel {
	out := &Panel{}
	for _, row := range p.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Lookup returns the observation for (region, year).
func (p *Panel) Lookup(region string, year int) (Observation, bool) {
	for _, row := range p.Rows {
		if row.Region == region && row.Year == year {
			return row, true
		}
	}
	return Observation{}, false
}

func (p *Panel) sortRows() {
	sort.Slice(p.Rows, func(i, j int) bool {
		if p.Rows[i].Region == p.Rows[j].Region {
			return p.Rows[i].Year < p.Rows[j].Year
		}
		return p.Rows[i].Region < p.Rows[j].Region
	})
}

func key(region string, year int) string {
	return fmt.Sprintf("%s/%d", region, year)
}
