package panel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRegions = []string{"Nord", "Sued", "West"}
	testYears   = []int{2014, 2015, 2016}
)

// rawFixture writes the four raw tables into dir. skip drops the
// (region, year) cell from every table, leaving an unbalanced input.
func rawFixture(t *testing.T, dir string, skip func(region string, year int) bool) RawTables {
	t.Helper()

	if skip == nil {
		skip = func(string, int) bool { return false }
	}

	var crime, population, foreigners, unemployment strings.Builder
	crime.WriteString("region,year,total_cases\n")
	population.WriteString("region,year,population_total\n")
	foreigners.WriteString("region,year,foreigners_total,foreigners_share_pct\n")
	unemployment.WriteString("region,year,ilo_unemployment_rate_pct\n")

	for i, region := range testRegions {
		for _, year := range testYears {
			if skip(region, year) {
				continue
			}
			cases := 1000 + 100*i + (year - 2014)
			pop := 2_000_000 + 50_000*i
			fmt.Fprintf(&crime, "%s,%d,%d\n", region, year, cases)
			fmt.Fprintf(&population, "%s,%d,%d\n", region, year, pop)
			fmt.Fprintf(&foreigners, "%s,%d,%d,%.2f\n", region, year, 40_000+1000*(year-2014), 2.5)
			fmt.Fprintf(&unemployment, "%s,%d,%.1f\n", region, year, 6.0+0.5*float64(i))
		}
	}

	tables := RawTables{
		CrimeCSV:        filepath.Join(dir, "crime.csv"),
		PopulationCSV:   filepath.Join(dir, "population.csv"),
		ForeignersCSV:   filepath.Join(dir, "foreigners.csv"),
		UnemploymentCSV: filepath.Join(dir, "unemployment.csv"),
	}
	require.NoError(t, os.WriteFile(tables.CrimeCSV, []byte(crime.String()), 0644))
	require.NoError(t, os.WriteFile(tables.PopulationCSV, []byte(population.String()), 0644))
	require.NoError(t, os.WriteFile(tables.ForeignersCSV, []byte(foreigners.String()), 0644))
	require.NoError(t, os.WriteFile(tables.UnemploymentCSV, []byte(unemployment.String()), 0644))

	return tables
}

func TestBuild(t *testing.T) {
	tables := rawFixture(t, t.TempDir(), nil)

	p, err := Build(context.Background(), nil, tables, testRegions, testYears)
	require.NoError(t, err)

	assert.Len(t, p.Rows, len(testRegions)*len(testYears))
	assert.Equal(t, testRegions, p.Regions())
	assert.Equal(t, testYears, p.Years())

	t.Run("rows sorted by region then year", func(t *testing.T) {
		for i := 1; i < len(p.Rows); i++ {
			prev, curr := p.Rows[i-1], p.Rows[i]
			if prev.Region == curr.Region {
				assert.Less(t, prev.Year, curr.Year)
			} else {
				assert.Less(t, prev.Region, curr.Region)
			}
		}
	})

	t.Run("crime rate derived from cases and population", func(t *testing.T) {
		obs, ok := p.Lookup("Nord", 2014)
		require.True(t, ok)
		assert.InDelta(t, 1000.0/2_000_000*100_000, obs.CrimeRatePer100k, 1e-9)
		assert.InDelta(t, 2.5, obs.ForeignersSharePct, 1e-9)
		assert.InDelta(t, 6.0, obs.UnemploymentRatePct, 1e-9)
	})
}

func TestBuildMissingCellFails(t *testing.T) {
	tables := rawFixture(t, t.TempDir(), func(region string, year int) bool {
		return region == "Sued" && year == 2015
	})

	_, err := Build(context.Background(), nil, tables, testRegions, testYears)
	require.ErrorIs(t, err, ErrUnbalancedPanel)
	assert.Contains(t, err.Error(), "Sued/2015")
}

func TestBuildMissingColumnFails(t *testing.T) {
	dir := t.TempDir()
	tables := rawFixture(t, dir, nil)

	// Drop the value column from the crime table.
	broken := "region,year,cases\nNord,2014,1000\n"
	require.NoError(t, os.WriteFile(tables.CrimeCSV, []byte(broken), 0644))

	_, err := Build(context.Background(), nil, tables, testRegions, testYears)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "total_cases")
}

func TestBuildMissingFileFails(t *testing.T) {
	tables := rawFixture(t, t.TempDir(), nil)
	tables.UnemploymentCSV = filepath.Join(t.TempDir(), "absent.csv")

	_, err := Build(context.Background(), nil, tables, testRegions, testYears)
	assert.Error(t, err)
}

func TestBuildZeroPopulationFails(t *testing.T) {
	dir := t.TempDir()
	tables := rawFixture(t, dir, nil)

	var population strings.Builder
	population.WriteString("region,year,population_total\n")
	for _, region := range testRegions {
		for _, year := range testYears {
			pop := 2_000_000
			if region == "West" && year == 2016 {
				pop = 0
			}
			fmt.Fprintf(&population, "%s,%d,%d\n", region, year, pop)
		}
	}
	require.NoError(t, os.WriteFile(tables.PopulationCSV, []byte(population.String()), 0644))

	_, err := Build(context.Background(), nil, tables, testRegions, testYears)
	require.ErrorIs(t, err, ErrInvalidObservation)
	assert.Contains(t, err.Error(), "West")
}
