package panel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	tables := rawFixture(t, t.TempDir(), nil)
	built, err := Build(context.Background(), nil, tables, testRegions, testYears)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "processed", "panel.csv")
	require.NoError(t, Save(built, path))

	loaded, err := Load(path, testRegions, testYears)
	require.NoError(t, err)

	require.Len(t, loaded.Rows, len(built.Rows))
	for i := range built.Rows {
		assert.Equal(t, built.Rows[i], loaded.Rows[i])
	}
}

func TestSaveEmptyPanelFails(t *testing.T) {
	err := Save(&Panel{}, filepath.Join(t.TempDir(), "panel.csv"))
	assert.Error(t, err)
}

func TestLoadReorderedColumns(t *testing.T) {
	// A complete file with shuffled columns still loads; positions come
	// from the header, not the layout Save uses.
	content := strings.Join([]string{
		"year,region,population_total,total_cases,crime_rate_per_100k,ilo_unemployment_rate_pct,foreigners_share_pct,foreigners_total",
		"2020,A,1000000,100,10,5.5,2.5,25000",
	}, "\n") + "\n"

	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := Load(path, []string{"A"}, []int{2020})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "A", p.Rows[0].Region)
	assert.Equal(t, 2020, p.Rows[0].Year)
	assert.InDelta(t, 10, p.Rows[0].CrimeRatePer100k, 1e-9)
}

func TestLoadFailures(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "panel.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	header := strings.Join(panelHeader, ",")

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.csv"), testRegions, testYears)
		assert.Error(t, err)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := Load(writeFile(t, header+"\n"), testRegions, testYears)
		assert.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		content := "region,year\nA,2020\n"
		_, err := Load(writeFile(t, content), []string{"A"}, []int{2020})
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("unparseable value", func(t *testing.T) {
		content := header + "\nA,2020,100,abc,10,25000,2.5,5.5\n"
		_, err := Load(writeFile(t, content), []string{"A"}, []int{2020})
		assert.Error(t, err)
	})

	t.Run("invalid observation", func(t *testing.T) {
		// Zero population is never valid.
		content := header + "\nA,2020,100,0,10,25000,2.5,5.5\n"
		_, err := Load(writeFile(t, content), []string{"A"}, []int{2020})
		assert.ErrorIs(t, err, ErrInvalidObservation)
	})

	t.Run("incomplete coverage", func(t *testing.T) {
		content := header + "\nA,2020,100,1000000,10,25000,2.5,5.5\n"
		_, err := Load(writeFile(t, content), []string{"A", "B"}, []int{2020})
		assert.ErrorIs(t, err, ErrUnbalancedPanel)
	})
}
