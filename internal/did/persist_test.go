package did

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveResultsCSV(t *testing.T) {
	frame := builtFrame(t)
	results := RunAll(context.Background(), nil, frame)
	require.Len(t, results.Fits, 6)

	path := filepath.Join(t.TempDir(), "reports", "did_results.csv")
	require.NoError(t, SaveResultsCSV(results, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"model", "term", "estimate", "std_err", "z", "p_value",
		"ci_lower", "ci_upper", "interest", "n", "rank",
	}, records[0])

	total := 0
	for _, fit := range results.Fits {
		total += len(fit.Coefficients)
	}
	assert.Len(t, records, total+1)

	models := make(map[string]bool)
	for _, record := range records[1:] {
		models[record[0]] = true
	}
	for _, model := range []string{ModelBaseline, ModelTwoWayFE, ModelEventStudy} {
		assert.True(t, models[model], "results CSV missing model %s", model)
	}
}

func TestSaveResultsCSVEmpty(t *testing.T) {
	err := SaveResultsCSV(&Results{}, filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}

func TestSaveSensitivityCSV(t *testing.T) {
	_, _, p := sixteenRegions()
	entries, failures := RunSensitivity(context.Background(), nil, p, defaultTestParams())
	require.Empty(t, failures)

	path := filepath.Join(t.TempDir(), "threshold_sensitivity.csv")
	require.NoError(t, SaveSensitivityCSV(entries, path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6) // header + 5 policies

	assert.Equal(t, "policy", records[0][0])
	for i, policy := range AllPolicies() {
		assert.Equal(t, policy.String(), records[i+1][0])
	}
}
