package did

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxymadeit/did-refugees-crime/internal/panel"
)

// olsRows builds rows where year_num is the regressor and the crime rate
// is the response.
func olsRows(x []float64, y []float64) []Row {
	rows := make([]Row, len(x))
	for i := range x {
		rows[i] = Row{
			Observation: panel.Observation{
				Region:           "A",
				Year:             2010 + i,
				CrimeRatePer100k: y[i],
			},
			YearNum: int(x[i]),
		}
	}
	return rows
}

// TestFitOLSHandComputed verifies coefficients and HC3 standard errors
// against values worked out by hand for a 4-point simple regression.
func TestFitOLSHandComputed(t *testing.T) {
	rows := olsRows(
		[]float64{0, 1, 2, 3},
		[]float64{1, 2, 2, 4},
	)
	spec := ModelSpec{
		Name:      "hand",
		Response:  "crime_rate_per_100k",
		Intercept: true,
		Terms:     []Term{{Numeric: "year_num"}},
		Interest:  []string{"year_num"},
	}

	fit, err := Fit(context.Background(), nil, rows, spec)
	require.NoError(t, err)

	require.Equal(t, 4, fit.N)
	require.Equal(t, 2, fit.Rank)

	intercept, ok := fit.Coefficient("Intercept")
	require.True(t, ok)
	slope, ok := fit.Coefficient("year_num")
	require.True(t, ok)

	// beta = (X'X)^-1 X'y
	assert.InDelta(t, 0.9, intercept.Estimate, 1e-10)
	assert.InDelta(t, 0.9, slope.Estimate, 1e-10)

	// HC3: (X'X)^-1 X' diag(e^2/(1-h)^2) X (X'X)^-1
	assert.InDelta(t, 0.385509, intercept.StdErr, 1e-5)
	assert.InDelta(t, 0.425225, slope.StdErr, 1e-5)

	// Normal-based two-sided inference.
	assert.InDelta(t, slope.Estimate/slope.StdErr, slope.Z, 1e-10)
	assert.InDelta(t, slope.Estimate-1.959964*slope.StdErr, slope.CILower, 1e-4)
	assert.InDelta(t, slope.Estimate+1.959964*slope.StdErr, slope.CIUpper, 1e-4)
	assert.Greater(t, slope.PValue, 0.0)
	assert.Less(t, slope.PValue, 1.0)

	assert.True(t, slope.Interest)
	assert.False(t, intercept.Interest)
}

func TestFitOLSExactFit(t *testing.T) {
	// y = 2 + 3x with no noise: residuals vanish, so the robust
	// standard errors are exactly zero.
	rows := olsRows(
		[]float64{0, 1, 2, 3, 4},
		[]float64{2, 5, 8, 11, 14},
	)
	spec := ModelSpec{
		Name:      "exact",
		Response:  "crime_rate_per_100k",
		Intercept: true,
		Terms:     []Term{{Numeric: "year_num"}},
	}

	fit, err := Fit(context.Background(), nil, rows, spec)
	require.NoError(t, err)

	intercept, _ := fit.Coefficient("Intercept")
	slope, _ := fit.Coefficient("year_num")
	assert.InDelta(t, 2, intercept.Estimate, 1e-9)
	assert.InDelta(t, 3, slope.Estimate, 1e-9)
	assert.InDelta(t, 0, slope.StdErr, 1e-9)
}

func TestFitOLSRankDeficient(t *testing.T) {
	// did equals treated on every row (all rows are post), so the two
	// columns are perfectly collinear.
	var rows []Row
	for i := 0; i < 8; i++ {
		treated := i % 2
		rows = append(rows, Row{
			Observation: panel.Observation{
				Region:           "A",
				Year:             2015 + i,
				CrimeRatePer100k: float64(50 + i),
			},
			Treated: treated,
			Post:    1,
			DID:     treated,
		})
	}

	spec := ModelSpec{
		Name:      "collinear",
		Response:  "crime_rate_per_100k",
		Intercept: true,
		Terms:     []Term{{Numeric: "treated"}, {Numeric: "did"}},
	}

	_, err := Fit(context.Background(), nil, rows, spec)
	assert.ErrorIs(t, err, ErrRankDeficient)
}

func TestFitOLSInsufficientData(t *testing.T) {
	rows := olsRows([]float64{0, 1}, []float64{1, 2})
	spec := ModelSpec{
		Name:      "tiny",
		Response:  "crime_rate_per_100k",
		Intercept: true,
		Terms:     []Term{{Numeric: "year_num"}},
	}

	_, err := Fit(context.Background(), nil, rows, spec)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestFitOLSDeterministic checks that refitting identical inputs yields
// bit-identical estimates.
func TestFitOLSDeterministic(t *testing.T) {
	rows := olsRows(
		[]float64{0, 1, 2, 3, 4, 5},
		[]float64{3.1, 4.9, 7.2, 8.8, 11.1, 12.9},
	)
	spec := ModelSpec{
		Name:      "repeat",
		Response:  "crime_rate_per_100k",
		Intercept: true,
		Terms:     []Term{{Numeric: "year_num"}},
	}

	first, err := Fit(context.Background(), nil, rows, spec)
	require.NoError(t, err)
	second, err := Fit(context.Background(), nil, rows, spec)
	require.NoError(t, err)

	require.Len(t, second.Coefficients, len(first.Coefficients))
	for i := range first.Coefficients {
		a, b := first.Coefficients[i], second.Coefficients[i]
		assert.True(t, a.Estimate == b.Estimate, "estimate for %s not bit-identical", a.Name)
		assert.True(t, a.StdErr == b.StdErr, "std err for %s not bit-identical", a.Name)
		assert.True(t, a.PValue == b.PValue, "p-value for %s not bit-identical", a.Name)
	}
	assert.False(t, math.IsNaN(first.Cond))
}
