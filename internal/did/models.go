package did

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Model names, used in results tables and reports.
const (
	ModelBaseline   = "baseline_did"
	ModelTwoWayFE   = "twoway_fe_did"
	ModelCovariates = "covariate_adjusted_did"
	ModelPretrend   = "pretrend_interaction"
	ModelPlacebo    = "placebo_did"
	ModelEventStudy = "event_study"
)

const responseColumn = "crime_rate_per_100k"

// FitBaseline fits the simple DiD model without fixed effects:
//
//	crime_rate_per_100k ~ treated + post + did
//
// did is the treated x post interaction; its coefficient is the
// difference-in-differences estimate.
func FitBaseline(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	spec := ModelSpec{
		Name:      ModelBaseline,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Numeric: "treated"},
			{Numeric: "post"},
			{Numeric: "did"},
		},
		Interest: []string{"did"},
	}
	return Fit(ctx, logger, f.Rows, spec)
}

// FitTwoWayFE fits the main DiD model with region and year fixed
// effects:
//
//	crime_rate_per_100k ~ did + C(region) + C(year)
func FitTwoWayFE(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	spec := ModelSpec{
		Name:      ModelTwoWayFE,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Numeric: "did"},
			{Categorical: "region"},
			{Categorical: "year"},
		},
		Interest: []string{"did"},
	}
	return Fit(ctx, logger, f.Rows, spec)
}

// FitWithCovariates fits the two-way FE model with unemployment and
// demographic controls:
//
//	crime_rate_per_100k ~ did + ilo_unemployment_rate_pct
//	    + foreigners_share_pct + C(region) + C(year)
//
// Comparing its did coefficient against FitTwoWayFE is the covariate
// robustness check.
func FitWithCovariates(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	spec := ModelSpec{
		Name:      ModelCovariates,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Numeric: "did"},
			{Numeric: "ilo_unemployment_rate_pct"},
			{Numeric: "foreigners_share_pct"},
			{Categorical: "region"},
			{Categorical: "year"},
		},
		Interest: []string{"did"},
	}
	return Fit(ctx, logger, f.Rows, spec)
}

// FitPretrend tests for differential pre-treatment trends on the pre
// period only:
//
//	crime_rate_per_100k ~ year_num + treated:year_num + C(region)
//
// year_num counts years from the start of the pre sample. The treated
// main effect is region-constant and therefore absorbed by the region
// fixed effects; including it would make the design rank deficient. A
// significant treated:year_num coefficient indicates diverging trends
// before treatment and undermines the parallel-trends assumption.
func FitPretrend(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	rows := f.PreRows()
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no pre-period rows before %d", ErrInsufficientData, f.Params.TreatmentYear)
	}

	minYear := rows[0].Year
	for _, row := range rows {
		if row.Year < minYear {
			minYear = row.Year
		}
	}
	for i := range rows {
		rows[i].YearNum = rows[i].Year - minYear
	}

	spec := ModelSpec{
		Name:      ModelPretrend,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Numeric: "year_num"},
			{Numeric: "treated", Interact: "year_num"},
			{Categorical: "region"},
		},
		Interest: []string{"treated:year_num"},
	}
	return Fit(ctx, logger, rows, spec)
}

// FitPlacebo re-estimates the DiD on pre-treatment rows only with an
// artificial cutoff year:
//
//	crime_rate_per_100k ~ fake_did + C(region) + C(year)
//
// No true effect exists in the pre period, so a significant fake_did
// coefficient flags a spurious design.
func FitPlacebo(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	rows := f.PreRows()
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no pre-period rows before %d", ErrInsufficientData, f.Params.TreatmentYear)
	}

	for i := range rows {
		if rows[i].Year >= f.Params.PlaceboCutoffYear {
			rows[i].FakePost = 1
		}
		rows[i].FakeDID = rows[i].Treated * rows[i].FakePost
	}

	spec := ModelSpec{
		Name:      ModelPlacebo,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Numeric: "fake_did"},
			{Categorical: "region"},
			{Categorical: "year"},
		},
		Interest: []string{"fake_did"},
	}
	return Fit(ctx, logger, rows, spec)
}

// FitEventStudy fits the dynamic specification with a full set of
// lead/lag indicators relative to the treatment year, interacted with
// treated status:
//
//	crime_rate_per_100k ~ C(region) + C(rel_year, ref)
//	    + C(rel_year, ref):treated
//
// The reference offset (EventReferenceYear - TreatmentYear) is omitted
// from both the year indicators and the interactions, so the result
// carries exactly one coefficient per remaining offset.
func FitEventStudy(ctx context.Context, logger *slog.Logger, f *Frame) (*FitResult, error) {
	rows := f.cloneRows()
	for i := range rows {
		rows[i].RelYear = rows[i].Year - f.Params.TreatmentYear
	}
	reference := strconv.Itoa(f.Params.EventReferenceYear - f.Params.TreatmentYear)

	spec := ModelSpec{
		Name:      ModelEventStudy,
		Response:  responseColumn,
		Intercept: true,
		Terms: []Term{
			{Categorical: "region"},
			{Categorical: "rel_year", Reference: reference},
			{Categorical: "rel_year", Reference: reference, Interact: "treated"},
		},
		InterestPrefix: "rel_year[",
		InterestSuffix: "]:treated",
	}
	return Fit(ctx, logger, rows, spec)
}

// EventStudyPoints extracts the per-offset treatment-effect path from an
// event-study fit, sorted by offset. The reference offset has no point.
func EventStudyPoints(fit *FitResult, params StudyParams) ([]EventPoint, error) {
	if fit.Model != ModelEventStudy {
		return nil, fmt.Errorf("fit %s is not an event study", fit.Model)
	}

	var points []EventPoint
	for _, c := range fit.Coefficients {
		if !c.Interest {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(c.Name, "rel_year["), "]:treated")
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse event-study coefficient name %q: %w", c.Name, err)
		}
		points = append(points, EventPoint{
			RelYear:  offset,
			Year:     params.TreatmentYear + offset,
			Estimate: c.Estimate,
			StdErr:   c.StdErr,
			PValue:   c.PValue,
			CILower:  c.CILower,
			CIUpper:  c.CIUpper,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].RelYear < points[j].RelYear })
	return points, nil
}

// RunAll fits every specification family over one frame. A failure in
// one specification (typically rank deficiency) is recorded and the
// remaining specifications still run.
func RunAll(ctx context.Context, logger *slog.Logger, f *Frame) *Results {
	if logger == nil {
		logger = slog.Default()
	}

	type family struct {
		model string
		fit   func(context.Context, *slog.Logger, *Frame) (*FitResult, error)
	}
	families := []family{
		{ModelBaseline, FitBaseline},
		{ModelTwoWayFE, FitTwoWayFE},
		{ModelCovariates, FitWithCovariates},
		{ModelPretrend, FitPretrend},
		{ModelPlacebo, FitPlacebo},
		{ModelEventStudy, FitEventStudy},
	}

	results := &Results{}
	for _, fam := range families {
		fit, err := fam.fit(ctx, logger, f)
		if err != nil {
			logger.ErrorContext(ctx, "specification failed",
				"model", fam.model,
				"error", err,
			)
			results.Failures = append(results.Failures, Failure{Model: fam.model, Err: err})
			continue
		}
		results.Fits = append(results.Fits, fit)
	}

	logger.InfoContext(ctx, "estimation run completed",
		"fitted", len(results.Fits),
		"failed", len(results.Failures),
	)

	return results
}
