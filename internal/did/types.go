package did

import (
	"errors"
	"fmt"
	"sort"

	"github.com/foxymadeit/did-refugees-crime/internal/panel"
)

// Sentinel errors surfaced by the engine. Wrapped messages carry the
// specification and key context.
var (
	ErrUnknownPolicy       = errors.New("unknown threshold policy")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrDegeneratePartition = errors.New("degenerate treatment partition")
	ErrRankDeficient       = errors.New("rank-deficient design matrix")
	ErrInsufficientData    = errors.New("insufficient observations")
)

// StudyParams are the design parameters of the study. They come from
// configuration; nothing in the engine hardcodes a year.
type StudyParams struct {
	// TreatmentYear splits pre and post: post := year >= TreatmentYear.
	TreatmentYear int

	// IntensityYear selects the foreigners_total delta used as treatment
	// intensity (IntensityYear minus the preceding year).
	IntensityYear int

	// Policy is the threshold statistic splitting regions into treated
	// and control.
	Policy ThresholdPolicy

	// PlaceboCutoffYear is the artificial treatment year of the placebo
	// check; it must lie strictly inside the pre period.
	PlaceboCutoffYear int

	// EventReferenceYear is the omitted base year of the event study.
	EventReferenceYear int
}

// DefaultStudyParams returns the study defaults: treatment in 2015,
// intensity measured over 2015 to 2016, median threshold, placebo cutoff
// 2013 and event-study reference 2014 (the year before treatment).
func DefaultStudyParams() StudyParams {
	return StudyParams{
		TreatmentYear:      2015,
		IntensityYear:      2016,
		Policy:             PolicyMedian,
		PlaceboCutoffYear:  2013,
		EventReferenceYear: 2014,
	}
}

// Validate checks internal consistency of the parameters.
func (p StudyParams) Validate() error {
	if !p.Policy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, p.Policy)
	}
	if p.PlaceboCutoffYear >= p.TreatmentYear {
		return fmt.Errorf("placebo cutoff %d must precede treatment year %d", p.PlaceboCutoffYear, p.TreatmentYear)
	}
	if p.EventReferenceYear > p.TreatmentYear {
		// A post-period reference would normalize the path against an
		// already-treated year and make every pre coefficient unreadable.
		return fmt.Errorf("event reference year %d lies after treatment year %d", p.EventReferenceYear, p.TreatmentYear)
	}
	return nil
}

// Row is one region-year observation with design variables attached.
// Treated, Post and the derived indicator columns are 0/1 ints, matching
// their use as regressors.
type Row struct {
	panel.Observation

	// Intensity is the year-over-year change in foreigners_total for
	// this region and year (NaN for the first panel year).
	Intensity float64

	Treated int
	Post    int
	DID     int

	// Derived columns populated by individual specifications.
	YearNum  int // year index from the start of the (sub)sample
	FakePost int // placebo post indicator
	FakeDID  int // placebo interaction
	RelYear  int // year relative to the treatment year
}

// Frame is a panel with design variables attached under one threshold
// policy. Frames are immutable once built; specifications work on copies.
type Frame struct {
	Rows []Row

	Params    StudyParams
	Threshold float64

	// RegionIntensity is the treatment intensity per region in the
	// intensity year, the values the threshold was computed over.
	RegionIntensity map[string]float64
}

// TreatedRegions returns the sorted list of treated regions.
func (f *Frame) TreatedRegions() []string {
	return f.regionsWhere(1)
}

// ControlRegions returns the sorted list of control regions.
func (f *Frame) ControlRegions() []string {
	return f.regionsWhere(0)
}

func (f *Frame) regionsWhere(treated int) []string {
	seen := make(map[string]bool)
	var regions []string
	for _, row := range f.Rows {
		if row.Treated == treated && !seen[row.Region] {
			seen[row.Region] = true
			regions = append(regions, row.Region)
		}
	}
	sort.Strings(regions)
	return regions
}

// PreRows returns copies of the rows strictly before the treatment year.
func (f *Frame) PreRows() []Row {
	var rows []Row
	for _, row := range f.Rows {
		if row.Year < f.Params.TreatmentYear {
			rows = append(rows, row)
		}
	}
	return rows
}

// cloneRows returns a copy of all rows for per-specification transforms.
func (f *Frame) cloneRows() []Row {
	rows := make([]Row, len(f.Rows))
	copy(rows, f.Rows)
	return rows
}

// Coefficient is one estimated regressor with HC3-robust inference.
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	Z        float64 `json:"z"`
	PValue   float64 `json:"p_value"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`

	// Interest marks the treatment-effect term(s) of the specification.
	Interest bool `json:"interest"`
}

// FitResult is the immutable outcome of fitting one specification.
type FitResult struct {
	Model        string        `json:"model"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	Rank         int           `json:"rank"`
	Cond         float64       `json:"cond"`

	// Warnings carries non-fatal solver diagnostics, e.g. a
	// near-singular design matrix.
	Warnings []string `json:"warnings,omitempty"`
}

// Coefficient returns the named coefficient.
func (r *FitResult) Coefficient(name string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// InterestTerms returns the treatment-effect coefficients in estimation
// order.
func (r *FitResult) InterestTerms() []Coefficient {
	var out []Coefficient
	for _, c := range r.Coefficients {
		if c.Interest {
			out = append(out, c)
		}
	}
	return out
}

// EventPoint is one event-study estimate at an offset relative to the
// treatment year. The reference offset has no point: its coefficient is
// omitted from the design by construction.
type EventPoint struct {
	RelYear  int     `json:"rel_year"`
	Year     int     `json:"year"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	PValue   float64 `json:"p_value"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// SensitivityResult is the two-way FE DiD estimate under one threshold
// policy.
type SensitivityResult struct {
	Policy       ThresholdPolicy `json:"policy"`
	Threshold    float64         `json:"threshold"`
	TreatedCount int             `json:"treated_count"`
	Estimate     float64         `json:"estimate"`
	StdErr       float64         `json:"std_err"`
	PValue       float64         `json:"p_value"`
	CILower      float64         `json:"ci_lower"`
	CIUpper      float64         `json:"ci_upper"`
}

// Failure records a specification that could not be fitted. The
// remaining specifications still run.
type Failure struct {
	Model string `json:"model"`
	Err   error  `json:"-"`
}

// Results collects the outcome of a full estimation run.
type Results struct {
	Fits     []*FitResult `json:"fits"`
	Failures []Failure    `json:"failures,omitempty"`
}

// Fit returns the named fit, if it succeeded.
func (r *Results) Fit(model string) (*FitResult, bool) {
	for _, f := range r.Fits {
		if f.Model == model {
			return f, true
		}
	}
	return nil, false
}
