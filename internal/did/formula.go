package did

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Term is one additive component of a model formula.
//
// A numeric term contributes a single regressor. A categorical term
// expands into one indicator column per level, with the reference level
// omitted. Setting Interact multiplies the term by a numeric column,
// which is how the event-study lead/lag indicators and the pre-trend
// slope interaction are expressed.
type Term struct {
	Numeric     string // numeric column name
	Categorical string // categorical column name (expands to indicators)
	Reference   string // omitted level; empty means the first sorted level
	Interact    string // numeric column multiplied into the term
}

// ModelSpec is the declarative description of one regression
// specification: a response, an intercept flag and a term list. The
// design-matrix builder and the estimator are shared by every
// specification; adding a new one means declaring a new ModelSpec.
type ModelSpec struct {
	Name      string
	Response  string
	Intercept bool
	Terms     []Term

	// Interest names the treatment-effect coefficient(s). Exact names
	// go in Interest; expanded families (event-study interactions)
	// match by prefix and suffix.
	Interest       []string
	InterestPrefix string
	InterestSuffix string
}

func (s ModelSpec) isInterest(name string) bool {
	for _, want := range s.Interest {
		if name == want {
			return true
		}
	}
	if s.InterestPrefix != "" || s.InterestSuffix != "" {
		return strings.HasPrefix(name, s.InterestPrefix) && strings.HasSuffix(name, s.InterestSuffix)
	}
	return false
}

// designMatrix is a compiled specification: named regressor columns plus
// the response vector.
type designMatrix struct {
	spec  ModelSpec
	names []string
	x     *mat.Dense
	y     *mat.VecDense
}

// column is a single named regressor with its row accessor.
type column struct {
	name  string
	value func(Row) (float64, error)
}

// buildDesignMatrix compiles a specification against concrete rows.
func buildDesignMatrix(rows []Row, spec ModelSpec) (*designMatrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: specification %s has no rows", ErrInsufficientData, spec.Name)
	}

	var columns []column
	if spec.Intercept {
		columns = append(columns, column{
			name:  "Intercept",
			value: func(Row) (float64, error) { return 1, nil },
		})
	}

	for _, term := range spec.Terms {
		expanded, err := expandTerm(rows, term)
		if err != nil {
			return nil, fmt.Errorf("specification %s: %w", spec.Name, err)
		}
		columns = append(columns, expanded...)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("specification %s has no regressors", spec.Name)
	}

	n, k := len(rows), len(columns)
	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)

	names := make([]string, k)
	for j, col := range columns {
		names[j] = col.name
	}

	for i, row := range rows {
		response, err := numericValue(row, spec.Response)
		if err != nil {
			return nil, fmt.Errorf("specification %s response: %w", spec.Name, err)
		}
		y.SetVec(i, response)

		for j, col := range columns {
			v, err := col.value(row)
			if err != nil {
				return nil, fmt.Errorf("specification %s column %s: %w", spec.Name, col.name, err)
			}
			x.Set(i, j, v)
		}
	}

	return &designMatrix{spec: spec, names: names, x: x, y: y}, nil
}

// expandTerm turns one term into its concrete columns.
func expandTerm(rows []Row, term Term) ([]column, error) {
	switch {
	case term.Categorical != "":
		return expandCategorical(rows, term)
	case term.Numeric != "":
		return []column{numericColumn(term)}, nil
	default:
		return nil, fmt.Errorf("term has neither a numeric nor a categorical column")
	}
}

func numericColumn(term Term) column {
	name := term.Numeric
	if term.Interact != "" {
		name = term.Numeric + ":" + term.Interact
	}
	return column{
		name: name,
		value: func(r Row) (float64, error) {
			v, err := numericValue(r, term.Numeric)
			if err != nil {
				return 0, err
			}
			if term.Interact == "" {
				return v, nil
			}
			w, err := numericValue(r, term.Interact)
			if err != nil {
				return 0, err
			}
			return v * w, nil
		},
	}
}

func expandCategorical(rows []Row, term Term) ([]column, error) {
	levels, err := categoricalLevels(rows, term.Categorical)
	if err != nil {
		return nil, err
	}

	reference := term.Reference
	if reference == "" {
		reference = levels[0]
	} else {
		found := false
		for _, level := range levels {
			if level == reference {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("reference level %q not present in column %s", reference, term.Categorical)
		}
	}

	var columns []column
	for _, level := range levels {
		if level == reference {
			continue
		}
		level := level
		name := fmt.Sprintf("%s[%s]", term.Categorical, level)
		if term.Interact != "" {
			name += ":" + term.Interact
		}
		columns = append(columns, column{
			name: name,
			value: func(r Row) (float64, error) {
				actual, err := categoricalValue(r, term.Categorical)
				if err != nil {
					return 0, err
				}
				v := 0.0
				if actual == level {
					v = 1.0
				}
				if term.Interact == "" {
					return v, nil
				}
				w, err := numericValue(r, term.Interact)
				if err != nil {
					return 0, err
				}
				return v * w, nil
			},
		})
	}
	return columns, nil
}

// categoricalLevels returns the distinct levels of a factor, numerically
// sorted when every level parses as an integer (year, rel_year) and
// lexically otherwise (region).
func categoricalLevels(rows []Row, name string) ([]string, error) {
	seen := make(map[string]bool)
	var levels []string
	for _, row := range rows {
		v, err := categoricalValue(row, name)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	if len(levels) < 2 {
		return nil, fmt.Errorf("categorical column %s has fewer than 2 levels", name)
	}

	numeric := true
	parsed := make(map[string]int, len(levels))
	for _, level := range levels {
		n, err := strconv.Atoi(level)
		if err != nil {
			numeric = false
			break
		}
		parsed[level] = n
	}
	if numeric {
		sort.Slice(levels, func(i, j int) bool { return parsed[levels[i]] < parsed[levels[j]] })
	} else {
		sort.Strings(levels)
	}
	return levels, nil
}

// numericValue resolves a numeric column by its panel name.
func numericValue(r Row, name string) (float64, error) {
	switch name {
	case "crime_rate_per_100k":
		return r.CrimeRatePer100k, nil
	case "total_cases":
		return r.TotalCases, nil
	case "population_total":
		return r.PopulationTotal, nil
	case "foreigners_total":
		return r.ForeignersTotal, nil
	case "foreigners_share_pct":
		return r.ForeignersSharePct, nil
	case "ilo_unemployment_rate_pct":
		return r.UnemploymentRatePct, nil
	case "treatment_intensity":
		return r.Intensity, nil
	case "treated":
		return float64(r.Treated), nil
	case "post":
		return float64(r.Post), nil
	case "did":
		return float64(r.DID), nil
	case "year_num":
		return float64(r.YearNum), nil
	case "fake_post":
		return float64(r.FakePost), nil
	case "fake_did":
		return float64(r.FakeDID), nil
	default:
		return 0, fmt.Errorf("%w: numeric %q", ErrUnknownColumn, name)
	}
}

// categoricalValue resolves a categorical column by name.
func categoricalValue(r Row, name string) (string, error) {
	switch name {
	case "region":
		return r.Region, nil
	case "year":
		return strconv.Itoa(r.Year), nil
	case "rel_year":
		return strconv.Itoa(r.RelYear), nil
	default:
		return "", fmt.Errorf("%w: categorical %q", ErrUnknownColumn, name)
	}
}
