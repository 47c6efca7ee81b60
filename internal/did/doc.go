// Package did implements the Difference-in-Differences estimation engine
// for the refugee-inflow crime study.
//
// The engine takes a balanced region-by-year panel, attaches the DiD
// design variables (treatment intensity, treated, post, did) under a
// configurable threshold policy, and fits six specification families over
// one shared OLS primitive with HC3 heteroskedasticity-robust standard
// errors:
//
//  1. Baseline DiD                crime_rate ~ treated + post + did
//  2. Two-way fixed effects DiD   crime_rate ~ did + C(region) + C(year)
//  3. Covariate-adjusted DiD      (2) + unemployment + foreigner share
//  4. Pre-trend interaction       pre period only; treated x year trend
//  5. Placebo DiD                 pre period only; artificial cutoff year
//  6. Event study                 per-offset treated x year coefficients
//
// # Architecture
//
// The package mirrors a declarative formula workflow: each specification
// is a ModelSpec (response + term list), compiled by one design-matrix
// builder and fitted by one estimator. Adding a specification means
// declaring terms, not writing estimation code.
//
//   - types.go: rows, frames, results, policies, sentinel errors
//   - design.go: treatment-intensity and design-variable construction
//   - threshold.go: median/mean/percentile threshold policies
//   - formula.go: term list to design-matrix compilation
//   - ols.go: OLS with HC3 robust covariance on gonum matrices
//   - models.go: the six specification families and the robustness runner
//   - sensitivity.go: threshold-sensitivity sweep across all policies
//   - persist.go: coefficient and sensitivity tables as CSV
//
// # Failure semantics
//
// A rank-deficient design matrix is a configuration error and fails that
// specification loudly; columns are never dropped silently. The
// robustness runner reports the failure and continues with the remaining
// specifications. Near-singular but full-rank systems fit, with a
// condition-number warning attached to the result.
//
// Every fit is a pure function of its inputs: identical panels and
// parameters produce bit-identical coefficients.
package did
