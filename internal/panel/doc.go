// Package panel assembles the region-by-year analysis panel from the raw
// administrative tables.
//
// The raw inputs are four delimited tables keyed by (region, year): crime
// cases, population totals, foreign-resident counts and unemployment rates.
// Build merges them into a single balanced panel with one row per region
// per study year and derives the crime rate per 100k inhabitants.
//
// The panel is strict: a missing (region, year) cell anywhere in the merge
// aborts the build with the offending keys listed. No interpolation or
// imputation is ever performed.
//
// A built panel can be persisted to a processed CSV and reloaded, so the
// expensive-to-source raw tables only need to be merged once per data
// refresh.
package panel
