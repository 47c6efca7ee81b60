// Package report renders the estimation outputs: the coefficient
// workbook and the numeric series handed to the external plotting
// collaborator (treatment-intensity distribution, group mean crime-rate
// paths, event-study path). Figure rendering itself lives outside this
// module; report only produces tables and series.
package report
