package panel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for panel construction. Callers match them with
// errors.Is; the wrapped messages carry the offending keys.
var (
	ErrUnbalancedPanel    = errors.New("unbalanced panel")
	ErrDuplicateKey       = errors.New("duplicate (region, year) key")
	ErrMissingColumn      = errors.New("missing column")
	ErrInvalidObservation = errors.New("invalid observation")
)

// ValidateBalance checks that the panel covers exactly regions x years
// with no duplicate and no missing (region, year) key. Any gap is fatal:
// the analysis never interpolates around missing administrative data.
func ValidateBalance(p *Panel, regions []string, years []int) error {
	want := make(map[string]bool, len(regions)*len(years))
	for _, region := range regions {
		for _, year := range years {
			want[key(region, year)] = true
		}
	}

	seen := make(map[string]bool, len(p.Rows))
	var extra []string
	for _, row := range p.Rows {
		k := key(row.Region, row.Year)
		if seen[k] {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		seen[k] = true
		if !want[k] {
			extra = append(extra, k)
		}
	}

	var missing []string
	for k := range want {
		if !seen[k] {
			missing = append(missing, k)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %d cells: %s", len(missing), strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected %d cells: %s", len(extra), strings.Join(extra, ", ")))
	}
	return fmt.Errorf("%w: want %dx%d rows, got %d (%s)",
		ErrUnbalancedPanel, len(regions), len(years), len(p.Rows), strings.Join(parts, "; "))
}
