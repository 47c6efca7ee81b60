package did

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/foxymadeit/did-refugees-crime/internal/panel"
)

// BuildFrame attaches the DiD design variables to a balanced panel:
//
//   - Intensity: year-over-year change in foreigners_total per region
//   - Treated:   1 if the region's intensity in the intensity year lies
//     above the policy threshold, constant across all years
//   - Post:      1 if year >= treatment year
//   - DID:       Treated x Post
//
// The treated/control split must be a strict two-way partition: a policy
// that leaves either group empty is a degenerate configuration and fails
// the build.
func BuildFrame(ctx context.Context, logger *slog.Logger, p *panel.Panel, params StudyParams) (*Frame, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("validate study parameters: %w", err)
	}

	regions := p.Regions()
	if len(regions) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 regions, got %d", ErrInsufficientData, len(regions))
	}

	regionIntensity := make(map[string]float64, len(regions))
	intensities := make([]float64, 0, len(regions))
	for _, region := range regions {
		current, ok := p.Lookup(region, params.IntensityYear)
		if !ok {
			return nil, fmt.Errorf("%w: region %s has no row for intensity year %d", panel.ErrUnbalancedPanel, region, params.IntensityYear)
		}
		previous, ok := p.Lookup(region, params.IntensityYear-1)
		if !ok {
			return nil, fmt.Errorf("%w: region %s has no row for year %d", panel.ErrUnbalancedPanel, region, params.IntensityYear-1)
		}
		delta := current.ForeignersTotal - previous.ForeignersTotal
		regionIntensity[region] = delta
		intensities = append(intensities, delta)
	}

	threshold, err := ComputeThreshold(intensities, params.Policy)
	if err != nil {
		return nil, fmt.Errorf("compute %s threshold: %w", params.Policy, err)
	}

	treated := make(map[string]int, len(regions))
	treatedCount := 0
	for _, region := range regions {
		if regionIntensity[region] > threshold {
			treated[region] = 1
			treatedCount++
		}
	}
	if treatedCount == 0 || treatedCount == len(regions) {
		return nil, fmt.Errorf("%w: policy %s with threshold %.2f leaves %d of %d regions treated",
			ErrDegeneratePartition, params.Policy, threshold, treatedCount, len(regions))
	}

	frame := &Frame{
		Params:          params,
		Threshold:       threshold,
		RegionIntensity: regionIntensity,
	}

	// Per-row intensity is the first difference within each region, NaN
	// for the earliest year. Rows arrive sorted by region then year.
	previousForeigners := make(map[string]float64, len(regions))
	previousSeen := make(map[string]bool, len(regions))
	for _, obs := range p.Rows {
		row := Row{Observation: obs, Intensity: math.NaN()}
		if previousSeen[obs.Region] {
			row.Intensity = obs.ForeignersTotal - previousForeigners[obs.Region]
		}
		previousForeigners[obs.Region] = obs.ForeignersTotal
		previousSeen[obs.Region] = true

		row.Treated = treated[obs.Region]
		if obs.Year >= params.TreatmentYear {
			row.Post = 1
		}
		row.DID = row.Treated * row.Post
		frame.Rows = append(frame.Rows, row)
	}

	logger.InfoContext(ctx, "built design frame",
		"policy", params.Policy.String(),
		"threshold", threshold,
		"treated_regions", treatedCount,
		"control_regions", len(regions)-treatedCount,
		"rows", len(frame.Rows),
	)

	return frame, nil
}
