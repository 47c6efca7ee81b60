package did

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foxymadeit/did-refugees-crime/internal/panel"
)

// RunSensitivity reruns the full treatment assignment and the two-way FE
// DiD under every threshold policy and collects the interaction estimate
// per policy side by side. No policy is privileged: each sweep entry is
// a complete re-assignment plus re-estimation with everything else held
// fixed.
//
// A degenerate partition or a failed fit under one policy is recorded
// against that policy and the sweep continues.
func RunSensitivity(ctx context.Context, logger *slog.Logger, p *panel.Panel, params StudyParams) ([]SensitivityResult, []Failure) {
	if logger == nil {
		logger = slog.Default()
	}

	var results []SensitivityResult
	var failures []Failure

	for _, policy := range AllPolicies() {
		sweepParams := params
		sweepParams.Policy = policy

		entry, err := sensitivityEntry(ctx, logger, p, sweepParams)
		if err != nil {
			logger.WarnContext(ctx, "sensitivity entry failed",
				"policy", policy.String(),
				"error", err,
			)
			failures = append(failures, Failure{
				Model: fmt.Sprintf("%s[%s]", ModelTwoWayFE, policy),
				Err:   err,
			})
			continue
		}
		results = append(results, entry)
	}

	logger.InfoContext(ctx, "threshold sensitivity sweep completed",
		"policies", len(AllPolicies()),
		"estimates", len(results),
		"failures", len(failures),
	)

	return results, failures
}

func sensitivityEntry(ctx context.Context, logger *slog.Logger, p *panel.Panel, params StudyParams) (SensitivityResult, error) {
	frame, err := BuildFrame(ctx, logger, p, params)
	if err != nil {
		return SensitivityResult{}, fmt.Errorf("assign treatment under %s: %w", params.Policy, err)
	}

	fit, err := FitTwoWayFE(ctx, logger, frame)
	if err != nil {
		return SensitivityResult{}, err
	}

	c, ok := fit.Coefficient("did")
	if !ok {
		return SensitivityResult{}, fmt.Errorf("fit %s has no did coefficient", fit.Model)
	}

	return SensitivityResult{
		Policy:       params.Policy,
		Threshold:    frame.Threshold,
		TreatedCount: len(frame.TreatedRegions()),
		Estimate:     c.Estimate,
		StdErr:       c.StdErr,
		PValue:       c.PValue,
		CILower:      c.CILower,
		CIUpper:      c.CIUpper,
	}, nil
}
