package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/foxymadeit/did-refugees-crime/internal/did"
)

func TestWriteWorkbook(t *testing.T) {
	frame := reportFrame(t)
	results := did.RunAll(context.Background(), nil, frame)
	require.Empty(t, results.Failures)

	eventFit, ok := results.Fit(did.ModelEventStudy)
	require.True(t, ok)
	eventPoints, err := did.EventStudyPoints(eventFit, frame.Params)
	require.NoError(t, err)

	sensitivity := []did.SensitivityResult{
		{Policy: did.PolicyMedian, Threshold: frame.Threshold, TreatedCount: 2, Estimate: 1.5, StdErr: 0.4, PValue: 0.01, CILower: 0.7, CIUpper: 2.3},
	}

	info := RunInfo{
		RunID:          "test-run",
		Policy:         frame.Params.Policy,
		Threshold:      frame.Threshold,
		TreatedRegions: frame.TreatedRegions(),
		ControlRegions: frame.ControlRegions(),
		TreatmentYear:  frame.Params.TreatmentYear,
		IntensityYear:  frame.Params.IntensityYear,
		PlaceboCutoff:  frame.Params.PlaceboCutoffYear,
		EventReference: frame.Params.EventReferenceYear,
		PanelRows:      len(frame.Rows),
	}

	path := filepath.Join(t.TempDir(), "reports", "did_report.xlsx")
	require.NoError(t, WriteWorkbook(info, results, sensitivity, eventPoints, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, "Sensitivity")
	assert.Contains(t, sheets, "EventStudy")
	for _, fit := range results.Fits {
		assert.Contains(t, sheets, fit.Model)
	}

	runID, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "test-run", runID)

	policy, err := f.GetCellValue("Sensitivity", "A2")
	require.NoError(t, err)
	assert.Equal(t, "median", policy)

	term, err := f.GetCellValue(did.ModelBaseline, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Term", term)
}

func TestWriteWorkbookWithFailures(t *testing.T) {
	frame := reportFrame(t)

	baseline, err := did.FitBaseline(context.Background(), nil, frame)
	require.NoError(t, err)

	results := &did.Results{
		Fits: []*did.FitResult{baseline},
		Failures: []did.Failure{
			{Model: did.ModelPlacebo, Err: did.ErrInsufficientData},
		},
	}

	path := filepath.Join(t.TempDir(), "did_report.xlsx")
	require.NoError(t, WriteWorkbook(RunInfo{RunID: "partial"}, results, nil, nil, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Summary")
	assert.Contains(t, sheets, did.ModelBaseline)
	assert.NotContains(t, sheets, "Sensitivity")
	assert.NotContains(t, sheets, "EventStudy")
}
