package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/foxymadeit/did-refugees-crime/internal/did"
)

// IntensityPoint is one region's treatment intensity in the intensity
// year, for the distribution figure.
type IntensityPoint struct {
	Region    string
	Intensity float64
	Treated   bool
}

// GroupYearMean is the mean crime rate of one group in one year, for the
// parallel-trends figure.
type GroupYearMean struct {
	Group string // "treated" or "control"
	Year  int
	Mean  float64
}

// IntensitySeries extracts the per-region intensity distribution with
// the treated flag under the frame's policy.
func IntensitySeries(f *did.Frame) []IntensityPoint {
	treated := make(map[string]bool)
	for _, region := range f.TreatedRegions() {
		treated[region] = true
	}

	regions := make([]string, 0, len(f.RegionIntensity))
	for region := range f.RegionIntensity {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	points := make([]IntensityPoint, 0, len(regions))
	for _, region := range regions {
		points = append(points, IntensityPoint{
			Region:    region,
			Intensity: f.RegionIntensity[region],
			Treated:   treated[region],
		})
	}
	return points
}

// GroupMeanSeries computes the mean crime rate per (group, year), the
// series behind the parallel-trends figure.
func GroupMeanSeries(f *did.Frame) []GroupYearMean {
	byKey := make(map[string]map[int][]float64)
	for _, row := range f.Rows {
		group := "control"
		if row.Treated == 1 {
			group = "treated"
		}
		if byKey[group] == nil {
			byKey[group] = make(map[int][]float64)
		}
		byKey[group][row.Year] = append(byKey[group][row.Year], row.CrimeRatePer100k)
	}

	var series []GroupYearMean
	for _, group := range []string{"control", "treated"} {
		years := make([]int, 0, len(byKey[group]))
		for year := range byKey[group] {
			years = append(years, year)
		}
		sort.Ints(years)
		for _, year := range years {
			series = append(series, GroupYearMean{
				Group: group,
				Year:  year,
				Mean:  stat.Mean(byKey[group][year], nil),
			})
		}
	}
	return series
}

// SaveIntensityCSV writes the intensity distribution series together
// with the threshold that split it.
func SaveIntensityCSV(points []IntensityPoint, threshold float64, outputPath string) error {
	return writeCSV(outputPath, []string{"region", "treatment_intensity", "threshold", "treated"}, len(points), func(i int) []string {
		p := points[i]
		return []string{
			p.Region,
			strconv.FormatFloat(p.Intensity, 'f', 2, 64),
			strconv.FormatFloat(threshold, 'f', 2, 64),
			strconv.FormatBool(p.Treated),
		}
	})
}

// SaveGroupMeansCSV writes the parallel-trends series.
func SaveGroupMeansCSV(series []GroupYearMean, outputPath string) error {
	return writeCSV(outputPath, []string{"group", "year", "mean_crime_rate_per_100k"}, len(series), func(i int) []string {
		s := series[i]
		return []string{
			s.Group,
			strconv.Itoa(s.Year),
			strconv.FormatFloat(s.Mean, 'f', 4, 64),
		}
	})
}

// SaveEventStudyCSV writes the event-study path, one row per estimated
// offset.
func SaveEventStudyCSV(points []did.EventPoint, outputPath string) error {
	return writeCSV(outputPath, []string{"rel_year", "year", "estimate", "std_err", "p_value", "ci_lower", "ci_upper"}, len(points), func(i int) []string {
		p := points[i]
		return []string{
			strconv.Itoa(p.RelYear),
			strconv.Itoa(p.Year),
			strconv.FormatFloat(p.Estimate, 'f', 6, 64),
			strconv.FormatFloat(p.StdErr, 'f', 6, 64),
			strconv.FormatFloat(p.PValue, 'f', 6, 64),
			strconv.FormatFloat(p.CILower, 'f', 6, 64),
			strconv.FormatFloat(p.CIUpper, 'f', 6, 64),
		}
	})
}

func writeCSV(outputPath string, header []string, rows int, record func(int) []string) error {
	if rows == 0 {
		return fmt.Errorf("no rows to save to %s", outputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header to %s: %w", outputPath, err)
	}
	for i := 0; i < rows; i++ {
		if err := writer.Write(record(i)); err != nil {
			return fmt.Errorf("write row %d to %s: %w", i, outputPath, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
