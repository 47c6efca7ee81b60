package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete study configuration
type Config struct {
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Study   StudyConfig   `yaml:"study" envconfig:"STUDY"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"data/raw"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" default:"data/processed"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	PanelFile    string `yaml:"panel_file" envconfig:"PANEL_FILE" default:"panel_2010_2020.csv"`
}

// StudyConfig contains the DiD design parameters.
// Every period boundary and robustness-check cutoff is a parameter here,
// not a code branch: rerunning the study under a different convention is a
// config change only.
type StudyConfig struct {
	// Regions is the full region list; the panel must contain exactly
	// one row per region per year.
	Regions []string `yaml:"regions" envconfig:"REGIONS"`

	StartYear int `yaml:"start_year" envconfig:"START_YEAR" default:"2010" validate:"required"`
	EndYear   int `yaml:"end_year" envconfig:"END_YEAR" default:"2020" validate:"required,gtefield=StartYear"`

	// TreatmentYear splits the panel into pre and post periods
	// (post := year >= TreatmentYear).
	TreatmentYear int `yaml:"treatment_year" envconfig:"TREATMENT_YEAR" default:"2015" validate:"required"`

	// IntensityYear selects the year-over-year change in foreigners_total
	// used as treatment intensity (IntensityYear minus the year before it).
	IntensityYear int `yaml:"intensity_year" envconfig:"INTENSITY_YEAR" default:"2016" validate:"required"`

	// ThresholdPolicy selects the statistic that splits regions into
	// treated and control: median, mean, p40, p60 or p75.
	ThresholdPolicy string `yaml:"threshold_policy" envconfig:"THRESHOLD_POLICY" default:"median" validate:"oneof=median mean p40 p60 p75"`

	// PlaceboCutoffYear is the artificial treatment year used by the
	// placebo check; it must fall strictly inside the pre period.
	PlaceboCutoffYear int `yaml:"placebo_cutoff_year" envconfig:"PLACEBO_CUTOFF_YEAR" default:"2013" validate:"required"`

	// EventReferenceYear is the omitted base year of the event study,
	// conventionally the year immediately before treatment.
	EventReferenceYear int `yaml:"event_reference_year" envconfig:"EVENT_REFERENCE_YEAR" default:"2014" validate:"required"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
}

// DefaultRegions lists the 16 federal states of the study area.
// Names are ASCII-transliterated to match the raw administrative tables.
var DefaultRegions = []string{
	"Baden-Wuerttemberg",
	"Bayern",
	"Berlin",
	"Brandenburg",
	"Bremen",
	"Hamburg",
	"Hessen",
	"Mecklenburg-Vorpommern",
	"Niedersachsen",
	"Nordrhein-Westfalen",
	"Rheinland-Pfalz",
	"Saarland",
	"Sachsen",
	"Sachsen-Anhalt",
	"Schleswig-Holstein",
	"Thueringen",
}

// Load loads configuration from environment variables and an optional
// YAML file. Environment variables use the DID_ prefix; file values
// override them when the file names a field.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DID", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		}
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if len(cfg.Study.Regions) == 0 {
		cfg.Study.Regions = DefaultRegions
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	s := c.Study
	if s.TreatmentYear <= s.StartYear || s.TreatmentYear > s.EndYear {
		return fmt.Errorf("treatment year %d outside study range %d-%d", s.TreatmentYear, s.StartYear, s.EndYear)
	}
	if s.IntensityYear <= s.StartYear || s.IntensityYear > s.EndYear {
		return fmt.Errorf("intensity year %d outside study range %d-%d (needs the prior year in the panel)", s.IntensityYear, s.StartYear, s.EndYear)
	}
	if s.PlaceboCutoffYear <= s.StartYear || s.PlaceboCutoffYear >= s.TreatmentYear {
		return fmt.Errorf("placebo cutoff %d must fall strictly inside the pre period %d-%d", s.PlaceboCutoffYear, s.StartYear, s.TreatmentYear-1)
	}
	if s.EventReferenceYear < s.StartYear || s.EventReferenceYear > s.EndYear {
		return fmt.Errorf("event reference year %d outside study range %d-%d", s.EventReferenceYear, s.StartYear, s.EndYear)
	}

	seen := make(map[string]bool, len(s.Regions))
	for _, r := range s.Regions {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("empty region name in region list")
		}
		if seen[r] {
			return fmt.Errorf("duplicate region %q in region list", r)
		}
		seen[r] = true
	}

	return nil
}

// Years returns the inclusive study year range as a slice.
func (s StudyConfig) Years() []int {
	years := make([]int, 0, s.EndYear-s.StartYear+1)
	for y := s.StartYear; y <= s.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// SetupLogger builds the process-wide slog logger from logging config.
func SetupLogger(cfg LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
