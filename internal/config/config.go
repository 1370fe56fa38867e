package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"ruleminer/internal/errors"
)

// Config represents the complete application configuration.
// Values come from an optional YAML file; environment variables override it.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Detectors DetectorsConfig `yaml:"detectors"`
	Applier   ApplierConfig   `yaml:"applier"`
	HITL      HITLConfig      `yaml:"hitl"`
	Report    ReportConfig    `yaml:"report"`
	Log       LogConfig       `yaml:"log"`
}

// InputConfig names the dataset to analyze and where to write the result
type InputConfig struct {
	Path       string `yaml:"path" env:"RULEMINER_INPUT" env-default:""`
	OutputPath string `yaml:"output_path" env:"RULEMINER_OUTPUT" env-default:""`
}

// SamplingConfig holds sampling engine settings
type SamplingConfig struct {
	Strategy    string `yaml:"strategy" env:"SAMPLING_STRATEGY" env-default:"auto"`
	LabelColumn string `yaml:"label_column" env:"SAMPLING_LABEL_COLUMN" env-default:""`
	RandomSeed  int64  `yaml:"random_seed" env:"SAMPLING_SEED" env-default:"42"`
}

// DiscoveryConfig holds the stage loop settings
type DiscoveryConfig struct {
	StageRatios          []float64 `yaml:"stage_ratios" env:"DISCOVERY_STAGE_RATIOS" env-separator:"," env-default:"0.1,0.3,0.5,0.7,1.0"`
	MaxStages            int       `yaml:"max_stages" env:"DISCOVERY_MAX_STAGES" env-default:"5"`
	ConvergenceThreshold float64   `yaml:"convergence_threshold" env:"DISCOVERY_CONVERGENCE_THRESHOLD" env-default:"0.02"`
	Parallelism          int       `yaml:"parallelism" env:"DISCOVERY_PARALLELISM" env-default:"4"`
}

// DetectorsConfig holds the detector heuristic constants
type DetectorsConfig struct {
	ZScoreThreshold       float64 `yaml:"zscore_threshold" env:"DETECTOR_ZSCORE_THRESHOLD" env-default:"3.0"`
	OutlierMinFraction    float64 `yaml:"outlier_min_fraction" env:"DETECTOR_OUTLIER_MIN_FRACTION" env-default:"0.01"`
	OutlierMaxFraction    float64 `yaml:"outlier_max_fraction" env:"DETECTOR_OUTLIER_MAX_FRACTION" env-default:"0.30"`
	MaxCategories         int     `yaml:"max_categories" env:"DETECTOR_MAX_CATEGORIES" env-default:"100"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold" env:"DETECTOR_SIMILARITY_THRESHOLD" env-default:"0.85"`
	TypeMinorityThreshold float64 `yaml:"type_minority_threshold" env:"DETECTOR_TYPE_MINORITY_THRESHOLD" env-default:"0.05"`
	EncodingConfidence    float64 `yaml:"encoding_confidence" env:"DETECTOR_ENCODING_CONFIDENCE" env-default:"0.85"`
}

// ApplierConfig holds rule application settings
type ApplierConfig struct {
	ContinueOnFailure bool `yaml:"continue_on_failure" env:"APPLIER_CONTINUE_ON_FAILURE" env-default:"true"`
}

// HITLConfig holds human-in-the-loop settings. With neither Enabled nor
// AutoAccept set, human-gated rules stay proposed and are not applied.
type HITLConfig struct {
	Enabled     bool   `yaml:"enabled" env:"HITL_ENABLED" env-default:"false"`
	AutoAccept  bool   `yaml:"auto_accept" env:"HITL_AUTO_ACCEPT" env-default:"false"`
	DecisionDir string `yaml:"decision_dir" env:"HITL_DECISION_DIR" env-default:"hitl-decisions"`
	UserID      string `yaml:"user_id" env:"HITL_USER_ID" env-default:"anonymous"`
}

// ReportConfig holds report output settings
type ReportConfig struct {
	MarkdownPath string `yaml:"markdown_path" env:"REPORT_MARKDOWN" env-default:""`
	HTMLPath     string `yaml:"html_path" env:"REPORT_HTML" env-default:""`
	RulesYAML    string `yaml:"rules_yaml" env:"REPORT_RULES_YAML" env-default:""`
	MetricsPath  string `yaml:"metrics_path" env:"REPORT_METRICS" env-default:""`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"INFO"`
}

// Load reads configuration from path (when it exists) with environment overrides,
// then validates it
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" && fileExists(path) {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Default returns the configuration produced by env-default tags alone
func Default() *Config {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		panic(fmt.Sprintf("config defaults are invalid: %v", err))
	}
	return cfg
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	switch c.Sampling.Strategy {
	case "random", "stratified", "auto":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown sampling strategy %q", c.Sampling.Strategy))
	}
	if c.Sampling.Strategy == "stratified" && c.Sampling.LabelColumn == "" {
		return errors.ConfigInvalid("stratified sampling requires a label column")
	}
	if len(c.Discovery.StageRatios) == 0 {
		return errors.ConfigInvalid("at least one stage ratio is required")
	}
	for _, r := range c.Discovery.StageRatios {
		if r <= 0 || r > 1 {
			return errors.ConfigInvalid(fmt.Sprintf("stage ratio %v must be in (0, 1]", r))
		}
	}
	if c.Discovery.MaxStages < 1 {
		return errors.ConfigInvalid("max stages must be at least 1")
	}
	if c.Discovery.ConvergenceThreshold < 0 {
		return errors.ConfigInvalid("convergence threshold must be non-negative")
	}
	if c.Discovery.Parallelism < 1 {
		return errors.ConfigInvalid("parallelism must be at least 1")
	}
	d := c.Detectors
	if d.OutlierMinFraction < 0 || d.OutlierMaxFraction > 1 || d.OutlierMinFraction >= d.OutlierMaxFraction {
		return errors.ConfigInvalid("outlier fraction window must satisfy 0 <= min < max <= 1")
	}
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		return errors.ConfigInvalid("similarity threshold must be in (0, 1]")
	}
	if d.MaxCategories < 1 {
		return errors.ConfigInvalid("max categories must be at least 1")
	}
	if (c.HITL.Enabled || c.HITL.AutoAccept) && c.HITL.DecisionDir == "" {
		return errors.ConfigInvalid("HITL decision directory is required")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
