package detectors

import (
	"context"
	"fmt"
	"strings"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
)

// cancelCheckInterval is how many rows a detector scans between context checks
const cancelCheckInterval = 256

// PatternDetector scans one column for one kind of data-quality pattern
type PatternDetector interface {
	PatternType() preprocessing.PatternType
	IsApplicable(col *dataset.Column) bool
	Detect(ctx context.Context, col *dataset.Column, columnName string) ([]preprocessing.DetectedPattern, error)
}

// DetectorConfig holds the heuristic constants shared by the detectors
type DetectorConfig struct {
	MissingTokens             []string `yaml:"missing_tokens"`
	ZScoreThreshold           float64  `yaml:"zscore_threshold"`
	OutlierMinFraction        float64  `yaml:"outlier_min_fraction"`
	OutlierMaxFraction        float64  `yaml:"outlier_max_fraction"`
	MaxCategories             int      `yaml:"max_categories"`
	SimilarityThreshold       float64  `yaml:"similarity_threshold"`
	TypeMinorityThreshold     float64  `yaml:"type_minority_threshold"`
	EncodingConfidence        float64  `yaml:"encoding_confidence"`
	EncodingLetterRatio       float64  `yaml:"encoding_letter_ratio"`
	BooleanMaxRepresentations int      `yaml:"boolean_max_representations"`
}

// DefaultDetectorConfig returns the standard heuristic constants
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MissingTokens:             coercer.DefaultMissingTokens,
		ZScoreThreshold:           3.0,
		OutlierMinFraction:        0.01,
		OutlierMaxFraction:        0.30,
		MaxCategories:             100,
		SimilarityThreshold:       0.85,
		TypeMinorityThreshold:     0.05,
		EncodingConfidence:        0.85,
		EncodingLetterRatio:       1.5,
		BooleanMaxRepresentations: 2,
	}
}

// Engine runs every applicable detector against a column
type Engine struct {
	detectors []PatternDetector
}

// NewEngine creates an engine with all seven detectors
func NewEngine(config DetectorConfig) *Engine {
	c := coercer.NewTypeCoercer(coercer.CoercionConfig{
		SampleSize:        100,
		MajorityThreshold: 0.70,
		MixedThreshold:    0.30,
		MissingTokens:     config.MissingTokens,
	})
	return &Engine{
		detectors: []PatternDetector{
			NewMissingValueDetector(c),
			NewOutlierDetector(c, config),
			NewWhitespaceDetector(c),
			NewCategoryVariationDetector(c, config),
			NewTypeInconsistencyDetector(c, config),
			NewEncodingDetector(c, config),
			NewFormatVariationDetector(c, config),
		},
	}
}

// NewEngineWith creates an engine from an explicit detector list
func NewEngineWith(detectors ...PatternDetector) *Engine {
	return &Engine{detectors: detectors}
}

// Detectors returns the registered detectors
func (e *Engine) Detectors() []PatternDetector {
	return e.detectors
}

// ForPattern returns the detector that emits the given pattern type
func (e *Engine) ForPattern(pt preprocessing.PatternType) (PatternDetector, bool) {
	for _, d := range e.detectors {
		if d.PatternType() == pt {
			return d, true
		}
	}
	return nil, false
}

// DetectorError records a detector failure on one column
type DetectorError struct {
	Pattern preprocessing.PatternType
	Column  string
	Err     error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector failed on column %q: %v", e.Pattern, e.Column, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }

// DetectColumn runs all applicable detectors and concatenates their patterns.
// Individual detector failures are collected, not fatal; a cancelled context is.
func (e *Engine) DetectColumn(ctx context.Context, col *dataset.Column) ([]preprocessing.DetectedPattern, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var patterns []preprocessing.DetectedPattern
	var failures []error
	for _, d := range e.detectors {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		found, err := runDetector(ctx, d, col)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failures = append(failures, &DetectorError{Pattern: d.PatternType(), Column: col.Name(), Err: err})
			continue
		}
		patterns = append(patterns, found...)
	}
	return patterns, failures, nil
}

// runDetector isolates one detector so a panic becomes an error
func runDetector(ctx context.Context, d PatternDetector, col *dataset.Column) (patterns []preprocessing.DetectedPattern, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if !d.IsApplicable(col) {
		return nil, nil
	}
	return d.Detect(ctx, col, col.Name())
}

// checkCancel polls ctx every cancelCheckInterval rows, including row 0
func checkCancel(ctx context.Context, row int) error {
	if row%cancelCheckInterval == 0 {
		return ctx.Err()
	}
	return nil
}

// stringCells returns the trimmed-or-raw string value of each non-missing cell with its row
type cell struct {
	row   int
	value string
}

func nonMissingStrings(ctx context.Context, c *coercer.TypeCoercer, col *dataset.Column) ([]cell, error) {
	cells := make([]cell, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		if c.IsMissingCell(col, i) {
			continue
		}
		s, _ := col.String(i)
		cells = append(cells, cell{row: i, value: s})
	}
	return cells, nil
}

// numericCells extracts numeric values from typed or numeric-looking string columns
func numericCells(ctx context.Context, c *coercer.TypeCoercer, col *dataset.Column) ([]float64, []int, error) {
	values := make([]float64, 0, col.Len())
	rows := make([]int, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if err := checkCancel(ctx, i); err != nil {
			return nil, nil, err
		}
		if c.IsMissingCell(col, i) {
			continue
		}
		var f float64
		var ok bool
		if col.IsString() {
			s, _ := col.String(i)
			f, ok = coercer.ParseNumeric(s)
		} else {
			f, ok = col.Float(i)
		}
		if ok {
			values = append(values, f)
			rows = append(rows, i)
		}
	}
	return values, rows, nil
}

// severityByFraction bands an affected fraction; thresholds are critical, high, medium
func severityByFraction(fraction, critical, high, medium float64) preprocessing.Severity {
	switch {
	case fraction >= critical:
		return preprocessing.SeverityCritical
	case fraction >= high:
		return preprocessing.SeverityHigh
	case fraction >= medium:
		return preprocessing.SeverityMedium
	}
	return preprocessing.SeverityLow
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}
