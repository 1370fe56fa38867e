package coercer

import (
	"math"
	"strconv"
	"strings"
	"time"

	"ruleminer/domain/dataset"
	"ruleminer/domain/datareadiness/profiling"
)

// DefaultMissingTokens are the case-insensitive placeholders treated as missing
var DefaultMissingTokens = []string{"NULL", "NA", "N/A", "NAN", "NONE", "-", "?"}

// ValueBucket is the per-value classification used for type consistency checks
type ValueBucket string

const (
	BucketNumeric  ValueBucket = "numeric"
	BucketDateTime ValueBucket = "datetime"
	BucketBoolean  ValueBucket = "boolean"
	BucketText     ValueBucket = "text"
)

// DateTimeLayouts are tried in order when parsing datetimes
var DateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"02.01.2006",
	"2.1.2006",
	"02.01.2006 15:04",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// TypeCoercer infers semantic column types from raw string cells
type TypeCoercer struct {
	config  CoercionConfig
	missing map[string]bool
}

// CoercionConfig defines the inference thresholds
type CoercionConfig struct {
	SampleSize        int      `json:"sample_size" yaml:"sample_size"`
	MajorityThreshold float64  `json:"majority_threshold" yaml:"majority_threshold"` // single type ratio for a decision
	MixedThreshold    float64  `json:"mixed_threshold" yaml:"mixed_threshold"`       // numeric/datetime ratio for Mixed
	MissingTokens     []string `json:"missing_tokens" yaml:"missing_tokens"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		SampleSize:        100,
		MajorityThreshold: 0.70,
		MixedThreshold:    0.30,
		MissingTokens:     DefaultMissingTokens,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	if config.SampleSize <= 0 {
		config.SampleSize = 100
	}
	if config.MissingTokens == nil {
		config.MissingTokens = DefaultMissingTokens
	}
	missing := make(map[string]bool, len(config.MissingTokens))
	for _, tok := range config.MissingTokens {
		missing[strings.ToUpper(tok)] = true
	}
	return &TypeCoercer{config: config, missing: missing}
}

// Default is a coercer with default config, shared by detectors and analyzers
var Default = NewTypeCoercer(DefaultCoercionConfig())

// IsMissing reports whether a raw string is blank or a missing-value token
func (c *TypeCoercer) IsMissing(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	return c.missing[strings.ToUpper(trimmed)]
}

// IsMissingCell reports whether a column cell is null, blank or a missing token
func (c *TypeCoercer) IsMissingCell(col *dataset.Column, row int) bool {
	if col.IsNull(row) {
		return true
	}
	if !col.IsString() {
		return false
	}
	s, _ := col.String(row)
	return c.IsMissing(s)
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	SampledCount    int                    `json:"sampled_count"`
	ValidCount      int                    `json:"valid_count"`
	NumericCount    int                    `json:"numeric_count"`
	DateTimeCount   int                    `json:"datetime_count"`
	BooleanCount    int                    `json:"boolean_count"`
	NumericRatio    float64                `json:"numeric_ratio"`
	DateTimeRatio   float64                `json:"datetime_ratio"`
	BooleanRatio    float64                `json:"boolean_ratio"`
	RecommendedType profiling.InferredType `json:"recommended_type"`
}

// InferColumnType classifies a column. Typed columns are not sampled.
func (c *TypeCoercer) InferColumnType(col *dataset.Column) profiling.InferredType {
	if !col.IsString() {
		return profiling.TypeTypedColumn
	}
	return c.AnalyzeColumn(col).RecommendedType
}

// AnalyzeColumn samples up to SampleSize evenly strided values and tallies parse hits
func (c *TypeCoercer) AnalyzeColumn(col *dataset.Column) TypeAnalysis {
	n := col.Len()
	step := n / c.config.SampleSize
	if step < 1 {
		step = 1
	}
	values := make([]string, 0, c.config.SampleSize)
	for i := 0; i < n && len(values) < c.config.SampleSize; i += step {
		if col.IsNull(i) {
			values = append(values, "")
			continue
		}
		s, _ := col.String(i)
		values = append(values, s)
	}
	return c.AnalyzeTypeDistribution(values)
}

// AnalyzeTypeDistribution tallies numeric/datetime/boolean parse hits over values
// and applies the majority rule
func (c *TypeCoercer) AnalyzeTypeDistribution(values []string) TypeAnalysis {
	analysis := TypeAnalysis{SampledCount: len(values)}

	for _, v := range values {
		if c.IsMissing(v) {
			continue
		}
		analysis.ValidCount++
		if _, ok := ParseNumeric(v); ok {
			analysis.NumericCount++
		}
		if _, ok := ParseDateTime(v); ok {
			analysis.DateTimeCount++
		}
		if _, ok := ParseBoolean(v); ok {
			analysis.BooleanCount++
		}
	}

	if analysis.ValidCount == 0 {
		analysis.RecommendedType = profiling.TypeUnknown
		return analysis
	}

	valid := float64(analysis.ValidCount)
	analysis.NumericRatio = float64(analysis.NumericCount) / valid
	analysis.DateTimeRatio = float64(analysis.DateTimeCount) / valid
	analysis.BooleanRatio = float64(analysis.BooleanCount) / valid
	analysis.RecommendedType = c.determineRecommendedType(analysis)
	return analysis
}

func (c *TypeCoercer) determineRecommendedType(a TypeAnalysis) profiling.InferredType {
	majority := c.config.MajorityThreshold
	switch {
	case a.NumericRatio > majority:
		return profiling.TypeNumeric
	case a.DateTimeRatio > majority:
		return profiling.TypeDateTime
	case a.BooleanRatio > majority:
		return profiling.TypeBoolean
	}
	if a.NumericRatio > c.config.MixedThreshold || a.DateTimeRatio > c.config.MixedThreshold {
		return profiling.TypeMixed
	}
	return profiling.TypeText
}

// Classify buckets one non-missing value; numeric wins over datetime over boolean
func Classify(s string) ValueBucket {
	if _, ok := ParseNumeric(s); ok {
		return BucketNumeric
	}
	if _, ok := ParseDateTime(s); ok {
		return BucketDateTime
	}
	if _, ok := ParseBoolean(s); ok {
		return BucketBoolean
	}
	return BucketText
}

// ParseNumeric strips thousands separators (commas and spaces) and parses a finite float
func ParseNumeric(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return 0, false
	}
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

// ParseDateTime tries DateTimeLayouts in order
func ParseDateTime(s string) (time.Time, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return time.Time{}, false
	}
	for _, layout := range DateTimeLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBoolean recognizes TRUE/YES/Y/1/ON and FALSE/NO/N/0/OFF, ignoring case
func ParseBoolean(s string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "YES", "Y", "1", "ON":
		return true, true
	case "FALSE", "NO", "N", "0", "OFF":
		return false, true
	}
	return false, false
}
