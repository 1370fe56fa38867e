package profiling

import (
	"ruleminer/domain/core"
)

// InferredType represents the automatically detected semantic type of a column
type InferredType string

const (
	TypeNumeric     InferredType = "Numeric"
	TypeDateTime    InferredType = "DateTime"
	TypeBoolean     InferredType = "Boolean"
	TypeText        InferredType = "Text"
	TypeMixed       InferredType = "Mixed"
	TypeTypedColumn InferredType = "TypedColumn"
	TypeUnknown     InferredType = "Unknown"
)

// QualityIssue names a per-column problem found by the sample analyzer
type QualityIssue string

const (
	IssueLowMissingValues      QualityIssue = "LowMissingValues"
	IssueModerateMissingValues QualityIssue = "ModerateMissingValues"
	IssueHighMissingValues     QualityIssue = "HighMissingValues"
	IssueHighOutliers          QualityIssue = "HighOutliers"
	IssueHighCardinality       QualityIssue = "HighCardinality"
	IssueConstantColumn        QualityIssue = "ConstantColumn"
)

// SampleAnalysis profiles one discovery stage's sample
type SampleAnalysis struct {
	StageNumber          int              `json:"stage_number"`
	SampleRatio          float64          `json:"sample_ratio"`
	Timestamp            core.Timestamp   `json:"timestamp"`
	RowCount             int              `json:"row_count"`
	ColumnCount          int              `json:"column_count"`
	Columns              []ColumnAnalysis `json:"columns"`
	QualityScore         float64          `json:"quality_score"` // 0-1, higher is better
	EstimatedMemoryBytes int64            `json:"estimated_memory_bytes"`
}

// Column returns the analysis for a column by name
func (a *SampleAnalysis) Column(name string) (*ColumnAnalysis, bool) {
	for i := range a.Columns {
		if a.Columns[i].ColumnName == name {
			return &a.Columns[i], true
		}
	}
	return nil, false
}

// ColumnAnalysis holds per-column statistics. Exactly one of NumericStats and
// CategoricalStats is set for a non-empty column.
type ColumnAnalysis struct {
	ColumnName         string            `json:"column_name"`
	ColumnIndex        int               `json:"column_index"`
	DataType           InferredType      `json:"data_type"`
	NumericStats       *NumericStats     `json:"numeric_stats,omitempty"`
	CategoricalStats   *CategoricalStats `json:"categorical_stats,omitempty"`
	MissingPercentage  float64           `json:"missing_percentage"`
	NullCount          int               `json:"null_count"`
	NonNullCount       int               `json:"non_null_count"`
	TotalRows          int               `json:"total_rows"`
	QualityIssues      []QualityIssue    `json:"quality_issues"`
	RecommendedActions []string          `json:"recommended_actions"`
}

// HasIssue reports whether the column carries the given issue
func (c *ColumnAnalysis) HasIssue(issue QualityIssue) bool {
	for _, i := range c.QualityIssues {
		if i == issue {
			return true
		}
	}
	return false
}

// NumericStats contains statistics for numeric columns
type NumericStats struct {
	Mean              float64 `json:"mean"`
	StdDev            float64 `json:"std_dev"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Median            float64 `json:"median"`
	OutlierCount      int     `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
}

// CategoricalStats contains statistics for string and categorical columns
type CategoricalStats struct {
	UniqueCount       int          `json:"unique_count"`
	Entropy           float64      `json:"entropy"` // Shannon entropy, bits
	TopValues         []ValueCount `json:"top_values"`
	IsHighCardinality bool         `json:"is_high_cardinality"`
}

// ValueCount represents a value and its frequency
type ValueCount struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

// AnalyzerConfig defines the sample analyzer thresholds
type AnalyzerConfig struct {
	TopN                     int     `json:"top_n" yaml:"top_n"`
	LowMissingPercent        float64 `json:"low_missing_percent" yaml:"low_missing_percent"`
	ModerateMissingPercent   float64 `json:"moderate_missing_percent" yaml:"moderate_missing_percent"`
	HighMissingPercent       float64 `json:"high_missing_percent" yaml:"high_missing_percent"`
	HighOutlierPercent       float64 `json:"high_outlier_percent" yaml:"high_outlier_percent"`
	HighCardinalityRatio     float64 `json:"high_cardinality_ratio" yaml:"high_cardinality_ratio"`
	HighCardinalityMinUnique int     `json:"high_cardinality_min_unique" yaml:"high_cardinality_min_unique"`
}

// DefaultAnalyzerConfig returns sensible defaults
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		TopN:                     10,
		LowMissingPercent:        10,
		ModerateMissingPercent:   30,
		HighMissingPercent:       50,
		HighOutlierPercent:       5,
		HighCardinalityRatio:     0.3,
		HighCardinalityMinUnique: 50,
	}
}
