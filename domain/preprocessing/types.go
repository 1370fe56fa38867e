package preprocessing

import (
	"ruleminer/domain/core"
)

// PatternType identifies the kind of data-quality pattern a detector found
type PatternType string

const (
	PatternMissingValue      PatternType = "MissingValue"
	PatternOutlierAnomaly    PatternType = "OutlierAnomaly"
	PatternWhitespaceIssue   PatternType = "WhitespaceIssue"
	PatternCategoryVariation PatternType = "CategoryVariation"
	PatternTypeInconsistency PatternType = "TypeInconsistency"
	PatternEncodingIssue     PatternType = "EncodingIssue"
	PatternFormatVariation   PatternType = "FormatVariation"
)

// Severity grades how much a pattern hurts the column
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank orders severities from Low (1) to Critical (4)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// MaxExamples bounds DetectedPattern.Examples
const MaxExamples = 5

// DetectedPattern is one detector finding on one column
type DetectedPattern struct {
	Type         PatternType `json:"type"`
	ColumnName   string      `json:"column_name"`
	Description  string      `json:"description"`
	Severity     Severity    `json:"severity"`
	Occurrences  int         `json:"occurrences"`
	TotalRows    int         `json:"total_rows"`
	Confidence   float64     `json:"confidence"`
	Examples     []string    `json:"examples"`
	SuggestedFix string      `json:"suggested_fix"`

	// Hints carries detector-specific details the rule needs, e.g. the format family
	Hints map[string]string `json:"hints,omitempty"`

	// Rows lists the affected row indices in ascending order
	Rows []int `json:"-"`
}

// AffectedFraction is Occurrences / TotalRows, 0 for empty columns
func (p DetectedPattern) AffectedFraction() float64 {
	if p.TotalRows == 0 {
		return 0
	}
	return float64(p.Occurrences) / float64(p.TotalRows)
}

// AddExample appends an example while respecting MaxExamples and skipping duplicates
func (p *DetectedPattern) AddExample(example string) {
	if len(p.Examples) >= MaxExamples {
		return
	}
	for _, e := range p.Examples {
		if e == example {
			return
		}
	}
	p.Examples = append(p.Examples, example)
}

// RuleType identifies the preprocessing action a rule performs
type RuleType string

const (
	RuleMissingValueStrategy         RuleType = "MissingValueStrategy"
	RuleOutlierHandling              RuleType = "OutlierHandling"
	RuleWhitespaceNormalization      RuleType = "WhitespaceNormalization"
	RuleDateFormatStandardization    RuleType = "DateFormatStandardization"
	RuleCategoryMapping              RuleType = "CategoryMapping"
	RuleTypeConversion               RuleType = "TypeConversion"
	RuleEncodingNormalization        RuleType = "EncodingNormalization"
	RuleNumericFormatStandardization RuleType = "NumericFormatStandardization"
	RuleBusinessLogicDecision        RuleType = "BusinessLogicDecision"
)

// RequiresHuman reports whether rules of this type are judgment calls that
// must be approved before they touch the full dataset.
func (t RuleType) RequiresHuman() bool {
	switch t {
	case RuleMissingValueStrategy, RuleOutlierHandling, RuleCategoryMapping,
		RuleTypeConversion, RuleBusinessLogicDecision:
		return true
	}
	return false
}

// RuleState tracks a rule through the approval workflow
type RuleState string

const (
	StateProposed RuleState = "Proposed"
	StateApproved RuleState = "Approved"
	StateRejected RuleState = "Rejected"
)

// ConfidenceScore is the three-axis confidence of a rule
type ConfidenceScore struct {
	Consistency float64 `json:"consistency"`
	Coverage    float64 `json:"coverage"`
	Stability   float64 `json:"stability"`
	Overall     float64 `json:"overall"`
}

// Confidence weights
const (
	ConsistencyWeight = 0.5
	CoverageWeight    = 0.3
	StabilityWeight   = 0.2
)

// NewConfidenceScore builds a score with Overall computed from the fixed weights
func NewConfidenceScore(consistency, coverage, stability float64) ConfidenceScore {
	return ConfidenceScore{
		Consistency: consistency,
		Coverage:    coverage,
		Stability:   stability,
		Overall:     consistency*ConsistencyWeight + coverage*CoverageWeight + stability*StabilityWeight,
	}
}

// RuleApplicationResult is the outcome of applying one rule
type RuleApplicationResult struct {
	RuleID       core.RuleID `json:"rule_id"`
	RuleType     RuleType    `json:"rule_type"`
	Success      bool        `json:"success"`
	RowsAffected int         `json:"rows_affected"`
	RowsSkipped  int         `json:"rows_skipped"`
	DurationMs   int64       `json:"duration_ms"`
	Error        string      `json:"error,omitempty"`
}

// BulkApplicationResult aggregates the outcome of an ordered rule batch
type BulkApplicationResult struct {
	TotalRules      int                     `json:"total_rules"`
	SuccessCount    int                     `json:"success_count"`
	FailureCount    int                     `json:"failure_count"`
	Results         []RuleApplicationResult `json:"results"`
	TotalDurationMs int64                   `json:"total_duration_ms"`
	Stopped         bool                    `json:"stopped"`
}

// ConvergenceInfo breaks down a stage-over-stage rule set comparison
type ConvergenceInfo struct {
	NewRules      int     `json:"new_rules"`
	ModifiedRules int     `json:"modified_rules"`
	RemovedRules  int     `json:"removed_rules"`
	StableRules   int     `json:"stable_rules"`
	TotalRules    int     `json:"total_rules"`
	PreviousRules int     `json:"previous_rules"`
	ChangeRate    float64 `json:"change_rate"`
	HasConverged  bool    `json:"has_converged"`
	Status        string  `json:"status"`
}
