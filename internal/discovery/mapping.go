package discovery

import (
	"ruleminer/adapters/detectors"
	"ruleminer/domain/core"
	"ruleminer/domain/datareadiness/profiling"
	"ruleminer/domain/preprocessing"
)

// Rule parameter keys understood by the applier
const (
	ParamStrategy     = "strategy"
	ParamValue        = "value"
	ParamMapping      = detectors.HintMapping
	ParamTargetType   = detectors.HintTargetType
	ParamTargetFormat = "target_format"
	ParamDecimalSep   = "decimal_separator"
	ParamLowerBound   = "lower_bound"
	ParamUpperBound   = "upper_bound"
)

// ISODateLayout is the canonical output of date standardization
const ISODateLayout = "2006-01-02"

var severityBase = map[preprocessing.Severity]int{
	preprocessing.SeverityCritical: 100,
	preprocessing.SeverityHigh:     75,
	preprocessing.SeverityMedium:   50,
	preprocessing.SeverityLow:      25,
}

var typeBonus = map[preprocessing.RuleType]int{
	preprocessing.RuleMissingValueStrategy:  10,
	preprocessing.RuleTypeConversion:        8,
	preprocessing.RuleEncodingNormalization: 6,
	preprocessing.RuleOutlierHandling:       5,
	preprocessing.RuleCategoryMapping:       4,
}

// Priority is the severity base plus the rule-type bonus
func Priority(severity preprocessing.Severity, ruleType preprocessing.RuleType) int {
	return severityBase[severity] + typeBonus[ruleType]
}

// RuleTypeFor maps a detected pattern to the rule type that fixes it.
// Format variation splits by family; boolean spellings become a type conversion.
func RuleTypeFor(p preprocessing.DetectedPattern) (preprocessing.RuleType, bool) {
	switch p.Type {
	case preprocessing.PatternMissingValue:
		return preprocessing.RuleMissingValueStrategy, true
	case preprocessing.PatternOutlierAnomaly:
		return preprocessing.RuleOutlierHandling, true
	case preprocessing.PatternWhitespaceIssue:
		return preprocessing.RuleWhitespaceNormalization, true
	case preprocessing.PatternCategoryVariation:
		return preprocessing.RuleCategoryMapping, true
	case preprocessing.PatternTypeInconsistency:
		return preprocessing.RuleTypeConversion, true
	case preprocessing.PatternEncodingIssue:
		return preprocessing.RuleEncodingNormalization, true
	case preprocessing.PatternFormatVariation:
		switch p.Hints[detectors.HintFamily] {
		case detectors.FamilyDate:
			return preprocessing.RuleDateFormatStandardization, true
		case detectors.FamilyNumeric:
			return preprocessing.RuleNumericFormatStandardization, true
		case detectors.FamilyBoolean:
			return preprocessing.RuleTypeConversion, true
		}
	}
	return "", false
}

// NewRule builds the proposed rule for a pattern found in the given stage
func NewRule(p preprocessing.DetectedPattern, column *profiling.ColumnAnalysis, stage int) (*preprocessing.PreprocessingRule, bool) {
	ruleType, ok := RuleTypeFor(p)
	if !ok {
		return nil, false
	}
	rule := &preprocessing.PreprocessingRule{
		ID:                core.NewRuleID(),
		Type:              ruleType,
		ColumnNames:       []string{p.ColumnName},
		Description:       p.Description,
		PatternType:       p.Type,
		Confidence:        p.Confidence,
		RequiresHITL:      ruleType.RequiresHuman(),
		Priority:          Priority(p.Severity, ruleType),
		AffectedRows:      p.Occurrences,
		DiscoveredInStage: stage,
		Examples:          append([]string(nil), p.Examples...),
		State:             preprocessing.StateProposed,
	}
	setDefaultParameters(rule, p, column)
	return rule, true
}

func setDefaultParameters(rule *preprocessing.PreprocessingRule, p preprocessing.DetectedPattern, column *profiling.ColumnAnalysis) {
	switch rule.Type {
	case preprocessing.RuleMissingValueStrategy:
		strategy := "mode"
		if column != nil && column.NumericStats != nil {
			strategy = "median"
		}
		rule.SetParam(ParamStrategy, strategy)
	case preprocessing.RuleOutlierHandling:
		rule.SetParam(ParamStrategy, "cap")
		rule.SetParam(ParamLowerBound, p.Hints["lower_bound"])
		rule.SetParam(ParamUpperBound, p.Hints["upper_bound"])
	case preprocessing.RuleCategoryMapping:
		rule.SetParam(ParamMapping, p.Hints[detectors.HintMapping])
	case preprocessing.RuleTypeConversion:
		target := p.Hints[detectors.HintTargetType]
		if p.Type == preprocessing.PatternFormatVariation {
			target = "boolean"
		}
		if target == "" {
			target = "numeric"
		}
		rule.SetParam(ParamTargetType, target)
	case preprocessing.RuleDateFormatStandardization:
		rule.SetParam(ParamTargetFormat, ISODateLayout)
	case preprocessing.RuleNumericFormatStandardization:
		sep := "."
		if p.Hints[detectors.HintDominant] == detectors.NumericCommaDecimal {
			sep = ","
		}
		rule.SetParam(ParamDecimalSep, sep)
	}
}
