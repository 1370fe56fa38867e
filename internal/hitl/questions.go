package hitl

import (
	"fmt"
	"strconv"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/applier"
	"ruleminer/internal/discovery"
)

// Option keys shared by every question
const (
	OptionApply  = "apply"
	OptionReject = "reject"
	OptionCustom = "custom"
)

// QuestionGenerator turns a rule into a question with exactly one recommended option.
// An option parameter with an empty value is filled from the answer's custom value.
type QuestionGenerator struct {
	clock func() core.Timestamp
}

// NewQuestionGenerator creates a generator
func NewQuestionGenerator() *QuestionGenerator {
	return &QuestionGenerator{clock: core.Now}
}

// Generate builds the question for rule
func (g *QuestionGenerator) Generate(rule *preprocessing.PreprocessingRule) domain.Question {
	q := domain.Question{
		ID:         core.NewQuestionID(),
		RuleID:     rule.ID,
		Type:       domain.QuestionChoice,
		Title:      fmt.Sprintf("%s on column '%s'", rule.Type, rule.PrimaryColumn()),
		ColumnName: rule.PrimaryColumn(),
		RuleType:   rule.Type,
		Examples:   append([]string(nil), rule.Examples...),
		Context:    questionContext(rule),
		CreatedAt:  g.clock(),
	}

	var recommended string
	switch rule.Type {
	case preprocessing.RuleMissingValueStrategy:
		q.Prompt = fmt.Sprintf("%s (%d rows). How should the missing values be filled?", rule.Description, rule.AffectedRows)
		q.Options, recommended = missingOptions(rule)
	case preprocessing.RuleOutlierHandling:
		q.Prompt = fmt.Sprintf("%s (%d rows). What should happen to values outside [%s, %s]?",
			rule.Description, rule.AffectedRows,
			rule.Param(discovery.ParamLowerBound, "?"), rule.Param(discovery.ParamUpperBound, "?"))
		q.Options, recommended = outlierOptions(rule)
	case preprocessing.RuleCategoryMapping:
		q.Prompt = fmt.Sprintf("%s (%d rows). Merge the variant spellings?", rule.Description, rule.AffectedRows)
		q.Options, recommended = categoryOptions(rule)
	case preprocessing.RuleTypeConversion:
		q.Prompt = fmt.Sprintf("%s (%d rows). Convert the column to %s? Unparseable values become missing.",
			rule.Description, rule.AffectedRows, rule.Param(discovery.ParamTargetType, applier.TargetNumeric))
		q.Options, recommended = conversionOptions(rule)
	default:
		q.Type = domain.QuestionYesNo
		q.Prompt = fmt.Sprintf("%s (%d rows). Apply this rule?", rule.Description, rule.AffectedRows)
		q.Options = []domain.Option{
			{Key: OptionApply, Label: "Yes", Description: "apply the rule as proposed"},
			{Key: OptionReject, Label: "No", Description: "leave the column untouched", RejectsRule: true},
		}
		recommended = OptionApply
	}
	markRecommended(q.Options, recommended)
	return q
}

func questionContext(rule *preprocessing.PreprocessingRule) map[string]string {
	ctx := map[string]string{
		"column":        rule.PrimaryColumn(),
		"affected_rows": strconv.Itoa(rule.AffectedRows),
		"confidence":    strconv.FormatFloat(rule.Confidence, 'f', 2, 64),
		"priority":      strconv.Itoa(rule.Priority),
		"stage":         strconv.Itoa(rule.DiscoveredInStage),
	}
	if rule.Score != nil {
		ctx["score"] = strconv.FormatFloat(rule.Score.Overall, 'f', 2, 64)
	}
	return ctx
}

// markRecommended flags the option with key, or the first option when key is absent
func markRecommended(options []domain.Option, key string) {
	found := false
	for i := range options {
		options[i].IsRecommended = !found && options[i].Key == key
		if options[i].IsRecommended {
			found = true
		}
	}
	if !found && len(options) > 0 {
		options[0].IsRecommended = true
	}
}

func rejectOption(description string) domain.Option {
	return domain.Option{Key: OptionReject, Label: "Leave as is", Description: description, RejectsRule: true}
}

func missingOptions(rule *preprocessing.PreprocessingRule) ([]domain.Option, string) {
	strategy := func(s string) map[string]string {
		return map[string]string{discovery.ParamStrategy: s}
	}
	options := []domain.Option{
		{Key: applier.StrategyMedian, Label: "Fill with median", Description: "robust to outliers; numeric columns", Parameters: strategy(applier.StrategyMedian)},
		{Key: applier.StrategyMean, Label: "Fill with mean", Description: "numeric columns without heavy tails", Parameters: strategy(applier.StrategyMean)},
		{Key: applier.StrategyMode, Label: "Fill with most frequent value", Description: "categorical columns", Parameters: strategy(applier.StrategyMode)},
		{Key: applier.StrategyConstant, Label: "Fill with a constant", Description: "enter the fill value", NeedsCustomVal: true,
			Parameters: map[string]string{discovery.ParamStrategy: applier.StrategyConstant, discovery.ParamValue: ""}},
		{Key: applier.StrategyDropRows, Label: "Drop affected rows", Description: "removes rows from the dataset", Parameters: strategy(applier.StrategyDropRows)},
		rejectOption("keep missing values"),
	}
	return options, rule.Param(discovery.ParamStrategy, applier.StrategyMode)
}

func outlierOptions(rule *preprocessing.PreprocessingRule) ([]domain.Option, string) {
	options := []domain.Option{
		{Key: applier.StrategyCap, Label: "Cap to bounds", Description: "clip values to the IQR fences",
			Parameters: map[string]string{discovery.ParamStrategy: applier.StrategyCap}},
		{Key: applier.StrategyRemove, Label: "Remove rows", Description: "drop rows with outlying values",
			Parameters: map[string]string{discovery.ParamStrategy: applier.StrategyRemove}},
		{Key: applier.StrategyKeep, Label: "Keep values", Description: "the values are genuine",
			Parameters: map[string]string{discovery.ParamStrategy: applier.StrategyKeep}},
		rejectOption("do not handle outliers"),
	}
	return options, rule.Param(discovery.ParamStrategy, applier.StrategyCap)
}

func categoryOptions(rule *preprocessing.PreprocessingRule) ([]domain.Option, string) {
	mapping := rule.Param(discovery.ParamMapping, "")
	options := []domain.Option{
		{Key: OptionApply, Label: "Apply suggested mapping", Description: mapping,
			Parameters: map[string]string{discovery.ParamMapping: mapping}},
		{Key: OptionCustom, Label: "Enter a custom mapping", Description: "format: from=>to;from=>to", NeedsCustomVal: true,
			Parameters: map[string]string{discovery.ParamMapping: ""}},
		rejectOption("keep spellings as they are"),
	}
	return options, OptionApply
}

func conversionOptions(rule *preprocessing.PreprocessingRule) ([]domain.Option, string) {
	target := rule.Param(discovery.ParamTargetType, applier.TargetNumeric)
	options := []domain.Option{
		{Key: OptionApply, Label: "Convert to " + target, Description: "unparseable values become missing",
			Parameters: map[string]string{discovery.ParamTargetType: target}},
	}
	if target != applier.TargetText {
		options = append(options, domain.Option{Key: applier.TargetText, Label: "Keep as text", Description: "leave the column as strings",
			Parameters: map[string]string{discovery.ParamTargetType: applier.TargetText}})
	}
	options = append(options, rejectOption("do not convert"))
	return options, OptionApply
}
