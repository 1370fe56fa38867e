package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleminer/domain/core"
)

func TestNewConfidenceScore_ExactWeights(t *testing.T) {
	score := NewConfidenceScore(0.8, 0.25, 0.9)
	assert.InDelta(t, 0.8*0.5+0.25*0.3+0.9*0.2, score.Overall, 1e-12)
}

func TestSortRules_PriorityThenAffectedRows(t *testing.T) {
	rules := []*PreprocessingRule{
		{Type: RuleWhitespaceNormalization, ColumnNames: []string{"a"}, Priority: 25, AffectedRows: 100},
		{Type: RuleMissingValueStrategy, ColumnNames: []string{"b"}, Priority: 85, AffectedRows: 10},
		{Type: RuleOutlierHandling, ColumnNames: []string{"c"}, Priority: 85, AffectedRows: 40},
	}
	SortRules(rules)

	assert.Equal(t, "c", rules[0].PrimaryColumn())
	assert.Equal(t, "b", rules[1].PrimaryColumn())
	assert.Equal(t, "a", rules[2].PrimaryColumn())
}

func TestSignature_IgnoresID(t *testing.T) {
	a := &PreprocessingRule{ID: core.NewRuleID(), Type: RuleCategoryMapping, ColumnNames: []string{"city"}, Description: "x"}
	b := &PreprocessingRule{ID: core.NewRuleID(), Type: RuleCategoryMapping, ColumnNames: []string{"city"}, Description: "x"}
	assert.Equal(t, a.Signature(), b.Signature())
}

func TestApprovalTransitions(t *testing.T) {
	rule := &PreprocessingRule{Type: RuleMissingValueStrategy, RequiresHITL: true, State: StateProposed}
	assert.False(t, rule.CanApply())

	require.NoError(t, rule.Approve("use median"))
	assert.True(t, rule.IsApproved)
	assert.True(t, rule.CanApply())
	require.NotNil(t, rule.UserFeedback)
	assert.Equal(t, "use median", *rule.UserFeedback)

	err := rule.Reject("changed my mind")
	assert.ErrorIs(t, err, core.ErrInvalidCondition)
}

func TestRejectedRuleCannotApply(t *testing.T) {
	rule := &PreprocessingRule{Type: RuleWhitespaceNormalization, State: StateProposed}
	assert.True(t, rule.CanApply())
	require.NoError(t, rule.Reject(""))
	assert.False(t, rule.CanApply())
	assert.ErrorIs(t, rule.Approve(""), core.ErrInvalidCondition)
}

func TestRuleTypeRequiresHuman(t *testing.T) {
	gated := []RuleType{RuleMissingValueStrategy, RuleOutlierHandling, RuleCategoryMapping, RuleTypeConversion, RuleBusinessLogicDecision}
	for _, rt := range gated {
		assert.True(t, rt.RequiresHuman(), rt)
	}
	auto := []RuleType{RuleWhitespaceNormalization, RuleEncodingNormalization, RuleDateFormatStandardization, RuleNumericFormatStandardization}
	for _, rt := range auto {
		assert.False(t, rt.RequiresHuman(), rt)
	}
}

func TestAddExample_BoundedAndDeduplicated(t *testing.T) {
	p := DetectedPattern{}
	for _, e := range []string{"a", "a", "b", "c", "d", "e", "f"} {
		p.AddExample(e)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Examples)
}

func TestClone_IsDeep(t *testing.T) {
	score := NewConfidenceScore(1, 0.5, 1)
	r := &PreprocessingRule{
		ColumnNames: []string{"a"},
		Parameters:  map[string]string{"strategy": "median"},
		Score:       &score,
	}
	c := r.Clone()
	c.ColumnNames[0] = "b"
	c.Parameters["strategy"] = "mean"
	c.Score.Overall = 0

	assert.Equal(t, "a", r.ColumnNames[0])
	assert.Equal(t, "median", r.Param("strategy", ""))
	assert.InDelta(t, 0.85, r.Score.Overall, 1e-12)
}
