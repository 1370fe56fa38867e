package hitl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal"
	apperrors "ruleminer/internal/errors"
	"ruleminer/internal/applier"
	"ruleminer/internal/discovery"
)

type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) Ask(ctx context.Context, q domain.Question) (domain.Answer, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.Answer), args.Error(1)
}

func hitlRule(ruleType preprocessing.RuleType, column string, params map[string]string) *preprocessing.PreprocessingRule {
	return &preprocessing.PreprocessingRule{
		ID:           core.NewRuleID(),
		Type:         ruleType,
		ColumnNames:  []string{column},
		Description:  "pattern in column '" + column + "'",
		Confidence:   0.9,
		RequiresHITL: ruleType.RequiresHuman(),
		AffectedRows: 12,
		Parameters:   params,
		Examples:     []string{"a", "b"},
		State:        preprocessing.StateProposed,
	}
}

func recommendedKeys(q domain.Question) []string {
	var keys []string
	for _, o := range q.Options {
		if o.IsRecommended {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

func TestGenerate_ExactlyOneRecommended(t *testing.T) {
	g := NewQuestionGenerator()
	tests := []struct {
		rule *preprocessing.PreprocessingRule
		want string
	}{
		{hitlRule(preprocessing.RuleMissingValueStrategy, "x", map[string]string{discovery.ParamStrategy: applier.StrategyMedian}), applier.StrategyMedian},
		{hitlRule(preprocessing.RuleMissingValueStrategy, "x", nil), applier.StrategyMode},
		{hitlRule(preprocessing.RuleMissingValueStrategy, "x", map[string]string{discovery.ParamStrategy: "unknown"}), applier.StrategyMedian},
		{hitlRule(preprocessing.RuleOutlierHandling, "x", nil), applier.StrategyCap},
		{hitlRule(preprocessing.RuleCategoryMapping, "x", map[string]string{discovery.ParamMapping: "a=>A"}), OptionApply},
		{hitlRule(preprocessing.RuleTypeConversion, "x", nil), OptionApply},
		{hitlRule(preprocessing.RuleBusinessLogicDecision, "x", nil), OptionApply},
		{hitlRule(preprocessing.RuleWhitespaceNormalization, "x", nil), OptionApply},
	}
	for _, tt := range tests {
		t.Run(string(tt.rule.Type), func(t *testing.T) {
			q := g.Generate(tt.rule)
			assert.Equal(t, []string{tt.want}, recommendedKeys(q))
			assert.Equal(t, tt.rule.ID, q.RuleID)
			assert.Equal(t, "x", q.ColumnName)
			assert.Equal(t, "12", q.Context["affected_rows"])
			assert.Equal(t, "0.90", q.Context["confidence"])
			assert.NotEmpty(t, q.Prompt)
			assert.NotEmpty(t, q.ID)
		})
	}

	q := g.Generate(hitlRule(preprocessing.RuleBusinessLogicDecision, "x", nil))
	assert.Equal(t, domain.QuestionYesNo, q.Type)
}

func TestAutoPrompter(t *testing.T) {
	q := NewQuestionGenerator().Generate(hitlRule(preprocessing.RuleOutlierHandling, "x", nil))
	answer, err := AutoPrompter{}.Ask(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, applier.StrategyCap, answer.SelectedOption)
	assert.True(t, answer.AcceptedByDefault)
	assert.Equal(t, q.ID, answer.QuestionID)

	_, err = AutoPrompter{}.Ask(context.Background(), domain.Question{})
	assert.Error(t, err)
}

func TestTerminalPrompter(t *testing.T) {
	missing := NewQuestionGenerator().Generate(hitlRule(preprocessing.RuleMissingValueStrategy, "x",
		map[string]string{discovery.ParamStrategy: applier.StrategyMedian}))

	tests := []struct {
		name      string
		input     string
		option    string
		custom    string
		rationale string
		byDefault bool
	}{
		{"enter accepts recommended", "\n\n", applier.StrategyMedian, "", "", true},
		{"empty input accepts recommended", "", applier.StrategyMedian, "", "", true},
		{"number", "3\nmostly labels\n", applier.StrategyMode, "", "mostly labels", false},
		{"key after invalid choice", "42\ndrop_rows\n\n", applier.StrategyDropRows, "", "", false},
		{"custom value", "4\n\n0\nzero is neutral\n", applier.StrategyConstant, "0", "zero is neutral", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tt.input), &out)
			answer, err := p.Ask(context.Background(), missing)
			require.NoError(t, err)
			assert.Equal(t, tt.option, answer.SelectedOption)
			assert.Equal(t, tt.custom, answer.CustomValue)
			assert.Equal(t, tt.rationale, answer.Rationale)
			assert.Equal(t, tt.byDefault, answer.AcceptedByDefault)
			assert.Contains(t, out.String(), "(recommended)")
			assert.Contains(t, out.String(), "affected_rows: 12")
		})
	}

	t.Run("invalid choice then end of input", func(t *testing.T) {
		p := NewTerminalPrompter(strings.NewReader("nonsense"), &bytes.Buffer{})
		_, err := p.Ask(context.Background(), missing)
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := NewTerminalPrompter(strings.NewReader("\n"), &bytes.Buffer{})
		_, err := p.Ask(ctx, missing)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func isQuestionFor(ruleType preprocessing.RuleType) interface{} {
	return mock.MatchedBy(func(q domain.Question) bool { return q.RuleType == ruleType })
}

func TestWorkflow_Resolve(t *testing.T) {
	dir := t.TempDir()
	store := NewDecisionLogger(dir, internal.NewNopLogger())

	missing := hitlRule(preprocessing.RuleMissingValueStrategy, "amount", map[string]string{discovery.ParamStrategy: applier.StrategyMedian})
	outlier := hitlRule(preprocessing.RuleOutlierHandling, "amount", nil)
	whitespace := hitlRule(preprocessing.RuleWhitespaceNormalization, "note", nil)

	prompter := &mockPrompter{}
	prompter.On("Ask", mock.Anything, isQuestionFor(preprocessing.RuleMissingValueStrategy)).
		Return(domain.Answer{SelectedOption: applier.StrategyConstant, CustomValue: "0", Rationale: "zero means none", DecisionTimeMs: 400}, nil).Once()
	prompter.On("Ask", mock.Anything, isQuestionFor(preprocessing.RuleOutlierHandling)).
		Return(domain.Answer{SelectedOption: OptionReject, Rationale: "values are real", DecisionTimeMs: 200}, nil).Once()

	session := core.NewSessionID()
	wf := NewWorkflow(nil, prompter, store, "analyst", internal.NewNopLogger())
	res, err := wf.Resolve(context.Background(), []*preprocessing.PreprocessingRule{missing, whitespace, outlier}, session)
	require.NoError(t, err)
	prompter.AssertExpectations(t)

	assert.Equal(t, []*preprocessing.PreprocessingRule{missing}, res.Approved)
	assert.Equal(t, []*preprocessing.PreprocessingRule{outlier}, res.Rejected)
	assert.Len(t, res.LogFiles, 2)

	assert.True(t, missing.IsApproved)
	assert.Equal(t, applier.StrategyConstant, missing.Param(discovery.ParamStrategy, ""))
	assert.Equal(t, "0", missing.Param(discovery.ParamValue, ""))
	require.NotNil(t, missing.UserFeedback)
	assert.Equal(t, "zero means none", *missing.UserFeedback)

	assert.Equal(t, preprocessing.StateRejected, outlier.State)
	assert.False(t, outlier.CanApply())
	assert.Equal(t, preprocessing.StateProposed, whitespace.State)

	logs, err := store.ByRule(context.Background(), missing.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, session, logs[0].SessionID)
	assert.Equal(t, "analyst", logs[0].UserID)
	assert.Equal(t, preprocessing.StateApproved, logs[0].Rule.State)

	summary, err := store.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalDecisions)
	assert.Equal(t, 1, summary.Approved)
	assert.Equal(t, 1, summary.Rejected)
	assert.InDelta(t, 300.0, summary.AvgDecisionTimeMs, 1e-9)

	t.Run("second pass asks nothing", func(t *testing.T) {
		idle := &mockPrompter{}
		res, err := NewWorkflow(nil, idle, nil, "analyst", internal.NewNopLogger()).
			Resolve(context.Background(), []*preprocessing.PreprocessingRule{missing, outlier}, session)
		require.NoError(t, err)
		assert.Empty(t, res.Approved)
		idle.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
	})
}

func TestWorkflow_PrompterErrorStops(t *testing.T) {
	boom := errors.New("terminal closed")
	prompter := &mockPrompter{}
	prompter.On("Ask", mock.Anything, mock.Anything).Return(domain.Answer{}, boom).Once()

	rules := []*preprocessing.PreprocessingRule{
		hitlRule(preprocessing.RuleOutlierHandling, "a", nil),
		hitlRule(preprocessing.RuleOutlierHandling, "b", nil),
	}
	_, err := NewWorkflow(nil, prompter, nil, "", internal.NewNopLogger()).Resolve(context.Background(), rules, core.NewSessionID())
	assert.ErrorIs(t, err, boom)
	prompter.AssertNumberOfCalls(t, "Ask", 1)
}

func TestApplyAnswer(t *testing.T) {
	rule := hitlRule(preprocessing.RuleMissingValueStrategy, "x", nil)
	q := NewQuestionGenerator().Generate(rule)

	err := ApplyAnswer(rule, q, domain.Answer{SelectedOption: "nope"})
	assert.True(t, core.IsValidationError(err))

	err = ApplyAnswer(rule, q, domain.Answer{SelectedOption: applier.StrategyConstant})
	assert.True(t, core.IsValidationError(err))
	assert.Equal(t, preprocessing.StateProposed, rule.State)

	require.NoError(t, ApplyAnswer(rule, q, domain.Answer{SelectedOption: applier.StrategyDropRows}))
	assert.Equal(t, applier.StrategyDropRows, rule.Param(discovery.ParamStrategy, ""))
	assert.True(t, rule.CanApply())
}

var fileNamePattern = regexp.MustCompile(`^[0-9a-f-]{36}_\d{14}\.json$`)

func TestDecisionLogger(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), DefaultDecisionDir)
	store := NewDecisionLogger(dir, internal.NewNopLogger())

	t.Run("missing directory holds no decisions", func(t *testing.T) {
		logs, err := store.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []core.RuleID
	for i := 0; i < 3; i++ {
		rule := hitlRule(preprocessing.RuleCategoryMapping, "c", nil)
		require.NoError(t, rule.Approve(""))
		ids = append(ids, rule.ID)
		q := NewQuestionGenerator().Generate(rule)
		path, err := store.Log(ctx, domain.DecisionLog{
			Question: q,
			Answer:   domain.Answer{QuestionID: q.ID, SelectedOption: OptionApply, AcceptedByDefault: i == 0},
			Rule:     *rule,
			LoggedAt: core.NewTimestamp(base.Add(time.Duration(i) * time.Hour)),
		})
		require.NoError(t, err)
		assert.Regexp(t, fileNamePattern, filepath.Base(path))
		if i == 0 {
			assert.Equal(t, q.ID.String()+"_20240501120000.json", filepath.Base(path))
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(raw), "\n  \"question\": {")
			assert.Contains(t, string(raw), `"type": "CategoryMapping"`)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{not json"), 0644))

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byRule, err := store.ByRule(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, byRule, 1)
	assert.Equal(t, ids[1], byRule[0].Rule.ID)

	window, err := store.ByTimeRange(ctx,
		core.NewTimestamp(base.Add(30*time.Minute)), core.NewTimestamp(base.Add(2*time.Hour)))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, ids[1], window[0].Rule.ID)
	assert.Equal(t, ids[2], window[1].Rule.ID)

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalDecisions)
	assert.Equal(t, 3, summary.Approved)
	assert.Equal(t, 1, summary.AcceptedByDefault)
	assert.Equal(t, 1, summary.SkippedFiles)
	assert.Equal(t, 3, summary.ByRuleType[preprocessing.RuleCategoryMapping])
}

func TestDecisionLogger_WriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := NewDecisionLogger(filepath.Join(blocker, "decisions"), internal.NewNopLogger())
	rule := hitlRule(preprocessing.RuleOutlierHandling, "x", nil)
	_, err := store.Log(context.Background(), domain.DecisionLog{
		Question: NewQuestionGenerator().Generate(rule),
		Rule:     *rule,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIOError, apperrors.GetCode(err))
}
