package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleminer/domain/core"
	"ruleminer/domain/datareadiness/profiling"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal"
	"ruleminer/internal/discovery"
)

func sampleRules(t *testing.T) (auto, approved, pending, rejected *preprocessing.PreprocessingRule) {
	t.Helper()
	auto = &preprocessing.PreprocessingRule{
		ID: core.NewRuleID(), Type: preprocessing.RuleWhitespaceNormalization,
		ColumnNames: []string{"note"}, Description: "padding | tabs in column 'note'",
		Confidence: 0.95, Priority: 60, AffectedRows: 4, State: preprocessing.StateProposed,
	}
	approved = &preprocessing.PreprocessingRule{
		ID: core.NewRuleID(), Type: preprocessing.RuleMissingValueStrategy,
		ColumnNames: []string{"amount"}, Description: "missing values in column 'amount'",
		Confidence: 0.9, Priority: 110, AffectedRows: 50, RequiresHITL: true,
		Parameters: map[string]string{discovery.ParamStrategy: "median"},
		Score:      &preprocessing.ConfidenceScore{Overall: 0.8}, State: preprocessing.StateProposed,
	}
	require.NoError(t, approved.Approve("checked"))
	pending = &preprocessing.PreprocessingRule{
		ID: core.NewRuleID(), Type: preprocessing.RuleOutlierHandling,
		ColumnNames: []string{"amount"}, Description: "outliers in column 'amount'",
		Confidence: 0.8, RequiresHITL: true, State: preprocessing.StateProposed,
	}
	rejected = &preprocessing.PreprocessingRule{
		ID: core.NewRuleID(), Type: preprocessing.RuleCategoryMapping,
		ColumnNames: []string{"city"}, Description: "variants in column 'city'",
		Confidence: 0.85, RequiresHITL: true, State: preprocessing.StateProposed,
	}
	require.NoError(t, rejected.Reject("intentional"))
	return auto, approved, pending, rejected
}

func sampleReport(t *testing.T) Report {
	auto, approved, pending, rejected := sampleRules(t)
	rules := []*preprocessing.PreprocessingRule{approved, pending, rejected, auto}
	return Report{
		Title: "Run report",
		Discovery: &discovery.Result{
			SessionID: core.NewSessionID(),
			Stages: []discovery.StageResult{
				{Stage: 1, Ratio: 0.1, SampleRows: 100, Rules: rules, Analysis: &profiling.SampleAnalysis{QualityScore: 0.75}},
				{Stage: 2, Ratio: 0.3, SampleRows: 300, Rules: rules,
					Convergence: &preprocessing.ConvergenceInfo{ChangeRate: 0, HasConverged: true}},
			},
			Rules:     rules,
			AutoRules: []*preprocessing.PreprocessingRule{auto},
			HITLRules: []*preprocessing.PreprocessingRule{approved, pending, rejected},
			Converged: true,
		},
		Application: &preprocessing.BulkApplicationResult{
			TotalRules: 2, SuccessCount: 1, FailureCount: 1,
			Results: []preprocessing.RuleApplicationResult{
				{RuleID: approved.ID, RuleType: approved.Type, Success: true, RowsAffected: 50},
				{RuleID: auto.ID, RuleType: auto.Type, Error: "column 'note' not found"},
			},
		},
		Decisions: &domain.Summary{
			TotalDecisions: 2, Approved: 1, Rejected: 1,
			ByRuleType: map[preprocessing.RuleType]int{
				preprocessing.RuleMissingValueStrategy: 1,
				preprocessing.RuleCategoryMapping:      1,
			},
		},
		GeneratedAt: core.NewTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport(t))

	assert.True(t, strings.HasPrefix(md, "# Run report\n"))
	assert.Contains(t, md, "- Stages run: 2 (converged)")
	assert.Contains(t, md, "- Rules: 4 (1 automatic, 3 need review)")
	assert.Contains(t, md, "| 1 | 10% | 100 | 4 | - | 0.75 | 0 |")
	assert.Contains(t, md, "| 2 | 30% | 300 | 4 | 0.000 | - | 0 |")
	assert.Contains(t, md, "| 1 | MissingValueStrategy | amount | missing values in column 'amount' | 0.90 | 0.80 | 50 | human | Approved |")
	assert.Contains(t, md, `padding \| tabs`)
	assert.Contains(t, md, "## Review decisions")
	assert.Contains(t, md, "- CategoryMapping: 1")
	assert.Contains(t, md, "1 of 2 rules applied, 1 failed")
	assert.Contains(t, md, "| failed | 0 | 0 | column 'note' not found |")

	empty := Markdown(Report{})
	assert.Contains(t, empty, "No discovery run.")

	noRules := Markdown(Report{Discovery: &discovery.Result{}})
	assert.Contains(t, noRules, "No rules discovered.")
	assert.NotContains(t, noRules, "## Application")
}

func TestHTML(t *testing.T) {
	page := string(HTML(Markdown(sampleReport(t)), "Run report"))
	assert.Contains(t, page, "<title>Run report</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h1")
	assert.Contains(t, page, "MissingValueStrategy")
}

func TestExportRules(t *testing.T) {
	auto, approved, pending, rejected := sampleRules(t)
	session := core.NewSessionID()
	data, err := ExportRules(session, []*preprocessing.PreprocessingRule{approved, pending, rejected, auto},
		core.NewTimestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "version: 1\n")
	assert.Contains(t, text, session.String())
	assert.Contains(t, text, "2024-05-01T12:00:00Z")
	assert.Contains(t, text, "- id: "+approved.ID.String())
	assert.NotContains(t, text, pending.ID.String())
	assert.NotContains(t, text, rejected.ID.String())

	loaded, err := LoadRules(data)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, approved.ID, loaded[0].ID)
	assert.Equal(t, preprocessing.RuleMissingValueStrategy, loaded[0].Type)
	assert.Equal(t, "median", loaded[0].Param(discovery.ParamStrategy, ""))
	assert.True(t, loaded[0].CanApply())
	require.NotNil(t, loaded[0].UserFeedback)
	assert.Equal(t, "checked", *loaded[0].UserFeedback)

	assert.Equal(t, auto.ID, loaded[1].ID)
	assert.Equal(t, preprocessing.StateProposed, loaded[1].State)
	assert.True(t, loaded[1].CanApply())

	_, err = LoadRules([]byte("rules: [unclosed"))
	assert.Error(t, err)
	_, err = LoadRules([]byte("version: 1\nrules:\n  - type: OutlierHandling\n"))
	assert.True(t, core.IsValidationError(err))

	none, err := ExportRules(session, nil, core.Timestamp{})
	require.NoError(t, err)
	assert.Contains(t, string(none), "rules: []")
	assert.NotContains(t, string(none), "generated_at")
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Markdown:  filepath.Join(dir, "out", "report.md"),
		HTML:      filepath.Join(dir, "out", "report.html"),
		RulesYAML: filepath.Join(dir, "rules", "rules.yaml"),
	}
	require.NoError(t, WriteAll(sampleReport(t), paths, internal.NewNopLogger()))

	for _, p := range []string{paths.Markdown, paths.HTML, paths.RulesYAML} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}

	require.NoError(t, WriteAll(sampleReport(t), Paths{}, internal.NewNopLogger()))
}
