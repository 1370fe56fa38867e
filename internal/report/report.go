package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/discovery"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// Report gathers everything one run produced. Application and Decisions are optional.
type Report struct {
	Title       string
	Discovery   *discovery.Result
	Application *preprocessing.BulkApplicationResult
	Decisions   *domain.Summary
	GeneratedAt core.Timestamp
}

// Paths names the report outputs; empty paths are skipped
type Paths struct {
	Markdown  string
	HTML      string
	RulesYAML string
}

// Markdown renders the report
func Markdown(r Report) string {
	var b strings.Builder
	title := r.Title
	if title == "" {
		title = "Preprocessing rule discovery"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	d := r.Discovery
	if d == nil {
		b.WriteString("No discovery run.\n")
		return b.String()
	}

	status := "not converged"
	if d.Converged {
		status = "converged"
	}
	fmt.Fprintf(&b, "- Session: `%s`\n", d.SessionID)
	fmt.Fprintf(&b, "- Started: %s\n", d.StartedAt)
	fmt.Fprintf(&b, "- Completed: %s\n", d.CompletedAt)
	fmt.Fprintf(&b, "- Stages run: %d (%s)\n", len(d.Stages), status)
	fmt.Fprintf(&b, "- Rules: %d (%d automatic, %d need review)\n\n", len(d.Rules), len(d.AutoRules), len(d.HITLRules))

	writeStages(&b, d.Stages)
	writeRules(&b, d.Rules)
	if r.Decisions != nil {
		writeDecisions(&b, *r.Decisions)
	}
	if r.Application != nil {
		writeApplication(&b, *r.Application)
	}
	return b.String()
}

func writeStages(b *strings.Builder, stages []discovery.StageResult) {
	b.WriteString("## Stages\n\n")
	b.WriteString("| Stage | Ratio | Rows | Rules | Change rate | Quality | Duration (ms) |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, s := range stages {
		change := "-"
		if s.Convergence != nil {
			change = fmt.Sprintf("%.3f", s.Convergence.ChangeRate)
		}
		quality := "-"
		if s.Analysis != nil {
			quality = fmt.Sprintf("%.2f", s.Analysis.QualityScore)
		}
		fmt.Fprintf(b, "| %d | %.0f%% | %d | %d | %s | %s | %d |\n",
			s.Stage, s.Ratio*100, s.SampleRows, len(s.Rules), change, quality, s.DurationMs)
	}
	b.WriteString("\n")
}

func writeRules(b *strings.Builder, rules []*preprocessing.PreprocessingRule) {
	b.WriteString("## Rules\n\n")
	if len(rules) == 0 {
		b.WriteString("No rules discovered.\n\n")
		return
	}
	b.WriteString("| # | Type | Column | Description | Confidence | Score | Rows | Review | State |\n")
	b.WriteString("|---:|---|---|---|---:|---:|---:|---|---|\n")
	for i, r := range rules {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.2f", r.Score.Overall)
		}
		review := "auto"
		if r.RequiresHITL {
			review = "human"
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %.2f | %s | %d | %s | %s |\n",
			i+1, r.Type, cell(strings.Join(r.ColumnNames, ", ")), cell(r.Description),
			r.Confidence, score, r.AffectedRows, review, r.State)
	}
	b.WriteString("\n")
}

func writeDecisions(b *strings.Builder, s domain.Summary) {
	b.WriteString("## Review decisions\n\n")
	fmt.Fprintf(b, "- Decisions: %d (%d approved, %d rejected, %d accepted by default)\n",
		s.TotalDecisions, s.Approved, s.Rejected, s.AcceptedByDefault)
	fmt.Fprintf(b, "- Average decision time: %.0f ms\n", s.AvgDecisionTimeMs)
	if s.SkippedFiles > 0 {
		fmt.Fprintf(b, "- Unreadable log files: %d\n", s.SkippedFiles)
	}
	types := make([]string, 0, len(s.ByRuleType))
	for t := range s.ByRuleType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(b, "- %s: %d\n", t, s.ByRuleType[preprocessing.RuleType(t)])
	}
	b.WriteString("\n")
}

func writeApplication(b *strings.Builder, a preprocessing.BulkApplicationResult) {
	b.WriteString("## Application\n\n")
	fmt.Fprintf(b, "%d of %d rules applied, %d failed", a.SuccessCount, a.TotalRules, a.FailureCount)
	if a.Stopped {
		b.WriteString(", stopped at first failure")
	}
	fmt.Fprintf(b, " (%d ms).\n\n", a.TotalDurationMs)
	if len(a.Results) == 0 {
		return
	}
	b.WriteString("| Rule | Type | Result | Affected | Skipped | Error |\n")
	b.WriteString("|---|---|---|---:|---:|---|\n")
	for _, r := range a.Results {
		result := "ok"
		if !r.Success {
			result = "failed"
		}
		fmt.Fprintf(b, "| `%s` | %s | %s | %d | %d | %s |\n",
			r.RuleID, r.RuleType, result, r.RowsAffected, r.RowsSkipped, cell(r.Error))
	}
	b.WriteString("\n")
}

// cell escapes text for a table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// HTML renders markdown as a standalone page
func HTML(md string, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// WriteAll writes the Markdown, HTML and YAML rule export to the non-empty paths
func WriteAll(r Report, paths Paths, logger ports.Logger) error {
	md := Markdown(r)
	if paths.Markdown != "" {
		if err := writeFile(paths.Markdown, []byte(md)); err != nil {
			return err
		}
		logger.Info("wrote markdown report %s", paths.Markdown)
	}
	if paths.HTML != "" {
		title := r.Title
		if title == "" {
			title = "Preprocessing rule discovery"
		}
		if err := writeFile(paths.HTML, HTML(md, title)); err != nil {
			return err
		}
		logger.Info("wrote html report %s", paths.HTML)
	}
	if paths.RulesYAML != "" && r.Discovery != nil {
		data, err := ExportRules(r.Discovery.SessionID, r.Discovery.Rules, r.GeneratedAt)
		if err != nil {
			return err
		}
		if err := writeFile(paths.RulesYAML, data); err != nil {
			return err
		}
		logger.Info("wrote rule export %s", paths.RulesYAML)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.IOError(path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.IOError(path, err)
	}
	return nil
}
