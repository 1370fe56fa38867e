package hitl

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// DefaultDecisionDir is where decision logs go when no directory is configured
const DefaultDecisionDir = "hitl-decisions"

// DecisionLogger persists one indented JSON file per decision and answers
// audit queries over them. Files are written once and never rewritten.
type DecisionLogger struct {
	BaseDir string
	logger  ports.Logger
}

var _ ports.DecisionStorePort = (*DecisionLogger)(nil)

// NewDecisionLogger creates a logger rooted at baseDir
func NewDecisionLogger(baseDir string, logger ports.Logger) *DecisionLogger {
	if baseDir == "" {
		baseDir = DefaultDecisionDir
	}
	return &DecisionLogger{BaseDir: baseDir, logger: logger}
}

// EnsureBaseDir creates the base directory if it doesn't exist
func (dl *DecisionLogger) EnsureBaseDir() error {
	return os.MkdirAll(dl.BaseDir, 0755)
}

// FileName is {questionId}_{yyyyMMddHHmmss}.json in UTC
func FileName(entry domain.DecisionLog) string {
	return fmt.Sprintf("%s_%s.json", entry.Question.ID, entry.LoggedAt.CompactUTC())
}

// Log writes entry and returns the file path. LoggedAt is stamped when unset.
func (dl *DecisionLogger) Log(ctx context.Context, entry domain.DecisionLog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = core.Now()
	}
	if err := dl.EnsureBaseDir(); err != nil {
		dl.logger.Error("failed to create decision directory %s: %v", dl.BaseDir, err)
		return "", errors.IOError(dl.BaseDir, err)
	}

	path := filepath.Join(dl.BaseDir, FileName(entry))
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal decision log")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		dl.logger.Error("failed to write decision log %s: %v", path, err)
		return "", errors.IOError(path, err)
	}

	dl.logger.Debug("logged decision %s for rule %s", entry.Question.ID, entry.Rule.ID)
	return path, nil
}

// All loads every readable decision log, oldest first
func (dl *DecisionLogger) All(ctx context.Context) ([]domain.DecisionLog, error) {
	logs, _, err := dl.load(ctx, func(domain.DecisionLog) bool { return true })
	return logs, err
}

// ByRule returns the decisions recorded for one rule, oldest first
func (dl *DecisionLogger) ByRule(ctx context.Context, ruleID core.RuleID) ([]domain.DecisionLog, error) {
	logs, _, err := dl.load(ctx, func(l domain.DecisionLog) bool { return l.Rule.ID == ruleID })
	return logs, err
}

// ByTimeRange returns decisions logged within [from, to], oldest first
func (dl *DecisionLogger) ByTimeRange(ctx context.Context, from, to core.Timestamp) ([]domain.DecisionLog, error) {
	logs, _, err := dl.load(ctx, func(l domain.DecisionLog) bool {
		return !l.LoggedAt.Before(from) && !l.LoggedAt.After(to)
	})
	return logs, err
}

// Summary aggregates every readable decision log
func (dl *DecisionLogger) Summary(ctx context.Context) (domain.Summary, error) {
	logs, skipped, err := dl.load(ctx, func(domain.DecisionLog) bool { return true })
	summary := domain.Summary{
		ByRuleType:   make(map[preprocessing.RuleType]int),
		SkippedFiles: skipped,
	}
	if err != nil {
		return summary, err
	}

	var totalMs int64
	for _, l := range logs {
		summary.TotalDecisions++
		switch l.Rule.State {
		case preprocessing.StateApproved:
			summary.Approved++
		case preprocessing.StateRejected:
			summary.Rejected++
		}
		if l.Answer.AcceptedByDefault {
			summary.AcceptedByDefault++
		}
		summary.ByRuleType[l.Rule.Type]++
		totalMs += l.Answer.DecisionTimeMs
	}
	if summary.TotalDecisions > 0 {
		summary.AvgDecisionTimeMs = float64(totalMs) / float64(summary.TotalDecisions)
	}
	return summary, nil
}

// load reads matching logs, skipping corrupt files with a warning. A missing
// directory holds no decisions.
func (dl *DecisionLogger) load(ctx context.Context, keep func(domain.DecisionLog) bool) ([]domain.DecisionLog, int, error) {
	files, err := dl.listDecisionFiles()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, errors.IOError(dl.BaseDir, err)
	}

	var logs []domain.DecisionLog
	skipped := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		entry, err := dl.loadDecisionFile(file)
		if err != nil {
			dl.logger.Warn("skipping unreadable decision log %s: %v", file, err)
			skipped++
			continue
		}
		if keep(entry) {
			logs = append(logs, entry)
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].LoggedAt.Before(logs[j].LoggedAt)
	})
	return logs, skipped, nil
}

// listDecisionFiles returns all decision JSON files
func (dl *DecisionLogger) listDecisionFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(dl.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func (dl *DecisionLogger) loadDecisionFile(path string) (domain.DecisionLog, error) {
	var entry domain.DecisionLog
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	if entry.Question.ID == "" {
		return entry, fmt.Errorf("missing question id")
	}
	return entry, nil
}
