package hitl

import (
	"ruleminer/domain/core"
	"ruleminer/domain/preprocessing"
)

// QuestionType describes how an answer is collected
type QuestionType string

const (
	QuestionChoice      QuestionType = "Choice"
	QuestionYesNo       QuestionType = "YesNo"
	QuestionCustomValue QuestionType = "CustomValue"
)

// Option is one selectable answer to a question
type Option struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	Description    string `json:"description"`
	IsRecommended  bool   `json:"is_recommended"`
	RejectsRule    bool   `json:"rejects_rule,omitempty"`
	NeedsCustomVal bool   `json:"needs_custom_value,omitempty"`

	// Parameters are copied onto the rule when this option is chosen
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Question asks a human to decide a rule's disposition
type Question struct {
	ID         core.QuestionID        `json:"id"`
	RuleID     core.RuleID            `json:"rule_id"`
	Type       QuestionType           `json:"type"`
	Title      string                 `json:"title"`
	Prompt     string                 `json:"prompt"`
	ColumnName string                 `json:"column_name"`
	RuleType   preprocessing.RuleType `json:"rule_type"`
	Options    []Option               `json:"options"`
	Context    map[string]string      `json:"context,omitempty"`
	Examples   []string               `json:"examples,omitempty"`
	CreatedAt  core.Timestamp         `json:"created_at"`
}

// Recommended returns the recommended option, falling back to the first one
func (q *Question) Recommended() (Option, bool) {
	for _, o := range q.Options {
		if o.IsRecommended {
			return o, true
		}
	}
	if len(q.Options) > 0 {
		return q.Options[0], true
	}
	return Option{}, false
}

// Option finds an option by key
func (q *Question) Option(key string) (Option, bool) {
	for _, o := range q.Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// Answer is a human decision for one question
type Answer struct {
	QuestionID        core.QuestionID `json:"question_id"`
	SelectedOption    string          `json:"selected_option"`
	CustomValue       string          `json:"custom_value,omitempty"`
	Rationale         string          `json:"rationale,omitempty"`
	DecisionTimeMs    int64           `json:"decision_time_ms"`
	AcceptedByDefault bool            `json:"accepted_by_default"`
	AnsweredAt        core.Timestamp  `json:"answered_at"`
}

// DecisionLog binds a question, its answer and the resulting rule for audit.
// Logs are written once and never modified.
type DecisionLog struct {
	Question  Question                        `json:"question"`
	Answer    Answer                          `json:"answer"`
	Rule      preprocessing.PreprocessingRule `json:"rule"`
	SessionID core.SessionID                  `json:"session_id"`
	UserID    string                          `json:"user_id"`
	Notes     string                          `json:"notes,omitempty"`
	LoggedAt  core.Timestamp                  `json:"logged_at"`
}

// Summary aggregates decision logs for audit queries
type Summary struct {
	TotalDecisions    int                            `json:"total_decisions"`
	Approved          int                            `json:"approved"`
	Rejected          int                            `json:"rejected"`
	AcceptedByDefault int                            `json:"accepted_by_default"`
	ByRuleType        map[preprocessing.RuleType]int `json:"by_rule_type"`
	AvgDecisionTimeMs float64                        `json:"avg_decision_time_ms"`
	SkippedFiles      int                            `json:"skipped_files"`
}
