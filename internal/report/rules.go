package report

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"ruleminer/domain/core"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/errors"
)

// RuleSetVersion is the export format version
const RuleSetVersion = 1

// RuleSet is the YAML hand-off of applicable rules
type RuleSet struct {
	Version     int        `yaml:"version"`
	Session     string     `yaml:"session,omitempty"`
	GeneratedAt string     `yaml:"generated_at,omitempty"`
	Rules       []RuleSpec `yaml:"rules"`
}

// RuleSpec is one exported rule
type RuleSpec struct {
	ID           string            `yaml:"id"`
	Type         string            `yaml:"type"`
	Columns      []string          `yaml:"columns"`
	Description  string            `yaml:"description"`
	Parameters   map[string]string `yaml:"parameters,omitempty"`
	Confidence   float64           `yaml:"confidence"`
	Priority     int               `yaml:"priority"`
	RequiresHITL bool              `yaml:"requires_hitl"`
	State        string            `yaml:"state"`
	Feedback     string            `yaml:"feedback,omitempty"`
}

// ExportRules encodes the rules that may be applied, in their given order.
// Rejected rules and unapproved human-gated rules are left out.
func ExportRules(session core.SessionID, rules []*preprocessing.PreprocessingRule, at core.Timestamp) ([]byte, error) {
	set := RuleSet{Version: RuleSetVersion, Session: session.String(), Rules: []RuleSpec{}}
	if !at.IsZero() {
		set.GeneratedAt = at.String()
	}
	for _, r := range rules {
		if !r.CanApply() {
			continue
		}
		spec := RuleSpec{
			ID:           r.ID.String(),
			Type:         string(r.Type),
			Columns:      r.ColumnNames,
			Description:  r.Description,
			Parameters:   r.Parameters,
			Confidence:   r.Confidence,
			Priority:     r.Priority,
			RequiresHITL: r.RequiresHITL,
			State:        string(r.State),
		}
		if r.UserFeedback != nil {
			spec.Feedback = *r.UserFeedback
		}
		set.Rules = append(set.Rules, spec)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(set); err != nil {
		return nil, errors.Wrap(err, "failed to encode rule set")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode rule set")
	}
	return buf.Bytes(), nil
}

// LoadRules decodes an exported rule set back into rules in the Approved or
// Proposed state they were exported with
func LoadRules(data []byte) ([]*preprocessing.PreprocessingRule, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.InvalidInput(err)
	}
	rules := make([]*preprocessing.PreprocessingRule, 0, len(set.Rules))
	for i, s := range set.Rules {
		id, err := core.ParseRuleID(s.ID)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Errorf("rule %d: %w", i, err))
		}
		r := &preprocessing.PreprocessingRule{
			ID:           id,
			Type:         preprocessing.RuleType(s.Type),
			ColumnNames:  s.Columns,
			Description:  s.Description,
			Parameters:   s.Parameters,
			Confidence:   s.Confidence,
			Priority:     s.Priority,
			RequiresHITL: s.RequiresHITL,
			State:        preprocessing.RuleState(s.State),
		}
		r.IsApproved = r.State == preprocessing.StateApproved
		if s.Feedback != "" {
			fb := s.Feedback
			r.UserFeedback = &fb
		}
		rules = append(rules, r)
	}
	return rules, nil
}
