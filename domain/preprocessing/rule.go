package preprocessing

import (
	"fmt"
	"sort"

	"ruleminer/domain/core"
)

// PreprocessingRule is an actionable preprocessing decision derived from a pattern.
// Approval state only changes through Approve and Reject.
type PreprocessingRule struct {
	ID                core.RuleID       `json:"id"`
	Type              RuleType          `json:"type"`
	ColumnNames       []string          `json:"column_names"`
	Description       string            `json:"description"`
	PatternType       PatternType       `json:"pattern_type"`
	Confidence        float64           `json:"confidence"`
	Score             *ConfidenceScore  `json:"score,omitempty"`
	RequiresHITL      bool              `json:"requires_hitl"`
	Priority          int               `json:"priority"`
	AffectedRows      int               `json:"affected_rows"`
	DiscoveredInStage int               `json:"discovered_in_stage"`
	Parameters        map[string]string `json:"parameters,omitempty"`
	Examples          []string          `json:"examples,omitempty"`

	IsApproved   bool      `json:"is_approved"`
	UserFeedback *string   `json:"user_feedback,omitempty"`
	State        RuleState `json:"state"`
}

// PrimaryColumn returns the first column the rule targets
func (r *PreprocessingRule) PrimaryColumn() string {
	if len(r.ColumnNames) == 0 {
		return ""
	}
	return r.ColumnNames[0]
}

// Signature is the stage-independent identity of the rule
func (r *PreprocessingRule) Signature() core.Signature {
	return core.ComputeSignature(string(r.Type), r.PrimaryColumn(), r.Description)
}

// Param returns a strategy parameter or the fallback
func (r *PreprocessingRule) Param(key, fallback string) string {
	if v, ok := r.Parameters[key]; ok && v != "" {
		return v
	}
	return fallback
}

// SetParam records a strategy parameter
func (r *PreprocessingRule) SetParam(key, value string) {
	if r.Parameters == nil {
		r.Parameters = make(map[string]string)
	}
	r.Parameters[key] = value
}

// Approve moves a proposed rule to Approved and records the reviewer's feedback
func (r *PreprocessingRule) Approve(feedback string) error {
	if r.State == StateRejected {
		return fmt.Errorf("%w: rule %s was rejected", core.ErrInvalidCondition, r.ID)
	}
	r.State = StateApproved
	r.IsApproved = true
	if feedback != "" {
		r.UserFeedback = &feedback
	}
	return nil
}

// Reject moves a proposed rule to Rejected and records the reviewer's feedback
func (r *PreprocessingRule) Reject(feedback string) error {
	if r.State == StateApproved {
		return fmt.Errorf("%w: rule %s was already approved", core.ErrInvalidCondition, r.ID)
	}
	r.State = StateRejected
	r.IsApproved = false
	if feedback != "" {
		r.UserFeedback = &feedback
	}
	return nil
}

// CanApply reports whether the rule may touch the full dataset
func (r *PreprocessingRule) CanApply() bool {
	if r.State == StateRejected {
		return false
	}
	return !r.RequiresHITL || r.IsApproved
}

// Clone returns a deep copy of the rule
func (r *PreprocessingRule) Clone() *PreprocessingRule {
	c := *r
	c.ColumnNames = append([]string(nil), r.ColumnNames...)
	c.Examples = append([]string(nil), r.Examples...)
	if r.Parameters != nil {
		c.Parameters = make(map[string]string, len(r.Parameters))
		for k, v := range r.Parameters {
			c.Parameters[k] = v
		}
	}
	if r.Score != nil {
		score := *r.Score
		c.Score = &score
	}
	if r.UserFeedback != nil {
		fb := *r.UserFeedback
		c.UserFeedback = &fb
	}
	return &c
}

// SortRules orders rules by Priority descending, then AffectedRows descending.
// Remaining ties fall back to type and column so the order is deterministic.
func SortRules(rules []*PreprocessingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.AffectedRows != b.AffectedRows {
			return a.AffectedRows > b.AffectedRows
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.PrimaryColumn() != b.PrimaryColumn() {
			return a.PrimaryColumn() < b.PrimaryColumn()
		}
		return a.Description < b.Description
	})
}

// SplitByHITL partitions rules into auto-applicable and human-gated lists, keeping order
func SplitByHITL(rules []*PreprocessingRule) (auto, hitl []*PreprocessingRule) {
	for _, r := range rules {
		if r.RequiresHITL {
			hitl = append(hitl, r)
		} else {
			auto = append(auto, r)
		}
	}
	return auto, hitl
}
