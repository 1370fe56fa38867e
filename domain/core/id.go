package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is a time-ordered identifier
type ID string

// NewID creates a UUID v7, falling back to v4 if the clock source fails
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string { return string(id) }

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

type (
	RuleID     ID
	QuestionID ID
	SessionID  ID
)

// NewRuleID creates a rule identifier. Rule IDs are regenerated on every stage.
func NewRuleID() RuleID { return RuleID(NewID()) }

// NewQuestionID creates a HITL question identifier
func NewQuestionID() QuestionID { return QuestionID(NewID()) }

// NewSessionID creates a discovery session identifier
func NewSessionID() SessionID { return SessionID(NewID()) }

func (id RuleID) String() string     { return ID(id).String() }
func (id QuestionID) String() string { return ID(id).String() }
func (id SessionID) String() string  { return ID(id).String() }

// ParseRuleID accepts any non-blank identifier; exported rule sets may carry
// IDs minted elsewhere
func ParseRuleID(s string) (RuleID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: rule ID cannot be empty", ErrInvalidInput)
	}
	return RuleID(s), nil
}
