package ports

import (
	"context"

	"ruleminer/domain/hitl"
)

// PrompterPort collects a human decision for one HITL question
type PrompterPort interface {
	Ask(ctx context.Context, question hitl.Question) (hitl.Answer, error)
}

// DecisionStorePort persists HITL decision logs for audit
type DecisionStorePort interface {
	Log(ctx context.Context, entry hitl.DecisionLog) (string, error)
}
