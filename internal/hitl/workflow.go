package hitl

import (
	"context"
	"fmt"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/domain/preprocessing"
	"ruleminer/ports"
)

// Resolution lists the outcome of one workflow pass
type Resolution struct {
	Approved []*preprocessing.PreprocessingRule
	Rejected []*preprocessing.PreprocessingRule
	LogFiles []string
}

// Workflow asks a human about every proposed rule that needs approval and
// records each decision
type Workflow struct {
	generator *QuestionGenerator
	prompter  ports.PrompterPort
	store     ports.DecisionStorePort
	userID    string
	logger    ports.Logger
}

// NewWorkflow wires a workflow; store may be nil to skip decision logging
func NewWorkflow(generator *QuestionGenerator, prompter ports.PrompterPort, store ports.DecisionStorePort, userID string, logger ports.Logger) *Workflow {
	if generator == nil {
		generator = NewQuestionGenerator()
	}
	return &Workflow{
		generator: generator,
		prompter:  prompter,
		store:     store,
		userID:    userID,
		logger:    logger,
	}
}

// Resolve decides every proposed human-gated rule in place. Rules that need no
// approval and rules already decided are left alone. Prompter and store errors
// stop the pass.
func (w *Workflow) Resolve(ctx context.Context, rules []*preprocessing.PreprocessingRule, session core.SessionID) (Resolution, error) {
	var res Resolution
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !rule.RequiresHITL || rule.State != preprocessing.StateProposed {
			continue
		}

		q := w.generator.Generate(rule)
		answer, err := w.prompter.Ask(ctx, q)
		if err != nil {
			return res, err
		}
		if err := ApplyAnswer(rule, q, answer); err != nil {
			return res, err
		}

		if rule.State == preprocessing.StateApproved {
			res.Approved = append(res.Approved, rule)
		} else {
			res.Rejected = append(res.Rejected, rule)
		}
		w.logger.Info("rule %s (%s on %q): %s via %q", rule.ID, rule.Type, rule.PrimaryColumn(), rule.State, answer.SelectedOption)

		if w.store == nil {
			continue
		}
		path, err := w.store.Log(ctx, domain.DecisionLog{
			Question:  q,
			Answer:    answer,
			Rule:      *rule.Clone(),
			SessionID: session,
			UserID:    w.userID,
		})
		if err != nil {
			w.logger.Error("failed to log decision for rule %s: %v", rule.ID, err)
			return res, err
		}
		res.LogFiles = append(res.LogFiles, path)
	}
	return res, nil
}

// ApplyAnswer moves rule through Approve or Reject according to the chosen
// option, copying the option's parameters onto the rule first
func ApplyAnswer(rule *preprocessing.PreprocessingRule, q domain.Question, answer domain.Answer) error {
	opt, ok := q.Option(answer.SelectedOption)
	if !ok {
		return fmt.Errorf("%w: question %s has no option %q", core.ErrInvalidInput, q.ID, answer.SelectedOption)
	}
	if opt.RejectsRule {
		return rule.Reject(answer.Rationale)
	}
	if opt.NeedsCustomVal && answer.CustomValue == "" {
		return fmt.Errorf("%w: option %q needs a custom value", core.ErrInvalidInput, opt.Key)
	}
	for k, v := range opt.Parameters {
		if v == "" {
			v = answer.CustomValue
		}
		rule.SetParam(k, v)
	}
	return rule.Approve(answer.Rationale)
}
