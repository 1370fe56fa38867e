package applier

import (
	"context"
	"fmt"
	"time"

	"ruleminer/adapters/datareadiness/coercer"
	"ruleminer/domain/core"
	"ruleminer/domain/dataset"
	"ruleminer/domain/preprocessing"
	"ruleminer/internal/errors"
	"ruleminer/ports"
)

// cancelCheckInterval is how many rows a strategy processes between context checks
const cancelCheckInterval = 256

// outcome is what a strategy reports back to the applier
type outcome struct {
	affected int
	skipped  int
}

// Strategy mutates data in place for one rule and reports the rows it touched
type Strategy func(ctx context.Context, data *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (outcome, error)

// Config controls bulk application
type Config struct {
	ContinueOnFailure bool `json:"continue_on_failure" yaml:"continue_on_failure"`
}

// DefaultConfig continues past failed rules
func DefaultConfig() Config {
	return Config{ContinueOnFailure: true}
}

// RuleRecorder receives per-rule application outcomes
type RuleRecorder interface {
	RuleApplied(ruleType string, success bool)
}

// Applier executes approved rules against a full dataset
type Applier struct {
	config     Config
	coercer    *coercer.TypeCoercer
	strategies map[preprocessing.RuleType]Strategy
	recorder   RuleRecorder
	logger     ports.Logger
}

// NewApplier creates an applier with the built-in strategy for every rule type
func NewApplier(config Config, c *coercer.TypeCoercer, logger ports.Logger) *Applier {
	if c == nil {
		c = coercer.Default
	}
	a := &Applier{
		config:  config,
		coercer: c,
		logger:  logger,
	}
	a.strategies = map[preprocessing.RuleType]Strategy{
		preprocessing.RuleMissingValueStrategy:         a.applyMissing,
		preprocessing.RuleOutlierHandling:              a.applyOutliers,
		preprocessing.RuleWhitespaceNormalization:      a.applyWhitespace,
		preprocessing.RuleCategoryMapping:              a.applyCategoryMapping,
		preprocessing.RuleTypeConversion:               a.applyTypeConversion,
		preprocessing.RuleEncodingNormalization:        a.applyEncoding,
		preprocessing.RuleDateFormatStandardization:    a.applyDateFormat,
		preprocessing.RuleNumericFormatStandardization: a.applyNumericFormat,
		preprocessing.RuleBusinessLogicDecision:        applyBusinessLogic,
	}
	return a
}

// WithRecorder attaches a metrics recorder
func (a *Applier) WithRecorder(r RuleRecorder) *Applier {
	a.recorder = r
	return a
}

// Register replaces or adds the strategy for a rule type
func (a *Applier) Register(ruleType preprocessing.RuleType, s Strategy) {
	a.strategies[ruleType] = s
}

// Unregister removes the strategy for a rule type
func (a *Applier) Unregister(ruleType preprocessing.RuleType) {
	delete(a.strategies, ruleType)
}

// ApplyRule applies one rule to data in place.
// Missing columns and unapproved human-gated rules yield a failure result with
// every row skipped. Strategy errors and panics become failure results.
// Unknown rule types and cancellation are returned as errors.
func (a *Applier) ApplyRule(ctx context.Context, data *dataset.Frame, rule *preprocessing.PreprocessingRule) (preprocessing.RuleApplicationResult, error) {
	if data == nil {
		return preprocessing.RuleApplicationResult{}, errors.InvalidInput(core.ErrNilDataset)
	}
	if rule == nil {
		return preprocessing.RuleApplicationResult{}, errors.InvalidInput(core.NewValidationError("rule", "rule is nil"))
	}
	if err := ctx.Err(); err != nil {
		return preprocessing.RuleApplicationResult{}, err
	}

	result := preprocessing.RuleApplicationResult{RuleID: rule.ID, RuleType: rule.Type}
	fail := func(err error) preprocessing.RuleApplicationResult {
		result.Success = false
		result.RowsAffected = 0
		result.RowsSkipped = data.RowCount()
		result.Error = err.Error()
		a.record(rule, false)
		return result
	}

	if !rule.CanApply() {
		a.logger.Warn("skipping rule %s (%s on %q): not approved", rule.ID, rule.Type, rule.PrimaryColumn())
		return fail(fmt.Errorf("%w: %s", core.ErrRuleNotApproved, rule.ID)), nil
	}
	if len(rule.ColumnNames) == 0 {
		return fail(core.NewValidationError("column_names", "rule targets no column")), nil
	}
	for _, name := range rule.ColumnNames {
		if _, ok := data.Lookup(name); !ok {
			a.logger.Warn("rule %s targets missing column %q", rule.ID, name)
			return fail(core.NewColumnNotFoundError(name)), nil
		}
	}

	strategy, ok := a.strategies[rule.Type]
	if !ok {
		return result, errors.WithCode(errors.CodeUnsupportedRule, core.NewUnsupportedRuleError(string(rule.Type)))
	}

	col, _ := data.Lookup(rule.PrimaryColumn())
	start := time.Now()
	out, err := runStrategy(ctx, strategy, data, col, rule)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		a.logger.Error("rule %s (%s on %q) failed: %v", rule.ID, rule.Type, rule.PrimaryColumn(), err)
		failed := fail(err)
		failed.DurationMs = result.DurationMs
		return failed, nil
	}

	result.Success = true
	result.RowsAffected = out.affected
	result.RowsSkipped = out.skipped
	a.record(rule, true)
	a.logger.Debug("rule %s (%s on %q): %d rows affected, %d skipped",
		rule.ID, rule.Type, rule.PrimaryColumn(), out.affected, out.skipped)
	return result, nil
}

// runStrategy converts a strategy panic into an error
func runStrategy(ctx context.Context, s Strategy, data *dataset.Frame, col *dataset.Column, rule *preprocessing.PreprocessingRule) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s(ctx, data, col, rule)
}

// ApplyRules applies rules in order, reporting progress per rule.
// With ContinueOnFailure unset the batch stops after the first failed rule.
func (a *Applier) ApplyRules(ctx context.Context, data *dataset.Frame, rules []*preprocessing.PreprocessingRule, progress ports.RuleProgressFunc) (preprocessing.BulkApplicationResult, error) {
	bulk := preprocessing.BulkApplicationResult{TotalRules: len(rules)}
	if data == nil {
		return bulk, errors.InvalidInput(core.ErrNilDataset)
	}
	start := time.Now()

	for i, rule := range rules {
		if err := ctx.Err(); err != nil {
			return bulk, err
		}
		if progress != nil {
			progress(i, len(rules), fmt.Sprintf("applying %s to %q", rule.Type, rule.PrimaryColumn()))
		}

		result, err := a.ApplyRule(ctx, data, rule)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return bulk, ctxErr
			}
			result = preprocessing.RuleApplicationResult{
				RuleID:      rule.ID,
				RuleType:    rule.Type,
				RowsSkipped: data.RowCount(),
				Error:       err.Error(),
			}
			a.record(rule, false)
		}

		bulk.Results = append(bulk.Results, result)
		if result.Success {
			bulk.SuccessCount++
		} else {
			bulk.FailureCount++
			if !a.config.ContinueOnFailure {
				bulk.Stopped = true
				break
			}
		}
	}

	bulk.TotalDurationMs = time.Since(start).Milliseconds()
	if progress != nil {
		progress(len(bulk.Results), len(rules), fmt.Sprintf("%d succeeded, %d failed", bulk.SuccessCount, bulk.FailureCount))
	}
	a.logger.Info("applied %d of %d rules: %d succeeded, %d failed",
		len(bulk.Results), len(rules), bulk.SuccessCount, bulk.FailureCount)
	return bulk, nil
}

func (a *Applier) record(rule *preprocessing.PreprocessingRule, success bool) {
	if a.recorder != nil {
		a.recorder.RuleApplied(string(rule.Type), success)
	}
}

func checkCancel(ctx context.Context, row int) error {
	if row%cancelCheckInterval == 0 {
		return ctx.Err()
	}
	return nil
}
