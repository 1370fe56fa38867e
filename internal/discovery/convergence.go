package discovery

import (
	"fmt"
	"math"

	"ruleminer/domain/core"
	"ruleminer/domain/preprocessing"
)

// Convergence defaults
const (
	DefaultConvergenceThreshold = 0.02
	DefaultModifiedEpsilon      = 0.05
)

// ConvergenceDetector compares successive stage rule sets by signature
type ConvergenceDetector struct {
	epsilon float64
}

// NewConvergenceDetector creates a detector; epsilon is the confidence or
// coverage change beyond which a stable signature counts as modified
func NewConvergenceDetector(epsilon float64) *ConvergenceDetector {
	if epsilon <= 0 {
		epsilon = DefaultModifiedEpsilon
	}
	return &ConvergenceDetector{epsilon: epsilon}
}

// HasConverged reports whether the change rate is within threshold
func (d *ConvergenceDetector) HasConverged(previous, current []*preprocessing.PreprocessingRule, threshold float64) bool {
	return d.Info(previous, current, threshold).HasConverged
}

// Info classifies every signature as new, modified, removed or stable.
// Two empty lists are not converged: there is no evidence yet.
func (d *ConvergenceDetector) Info(previous, current []*preprocessing.PreprocessingRule, threshold float64) preprocessing.ConvergenceInfo {
	prev := indexBySignature(previous)
	curr := indexBySignature(current)

	info := preprocessing.ConvergenceInfo{
		TotalRules:    len(curr),
		PreviousRules: len(prev),
	}
	for sig, c := range curr {
		p, ok := prev[sig]
		switch {
		case !ok:
			info.NewRules++
		case d.modified(p, c):
			info.ModifiedRules++
		default:
			info.StableRules++
		}
	}
	for sig := range prev {
		if _, ok := curr[sig]; !ok {
			info.RemovedRules++
		}
	}

	changes := info.NewRules + info.ModifiedRules + info.RemovedRules
	info.ChangeRate = float64(changes) / float64(max(1, info.PreviousRules))

	switch {
	case len(prev) == 0 && len(curr) == 0:
		info.HasConverged = false
		info.Status = "no rules discovered yet"
	case info.ChangeRate <= threshold:
		info.HasConverged = true
		info.Status = fmt.Sprintf("converged: %d stable rules, change rate %.1f%%", info.StableRules, info.ChangeRate*100)
	default:
		info.Status = fmt.Sprintf("changing: %d new, %d modified, %d removed (%.1f%% > %.1f%%)",
			info.NewRules, info.ModifiedRules, info.RemovedRules, info.ChangeRate*100, threshold*100)
	}
	return info
}

// modified compares confidence and, when both rules were scored, coverage
func (d *ConvergenceDetector) modified(previous, current *preprocessing.PreprocessingRule) bool {
	if math.Abs(previous.Confidence-current.Confidence) > d.epsilon {
		return true
	}
	if previous.Score != nil && current.Score != nil {
		return math.Abs(previous.Score.Coverage-current.Score.Coverage) > d.epsilon
	}
	return false
}

// indexBySignature keys rules by signature; the first occurrence of a duplicate wins
func indexBySignature(rules []*preprocessing.PreprocessingRule) map[core.Signature]*preprocessing.PreprocessingRule {
	out := make(map[core.Signature]*preprocessing.PreprocessingRule, len(rules))
	for _, r := range rules {
		sig := r.Signature()
		if _, ok := out[sig]; !ok {
			out[sig] = r
		}
	}
	return out
}
