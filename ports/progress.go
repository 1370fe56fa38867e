package ports

// ProgressFunc receives a monotonic fraction in [0, 1]
type ProgressFunc func(fraction float64)

// RuleProgressFunc receives per-rule progress during bulk application
type RuleProgressFunc func(index, total int, message string)
