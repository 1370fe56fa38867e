package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "ruleminer"

// Recorder collects discovery and application metrics on a private registry
type Recorder struct {
	registry         *prometheus.Registry
	stagesRun        prometheus.Counter
	rulesDiscovered  *prometheus.CounterVec
	ruleApplications *prometheus.CounterVec
	changeRate       prometheus.Gauge
	stageDuration    prometheus.Histogram
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stagesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_run_total",
			Help:      "Discovery stages executed.",
		}),
		rulesDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_discovered_total",
			Help:      "Rules discovered per stage, by rule type.",
		}, []string{"type"}),
		ruleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_applications_total",
			Help:      "Rule applications by rule type and outcome.",
		}, []string{"type", "outcome"}),
		changeRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "convergence_change_rate",
			Help:      "Change rate of the most recent stage-over-stage comparison.",
		}),
		stageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of one discovery stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
	}
	r.registry.MustRegister(r.stagesRun, r.rulesDiscovered, r.ruleApplications, r.changeRate, r.stageDuration)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// StageCompleted records one finished stage
func (r *Recorder) StageCompleted(duration time.Duration, ruleTypes []string) {
	r.stagesRun.Inc()
	r.stageDuration.Observe(duration.Seconds())
	for _, t := range ruleTypes {
		r.rulesDiscovered.WithLabelValues(t).Inc()
	}
}

// ConvergenceChecked records the latest change rate
func (r *Recorder) ConvergenceChecked(changeRate float64) {
	r.changeRate.Set(changeRate)
}

// RuleApplied records the outcome of one rule application
func (r *Recorder) RuleApplied(ruleType string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.ruleApplications.WithLabelValues(ruleType, outcome).Inc()
}

// WriteText dumps every metric family in the Prometheus text format
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
