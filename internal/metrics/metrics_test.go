package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.StageCompleted(120*time.Millisecond, []string{"MissingValueStrategy", "OutlierHandling", "MissingValueStrategy"})
	r.StageCompleted(80*time.Millisecond, nil)
	r.ConvergenceChecked(0.25)
	r.RuleApplied("WhitespaceNormalization", true)
	r.RuleApplied("WhitespaceNormalization", false)
	r.RuleApplied("WhitespaceNormalization", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stagesRun))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.rulesDiscovered.WithLabelValues("MissingValueStrategy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rulesDiscovered.WithLabelValues("OutlierHandling")))
	assert.Equal(t, 0.25, testutil.ToFloat64(r.changeRate))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ruleApplications.WithLabelValues("WhitespaceNormalization", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ruleApplications.WithLabelValues("WhitespaceNormalization", "failure")))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.ConvergenceChecked(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.changeRate))
}

func TestRecorder_WriteText(t *testing.T) {
	r := NewRecorder()
	r.StageCompleted(time.Second, []string{"CategoryMapping"})

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "ruleminer_stages_run_total 1")
	assert.Contains(t, buf.String(), `ruleminer_rules_discovered_total{type="CategoryMapping"} 1`)
	assert.Contains(t, buf.String(), "ruleminer_stage_duration_seconds_bucket")
}
