package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.AlarmReceived("ALARM")
	m.AlarmReceived("ALARM")
	m.AlarmReceived("OK")
	m.AdmissionDecided(true)
	m.AdmissionDecided(false)
	m.InvestigationFinished("COMPLETED", 42.5)
	m.ToolExecuted(true)
	m.ToolExecuted(false)
	m.ModelRetried()
	m.ReportWritten(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.alarmsReceived.WithLabelValues("ALARM")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.alarmsReceived.WithLabelValues("OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.admissions.WithLabelValues("admitted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.admissions.WithLabelValues("duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.investigations.WithLabelValues("COMPLETED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.toolExecutions.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.toolExecutions.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.modelRetries))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.InvestigationFinished("FAILED", 3.0)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "triage_investigations_total")
	assert.Contains(t, body, `status="FAILED"`)
	assert.Contains(t, body, "triage_investigation_duration_seconds")
}
