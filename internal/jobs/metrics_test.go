package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("digest").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("digest").End(boom), boom)

	body := scrape(t, reg)
	assert.Contains(t, body, `fms_jobs_total{job="digest",status="success"} 1`)
	assert.Contains(t, body, `fms_jobs_total{job="digest",status="failure"} 1`)
	assert.Contains(t, body, `fms_jobs_failures_total{job="digest"} 1`)
}

func TestSessionEventsAndPendingGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddSessionEvent("login")
	m.AddSessionEvent("login")
	m.AddSessionEvent("")
	m.SetPendingRegistrations(4)

	body := scrape(t, reg)
	assert.Contains(t, body, `fms_session_events_total{kind="login"} 2`)
	assert.Contains(t, body, "fms_pending_registrations 4")
	assert.False(t, strings.Contains(body, `kind=""`))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.AddSessionEvent("logout")
	m.SetPendingRegistrations(1)
	assert.NoError(t, m.Track("x").End(nil))
}
