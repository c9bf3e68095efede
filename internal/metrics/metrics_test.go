package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The collectors register on the default registry, so a single promhttp
// handler scrape must show every counter either binary increments.
func TestCountersObservableViaScrape(t *testing.T) {
	m := New()
	m.AlertsRaised.Inc()
	m.CodesIssued.Inc()
	m.SessionsCreated.Inc()
	m.LoginFailures.Inc()
	m.SubmissionsTotal.WithLabelValues("present").Inc()

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"geoattend_alerts_raised_total 1",
		"geoattend_codes_issued_total 1",
		"geoattend_sessions_created_total 1",
		"geoattend_login_failures_total 1",
		`geoattend_submissions_total{outcome="present"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
