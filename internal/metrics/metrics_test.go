package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveIngest(t *testing.T) {
	m := New(nil)
	m.ObserveIngest(KindTicks, 7, 3)
	m.ObserveIngest(KindTicks, 1, 0)
	m.ObserveBatchFailure(KindTicks)

	assert.Equal(t, 8.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues(KindTicks, "inserted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues(KindTicks, "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestBatchFailures.WithLabelValues(KindTicks)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveIngest(KindWeather, 1, 1)
		nilMetrics.ObserveBatchFailure(KindWeather)
		nilMetrics.ObserveBatchDuration(0.1)
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AlertsSent.Inc()

	srv := NewServer(":0", reg, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gaswx_alerts_sent_total 1"))
}
