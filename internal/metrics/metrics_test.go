package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncSubmission("accepted")
		m.IncMerge("scraped", "update")
		m.IncLedger("verify")
		m.IncRanking("ai")
		m.IncNotifyFailure("report")
		m.IncSweepItem("failed")
		m.ObserveSweep(time.Second)
		m.SetBreakerState("advisor", 2)
	})
}

func TestCountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncSubmission("flagged")
	m.IncSubmission("flagged")
	m.IncMerge("api", "insert")
	m.SetBreakerState("advisor", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("flagged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues("api", "insert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("advisor")))
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncLedger("verify")

	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(NewRouter(reg, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("db down")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ratecatalog_ledger_operations_total{op="verify"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "db down")
}
