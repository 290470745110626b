package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	rec.Observe(context.Background(), "create_invoice", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "create_invoice", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "create_invoice", false, 5*time.Millisecond)

	assert.Equal(t, 2.0, promtest.ToFloat64(rec.operations.WithLabelValues("create_invoice", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(rec.operations.WithLabelValues("create_invoice", "error")))
	assert.Equal(t, 1, promtest.CollectAndCount(rec.durations))
}

func TestNewRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)
	_, err = NewRecorder(reg)
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)
	rec.Observe(context.Background(), "load_all", true, time.Millisecond)

	healthy := true
	router := NewRouter(reg, func(context.Context) error {
		if !healthy {
			return errors.New("store unreachable")
		}
		return nil
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `sitebook_ledger_operations_total{op="load_all",result="success"} 1`))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	healthy = false
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "store unreachable")
}
