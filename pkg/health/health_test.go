package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{"index": PingCheck(ok, true), "cache": PingCheck(ok, false)}, StatusUp},
		{"optional down", map[string]Check{"index": PingCheck(ok, true), "cache": PingCheck(fail, false)}, StatusDegraded},
		{"required down", map[string]Check{"index": PingCheck(fail, true), "cache": PingCheck(fail, false)}, StatusDown},
		{"no checks", map[string]Check{}, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Components, len(tt.checks))
		})
	}
}

func TestPingCheckMessage(t *testing.T) {
	got := PingCheck(fail, true)(context.Background())
	assert.Equal(t, StatusDown, got.Status)
	assert.Equal(t, "connection refused", got.Message)
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.Register("cache", PingCheck(fail, false))
	mux := http.NewServeMux()
	c.Mount(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("index", PingCheck(fail, true))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
