package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/matchcore/internal/config"
)

func newTestPerformanceMonitor(t *testing.T) *PerformanceMonitor {
	logger := NewLogger(config.ObservabilityConfig{ServiceName: "matchcore-test", LogLevel: "error"})
	pm := NewPerformanceMonitor(logger)
	t.Cleanup(pm.Stop)
	return pm
}

func TestPerformanceMonitor_RecordCommand_TracksCountAndResponseTime(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	pm.RecordCommand(&CommandMetrics{Operation: "submit_limit", StatusCode: 200, Duration: 5 * time.Millisecond})
	pm.RecordCommand(&CommandMetrics{Operation: "submit_limit", StatusCode: 200, Duration: 15 * time.Millisecond})

	metrics := pm.GetMetrics()
	assert.EqualValues(t, 2, metrics.CommandCount)
	assert.True(t, metrics.ResponseTime > 0)
}

func TestPerformanceMonitor_RecordCommand_TracksErrorRate(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	pm.RecordCommand(&CommandMetrics{Operation: "submit_limit", StatusCode: 400, Duration: time.Millisecond})

	metrics := pm.GetMetrics()
	assert.Equal(t, 1.0, metrics.ErrorRate)
}

func TestPerformanceMonitor_GetHealthStatus_FlagsHighResponseTime(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	pm.RecordCommand(&CommandMetrics{Operation: "submit_limit", StatusCode: 200, Duration: time.Second})

	status := pm.GetHealthStatus()
	assert.Equal(t, "warning", status["status"])
	assert.Contains(t, status["issues"], "high_response_time")
}

func TestPerformanceMonitor_GetHealthStatus_HealthyWithNoCommands(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	status := pm.GetHealthStatus()
	assert.Equal(t, "healthy", status["status"])
}

func TestPerformanceMonitor_Handler_ServesHealthStatusAsJSON(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	req := httptest.NewRequest("GET", "/performance", nil)
	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status"`)
}

func TestPerformanceMonitor_SetCustomMetric_IsReflectedInSnapshot(t *testing.T) {
	pm := newTestPerformanceMonitor(t)

	pm.SetCustomMetric("book_count", 3)

	metrics := pm.GetMetrics()
	assert.Equal(t, 3, metrics.CustomMetrics["book_count"])
}
