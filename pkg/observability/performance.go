package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// PerformanceMonitor tracks system and gateway-command performance
// metrics on a fixed collection interval, independent of the
// OpenTelemetry metrics pipeline (MetricsProvider) which is
// push-on-event rather than polled.
type PerformanceMonitor struct {
	logger   *Logger
	metrics  *PerformanceMetrics
	config   *PerformanceConfig
	stopChan chan struct{}
}

// PerformanceMetrics contains performance data.
type PerformanceMetrics struct {
	CPUUsage       float64
	MemoryUsage    int64
	GoroutineCount int
	GCStats        debug.GCStats

	CommandCount  int64
	ResponseTime  time.Duration
	ErrorRate     float64
	ThroughputRPS float64

	CustomMetrics map[string]interface{}

	LastUpdated time.Time
	mu          sync.RWMutex
}

// PerformanceConfig contains monitoring configuration.
type PerformanceConfig struct {
	CollectionInterval time.Duration
	AlertThresholds     *AlertThresholds
}

// AlertThresholds defines performance alert thresholds.
type AlertThresholds struct {
	CPUUsageThreshold     float64
	MemoryUsageThreshold  int64
	ResponseTimeThreshold time.Duration
	ErrorRateThreshold    float64
	GoroutineThreshold    int
}

// CommandMetrics tracks individual gateway command performance.
type CommandMetrics struct {
	Operation  string
	StatusCode int
	Duration   time.Duration
	Timestamp  time.Time
}

// NewPerformanceMonitor creates a new performance monitor and starts its
// background collection loop. Callers must call Stop to release it.
func NewPerformanceMonitor(logger *Logger) *PerformanceMonitor {
	config := &PerformanceConfig{
		CollectionInterval: 30 * time.Second,
		AlertThresholds: &AlertThresholds{
			CPUUsageThreshold:     80.0,
			MemoryUsageThreshold:  1024 * 1024 * 1024,
			ResponseTimeThreshold: 10 * time.Millisecond,
			ErrorRateThreshold:    5.0,
			GoroutineThreshold:    10000,
		},
	}

	pm := &PerformanceMonitor{
		logger:   logger,
		metrics:  &PerformanceMetrics{CustomMetrics: make(map[string]interface{})},
		config:   config,
		stopChan: make(chan struct{}),
	}

	go pm.startMonitoring()

	return pm
}

func (pm *PerformanceMonitor) startMonitoring() {
	ticker := time.NewTicker(pm.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.collectMetrics()
		case <-pm.stopChan:
			return
		}
	}
}

func (pm *PerformanceMonitor) collectMetrics() {
	ctx := context.Background()

	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.collectSystemMetrics()
	pm.metrics.LastUpdated = time.Now()
	pm.checkAlertThresholds(ctx)

	pm.logger.Debug(ctx, "performance metrics collected", map[string]interface{}{
		"cpu_usage":       pm.metrics.CPUUsage,
		"memory_usage":    pm.metrics.MemoryUsage,
		"goroutine_count": pm.metrics.GoroutineCount,
		"response_time":   pm.metrics.ResponseTime,
		"error_rate":      pm.metrics.ErrorRate,
	})
}

func (pm *PerformanceMonitor) collectSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	pm.metrics.MemoryUsage = int64(memStats.Alloc)
	pm.metrics.GoroutineCount = runtime.NumGoroutine()
	debug.ReadGCStats(&pm.metrics.GCStats)
	pm.metrics.CPUUsage = pm.estimateCPUUsage()
}

// estimateCPUUsage provides a coarse estimate from goroutine count; a
// real deployment should read cgroup/os CPU accounting instead.
func (pm *PerformanceMonitor) estimateCPUUsage() float64 {
	goroutines := float64(pm.metrics.GoroutineCount)
	if goroutines > 1000 {
		return 50.0 + (goroutines-1000)/100
	}
	return goroutines / 20
}

// RecordCommand records metrics for a gateway command.
func (pm *PerformanceMonitor) RecordCommand(m *CommandMetrics) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.CommandCount++

	if pm.metrics.ResponseTime == 0 {
		pm.metrics.ResponseTime = m.Duration
	} else {
		const alpha = 0.1
		pm.metrics.ResponseTime = time.Duration(
			float64(pm.metrics.ResponseTime)*(1-alpha) + float64(m.Duration)*alpha,
		)
	}

	const alpha = 0.1
	if m.StatusCode >= 400 {
		if pm.metrics.ErrorRate == 0 {
			pm.metrics.ErrorRate = 1.0
		} else {
			pm.metrics.ErrorRate = pm.metrics.ErrorRate*(1-alpha) + alpha
		}
	} else {
		pm.metrics.ErrorRate = pm.metrics.ErrorRate * (1 - alpha)
	}

	pm.updateThroughput()
}

func (pm *PerformanceMonitor) updateThroughput() {
	elapsed := time.Since(pm.metrics.LastUpdated)
	if elapsed > 0 {
		pm.metrics.ThroughputRPS = float64(pm.metrics.CommandCount) / elapsed.Seconds()
	}
}

// SetCustomMetric sets a custom performance metric.
func (pm *PerformanceMonitor) SetCustomMetric(key string, value interface{}) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()
	pm.metrics.CustomMetrics[key] = value
}

func (pm *PerformanceMonitor) checkAlertThresholds(ctx context.Context) {
	thresholds := pm.config.AlertThresholds

	if pm.metrics.CPUUsage > thresholds.CPUUsageThreshold {
		pm.logger.Warn(ctx, "high CPU usage detected", map[string]interface{}{
			"current_usage": pm.metrics.CPUUsage,
			"threshold":     thresholds.CPUUsageThreshold,
		})
	}

	if pm.metrics.MemoryUsage > thresholds.MemoryUsageThreshold {
		pm.logger.Warn(ctx, "high memory usage detected", map[string]interface{}{
			"current_usage": pm.metrics.MemoryUsage,
			"threshold":     thresholds.MemoryUsageThreshold,
		})
	}

	if pm.metrics.ResponseTime > thresholds.ResponseTimeThreshold {
		pm.logger.Warn(ctx, "high response time detected", map[string]interface{}{
			"current_time": pm.metrics.ResponseTime,
			"threshold":    thresholds.ResponseTimeThreshold,
		})
	}

	if pm.metrics.ErrorRate > thresholds.ErrorRateThreshold {
		pm.logger.Warn(ctx, "high error rate detected", map[string]interface{}{
			"current_rate": pm.metrics.ErrorRate,
			"threshold":    thresholds.ErrorRateThreshold,
		})
	}

	if pm.metrics.GoroutineCount > thresholds.GoroutineThreshold {
		pm.logger.Warn(ctx, "high goroutine count detected", map[string]interface{}{
			"current_count": pm.metrics.GoroutineCount,
			"threshold":     thresholds.GoroutineThreshold,
		})
	}
}

// GetMetrics returns a snapshot of current performance metrics.
func (pm *PerformanceMonitor) GetMetrics() *PerformanceMetrics {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	customMetrics := make(map[string]interface{}, len(pm.metrics.CustomMetrics))
	for k, v := range pm.metrics.CustomMetrics {
		customMetrics[k] = v
	}

	return &PerformanceMetrics{
		CPUUsage:       pm.metrics.CPUUsage,
		MemoryUsage:    pm.metrics.MemoryUsage,
		GoroutineCount: pm.metrics.GoroutineCount,
		GCStats:        pm.metrics.GCStats,
		CommandCount:   pm.metrics.CommandCount,
		ResponseTime:   pm.metrics.ResponseTime,
		ErrorRate:      pm.metrics.ErrorRate,
		ThroughputRPS:  pm.metrics.ThroughputRPS,
		CustomMetrics:  customMetrics,
		LastUpdated:    pm.metrics.LastUpdated,
	}
}

// Stop stops the performance monitoring loop.
func (pm *PerformanceMonitor) Stop() {
	close(pm.stopChan)
}

// Handler serves GetHealthStatus as JSON, for mounting on the admin mux
// router alongside HealthServer's own routes.
func (pm *PerformanceMonitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pm.GetHealthStatus())
	})
}

// GetHealthStatus returns an overall system health summary derived from
// the collected metrics.
func (pm *PerformanceMonitor) GetHealthStatus() map[string]interface{} {
	metrics := pm.GetMetrics()
	thresholds := pm.config.AlertThresholds

	status := "healthy"
	issues := []string{}

	if metrics.CPUUsage > thresholds.CPUUsageThreshold {
		status = "warning"
		issues = append(issues, "high_cpu_usage")
	}
	if metrics.MemoryUsage > thresholds.MemoryUsageThreshold {
		status = "warning"
		issues = append(issues, "high_memory_usage")
	}
	if metrics.ResponseTime > thresholds.ResponseTimeThreshold {
		status = "warning"
		issues = append(issues, "high_response_time")
	}
	if metrics.ErrorRate > thresholds.ErrorRateThreshold {
		status = "critical"
		issues = append(issues, "high_error_rate")
	}

	return map[string]interface{}{
		"status":          status,
		"issues":          issues,
		"cpu_usage":       metrics.CPUUsage,
		"memory_usage":    metrics.MemoryUsage,
		"goroutine_count": metrics.GoroutineCount,
		"response_time":   metrics.ResponseTime,
		"error_rate":      metrics.ErrorRate,
		"throughput_rps":  metrics.ThroughputRPS,
		"last_updated":    metrics.LastUpdated,
	}
}
