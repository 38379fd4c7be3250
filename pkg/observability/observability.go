package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/quantforge/matchcore/internal/config"
)

// Provider bundles the logger (and, once Start is called, nothing
// further — tracing and metrics are owned separately by TracingProvider
// and MetricsProvider so each can be wired or skipped independently).
type Provider struct {
	Logger *Logger
	info   ProviderInfo
}

// ProviderInfo identifies the running process for logs and health
// responses.
type ProviderInfo struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
	LogFormat      string
}

// NewProvider builds a Provider from ProviderInfo, defaulting any unset
// field.
func NewProvider(info ProviderInfo) *Provider {
	if info.ServiceName == "" {
		info.ServiceName = "matchcore"
	}
	if info.ServiceVersion == "" {
		info.ServiceVersion = "dev"
	}
	if info.Environment == "" {
		info.Environment = "development"
	}
	if info.LogLevel == "" {
		info.LogLevel = "info"
	}
	if info.LogFormat == "" {
		info.LogFormat = "json"
	}

	logger := NewLogger(config.ObservabilityConfig{
		ServiceName: info.ServiceName,
		LogLevel:    info.LogLevel,
		LogFormat:   info.LogFormat,
	})

	return &Provider{Logger: logger, info: info}
}

func (p *Provider) Start(ctx context.Context) error {
	p.Logger.Info(ctx, "observability provider started", map[string]interface{}{
		"service":     p.info.ServiceName,
		"version":     p.info.ServiceVersion,
		"environment": p.info.Environment,
	})
	return nil
}

func (p *Provider) Stop(ctx context.Context) error {
	p.Logger.Info(ctx, "observability provider stopped")
	return nil
}

// HTTPMiddleware returns a plain net/http middleware that logs request
// method/path/status/duration, for use on the admin (gorilla/mux)
// router where the gin observability middleware doesn't apply.
func (p *Provider) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = generateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
			r = r.WithContext(ctx)

			wrapped := &simpleResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			p.Logger.Info(ctx, "http request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  requestID,
			})
		})
	}
}

type requestIDKey struct{}

type simpleResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *simpleResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// DefaultProviderInfo builds a ProviderInfo from environment variables,
// for callers that want env-driven defaults without going through the
// full Config loader.
func DefaultProviderInfo() ProviderInfo {
	return ProviderInfo{
		ServiceName:    getEnv("SERVICE_NAME", "matchcore"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Note: Logger lives in logging.go, TracingProvider in tracing.go,
// MetricsProvider in metrics.go.
