package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GatewayMiddleware provides request tracing, metrics, and structured
// logging for the gin command surface.
type GatewayMiddleware struct {
	tracer         trace.Tracer
	metrics        *MetricsProvider
	logger         *Logger
	performanceLog *PerformanceLogger
	serviceName    string
	slowThreshold  time.Duration
}

// MiddlewareConfig contains configuration for GatewayMiddleware.
type MiddlewareConfig struct {
	ServiceName   string
	SlowThreshold time.Duration
}

// NewGatewayMiddleware creates a new GatewayMiddleware.
func NewGatewayMiddleware(metrics *MetricsProvider, logger *Logger, cfg MiddlewareConfig) *GatewayMiddleware {
	tracer := otel.Tracer(cfg.ServiceName)

	slowThreshold := cfg.SlowThreshold
	if slowThreshold == 0 {
		slowThreshold = 50 * time.Millisecond
	}

	return &GatewayMiddleware{
		tracer:         tracer,
		metrics:        metrics,
		logger:         logger,
		performanceLog: NewPerformanceLogger(logger),
		serviceName:    cfg.ServiceName,
		slowThreshold:  slowThreshold,
	}
}

// GinMiddleware returns a gin.HandlerFunc that traces, measures, and
// logs every command.
func (gm *GatewayMiddleware) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		spanName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx, span := gm.tracer.Start(ctx, spanName)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.String("request.id", requestID),
			attribute.String("service.name", gm.serviceName),
		)

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Float64("http.duration_ms", float64(duration.Nanoseconds())/1e6),
		)
		if statusCode >= 400 {
			span.SetAttributes(attribute.Bool("error", true))
			if statusCode >= 500 {
				span.RecordError(fmt.Errorf("HTTP %d", statusCode))
			}
		}

		if gm.metrics != nil {
			gm.metrics.RecordHTTPRequest(ctx, c.Request.Method, c.FullPath(), strconv.Itoa(statusCode), duration)
		}

		logFields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"request_id":  requestID,
		}
		if statusCode >= 400 {
			gm.logger.Warn(ctx, "gateway request completed with error", logFields)
		} else {
			gm.logger.Info(ctx, "gateway request completed", logFields)
		}

		if duration > gm.slowThreshold {
			gm.performanceLog.LogSlowOperation(ctx, spanName, duration, gm.slowThreshold, logFields)
		}
	}
}

// TraceMiddleware provides basic tracing without metrics or logging.
func TraceMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		spanName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		ctx, span := tracer.Start(ctx, spanName)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.String("service.name", serviceName),
		)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		if c.Writer.Status() >= 500 {
			span.RecordError(fmt.Errorf("HTTP %d", c.Writer.Status()))
		}
	}
}

// MetricsMiddleware provides bare HTTP request metrics collection,
// usable standalone on routers that don't need GatewayMiddleware's
// tracing and logging.
func MetricsMiddleware(metrics *MetricsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if metrics != nil {
			duration := time.Since(start)
			metrics.RecordHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), duration)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and
// response size, for plain net/http handlers outside gin.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(data)
	rw.size += size
	return size, err
}
