package agent

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yaroslav/nnctl/internal/logging"
	"github.com/yaroslav/nnctl/internal/metrics"
)

const (
	ctxLogger    = "logger"
	ctxRequestID = "request_id"

	headerRequestID = "X-Request-ID"
)

// RequestLogger tags each request with an id (the caller's X-Request-ID when
// present) and a scoped logger, then logs the outcome. The logger is also put
// on the request context so orchestrator logs carry the request id.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		reqLogger := logger.With(
			zap.String(logging.FieldRequestID, requestID),
			zap.String(logging.FieldMethod, c.Request.Method),
			zap.String(logging.FieldPath, c.Request.URL.Path),
			zap.String(logging.FieldRemoteAddr, c.ClientIP()),
		)
		c.Set(ctxLogger, reqLogger)
		c.Set(ctxRequestID, requestID)
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), reqLogger))

		began := time.Now()
		c.Next()

		code := c.Writer.Status()
		fields := []zap.Field{
			zap.Int(logging.FieldStatusCode, code),
			zap.Int64(logging.FieldDuration, time.Since(began).Milliseconds()),
		}
		if errs := c.Errors.String(); errs != "" {
			fields = append(fields, zap.String(logging.FieldError, errs))
		}

		level := zapcore.InfoLevel
		if code >= 500 {
			level = zapcore.ErrorLevel
		} else if code >= 400 {
			level = zapcore.WarnLevel
		}
		reqLogger.Check(level, "agent request served").Write(fields...)
	}
}

// Metrics records request counts and latency.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func getLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ctxLogger).(*zap.Logger); ok {
		return l
	}
	return logging.FromContext(c.Request.Context())
}

func getRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
