package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"cuentas/internal/log"
)

// ContextKey type for context keys
type ContextKey string

// RequestIDKey is the context key under which the request ID travels.
const RequestIDKey ContextKey = "request_id"

// Middleware assigns every request an ID, logs start and completion, and
// keeps aggregate request metrics for the metrics endpoint.
type Middleware struct {
	extractIP     func(*http.Request) string
	structured    *log.StructuredLogger
	totalRequests int64
	totalMicros   int64
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // microseconds
}

// NewMiddleware creates the trace middleware. extractIP resolves the client
// address, honoring trusted proxy headers when configured.
func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	return &Middleware{
		extractIP:  extractIP,
		structured: log.NewStructuredLogger(logger.WithComponent(log.ComponentTrace)),
	}
}

// Middleware returns the http.Handler wrapper.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		m.structured.LogHTTPStart(ctx, r, clientIP)
		atomic.AddInt64(&m.totalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.AddInt64(&m.totalMicros, duration.Microseconds())

		m.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter captures the status code written by downstream handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Timestamp fallback when the random source fails.
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from ctx, empty when absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns a consistent snapshot of the counters. The average is
// computed over all completed requests, not the last one.
func (m *Middleware) GetMetrics() Metrics {
	total := atomic.LoadInt64(&m.totalRequests)
	micros := atomic.LoadInt64(&m.totalMicros)
	avg := int64(0)
	if total > 0 {
		avg = micros / total
	}
	return Metrics{
		TotalRequests:       total,
		AverageResponseTime: avg,
	}
}
