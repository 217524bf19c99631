package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one relay session or
// HTTP request.
type LogContext struct {
	SessionID string    // wrapper session id (hex)
	ClientIP  string    // peer IP without port
	FrameKind string    // current frame kind
	Brand     string    // analyzed card scheme
	Strategy  string    // selected strategy row
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context carrying the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a session from the given peer IP.
func NewLogContext(sessionID, clientIP string) *LogContext {
	return &LogContext{
		SessionID: sessionID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}
