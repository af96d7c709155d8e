package context

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	idCCPKey         contextKey = "id_ccp"
)

// CorrelationHeader carries the correlation id on inbound and PAC requests.
const CorrelationHeader = "X-Correlation-ID"

// WithCorrelationID adds a correlation ID to the context. It follows one
// request from the HTTP handler through every PAC call it triggers.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID returns the correlation ID in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns ctx unchanged when it already carries an id,
// otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// WithIDCCP tags ctx with the Carta Porte complement being processed.
func WithIDCCP(ctx context.Context, idCCP string) context.Context {
	return context.WithValue(ctx, idCCPKey, idCCP)
}

// IDCCP returns the complement id in ctx, or "".
func IDCCP(ctx context.Context) string {
	if id, ok := ctx.Value(idCCPKey).(string); ok {
		return id
	}
	return ""
}

// LogAttrs returns the request-scoped slog attributes present in ctx.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, "correlation_id", id)
	}
	if id := IDCCP(ctx); id != "" {
		attrs = append(attrs, "id_ccp", id)
	}
	return attrs
}
