package logctx

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContextKey string

const RequestIDKey ContextKey = "request_id"

// WithRequestID tags ctx with id, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Logger returns baseLogger annotated with the request ID carried by ctx.
func Logger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return baseLogger.With(zap.String("request_id", id))
	}
	return baseLogger
}
