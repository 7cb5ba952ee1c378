package logctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))

	generated := RequestID(WithRequestID(context.Background(), ""))
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)

	assert.Empty(t, RequestID(context.Background()))
}

func TestLoggerCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	Logger(WithRequestID(context.Background(), "req-7"), base).Info("hello")
	Logger(context.Background(), base).Info("bare")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
