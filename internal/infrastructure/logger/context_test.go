package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestIdentityValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), "01HZX")
	ctx = WithIdentity(ctx, "tenant-1", "", "user-1")

	assert.Equal(t, "01HZX", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Empty(t, GetBranchID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestContextLogger_Enriches(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = WithRequestID(ctx, "req-9")
	ctx = WithIdentity(ctx, "tenant-1", "branch-1", "user-1")

	WithLogger(ctx, zap.New(core)).With(zap.String("component", "test")).Info("hello")

	require.Equal(t, 1, recorded.Len())
	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "test", fields["component"])
	assert.NotContains(t, fields, "tenant_id")
}

func TestContextLogger_PlainContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	L(ctx).Warn("plain")
	L(ctx).Debug("debug")
	L(ctx).Error("error")

	require.Equal(t, 3, recorded.Len())
	assert.Empty(t, recorded.All()[0].Context)
	assert.NotNil(t, L(ctx).Zap())
}

func TestContextLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		WithLogger(context.Background(), nil).Info("dropped")
	})
}
