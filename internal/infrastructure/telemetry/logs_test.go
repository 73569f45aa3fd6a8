package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func newRecordingLoggerProvider(t *testing.T) (*LoggerProvider, *recordingExporter) {
	t.Helper()
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return newLoggerProviderFrom(provider, LogsConfig{Enabled: true, ServiceName: "purchasing-test"}), exporter
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestNewZapOTELCore_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, nil)
	require.NoError(t, err)

	assert.False(t, NewZapOTELCore(nil, "svc", zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.False(t, NewZapOTELCore(lp, "svc", zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))

	logger := zap.New(core).With(zap.String("saga", "purchase"))
	logger.Info("dropped")
	logger.Warn("Payment record failed")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Payment record failed", entry.Message)
	assert.Equal(t, "purchase", entry.ContextMap()["saga"])
}

func TestTeeLogger(t *testing.T) {
	t.Run("returns base logger when export is off", func(t *testing.T) {
		base := zap.NewNop()
		assert.Same(t, base, TeeLogger(base, nil, "svc"))
	})

	t.Run("writes to both cores", func(t *testing.T) {
		lp, exporter := newRecordingLoggerProvider(t)
		baseCore, baseLogs := observer.New(zapcore.InfoLevel)
		logger := TeeLogger(zap.New(baseCore), lp, "purchasing-test")

		logger.Debug("below level")
		logger.Error("Orphan purchase order header left behind")

		assert.Equal(t, 1, baseLogs.Len())
		assert.Equal(t, []string{"Orphan purchase order header left behind"}, exporter.bodies())
	})
}

func TestZapOTELCore_SeverityMapping(t *testing.T) {
	lp, exporter := newRecordingLoggerProvider(t)
	logger := zap.New(NewZapOTELCore(lp, "purchasing-test", zapcore.InfoLevel))

	logger.Warn("warn entry")

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	require.Len(t, exporter.records, 1)
	assert.Equal(t, otellog.SeverityWarn, exporter.records[0].Severity())
}
