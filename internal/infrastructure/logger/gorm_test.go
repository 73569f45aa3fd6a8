package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		opts      []GormLoggerOption
		begin     time.Time
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{
			name: "error", level: gormlogger.Error, begin: time.Now(),
			err: errors.New("duplicate key"), wantMsg: "SQL error", wantLevel: zapcore.ErrorLevel,
		},
		{
			name: "slow query", level: gormlogger.Warn, begin: time.Now().Add(-time.Second),
			opts: []GormLoggerOption{WithSlowThreshold(time.Millisecond)}, wantMsg: "Slow SQL", wantLevel: zapcore.WarnLevel,
		},
		{
			name: "normal query at info", level: gormlogger.Info, begin: time.Now(),
			wantMsg: "SQL query", wantLevel: zapcore.DebugLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			l := NewGormLogger(zap.New(core), tt.level, tt.opts...)

			l.Trace(context.Background(), tt.begin, sqlFunc("SELECT 1", 1), tt.err)

			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "gorm", entry.LoggerName)
		})
	}
}

func TestGormLogger_TraceSuppressed(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	NewGormLogger(zap.New(core), gormlogger.Silent).
		Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 1), errors.New("boom"))
	NewGormLogger(zap.New(core), gormlogger.Error).
		Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(0)).
		Trace(context.Background(), time.Now().Add(-time.Hour), sqlFunc("SELECT 1", 1), nil)

	assert.Zero(t, recorded.Len())
}

func TestGormLogger_TraceCarriesRequestFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Info)

	ctx := WithIdentity(WithRequestID(context.Background(), "req-1"), "tenant-1", "", "")
	l.Trace(ctx, time.Now(), sqlFunc("SELECT 1", 1), nil)

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "tenant-1", fields["tenant_id"])
}

func TestGormLogger_LogMode(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	base := NewGormLogger(zap.New(core), gormlogger.Silent)

	loud := base.LogMode(gormlogger.Info)
	loud.Info(context.Background(), "migrated %d tables", 3)
	base.Info(context.Background(), "hidden")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "migrated 3 tables", recorded.All()[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
