package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{" fatal ", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("stdout and stderr", func(t *testing.T) {
		for _, out := range []string{"stdout", "stderr", ""} {
			l, err := New(&Config{Level: "info", Format: "json", Output: out})
			require.NoError(t, err)
			assert.NotNil(t, l)
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labelsync.log")
		l, err := New(&Config{Level: "info", Format: "json", Output: path})
		require.NoError(t, err)
		l.Info("written")
		Sync(l)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"written"`)
	})

	t.Run("unopenable file is an error", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
		assert.Error(t, err)
	})
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "warn", Format: "json", Service: "labelsync"}, &buf)

	l.Info("dropped")
	l.Warn("kept", zap.String("store", "0001"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "labelsync", entry["service"])
	assert.Equal(t, "0001", entry["store"])
}

func TestForEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		l, err := ForEnvironment(env)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	t.Run("missing logger yields no-op", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
		assert.Empty(t, GetRunID(context.Background()))
		assert.Empty(t, GetStore(context.Background()))
	})

	t.Run("run and store are carried together", func(t *testing.T) {
		ctx, _ := WithRunID(context.Background(), base, "run-1")
		ctx, l := WithStore(ctx, FromContext(ctx), "0001")

		assert.Equal(t, "run-1", GetRunID(ctx))
		assert.Equal(t, "0001", GetStore(ctx))

		l.Info("hello")
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "0001", fields["store"])
	})
}

func TestGormLogger(t *testing.T) {
	newLogger := func(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
		core, logs := observer.New(zapcore.DebugLevel)
		return NewGormLogger(zap.New(core), level, opts...), logs
	}
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, logs := newLogger(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), stmt, errors.New("boom"))
		assert.Zero(t, logs.Len())
	})

	t.Run("errors carry run context", func(t *testing.T) {
		gl, logs := newLogger(gormlogger.Error)
		ctx, _ := WithRunID(context.Background(), zap.NewNop(), "run-7")

		gl.Trace(ctx, time.Now(), stmt, errors.New("boom"))
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL error", entries[0].Message)
		assert.Equal(t, "run-7", entries[0].ContextMap()["run_id"])
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gl, logs := newLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), stmt, gormlogger.ErrRecordNotFound)
		assert.Zero(t, logs.Len())
	})

	t.Run("slow statements warn", func(t *testing.T) {
		gl, logs := newLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("info level logs every statement at debug", func(t *testing.T) {
		gl, logs := newLogger(gormlogger.Info, WithSlowThreshold(0))
		gl.Trace(context.Background(), time.Now(), stmt, nil)
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	})

	t.Run("LogMode returns a copy", func(t *testing.T) {
		gl, _ := newLogger(gormlogger.Warn)
		other := gl.LogMode(gormlogger.Silent).(*GormLogger)
		assert.Equal(t, gormlogger.Warn, gl.level)
		assert.Equal(t, gormlogger.Silent, other.level)
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func() (*gin.Engine, *observer.ObservedLogs) {
		core, logs := observer.New(zapcore.InfoLevel)
		l := zap.New(core)
		r := gin.New()
		r.Use(GinMiddleware(l), Recovery(l))
		r.GET("/ok", func(c *gin.Context) {
			GetGinLogger(c, nil).Info("inside")
			c.Status(http.StatusOK)
		})
		r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
		r.GET("/panic", func(c *gin.Context) { panic("boom") })
		return r, logs
	}

	t.Run("propagates request id", func(t *testing.T) {
		r, logs := newRouter()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

		entries := logs.TakeAll()
		require.Len(t, entries, 2)
		assert.Equal(t, "inside", entries[0].Message)
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, "HTTP request", entries[1].Message)
	})

	t.Run("generates request id", func(t *testing.T) {
		r, _ := newRouter()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("client errors warn", func(t *testing.T) {
		r, logs := newRouter()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("panics become 500", func(t *testing.T) {
		r, logs := newRouter()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})
}
