package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wirechart/internal/config"
)

func quietConfig(level, pattern string) config.LogConfig {
	return config.LogConfig{Level: level, Pattern: pattern, Console: "none"}
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		trace   bool
		debug   bool
		info    bool
		wantErr bool
	}{
		{level: "trace", trace: true, debug: true, info: true},
		{level: "debug", debug: true, info: true},
		{level: "INFO", info: true},
		{level: "warn"},
		{level: "warning"},
		{level: "error"},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(quietConfig(tt.level, ""))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.trace, l.IsTraceEnabled())
			assert.Equal(t, tt.debug, l.IsDebugEnabled())
			assert.Equal(t, tt.info, l.IsInfoEnabled())
		})
	}
}

func TestNewRejectsConsole(t *testing.T) {
	_, err := New(config.LogConfig{Level: "info", Console: "syslog"})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Console: "none", File: config.FileOutputConfig{Enabled: true}})
	assert.Error(t, err)
}

func TestPatternFormatting(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(quietConfig("debug", "[%level] %field %msg%n"), &buf)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"frame": 42, "cause": "service_request"}).Debugf("Frame ignored: %s", "x")
	l.Trace("hidden")
	l.WithError(errors.New("boom")).Warn("acknack")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[DEBUG] cause=service_request,frame=42 Frame ignored: x", lines[0])
	assert.Equal(t, "[WARNING] error=boom acknack", lines[1])
}

func TestCallerPattern(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(quietConfig("info", "%func %caller %msg%n"), &buf)
	require.NoError(t, err)

	l.Info("hello")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Info "), out)
	assert.Contains(t, out, "hello")
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wirechart.log")
	cfg := quietConfig("info", "%msg%n")
	cfg.File = config.FileOutputConfig{
		Enabled:  true,
		Path:     path,
		Rotation: config.RotationConfig{MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
	}
	l, err := New(cfg)
	require.NoError(t, err)

	l.Infof("Processing %d%% complete", 50)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Processing 50% complete\n", string(data))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("closed") }

func TestMultiWriterKeepsGoing(t *testing.T) {
	var a, b bytes.Buffer
	m := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)
	assert.Equal(t, 3, m.Len())

	n, err := m.Write([]byte("x"))
	assert.Equal(t, 1, n)
	assert.Error(t, err)
	assert.Equal(t, "x", a.String())
	assert.Equal(t, "x", b.String())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.WithField("frame", 1).Info("discarded") })
}

func TestSetLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	l, err := New(quietConfig("info", "%msg%n"), &buf)
	require.NoError(t, err)
	SetLogger(l)

	GetLogger().Info("via global")
	assert.Equal(t, "via global\n", buf.String())
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestMultiWriterClosesOwnedAppendersOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wirechart.log")
	var borrowed closeRecorder
	m := NewMultiWriter().Add(&borrowed).AddFileAppender(FileAppenderOpt{Filename: path, MaxSize: 1})

	_, err := m.Write([]byte("frame 1\n"))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.False(t, borrowed.closed)
	assert.Equal(t, "frame 1\n", borrowed.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "frame 1\n", string(data))
}

func TestCloseFallsBackToDiscard(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	path := filepath.Join(t.TempDir(), "wirechart.log")
	cfg := quietConfig("info", "%msg%n")
	cfg.File = config.FileOutputConfig{Enabled: true, Path: path}
	var buf bytes.Buffer
	l, err := New(cfg, &buf)
	require.NoError(t, err)
	SetLogger(l)

	GetLogger().Info("before close")
	require.NoError(t, Close())
	GetLogger().Info("after close")

	assert.Equal(t, "before close\n", buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before close\n", string(data))
}
