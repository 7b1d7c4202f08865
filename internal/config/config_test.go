package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wirechart/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
wirechart:
  log:
    level: "DEBUG"
    console: "stdout"
    file:
      enabled: true
      path: "/tmp/wirechart.log"
      rotation:
        max_size_mb: 10
  decoder:
    binary: "/usr/local/bin/tshark"
    two_pass: false
    display_filter: "rtps && udp"
    start_frame: 100
    finish_frame: 2000
    max_frames: 500
    timeout: "90s"
  analysis:
    top_topics: 3
    include_builtin: true
  output:
    directory: "reports"
    snapshot_format: "YAML"
    metrics_file: "reports/wirechart.prom"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Console)
	assert.True(t, cfg.Log.File.Enabled)
	assert.Equal(t, 10, cfg.Log.File.Rotation.MaxSizeMB)
	assert.Equal(t, 5, cfg.Log.File.Rotation.MaxBackups)

	assert.Equal(t, DecoderConfig{
		Binary:        "/usr/local/bin/tshark",
		TwoPass:       false,
		DisplayFilter: "rtps && udp",
		StartFrame:    100,
		FinishFrame:   2000,
		MaxFrames:     500,
		Timeout:       90 * time.Second,
	}, cfg.Decoder)

	assert.Equal(t, 3, cfg.Analysis.TopTopics)
	assert.True(t, cfg.Analysis.IncludeBuiltin)
	assert.Equal(t, 1024, cfg.Analysis.GUIDCacheSize)

	assert.Equal(t, "reports", cfg.Output.Directory)
	assert.Equal(t, "yaml", cfg.Output.SnapshotFormat)
	assert.Equal(t, "reports/wirechart.prom", cfg.Output.MetricsFile)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Console)
	assert.Equal(t, "tshark", cfg.Decoder.Binary)
	assert.True(t, cfg.Decoder.TwoPass)
	assert.Equal(t, "rtps", cfg.Decoder.DisplayFilter)
	assert.Zero(t, cfg.Decoder.Timeout)
	assert.Equal(t, 6, cfg.Analysis.TopTopics)
	assert.Equal(t, "json", cfg.Output.SnapshotFormat)
	assert.Empty(t, cfg.Output.MetricsFile)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WIRECHART_DECODER_BINARY", "/opt/wireshark/tshark")
	t.Setenv("WIRECHART_ANALYSIS_TOP_TOPICS", "10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/wireshark/tshark", cfg.Decoder.Binary)
	assert.Equal(t, 10, cfg.Analysis.TopTopics)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GlobalConfig)
	}{
		{"log level", func(c *GlobalConfig) { c.Log.Level = "chatty" }},
		{"console", func(c *GlobalConfig) { c.Log.Console = "syslog" }},
		{"file path", func(c *GlobalConfig) { c.Log.File.Enabled = true; c.Log.File.Path = "" }},
		{"binary", func(c *GlobalConfig) { c.Decoder.Binary = "" }},
		{"negative frame", func(c *GlobalConfig) { c.Decoder.MaxFrames = -1 }},
		{"inverted range", func(c *GlobalConfig) { c.Decoder.StartFrame = 10; c.Decoder.FinishFrame = 5 }},
		{"snapshot format", func(c *GlobalConfig) { c.Output.SnapshotFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.ValidateAndApplyDefaults()
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := Default()
	cfg.Analysis.TopTopics = 0
	cfg.Analysis.GUIDCacheSize = -5
	cfg.Decoder.StartFrame = 7
	cfg.Decoder.FinishFrame = 0

	require.NoError(t, cfg.ValidateAndApplyDefaults())
	assert.Equal(t, 6, cfg.Analysis.TopTopics)
	assert.Equal(t, 1024, cfg.Analysis.GUIDCacheSize)
}
