// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/wirechart/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `wirechart:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Pattern string           `mapstructure:"pattern"` // %time [%level] %field %msg%n
	Time    string           `mapstructure:"time"`    // Go time layout
	Console string           `mapstructure:"console"` // stdout / stderr / none
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Decoder ───

// DecoderConfig configures the external packet decoder (tshark).
type DecoderConfig struct {
	Binary        string        `mapstructure:"binary"`
	TwoPass       bool          `mapstructure:"two_pass"`
	DisplayFilter string        `mapstructure:"display_filter"`
	StartFrame    int           `mapstructure:"start_frame"`  // 0 = from the first frame
	FinishFrame   int           `mapstructure:"finish_frame"` // 0 = to the last frame
	MaxFrames     int           `mapstructure:"max_frames"`   // 0 = unlimited
	Timeout       time.Duration `mapstructure:"timeout"`      // 0 = no timeout
}

// ─── Analysis ───

// AnalysisConfig tunes the analysis pass and its reports.
type AnalysisConfig struct {
	TopTopics      int  `mapstructure:"top_topics"`
	IncludeBuiltin bool `mapstructure:"include_builtin"`
	GUIDCacheSize  int  `mapstructure:"guid_cache_size"`
}

// ─── Output ───

// OutputConfig controls where analysis artifacts are written.
type OutputConfig struct {
	Directory      string `mapstructure:"directory"`
	SnapshotFormat string `mapstructure:"snapshot_format"` // json / yaml / none
	MetricsFile    string `mapstructure:"metrics_file"`    // empty = disabled
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `wirechart: ...`.
type configRoot struct {
	Wirechart GlobalConfig `mapstructure:"wirechart"`
}

// Load loads configuration from file. An empty path loads defaults only.
// Env vars use the WIRECHART_ prefix (e.g., WIRECHART_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `wirechart.` key prefix maps to `WIRECHART_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Wirechart

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use "wirechart." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("wirechart.log.level", "info")
	v.SetDefault("wirechart.log.pattern", "%time [%level] %field %msg%n")
	v.SetDefault("wirechart.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("wirechart.log.console", "stderr")
	v.SetDefault("wirechart.log.file.enabled", false)
	v.SetDefault("wirechart.log.file.path", "output/wirechart.log")
	v.SetDefault("wirechart.log.file.rotation.max_size_mb", 100)
	v.SetDefault("wirechart.log.file.rotation.max_age_days", 30)
	v.SetDefault("wirechart.log.file.rotation.max_backups", 5)
	v.SetDefault("wirechart.log.file.rotation.compress", false)

	// Decoder defaults
	v.SetDefault("wirechart.decoder.binary", "tshark")
	v.SetDefault("wirechart.decoder.two_pass", true)
	v.SetDefault("wirechart.decoder.display_filter", "rtps")
	v.SetDefault("wirechart.decoder.timeout", "0s")

	// Analysis defaults
	v.SetDefault("wirechart.analysis.top_topics", 6)
	v.SetDefault("wirechart.analysis.include_builtin", false)
	v.SetDefault("wirechart.analysis.guid_cache_size", 1024)

	// Output defaults
	v.SetDefault("wirechart.output.directory", "output")
	v.SetDefault("wirechart.output.snapshot_format", "json")
	v.SetDefault("wirechart.output.metrics_file", "")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Console) {
	case "stdout", "stderr", "none":
	default:
		return fmt.Errorf("%w: invalid log console: %s (must be stdout/stderr/none)", core.ErrConfigInvalid, cfg.Log.Console)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfigInvalid)
	}

	// ── Decoder validation ──
	if cfg.Decoder.Binary == "" {
		return fmt.Errorf("%w: decoder.binary is required", core.ErrConfigInvalid)
	}
	if cfg.Decoder.StartFrame < 0 || cfg.Decoder.FinishFrame < 0 || cfg.Decoder.MaxFrames < 0 {
		return fmt.Errorf("%w: decoder frame bounds must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Decoder.FinishFrame > 0 && cfg.Decoder.StartFrame > cfg.Decoder.FinishFrame {
		return fmt.Errorf("%w: decoder.start_frame %d is after decoder.finish_frame %d",
			core.ErrConfigInvalid, cfg.Decoder.StartFrame, cfg.Decoder.FinishFrame)
	}

	// ── Analysis defaults ──
	if cfg.Analysis.TopTopics <= 0 {
		cfg.Analysis.TopTopics = 6
	}
	if cfg.Analysis.GUIDCacheSize <= 0 {
		cfg.Analysis.GUIDCacheSize = 1024
	}

	// ── Output validation ──
	cfg.Output.SnapshotFormat = strings.ToLower(cfg.Output.SnapshotFormat)
	switch cfg.Output.SnapshotFormat {
	case "json", "yaml", "none":
	default:
		return fmt.Errorf("%w: invalid snapshot format: %s (must be json/yaml/none)", core.ErrConfigInvalid, cfg.Output.SnapshotFormat)
	}

	return nil
}
