package config

// This file implements the two overlays applied between DefaultConfig and
// ParseFlags: an optional JSON config file and LAYERLAPSE_* environment
// variables. Fields absent from either source keep their previous value.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name read by ApplyEnv.
const EnvPrefix = "LAYERLAPSE_"

// maxConfigFileSize bounds the JSON overlay; anything larger is not a config.
const maxConfigFileSize = 1 << 20

// fileConfig is the on-disk schema. Pointer fields distinguish "absent" from
// the zero value so a partial file only overrides what it names.
type fileConfig struct {
	MinStabilityCount *int     `json:"min_stability_count,omitempty"`
	MinZChangeMM      *float64 `json:"min_z_change_mm,omitempty"`
	MaxLayerHeightMM  *float64 `json:"max_layer_height_mm,omitempty"`
	TimestampPolicy   *string  `json:"timestamp_policy,omitempty"`
	CorruptionRatio   *float64 `json:"corruption_ratio,omitempty"`
	MinFramerate      *int     `json:"min_framerate,omitempty"`
	MaxFramerate      *int     `json:"max_framerate,omitempty"`
	FFmpegCmd         *string  `json:"ffmpeg_cmd,omitempty"`
	FFprobeCmd        *string  `json:"ffprobe_cmd,omitempty"`
	ExtractTimeout    *string  `json:"extract_timeout,omitempty"`  // duration string like "90s"
	AssembleTimeout   *string  `json:"assemble_timeout,omitempty"` // duration string like "20m"
	LogFile           *string  `json:"log_file,omitempty"`
	LedgerPath        *string  `json:"ledger,omitempty"`
	MetricsFile       *string  `json:"metrics_file,omitempty"`
}

// LoadFile reads a JSON config file and overlays its fields onto cfg.
// The path must have a .json extension. Decode errors wrap ErrConfig.
func LoadFile(cfg *Config, path string) error {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return invalid("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if info.Size() > maxConfigFileSize {
		return invalid("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return invalid("config file %s is not valid JSON: %v", clean, err)
	}
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.MinStabilityCount != nil {
		cfg.MinStabilityCount = *fc.MinStabilityCount
	}
	if fc.MinZChangeMM != nil {
		cfg.MinZChangeMM = *fc.MinZChangeMM
	}
	if fc.MaxLayerHeightMM != nil {
		cfg.MaxLayerHeightMM = *fc.MaxLayerHeightMM
	}
	if fc.TimestampPolicy != nil {
		cfg.TimestampPolicy = TimestampPolicy(*fc.TimestampPolicy)
	}
	if fc.CorruptionRatio != nil {
		cfg.CorruptionRatio = *fc.CorruptionRatio
	}
	if fc.MinFramerate != nil {
		cfg.MinFramerate = *fc.MinFramerate
	}
	if fc.MaxFramerate != nil {
		cfg.MaxFramerate = *fc.MaxFramerate
	}
	if fc.FFmpegCmd != nil {
		cfg.FFmpegCmd = *fc.FFmpegCmd
	}
	if fc.FFprobeCmd != nil {
		cfg.FFprobeCmd = *fc.FFprobeCmd
	}
	if fc.ExtractTimeout != nil {
		d, err := time.ParseDuration(*fc.ExtractTimeout)
		if err != nil {
			return invalid("extract_timeout: %v", err)
		}
		cfg.ExtractTimeout = d
	}
	if fc.AssembleTimeout != nil {
		d, err := time.ParseDuration(*fc.AssembleTimeout)
		if err != nil {
			return invalid("assemble_timeout: %v", err)
		}
		cfg.AssembleTimeout = d
	}
	if fc.LogFile != nil {
		cfg.LogFile = *fc.LogFile
	}
	if fc.LedgerPath != nil {
		cfg.LedgerPath = *fc.LedgerPath
	}
	if fc.MetricsFile != nil {
		cfg.MetricsFile = *fc.MetricsFile
	}
	return nil
}

// ApplyEnv overlays LAYERLAPSE_* environment variables onto cfg. Only
// variables that are set are applied.
func ApplyEnv(cfg *Config) error {
	return applyEnvFrom(cfg, nil)
}

// applyEnvFrom reads from environ when non-nil instead of the process
// environment (used by tests).
func applyEnvFrom(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}
