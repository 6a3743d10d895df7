// Package config holds runtime configuration: defaults, config-file and
// environment overlays, CLI flag parsing, and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrConfig marks every configuration failure. Callers test for it with
// errors.Is to tell a bad invocation apart from a failed run.
var ErrConfig = errors.New("invalid configuration")

// --- Enum types for validated string fields ---

// TimestampPolicy selects which log timestamp represents a layer on the
// initial extraction pass.
type TimestampPolicy string

const (
	PolicyMidpoint TimestampPolicy = "midpoint" // Average of first and last sample (default).
	PolicyFirst    TimestampPolicy = "first"    // Earliest sample.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Fixed output parameters.
const (
	TargetDurationSeconds = 10 // Playback length the framerate is planned for.
	HoldSeconds           = 5  // Tail during which the last frame is cloned.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [LoadFile] and [ApplyEnv], then by [ParseFlags], and passed
// (by pointer) to packages that need it. Nothing mutates it after Validate.
type Config struct {
	// Session directory (positional arg).
	SessionDir string

	// Layer stability rules.
	MinStabilityCount int     `env:"MIN_STABILITY_COUNT"` // Default: 3 samples.
	MinZChangeMM      float64 `env:"MIN_Z_CHANGE_MM"`     // Default: 0.1 mm.
	MaxLayerHeightMM  float64 `env:"MAX_LAYER_HEIGHT_MM"` // Default: 1.0 mm.

	// Frame selection and corruption recovery.
	TimestampPolicy TimestampPolicy `env:"TIMESTAMP_POLICY"` // Default: "midpoint".
	CorruptionRatio float64         `env:"CORRUPTION_RATIO"` // Default: 0.88 of the median size.

	// Framerate bounds.
	MinFramerate int `env:"MIN_FRAMERATE"` // Default: 15.
	MaxFramerate int `env:"MAX_FRAMERATE"` // Default: 60.

	// External tools.
	FFmpegCmd       string        `env:"FFMPEG_CMD"`       // Default: "ffmpeg".
	FFprobeCmd      string        `env:"FFPROBE_CMD"`      // Default: "ffprobe".
	ExtractTimeout  time.Duration `env:"EXTRACT_TIMEOUT"`  // Default: 2m per frame.
	AssembleTimeout time.Duration `env:"ASSEMBLE_TIMEOUT"` // Default: 30m.

	// Behavior flags.
	DryRun       bool
	SkipExisting bool `env:"SKIP_EXISTING"` // Default: true. Cleared by --force.
	CheckOnly    bool

	// Display and logging.
	Verbose   bool      `env:"VERBOSE"`
	ColorMode ColorMode `env:"COLOR"` // Default: "auto".
	LogFile   string    `env:"LOG_FILE"`

	// Diagnostics outputs. Empty disables.
	LedgerPath  string `env:"LEDGER"`       // Default: "<session>/layerlapse.db".
	MetricsFile string `env:"METRICS_FILE"` // Prometheus textfile output.
	SizeChart   string `env:"SIZE_CHART"`   // PNG chart of frame sizes.
	NoLedger    bool   `env:"NO_LEDGER"`

	// ConfigFile is the JSON overlay read before env and flags.
	ConfigFile string
}

// DefaultConfig returns a Config with the documented defaults. Used as the
// base before overlays and CLI overrides are applied.
func DefaultConfig() Config {
	return Config{
		MinStabilityCount: 3,
		MinZChangeMM:      0.1,
		MaxLayerHeightMM:  1.0,
		TimestampPolicy:   PolicyMidpoint,
		CorruptionRatio:   0.88,
		MinFramerate:      15,
		MaxFramerate:      60,
		FFmpegCmd:         "ffmpeg",
		FFprobeCmd:        "ffprobe",
		ExtractTimeout:    2 * time.Minute,
		AssembleTimeout:   30 * time.Minute,
		SkipExisting:      true,
		ColorMode:         ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric bounds. When not in CheckOnly
// mode it also requires a session directory. Every error wraps ErrConfig.
func (c *Config) Validate() error {
	switch c.TimestampPolicy {
	case PolicyMidpoint, PolicyFirst:
		// valid
	default:
		return invalid("invalid timestamp policy %q (use 'midpoint' or 'first')", c.TimestampPolicy)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return invalid("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.MinStabilityCount < 1 {
		return invalid("min stability count must be at least 1 (got %d)", c.MinStabilityCount)
	}
	if !finite(c.MinZChangeMM) || c.MinZChangeMM < 0 {
		return invalid("min Z change must be a non-negative number of mm (got %v)", c.MinZChangeMM)
	}
	if !finite(c.MaxLayerHeightMM) || c.MaxLayerHeightMM <= 0 {
		return invalid("max layer height must be a positive number of mm (got %v)", c.MaxLayerHeightMM)
	}
	if c.MinZChangeMM > c.MaxLayerHeightMM {
		return invalid("min Z change %.3f mm exceeds max layer height %.3f mm", c.MinZChangeMM, c.MaxLayerHeightMM)
	}
	if !finite(c.CorruptionRatio) || c.CorruptionRatio <= 0 || c.CorruptionRatio > 1 {
		return invalid("corruption ratio must be in (0, 1] (got %v)", c.CorruptionRatio)
	}
	if c.MinFramerate < 1 {
		return invalid("min framerate must be at least 1 (got %d)", c.MinFramerate)
	}
	if c.MaxFramerate < c.MinFramerate {
		return invalid("max framerate %d is below min framerate %d", c.MaxFramerate, c.MinFramerate)
	}
	if strings.TrimSpace(c.FFmpegCmd) == "" {
		return invalid("ffmpeg command must not be empty")
	}
	if strings.TrimSpace(c.FFprobeCmd) == "" {
		return invalid("ffprobe command must not be empty")
	}
	if c.ExtractTimeout <= 0 || c.AssembleTimeout <= 0 {
		return invalid("tool timeouts must be positive")
	}

	if c.CheckOnly {
		return nil
	}
	if c.SessionDir == "" {
		return invalid("need exactly one session_dir")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
