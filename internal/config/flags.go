package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into layer rules, frames, tools, behavior, display, and utility.
// Negated flags (e.g. --no-ledger) are applied after Parse so Config defaults hold unless set.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFlags parses args (without the program name) into cfg. Flags are
// parsed twice: the first pass only locates --config so the file and
// environment overlays can be applied underneath, the second pass binds the
// flags to cfg so explicit flags always win. On --help or --version it
// prints and exits.
func ParseFlags(cfg *Config, args []string, version string) error {
	scratch := *cfg
	var pre negatedFlags
	first := newFlagSet(&scratch, &pre, io.Discard)
	if err := first.Parse(args); err != nil {
		printUsage(os.Stderr, version)
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if pre.showHelp {
		printUsage(os.Stderr, version)
		os.Exit(0)
	}
	if pre.showVersion {
		fmt.Fprintln(os.Stdout, "layerlapse v"+version)
		os.Exit(0)
	}

	if scratch.ConfigFile != "" {
		if err := LoadFile(cfg, scratch.ConfigFile); err != nil {
			return err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return err
	}

	var negated negatedFlags
	fs := newFlagSet(cfg, &negated, io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	applyNegatedFlags(cfg, &negated)

	return parsePositionalArgs(fs, cfg)
}

// negatedFlags holds boolean flags that are applied after Parse.
// These either invert a default (e.g. force -> SkipExisting=false) or trigger exit (showHelp, showVersion).
type negatedFlags struct {
	force       bool
	noLedger    bool
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

func newFlagSet(cfg *Config, n *negatedFlags, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("layerlapse", flag.ContinueOnError)
	fs.SetOutput(out)

	defineLayerFlags(fs, cfg)
	defineFrameFlags(fs, cfg)
	defineToolFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg, n)
	defineDisplayFlags(fs, cfg, n)
	defineUtilityFlags(fs, cfg, n)
	return fs
}

// defineLayerFlags registers the layer stability rules.
func defineLayerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.MinStabilityCount, "min-samples", cfg.MinStabilityCount, "Minimum log samples for a layer to count")
	fs.Float64Var(&cfg.MinZChangeMM, "min-z-change", cfg.MinZChangeMM, "Minimum Z step between accepted layers (mm)")
	fs.Float64Var(&cfg.MaxLayerHeightMM, "max-layer-height", cfg.MaxLayerHeightMM, "Maximum Z step between accepted layers (mm)")
}

// defineFrameFlags registers frame selection, corruption and framerate flags.
func defineFrameFlags(fs *flag.FlagSet, cfg *Config) {
	fs.Var(&policyValue{&cfg.TimestampPolicy}, "policy", "Timestamp policy: midpoint | first")
	fs.Float64Var(&cfg.CorruptionRatio, "corruption-ratio", cfg.CorruptionRatio, "Frames smaller than median*ratio are re-extracted")
	fs.IntVar(&cfg.MinFramerate, "min-fps", cfg.MinFramerate, "Lowest output framerate")
	fs.IntVar(&cfg.MaxFramerate, "max-fps", cfg.MaxFramerate, "Highest output framerate")
}

// defineToolFlags registers external tool commands and timeouts.
func defineToolFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.FFmpegCmd, "ffmpeg", cfg.FFmpegCmd, "ffmpeg command")
	fs.StringVar(&cfg.FFprobeCmd, "ffprobe", cfg.FFprobeCmd, "ffprobe command")
	fs.DurationVar(&cfg.ExtractTimeout, "extract-timeout", cfg.ExtractTimeout, "Kill a frame extraction after this long")
	fs.DurationVar(&cfg.AssembleTimeout, "assemble-timeout", cfg.AssembleTimeout, "Kill video assembly after this long")
}

// defineBehaviorFlags registers dry-run, force, config, and diagnostics outputs.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Aggregate layers and plan only; do not extract or assemble")
	fs.BoolVar(&cfg.DryRun, "d", cfg.DryRun, "Same as --dry-run")
	fs.BoolVar(&n.force, "force", false, "Re-extract frames even if a previous run left them on disk")
	fs.BoolVar(&n.force, "f", false, "Same as --force")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "JSON config file")
	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "sqlite attempt ledger (default <session>/layerlapse.db)")
	fs.BoolVar(&n.noLedger, "no-ledger", false, "Do not record attempts")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.SizeChart, "size-chart", cfg.SizeChart, "Write a PNG chart of frame sizes")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", cfg.CheckOnly, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", cfg.CheckOnly, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
}

// defineUtilityFlags registers --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, _ *Config, n *negatedFlags) {
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies negated and override flag values into cfg.
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.force {
		cfg.SkipExisting = false
	}
	if n.noLedger {
		cfg.NoLedger = true
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets SessionDir from the single positional arg when not in CheckOnly mode.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) != 1 {
		return invalid("need exactly one session_dir")
	}
	cfg.SessionDir = NormalizeDirArg(args[0])
	return nil
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer, version string) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "layerlapse v" + version + " - one frame per printed layer"},
		{"", ""},
		{"  layerlapse [OPTIONS] <session_dir>", ""},
		{"", ""},
		{"Layers", ""},
		{"  --min-samples <n>", "Minimum log samples per layer (default: 3)"},
		{"  --min-z-change <mm>", "Minimum Z step between layers (default: 0.1)"},
		{"  --max-layer-height <mm>", "Maximum Z step between layers (default: 1.0)"},
		{"", ""},
		{"Frames", ""},
		{"  --policy <midpoint|first>", "Representative timestamp (default: midpoint)"},
		{"  --corruption-ratio <r>", "Re-extract frames below median*r (default: 0.88)"},
		{"  --min-fps <n>", "Lowest output framerate (default: 15)"},
		{"  --max-fps <n>", "Highest output framerate (default: 60)"},
		{"", ""},
		{"Tools", ""},
		{"  --ffmpeg <cmd>", "ffmpeg command (default: ffmpeg)"},
		{"  --ffprobe <cmd>", "ffprobe command (default: ffprobe)"},
		{"  --extract-timeout <dur>", "Per-frame timeout (default: 2m)"},
		{"  --assemble-timeout <dur>", "Assembly timeout (default: 30m)"},
		{"", ""},
		{"Output & behavior", ""},
		{"  -f, --force", "Re-extract even if frames exist"},
		{"  -d, --dry-run", "Plan only; do not extract or assemble"},
		{"  --config <path>", "JSON config file"},
		{"  --ledger <path>", "sqlite attempt ledger"},
		{"  --no-ledger", "Do not record attempts"},
		{"  --metrics-file <path>", "Prometheus textfile output"},
		{"  --size-chart <path>", "PNG chart of frame sizes"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "System diagnostics (ffmpeg, ffprobe, encoders)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"", "Environment variables " + EnvPrefix + "* override the config file; flags override both."},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapter so the enum type can be used with flag.Var.

type policyValue struct{ p *TimestampPolicy }

func (v *policyValue) String() string {
	if v.p == nil {
		return ""
	}
	return string(*v.p)
}

func (v *policyValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "midpoint", "mid":
		*v.p = PolicyMidpoint
	case "first":
		*v.p = PolicyFirst
	default:
		return fmt.Errorf("invalid policy %q (use 'midpoint' or 'first')", s)
	}
	return nil
}
