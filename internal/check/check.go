// Package check provides system diagnostics (--check mode) and pre-pipeline
// dependency validation (CheckDeps) for ffmpeg, ffprobe and the encoders a
// timelapse needs: png for extracted frames, libx264 and tpad for assembly.
package check

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/layerlapse/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool or encoder is missing.
var (
	ErrFfmpegNotFound   = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound  = errors.New("ffprobe not found on PATH")
	ErrPNGEncodeFailed  = errors.New("png test encode failed (frames cannot be extracted)")
	ErrH264EncodeFailed = errors.New("libx264 test encode failed (timelapse cannot be assembled)")
)

// probeTimeout bounds each diagnostic ffmpeg call.
const probeTimeout = 20 * time.Second

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// RunCheck runs the interactive --check flow: prints the ffmpeg and ffprobe
// versions, the relevant encoders and filters, and runs short test encodes.
// It keeps going after a failure and reports whether everything passed.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := checkTool(log, cfg.FFmpegCmd)
	ok = checkTool(log, cfg.FFprobeCmd) && ok
	if !ok {
		return false
	}
	listEncoders(log, cfg.FFmpegCmd)

	if filterAvailable(cfg.FFmpegCmd, "tpad") {
		log.Success("tpad filter available")
	} else {
		log.Error("tpad filter missing (needed to hold the final frame)")
		ok = false
	}

	log.Info("Testing png encoder...")
	if runSilent(cfg.FFmpegCmd, pngTestArgs()...) {
		log.Success("png encoder works")
	} else {
		log.Error("png test encode failed")
		ok = false
	}

	log.Info("Testing libx264 encoder...")
	if runSilent(cfg.FFmpegCmd, h264TestArgs()...) {
		log.Success("libx264 encoder works")
	} else {
		log.Error("libx264 test encode failed")
		ok = false
	}
	return ok
}

// checkTool verifies bin is on PATH and logs its version line.
func checkTool(log Logger, bin string) bool {
	path, err := exec.LookPath(bin)
	if err != nil {
		log.Error("%s not found", bin)
		return false
	}
	log.Debug("%s resolved to %s", bin, path)
	line, err := versionLine(bin)
	if err != nil {
		log.Warn("%s found but -version failed: %v", bin, err)
		return true
	}
	log.Success("%s", line)
	return true
}

// versionLine returns the first line of `bin -version`.
func versionLine(bin string) (string, error) {
	out, err := output(bin, "-hide_banner", "-version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(first), nil
}

// listEncoders logs the encoders this tool uses, as reported by ffmpeg.
func listEncoders(log Logger, bin string) {
	log.Info("Encoders:")
	out, err := output(bin, "-hide_banner", "-encoders")
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[1] {
		case "png", "libx264":
			log.Info("  %s", strings.TrimSpace(line))
		}
	}
}

// filterAvailable reports whether `ffmpeg -filters` lists name.
func filterAvailable(bin, name string) bool {
	out, err := output(bin, "-hide_banner", "-filters")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// CheckDeps is the pre-pipeline validation: it verifies that ffmpeg and
// ffprobe are on PATH and that the png and libx264 encoders work. A dry run
// needs none of this and callers skip it. Returns a sentinel error on failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.FFmpegCmd); err != nil {
		return fmt.Errorf("%w: %s", ErrFfmpegNotFound, cfg.FFmpegCmd)
	}
	if _, err := exec.LookPath(cfg.FFprobeCmd); err != nil {
		return fmt.Errorf("%w: %s", ErrFfprobeNotFound, cfg.FFprobeCmd)
	}
	if !runSilent(cfg.FFmpegCmd, pngTestArgs()...) {
		return ErrPNGEncodeFailed
	}
	if !runSilent(cfg.FFmpegCmd, h264TestArgs()...) {
		return ErrH264EncodeFailed
	}
	return nil
}

// --- internal helpers ---

// pngTestArgs encodes one synthetic frame to png, as extraction does.
func pngTestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=64x64:d=0.1",
		"-frames:v", "1", "-c:v", "png",
		"-f", "null", "-",
	}
}

// h264TestArgs runs a minimal libx264 encode with the assembly pixel format.
func h264TestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=64x64:d=0.1",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-f", "null", "-",
	}
}

func output(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run() == nil
}
