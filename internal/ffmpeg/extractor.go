package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/backmassage/layerlapse/internal/config"
)

// Extractor writes the frame at a timestamp of a video to dest.
type Extractor interface {
	Extract(ctx context.Context, video string, ts float64, dest string) error
}

// FFmpegExtractor is the Extractor backed by the ffmpeg binary.
type FFmpegExtractor struct {
	Bin     string
	Timeout time.Duration
	Tee     io.Writer
}

// NewExtractor returns an FFmpegExtractor configured from cfg.
func NewExtractor(cfg *config.Config) *FFmpegExtractor {
	return &FFmpegExtractor{Bin: cfg.FFmpegCmd, Timeout: cfg.ExtractTimeout}
}

// Extract runs ffmpeg into a partial file and renames it to dest on success.
// It fails (wrapping ErrExtract) when ffmpeg exits non-zero, times out, or
// exits zero without writing anything. On failure dest is left untouched.
func (e *FFmpegExtractor) Extract(ctx context.Context, video string, ts float64, dest string) error {
	partial := PartialPath(dest)
	defer os.Remove(partial)

	res := Run(ctx, ExtractArgs(e.Bin, video, ts, partial), RunOptions{Timeout: e.Timeout, Tee: e.Tee})
	if res.Err != nil {
		cause := Classify(res.Stderr)
		if res.TimedOut {
			cause = CauseTimeout
		}
		return fmt.Errorf("%w at %ss (%s): %v: %s", ErrExtract, FormatTimestamp(ts), cause, res.Err, StderrTail(res.Stderr))
	}
	if _, err := os.Stat(partial); err != nil {
		return fmt.Errorf("%w at %ss (%s): ffmpeg wrote no output: %s", ErrExtract, FormatTimestamp(ts), CausePastEnd, StderrTail(res.Stderr))
	}
	if err := os.Rename(partial, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrExtract, err)
	}
	return nil
}

// PartialPath is the hidden in-progress file for dest. It keeps dest's
// extension so ffmpeg picks the same image encoder.
func PartialPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), ".partial-"+filepath.Base(dest))
}
