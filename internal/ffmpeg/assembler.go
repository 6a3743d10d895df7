package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/backmassage/layerlapse/internal/config"
)

// AssemblyRequest describes one timelapse encode.
type AssemblyRequest struct {
	Pattern     string // glob matching the frame files, e.g. dir/frame_Z_*.png
	Framerate   int
	HoldSeconds int
	Output      string
}

// Assembler encodes the extracted frames into the final video.
type Assembler interface {
	Assemble(ctx context.Context, req AssemblyRequest) error
}

// FFmpegAssembler is the Assembler backed by the ffmpeg binary.
type FFmpegAssembler struct {
	Bin     string
	Timeout time.Duration
	Tee     io.Writer
}

// NewAssembler returns an FFmpegAssembler configured from cfg.
func NewAssembler(cfg *config.Config) *FFmpegAssembler {
	return &FFmpegAssembler{Bin: cfg.FFmpegCmd, Timeout: cfg.AssembleTimeout}
}

// Assemble runs the encode. A failed or timed-out encode removes the partial
// output and returns an error wrapping ErrAssemble.
func (a *FFmpegAssembler) Assemble(ctx context.Context, req AssemblyRequest) error {
	if req.Framerate < 1 {
		return fmt.Errorf("%w: framerate %d", ErrAssemble, req.Framerate)
	}
	res := Run(ctx, AssembleArgs(a.Bin, req), RunOptions{Timeout: a.Timeout, Tee: a.Tee})
	if res.Err == nil {
		return nil
	}
	if rmErr := os.Remove(req.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		res.Stderr += "\nremove partial output: " + rmErr.Error()
	}
	if MatchNoFrames(res.Stderr) {
		return fmt.Errorf("%w: no frames matched %s: %s", ErrAssemble, req.Pattern, StderrTail(res.Stderr))
	}
	return fmt.Errorf("%w: %v: %s", ErrAssemble, res.Err, StderrTail(res.Stderr))
}
