package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for pipes after the process is killed.
const waitDelay = 5 * time.Second

// RunOptions controls a single ffmpeg invocation.
type RunOptions struct {
	Timeout time.Duration // zero means no per-call limit beyond ctx
	Tee     io.Writer     // optional live copy of stderr (verbose mode)
}

// ExecResult holds the outcome of a single ffmpeg invocation.
type ExecResult struct {
	Stderr   string
	Err      error
	TimedOut bool
}

// Run executes args[0] with args[1:]. Stderr is captured for classification
// and optionally tee'd live. When the per-call timeout expires the process
// is killed and TimedOut is set; cancellation of the parent ctx kills it too.
func Run(ctx context.Context, args []string, opts RunOptions) ExecResult {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay

	var stderrBuf bytes.Buffer
	if opts.Tee != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, opts.Tee)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	res := ExecResult{Stderr: stderrBuf.String(), Err: err}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.Err = ErrTimeout
	}
	return res
}
