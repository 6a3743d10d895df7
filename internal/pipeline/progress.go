package pipeline

import (
	"io"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/backmassage/layerlapse/internal/frames"
)

// newProgress returns an OnSlot hook driving a progress bar on w, and a
// finish func that clears it. A nil w disables the bar.
func newProgress(w io.Writer, total int) (func(frames.Outcome), func()) {
	if w == nil || total == 0 {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	failed := 0
	onSlot := func(o frames.Outcome) {
		if o.Err != nil {
			failed++
			bar.Describe("Extracting (" + strconv.Itoa(failed) + " failed)")
		}
		_ = bar.Add(1)
	}
	return onSlot, func() { _ = bar.Finish() }
}
