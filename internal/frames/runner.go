package frames

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/ffmpeg"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/logging"
	"github.com/backmassage/layerlapse/internal/naming"
)

// Runner carries what both extraction phases share.
type Runner struct {
	Extractor ffmpeg.Extractor
	Log       *logging.Logger
	Recorder  Recorder
	Video     string
	Dir       string
	Policy    config.TimestampPolicy

	// Duration of the recording in seconds, when known. Timestamps past it
	// are still attempted but logged.
	Duration float64

	// OnSlot, if set, is called after each initial-pass slot.
	OnSlot func(Outcome)
}

func (r *Runner) recorder() Recorder {
	if r.Recorder == nil {
		return nopRecorder{}
	}
	return r.Recorder
}

func (r *Runner) logger() *logging.Logger {
	if r.Log == nil {
		return logging.NewNop()
	}
	return r.Log
}

// extract runs one extractor call into slot idx and records it.
func (r *Runner) extract(ctx context.Context, phase Phase, idx int, key layers.LayerKey, ts float64) Attempt {
	dest := naming.FramePath(r.Dir, idx)
	start := time.Now()
	err := r.Extractor.Extract(ctx, r.Video, ts, dest)
	a := Attempt{
		Phase:     phase,
		Slot:      idx,
		Key:       key,
		Timestamp: ts,
		Err:       err,
		Elapsed:   time.Since(start),
	}
	if err == nil {
		if info, statErr := os.Stat(dest); statErr == nil {
			a.OK = true
			a.Size = info.Size()
		} else {
			a.Err = statErr
		}
	}
	r.recorder().RecordAttempt(a)
	return a
}

// slotLog returns the logger annotated with slot context.
func (r *Runner) slotLog(idx int, key layers.LayerKey, ts float64) *logging.Logger {
	return r.logger().With(
		zap.Int("slot", idx),
		zap.String("z", key.String()),
		zap.Float64("timestamp", ts),
	)
}
