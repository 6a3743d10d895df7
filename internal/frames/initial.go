package frames

import (
	"context"

	"github.com/backmassage/layerlapse/internal/ffmpeg"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/planner"
)

// Outcome is the result of the initial extraction for one slot.
type Outcome struct {
	Slot      int
	Key       layers.LayerKey
	Timestamp float64
	Size      int64
	Err       error // nil when the slot file was produced
}

// PassResult summarises InitialPass.
type PassResult struct {
	Outcomes []Outcome
	Produced int
	Failed   int
	LastSlot int // highest slot produced; 0 when none
}

// InitialPass extracts every slot in order at its policy timestamp. A failed
// slot is logged and left absent; the pass continues. Only cancellation of
// ctx stops it early, in which case the partial result is returned with
// ctx's error.
func (r *Runner) InitialPass(ctx context.Context, slots *SlotMap) (PassResult, error) {
	res := PassResult{Outcomes: make([]Outcome, 0, slots.Len())}

	for idx := 1; idx <= slots.Len(); idx++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l, _ := slots.Layer(idx)
		ts := planner.Timestamp(l, r.Policy)
		log := r.slotLog(idx, l.Key, ts)

		if r.Duration > 0 && ts > r.Duration {
			log.Warn("Z=%s: timestamp %ss is past the end of the recording (%ss)",
				l.Key, ffmpeg.FormatTimestamp(ts), ffmpeg.FormatTimestamp(r.Duration))
		}
		log.Debug("Z=%s | extracting frame %d at %ss", l.Key, idx, ffmpeg.FormatTimestamp(ts))

		a := r.extract(ctx, PhaseInitial, idx, l.Key, ts)
		out := Outcome{Slot: idx, Key: l.Key, Timestamp: ts, Size: a.Size, Err: a.Err}
		if a.OK {
			res.Produced++
			res.LastSlot = idx
		} else {
			res.Failed++
			if ctx.Err() == nil {
				log.Error("Z=%s: frame %d not extracted at %ss: %v", l.Key, idx, ffmpeg.FormatTimestamp(ts), a.Err)
			}
		}
		res.Outcomes = append(res.Outcomes, out)
		if r.OnSlot != nil {
			r.OnSlot(out)
		}
	}
	return res, nil
}
