package frames

import (
	"context"
	"slices"

	"github.com/backmassage/layerlapse/internal/display"
	"github.com/backmassage/layerlapse/internal/ffmpeg"
	"github.com/backmassage/layerlapse/internal/planner"
)

// Median returns the median of sizes. An even count averages the two middle
// values. The input is not modified; an empty input yields 0.
func Median(sizes []int64) float64 {
	n := len(sizes)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	for i, s := range sizes {
		sorted[i] = float64(s)
	}
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Threshold is the smallest acceptable size for a given median and ratio.
func Threshold(median, ratio float64) float64 {
	return median * ratio
}

// Corrupt reports whether size falls strictly below threshold.
func Corrupt(size int64, threshold float64) bool {
	return float64(size) < threshold
}

// RecoveryReport summarises DetectAndRecover. Slot lists are in slot order.
type RecoveryReport struct {
	Frames    int // slot files measured
	Sizes     []Slot
	Median    float64
	Threshold float64
	Corrupt   []int // slots below threshold before recovery
	Recovered []int // corrupt slots that reached the threshold
	Exhausted []int // corrupt slots whose candidates all failed
	Skipped   []int // corrupt slots with no layer in the SlotMap
	Attempts  int   // recovery extractor calls
}

// DetectAndRecover measures every slot file in the frames dir, flags those
// below Threshold(Median(sizes), ratio), and re-extracts each flagged slot
// from its layer's other timestamps in log order, stopping at the first
// result that meets the threshold. Slots absent on disk are gaps, not
// corruption. Running out of candidates is reported, never fatal; the slot
// keeps whatever the last successful attempt wrote. The threshold is fixed
// for the whole phase.
func (r *Runner) DetectAndRecover(ctx context.Context, slots *SlotMap, ratio float64) (RecoveryReport, error) {
	log := r.logger()

	found, err := DiscoverSlots(r.Dir)
	if err != nil {
		return RecoveryReport{}, err
	}
	rep := RecoveryReport{Frames: len(found)}
	if len(found) == 0 {
		log.Warn("No frames found to analyze")
		return rep, nil
	}

	sizes := make([]int64, len(found))
	for i, s := range found {
		sizes[i] = s.Size
	}
	rep.Median = Median(sizes)
	rep.Threshold = Threshold(rep.Median, ratio)
	log.Info("Median frame size: %s, corruption threshold: %s (ratio %.2f)",
		display.FormatBytes(int64(rep.Median)), display.FormatBytes(int64(rep.Threshold)), ratio)

	for _, s := range found {
		if !Corrupt(s.Size, rep.Threshold) {
			continue
		}
		rep.Corrupt = append(rep.Corrupt, s.Index)

		l, ok := slots.Layer(s.Index)
		if !ok {
			log.Warn("Frame %d (%s) is below threshold but maps to no layer; skipping",
				s.Index, display.FormatBytes(s.Size))
			rep.Skipped = append(rep.Skipped, s.Index)
			continue
		}
		tried := planner.Timestamp(l, r.Policy)
		flog := r.slotLog(s.Index, l.Key, tried)
		flog.Warn("Corrupt frame %d at Z=%s (%s)", s.Index, l.Key, display.FormatBytes(s.Size))

		recovered := false
		for _, ts := range l.Candidates(tried) {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rep.Attempts++
			flog.Debug("  retrying Z=%s at %ss", l.Key, ffmpeg.FormatTimestamp(ts))

			a := r.extract(ctx, PhaseRecovery, s.Index, l.Key, ts)
			if !a.OK {
				flog.Debug("  retry at %ss failed: %v", ffmpeg.FormatTimestamp(ts), a.Err)
				continue
			}
			if !Corrupt(a.Size, rep.Threshold) {
				flog.Success("Recovered frame %d from %ss (%s, %s)", s.Index, ffmpeg.FormatTimestamp(ts),
					display.FormatBytes(a.Size), display.FormatBytesWithSign(a.Size-s.Size))
				recovered = true
				break
			}
			flog.Debug("  retry at %ss still small (%s)", ffmpeg.FormatTimestamp(ts), display.FormatBytes(a.Size))
		}

		if recovered {
			rep.Recovered = append(rep.Recovered, s.Index)
		} else {
			rep.Exhausted = append(rep.Exhausted, s.Index)
			flog.Warn("No valid replacement for frame %d at Z=%s; keeping last result", s.Index, l.Key)
		}
	}

	// Final sizes for reporting.
	if after, err := DiscoverSlots(r.Dir); err == nil {
		rep.Sizes = after
	} else {
		rep.Sizes = found
	}

	if len(rep.Corrupt) == 0 {
		log.Success("No corrupt frames detected")
	}
	return rep, nil
}
