package frames

import (
	"time"

	"github.com/backmassage/layerlapse/internal/layers"
)

// Phase distinguishes first extractions from recovery retries.
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseRecovery Phase = "recovery"
)

// Attempt is one extractor call and its result.
type Attempt struct {
	Phase     Phase
	Slot      int
	Key       layers.LayerKey
	Timestamp float64
	OK        bool
	Size      int64 // bytes on disk after a successful call
	Err       error
	Elapsed   time.Duration
}

// Recorder observes every extraction attempt. Implementations must not
// block for long; they run inline with extraction.
type Recorder interface {
	RecordAttempt(Attempt)
}

// Recorders fans an attempt out to several recorders.
type Recorders []Recorder

// RecordAttempt implements Recorder.
func (rs Recorders) RecordAttempt(a Attempt) {
	for _, r := range rs {
		if r != nil {
			r.RecordAttempt(a)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(Attempt) {}
