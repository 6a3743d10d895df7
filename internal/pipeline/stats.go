package pipeline

import (
	"time"

	"github.com/backmassage/layerlapse/internal/frames"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/planner"
	"github.com/backmassage/layerlapse/internal/report"
)

// RunStats tracks what a run saw and did.
type RunStats struct {
	Session string
	Output  string
	Resumed bool
	DryRun  bool

	// Log aggregation.
	LogRows    int
	LogSkipped int
	Buckets    int
	Layers     int
	Rejected   []layers.Rejection

	// Extraction.
	Initial  frames.PassResult
	Recovery frames.RecoveryReport
	Sizes    report.Summary

	// Assembly.
	Frames      int
	Framerate   planner.FrameratePlan
	OutputBytes int64

	Stages []StageTiming
}

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Name    string
	Elapsed time.Duration
}

// Elapsed is the total time across recorded stages.
func (s *RunStats) Elapsed() time.Duration {
	var d time.Duration
	for _, st := range s.Stages {
		d += st.Elapsed
	}
	return d
}

// Gaps is the number of layers that ended with no frame.
func (s *RunStats) Gaps() int {
	if s.Resumed || s.Layers == 0 {
		return 0
	}
	return max(s.Layers-s.Frames, 0)
}
