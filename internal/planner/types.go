package planner

import "github.com/backmassage/layerlapse/internal/config"

// ClampKind says which bound, if any, adjusted the raw framerate.
type ClampKind int

const (
	ClampNone ClampKind = iota
	ClampMin
	ClampMax
)

func (c ClampKind) String() string {
	switch c {
	case ClampMin:
		return "raised to minimum"
	case ClampMax:
		return "lowered to maximum"
	}
	return "within bounds"
}

// FrameratePlan records how the output framerate was chosen.
type FrameratePlan struct {
	Frames int
	Raw    int
	Final  int
	Clamp  ClampKind
}

// PlaybackSeconds is the expected output length including the hold tail.
func (p FrameratePlan) PlaybackSeconds() float64 {
	if p.Final < 1 {
		return 0
	}
	return float64(p.Frames)/float64(p.Final) + config.HoldSeconds
}

// Plan is the dry-run summary of a run: what would be extracted and how it
// would play back.
type Plan struct {
	Layers    int
	FirstTS   float64 // representative timestamp of the lowest layer
	LastTS    float64 // representative timestamp of the highest layer
	Policy    config.TimestampPolicy
	Framerate FrameratePlan
}
