package planner

import "github.com/backmassage/layerlapse/internal/config"

// Framerate returns floor(frames / TargetDurationSeconds) clamped to
// [minFPS, maxFPS]. The result is never below minFPS, including for zero
// frames.
func Framerate(frames, minFPS, maxFPS int) int {
	return PlanFramerate(frames, minFPS, maxFPS).Final
}

// PlanFramerate is Framerate with the intermediate values kept for logging.
func PlanFramerate(frames, minFPS, maxFPS int) FrameratePlan {
	if frames < 0 {
		frames = 0
	}
	raw := frames / config.TargetDurationSeconds
	p := FrameratePlan{Frames: frames, Raw: raw, Final: raw}
	switch {
	case raw < minFPS:
		p.Final, p.Clamp = minFPS, ClampMin
	case raw > maxFPS:
		p.Final, p.Clamp = maxFPS, ClampMax
	}
	return p
}
