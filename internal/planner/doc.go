// Package planner makes the two scheduling decisions of a timelapse run:
// which timestamp represents each layer, and what framerate the assembled
// video plays at.
//
// The framerate targets a fixed playback length: one frame per layer,
// TargetDurationSeconds of motion, clamped to the configured bounds. A hold
// of HoldSeconds on the final frame is appended at assembly and is not part
// of the target.
package planner
