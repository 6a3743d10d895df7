package ffmpeg

import (
	"fmt"
	"strconv"
)

// ExtractArgs constructs the ffmpeg argument slice that writes the single
// frame at ts (seconds) of video to dest. The seek is placed before -i:
// fast keyframe-assisted seeking, not frame-exact.
func ExtractArgs(bin, video string, ts float64, dest string) []string {
	return []string{
		bin,
		"-hide_banner", "-nostdin",
		"-loglevel", "error",
		"-y",
		"-ss", FormatTimestamp(ts),
		"-i", video,
		"-an",
		"-frames:v", "1",
		"-q:v", "1",
		dest,
	}
}

// AssembleArgs constructs the ffmpeg argument slice that encodes every frame
// matching req.Pattern into req.Output at req.Framerate, holding the last
// frame for req.HoldSeconds. Glob input tolerates gaps in the slot sequence.
func AssembleArgs(bin string, req AssemblyRequest) []string {
	return []string{
		bin,
		"-hide_banner", "-nostdin",
		"-loglevel", "error",
		"-y",
		"-framerate", strconv.Itoa(req.Framerate),
		"-pattern_type", "glob",
		"-i", req.Pattern,
		"-vf", assembleFilter(req.HoldSeconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		req.Output,
	}
}

// assembleFilter pads odd dimensions (yuv420p needs even sizes) and clones
// the final frame for the hold tail.
func assembleFilter(hold int) string {
	f := "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	if hold > 0 {
		f += fmt.Sprintf(",tpad=stop_mode=clone:stop_duration=%d", hold)
	}
	return f
}

// FormatTimestamp renders seconds with millisecond precision for -ss.
func FormatTimestamp(ts float64) string {
	if ts < 0 {
		ts = 0
	}
	return strconv.FormatFloat(ts, 'f', 3, 64)
}
