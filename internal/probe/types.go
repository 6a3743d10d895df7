package probe

import "strconv"

// VideoInfo is the subset of ffprobe output layerlapse uses.
type VideoInfo struct {
	Filename   string
	FormatName string
	Duration   float64 // seconds; 0 when ffprobe could not tell
	Codec      string
	Width      int
	Height     int
	FrameRate  float64 // avg_frame_rate evaluated; 0 when unknown
	Frames     int64   // nb_frames; 0 when the container does not record it
}

// Resolution returns "WxH" for the video stream, or "unknown".
func (v *VideoInfo) Resolution() string {
	if v.Width <= 0 || v.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(v.Width) + "x" + strconv.Itoa(v.Height)
}

// Covers reports whether ts (seconds) lies within the recording. An unknown
// duration covers everything.
func (v *VideoInfo) Covers(ts float64) bool {
	return v.Duration <= 0 || ts <= v.Duration
}
