package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNoVideoStream is returned when the file has no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// waitDelay bounds how long Probe waits for pipes after ffprobe is killed.
const waitDelay = 5 * time.Second

// Probe runs ffprobe (bin) against path and returns the parsed result.
// A positive timeout kills ffprobe once it expires.
func Probe(ctx context.Context, bin, path string, timeout time.Duration) (*VideoInfo, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("ffprobe %q: timed out after %s", path, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseJSON(out)
}

// ParseJSON converts raw ffprobe JSON output into a VideoInfo.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*VideoInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("parse ffprobe JSON: invalid document")
	}
	doc := gjson.ParseBytes(data)

	info := &VideoInfo{
		Filename:   doc.Get("format.filename").String(),
		FormatName: doc.Get("format.format_name").String(),
		Duration:   doc.Get("format.duration").Float(),
	}

	var video gjson.Result
	doc.Get("streams").ForEach(func(_, s gjson.Result) bool {
		if s.Get("codec_type").String() != "video" || s.Get("disposition.attached_pic").Int() == 1 {
			return true
		}
		video = s
		return false
	})
	if !video.Exists() {
		return info, ErrNoVideoStream
	}

	info.Codec = video.Get("codec_name").String()
	info.Width = int(video.Get("width").Int())
	info.Height = int(video.Get("height").Int())
	info.FrameRate = parseRate(video.Get("avg_frame_rate").String())
	info.Frames = video.Get("nb_frames").Int()
	if info.Duration <= 0 {
		info.Duration = video.Get("duration").Float()
	}
	return info, nil
}

// parseRate evaluates ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
