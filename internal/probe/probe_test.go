package probe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// ffprobe JSON for a printer-camera MP4: one attached cover image that must
// be skipped, one H.264 stream, and a data track.
const sampleRecording = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 320,
      "height": 240,
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720,
      "avg_frame_rate": "30000/1001",
      "nb_frames": "107892",
      "duration": "3600.200000",
      "disposition": { "default": 1, "attached_pic": 0 }
    },
    {
      "index": 2,
      "codec_type": "data",
      "codec_tag_string": "tmcd"
    }
  ],
  "format": {
    "filename": "/prints/benchy/print_recording.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "3600.250000",
    "size": "734003200"
  }
}`

func TestParseJSON(t *testing.T) {
	info, err := ParseJSON([]byte(sampleRecording))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if info.Codec != "h264" {
		t.Errorf("Codec = %q, want h264 (attached pic must be skipped)", info.Codec)
	}
	if got := info.Resolution(); got != "1280x720" {
		t.Errorf("Resolution() = %q, want 1280x720", got)
	}
	if info.Duration != 3600.25 {
		t.Errorf("Duration = %v, want 3600.25", info.Duration)
	}
	if info.Frames != 107892 {
		t.Errorf("Frames = %d, want 107892", info.Frames)
	}
	if info.FrameRate < 29.96 || info.FrameRate > 29.98 {
		t.Errorf("FrameRate = %v, want ~29.97", info.FrameRate)
	}
	if !info.Covers(3600) || info.Covers(3601) {
		t.Errorf("Covers mismatch around duration %v", info.Duration)
	}
}

func TestParseJSON_DurationFallsBackToStream(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","codec_name":"h264","duration":"12.5"}],"format":{}}`
	info, err := ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if info.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", info.Duration)
	}
}

func TestParseJSON_NoVideo(t *testing.T) {
	data := `{"streams":[{"codec_type":"audio"}],"format":{"duration":"5"}}`
	info, err := ParseJSON([]byte(data))
	if err != ErrNoVideoStream {
		t.Fatalf("err = %v, want ErrNoVideoStream", err)
	}
	if info.Duration != 5 {
		t.Errorf("Duration = %v, want 5", info.Duration)
	}
	if info.Resolution() != "unknown" {
		t.Errorf("Resolution() = %q, want unknown", info.Resolution())
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"streams": [`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestUnknownDurationCoversEverything(t *testing.T) {
	v := &VideoInfo{}
	if !v.Covers(1e9) {
		t.Error("zero duration should cover any timestamp")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"x/1", 0},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProbe_Real(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffprobe integration test in short mode")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not available")
	}
	if _, err := Probe(context.Background(), "ffprobe", "/nonexistent/print_recording.mp4", time.Minute); err == nil {
		t.Error("expected error probing a missing file")
	}
}

func TestProbe_TimeoutKillsHungFFprobe(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err := Probe(context.Background(), bin, "print_recording.mp4", 200*time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from a hung ffprobe")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("err = %v, want a timeout", err)
	}
	if elapsed > 10*time.Second {
		t.Errorf("Probe returned after %s; timeout not applied", elapsed)
	}
}
