package display

import (
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"small bytes", 512, "512 B"},
		{"exactly 1 KiB", 1024, "1.0 KiB"},
		{"1.5 KiB", 1536, "1.5 KiB"},
		{"1 MiB", 1024 * 1024, "1.0 MiB"},
		{"1 GiB", 1024 * 1024 * 1024, "1.0 GiB"},
		{"typical file 700 MiB", 734003200, "700.0 MiB"},
		{"4.7 GiB", 5046586572, "4.7 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBytes(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBytesWithSign(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"positive", 1024 * 1024, "+ 1.0 MiB"},
		{"negative", -1024 * 1024, "- 1.0 MiB"},
		{"zero", 0, "0 B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBytesWithSign(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatBytesWithSign(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBytesWithSign_FrameDeltas(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{850, "+ 850 B"},
		{-2048, "- 2.0 KiB"},
	}
	for _, tt := range tests {
		if got := FormatBytesWithSign(tt.bytes); got != tt.want {
			t.Errorf("FormatBytesWithSign(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00.000"},
		{12.5, "0:12.500"},
		{61.25, "1:01.250"},
		{3723.0004, "1:02:03.000"},
		{-3, "0:00.000"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
