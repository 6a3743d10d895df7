package naming

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Frame slot files are frame_Z_NNNNNN.png with a 1-based, zero-padded index.
const (
	FramePrefix = "frame_Z_"
	FrameExt    = ".png"
	frameDigits = 6
)

// FrameName returns the slot file name for idx (1-based).
func FrameName(idx int) string {
	return fmt.Sprintf("%s%0*d%s", FramePrefix, frameDigits, idx, FrameExt)
}

// FramePath joins dir and FrameName(idx).
func FramePath(dir string, idx int) string {
	return filepath.Join(dir, FrameName(idx))
}

// ParseFrameIndex extracts the slot index from a frame file name. It rejects
// anything that FrameName could not have produced.
func ParseFrameIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, FramePrefix)
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, FrameExt)
	if !ok || len(digits) < frameDigits {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

// FrameGlob returns the ffmpeg glob pattern matching every slot in dir.
// Glob metacharacters in dir are escaped.
func FrameGlob(dir string) string {
	return filepath.Join(escapeGlob(dir), FramePrefix+"*"+FrameExt)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
