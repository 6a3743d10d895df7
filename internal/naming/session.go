package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Fixed names inside a session directory, as written by the print monitor.
const (
	VideoFile    = "print_recording.mp4"
	LogFile      = "print_log.csv"
	FramesDir    = "extracted_frames"
	OutputSuffix = "_timelapse.mp4"
	LedgerFile   = "layerlapse.db"
	FallbackID   = "default_print"
)

// Session holds the resolved paths of one print session.
type Session struct {
	Dir       string // absolute session root
	ID        string
	VideoPath string
	LogPath   string
	FramesDir string
	Output    string
}

// NewSession resolves dir to an absolute path and derives every session path
// from it.
func NewSession(dir string) (Session, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Session{}, fmt.Errorf("resolve session dir %q: %w", dir, err)
	}
	id := SessionID(abs)
	return Session{
		Dir:       abs,
		ID:        id,
		VideoPath: filepath.Join(abs, VideoFile),
		LogPath:   filepath.Join(abs, LogFile),
		FramesDir: filepath.Join(abs, FramesDir),
		Output:    filepath.Join(abs, OutputName(id)),
	}, nil
}

// SessionID is the base name of dir with dots replaced by underscores and
// surrounding whitespace trimmed. A root or otherwise empty name falls back
// to FallbackID.
func SessionID(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == string(filepath.Separator) || base == "." {
		return FallbackID
	}
	id := strings.TrimSpace(strings.ReplaceAll(base, ".", "_"))
	if id == "" || strings.Trim(id, "_") == "" {
		return FallbackID
	}
	return id
}

// OutputName is the final video's file name for a session ID.
func OutputName(id string) string {
	return id + OutputSuffix
}
