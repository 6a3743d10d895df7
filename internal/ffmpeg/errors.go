package ffmpeg

import (
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors wrapped by Extract and Assemble.
var (
	ErrExtract  = errors.New("frame extraction failed")
	ErrAssemble = errors.New("timelapse assembly failed")
	ErrTimeout  = errors.New("ffmpeg timed out")
)

// Pre-compiled regexes for classifying ffmpeg stderr. Used only to give the
// operator a hint; classification never changes control flow.
var (
	reEmptyOutput = regexp.MustCompile(
		`Output file is empty, nothing was encoded|` +
			`Output file #0 does not contain any stream|` +
			`could not seek to position`)

	reDecodeIssue = regexp.MustCompile(
		`(?i)Invalid data found when processing input|` +
			`error while decoding|` +
			`concealing \d+ (DC|AC|MV) errors|` +
			`moov atom not found|` +
			`corrupt`)

	reMissingInput = regexp.MustCompile(
		`No such file or directory|Permission denied`)

	reNoMatchingFrames = regexp.MustCompile(
		`(?i)No such file or directory|Could find no file with path|glob.*no match`)
)

// Cause is a coarse classification of an ffmpeg failure.
type Cause int

const (
	CauseUnknown Cause = iota
	CausePastEnd       // seek beyond the recording or nothing decodable there
	CauseDecode        // damaged stream data at the seek point
	CauseInput         // input missing or unreadable
	CauseTimeout       // killed after the per-call timeout
)

func (c Cause) String() string {
	switch c {
	case CausePastEnd:
		return "timestamp past end of recording"
	case CauseDecode:
		return "damaged video data"
	case CauseInput:
		return "input unreadable"
	case CauseTimeout:
		return "timed out"
	}
	return "unknown"
}

// Classify maps extraction stderr to a Cause.
func Classify(stderr string) Cause {
	switch {
	case reMissingInput.MatchString(stderr):
		return CauseInput
	case reEmptyOutput.MatchString(stderr):
		return CausePastEnd
	case reDecodeIssue.MatchString(stderr):
		return CauseDecode
	}
	return CauseUnknown
}

// MatchNoFrames reports whether assembly stderr says the glob matched nothing.
func MatchNoFrames(stderr string) bool {
	return reNoMatchingFrames.MatchString(stderr)
}

const tailLines = 5

// StderrTail returns the last few non-empty lines of stderr, joined by " | ".
func StderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	kept := make([]string, 0, tailLines)
	for i := len(lines) - 1; i >= 0 && len(kept) < tailLines; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			kept = append(kept, l)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}
