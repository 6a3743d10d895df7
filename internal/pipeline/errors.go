package pipeline

import (
	"errors"

	"github.com/backmassage/layerlapse/internal/layers"
)

// Sentinel errors returned by Run. layers.ErrNoLayers is returned unwrapped
// alongside these when the log holds no stable layer.
var (
	ErrInputMissing = errors.New("session input missing")
	ErrNoFrames     = errors.New("no frames to assemble")
	ErrAssembly     = errors.New("assembly failed")
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // configuration, input or assembly failure
	ExitNoData  = 2 // nothing to assemble
)

// ExitCode maps a Run error to the process exit status. Configuration,
// input and assembly failures all map to ExitFailure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, layers.ErrNoLayers), errors.Is(err, ErrNoFrames):
		return ExitNoData
	}
	return ExitFailure
}

// status is the short outcome label stored in the ledger.
func status(err error, dryRun bool) string {
	switch {
	case err == nil && dryRun:
		return "dry-run"
	case err == nil:
		return "ok"
	case errors.Is(err, layers.ErrNoLayers):
		return "no layers"
	case errors.Is(err, ErrNoFrames):
		return "no frames"
	case errors.Is(err, ErrInputMissing):
		return "input missing"
	case errors.Is(err, ErrAssembly):
		return "assembly failed"
	}
	return "failed"
}
