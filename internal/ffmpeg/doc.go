// Package ffmpeg builds and executes the two ffmpeg commands layerlapse
// needs: single-frame extraction at a timestamp and final timelapse assembly.
//
// Argument construction is pure (ExtractArgs, AssembleArgs) so it can be
// tested without ffmpeg installed. Execution goes through Run, which applies
// a per-call timeout, kills the process on expiry, and keeps stderr for
// error reporting.
//
// Extraction writes to a hidden partial file beside the destination and
// renames it into place only on success, so a failed retry never clobbers
// a frame produced by an earlier attempt.
package ffmpeg
