// Package probe inspects the print recording with a single ffprobe JSON
// call. Fields are read with gjson paths rather than fixed wire structs,
// since only a handful of values are needed and ffprobe versions disagree
// on which keys are present.
package probe
