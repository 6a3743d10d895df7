// Package naming owns every file name layerlapse reads or writes inside a
// session directory: the recording and log inputs, the frame slots, the
// final video, and the default ledger location.
//
// All paths are derived from an explicit session root; nothing here depends
// on the process working directory.
package naming
