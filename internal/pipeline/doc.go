// Package pipeline orchestrates one post-processing run over a print
// session: aggregate the log into layers, extract a frame per layer, repair
// undersized frames, plan the framerate, and hand the frames to assembly.
//
// Per-frame failures are logged and never abort the run. A run with frames
// already on disk takes the resume path and goes straight to assembly.
package pipeline
