// Package layers turns the print log into physical layers.
//
// The log is a CSV of (RelativeTimestamp, Z, ...) rows sampled while the
// printer runs. Readings are rounded to a LayerKey, folded into per-key
// timestamp sequences (Bucket), and filtered by stability rules (Stabilize):
// enough samples per layer and a plausible step from the previously accepted
// layer. Keys are walked in ascending height, not log order, so a late
// Z-hop back down still lands in its numeric place.
package layers
