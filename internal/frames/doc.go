// Package frames extracts one still per stable layer and repairs the ones
// that came out damaged.
//
// Each layer owns a numbered slot (frame_Z_000001.png, ...). The SlotMap
// fixes that numbering once from the sorted stable set, so later phases
// never re-derive which layer a file belongs to by position.
//
// Work happens in two strictly ordered phases. InitialPass extracts every
// slot at its representative timestamp. DetectAndRecover then measures the
// whole cohort, takes a size threshold relative to the median, and
// re-extracts undersized slots from the layer's other timestamps.
package frames
