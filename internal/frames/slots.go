package frames

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/naming"
)

// SlotMap maps 1-based slot indices to the layers they depict. It is built
// once from a StableSet and never changes.
type SlotMap struct {
	set layers.StableSet
}

// NewSlotMap numbers the layers of set in ascending key order.
func NewSlotMap(set layers.StableSet) *SlotMap {
	return &SlotMap{set: set}
}

// Len is the number of slots.
func (m *SlotMap) Len() int { return len(m.set) }

// Layer returns the layer at slot idx. ok is false for indices outside the map.
func (m *SlotMap) Layer(idx int) (layers.Layer, bool) {
	if idx < 1 || idx > len(m.set) {
		return layers.Layer{}, false
	}
	return m.set[idx-1], true
}

// Key returns the layer key at slot idx.
func (m *SlotMap) Key(idx int) (layers.LayerKey, bool) {
	l, ok := m.Layer(idx)
	return l.Key, ok
}

// Slot is a frame file found on disk.
type Slot struct {
	Index int
	Path  string
	Size  int64
}

// DiscoverSlots lists the frame files in dir in slot order. Files that are
// not slot files (partials, notes, other images) are ignored. A missing dir
// yields no slots and no error.
func DiscoverSlots(dir string) ([]Slot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	var slots []Slot
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		idx, ok := naming.ParseFrameIndex(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		slots = append(slots, Slot{
			Index: idx,
			Path:  naming.FramePath(dir, idx),
			Size:  info.Size(),
		})
	}
	slices.SortFunc(slots, func(a, b Slot) int { return a.Index - b.Index })
	return slots, nil
}

// PrepareDir removes dir and everything in it, then recreates it empty.
func PrepareDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear frames dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}
	return nil
}
