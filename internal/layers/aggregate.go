package layers

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/backmassage/layerlapse/internal/config"
)

// ErrNoLayers is returned when no layer survives bucketing and filtering.
var ErrNoLayers = errors.New("no stable layers in print log")

// Layer is one logical Z-height with every timestamp at which the log
// reported it, in log order. Timestamps is never empty.
type Layer struct {
	Key        LayerKey
	Timestamps []float64
}

// First returns the earliest timestamp in log order.
func (l Layer) First() float64 { return l.Timestamps[0] }

// Last returns the latest timestamp in log order.
func (l Layer) Last() float64 { return l.Timestamps[len(l.Timestamps)-1] }

// Midpoint returns the average of the first and last timestamps.
func (l Layer) Midpoint() float64 { return (l.First() + l.Last()) / 2 }

// Candidates returns the layer's timestamps in log order, minus any equal to
// tried. These are the alternates used when a frame has to be re-extracted.
func (l Layer) Candidates(tried float64) []float64 {
	out := make([]float64, 0, len(l.Timestamps))
	for _, ts := range l.Timestamps {
		if ts != tried {
			out = append(out, ts)
		}
	}
	return out
}

// LayerSamples is every positive layer seen in the log, sorted by key.
type LayerSamples []Layer

// StableSet is the subset of LayerSamples that passed the stability rules,
// sorted by key.
type StableSet []Layer

// Keys returns the set's keys in ascending order.
func (s StableSet) Keys() []LayerKey {
	keys := make([]LayerKey, len(s))
	for i, l := range s {
		keys[i] = l.Key
	}
	return keys
}

// Lookup finds the layer with the given key.
func (s StableSet) Lookup(key LayerKey) (Layer, bool) {
	i, found := slices.BinarySearchFunc(s, key, func(l Layer, k LayerKey) int {
		return cmpKey(l.Key, k)
	})
	if !found {
		return Layer{}, false
	}
	return s[i], true
}

// Bucket folds samples into layers keyed by rounded Z, preserving each
// layer's timestamp order. Keys at or below zero (homing, pre-print) are
// dropped. The input is not modified.
func Bucket(samples []Sample) LayerSamples {
	byKey := make(map[LayerKey][]float64)
	for _, s := range samples {
		k := KeyOf(s.Z)
		if k <= 0 {
			continue
		}
		byKey[k] = append(byKey[k], s.Timestamp)
	}

	out := make(LayerSamples, 0, len(byKey))
	for k, ts := range byKey {
		out = append(out, Layer{Key: k, Timestamps: ts})
	}
	slices.SortFunc(out, func(a, b Layer) int { return cmpKey(a.Key, b.Key) })
	return out
}

// Rules are the stability thresholds applied by Stabilize.
type Rules struct {
	MinSamples int
	MinChange  LayerKey // smallest accepted step from the last accepted key
	MaxHeight  LayerKey // largest accepted step from the last accepted key
}

// RulesFromConfig converts the configured millimetre bounds to key units.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		MinSamples: cfg.MinStabilityCount,
		MinChange:  KeyOf(cfg.MinZChangeMM),
		MaxHeight:  KeyOf(cfg.MaxLayerHeightMM),
	}
}

// RejectReason says why Stabilize dropped a layer.
type RejectReason int

const (
	RejectTooFewSamples RejectReason = iota + 1
	RejectStepTooSmall
	RejectStepTooLarge
)

func (r RejectReason) String() string {
	switch r {
	case RejectTooFewSamples:
		return "too few samples"
	case RejectStepTooSmall:
		return "step below minimum"
	case RejectStepTooLarge:
		return "step above maximum"
	}
	return "unknown"
}

// Rejection records one dropped layer for the operator trace.
type Rejection struct {
	Key      LayerKey
	Previous LayerKey // last accepted key at the time (0 before the first)
	Samples  int
	Reason   RejectReason
}

func (r Rejection) String() string {
	switch r.Reason {
	case RejectTooFewSamples:
		return fmt.Sprintf("Z=%s: %s (%d)", r.Key, r.Reason, r.Samples)
	default:
		return fmt.Sprintf("Z=%s: %s (step %s mm from Z=%s)", r.Key, r.Reason, r.Key-r.Previous, r.Previous)
	}
}

// Stabilize walks layers in ascending key order and keeps a layer iff it has
// at least rules.MinSamples timestamps and its step from the last accepted
// key lies within [MinChange, MaxHeight]. The walk starts from Z=0. A
// rejected layer is never reconsidered.
func Stabilize(samples LayerSamples, rules Rules) (StableSet, []Rejection) {
	var (
		stable   StableSet
		rejected []Rejection
		last     LayerKey
	)
	for _, l := range samples {
		rej := Rejection{Key: l.Key, Previous: last, Samples: len(l.Timestamps)}
		step := l.Key - last
		switch {
		case len(l.Timestamps) < rules.MinSamples:
			rej.Reason = RejectTooFewSamples
		case step < rules.MinChange:
			rej.Reason = RejectStepTooSmall
		case step > rules.MaxHeight:
			rej.Reason = RejectStepTooLarge
		default:
			stable = append(stable, l)
			last = l.Key
			continue
		}
		rejected = append(rejected, rej)
	}
	return stable, rejected
}

// Result is the outcome of Aggregate.
type Result struct {
	Stable   StableSet
	Rejected []Rejection
	Buckets  int // positive layers before filtering
	Stats    ReadStats
}

// Aggregate reads the print log and returns its stable layers. It returns
// ErrNoLayers (with the partial Result) when nothing survives.
func Aggregate(r io.Reader, rules Rules) (Result, error) {
	samples, stats, err := ReadSamples(r)
	if err != nil {
		return Result{Stats: stats}, err
	}
	buckets := Bucket(samples)
	stable, rejected := Stabilize(buckets, rules)
	res := Result{
		Stable:   stable,
		Rejected: rejected,
		Buckets:  len(buckets),
		Stats:    stats,
	}
	if len(stable) == 0 {
		return res, ErrNoLayers
	}
	return res, nil
}

func cmpKey(a, b LayerKey) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
