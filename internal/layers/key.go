package layers

import (
	"math"
	"strconv"
)

// Precision is the number of decimal places Z readings are rounded to.
const Precision = 3

const keyScale = 1000 // 10^Precision

// LayerKey is a Z-height rounded to Precision decimal places, stored as an
// integer count of micrometres. Readings that round to the same value share
// a key, and step arithmetic between keys is exact.
type LayerKey int64

// KeyOf rounds a Z reading in millimetres to its LayerKey (half away from zero).
func KeyOf(zMM float64) LayerKey {
	return LayerKey(math.Round(zMM * keyScale))
}

// MM returns the key's height in millimetres.
func (k LayerKey) MM() float64 {
	return float64(k) / keyScale
}

// String formats the key with Precision decimals, e.g. "0.200".
func (k LayerKey) String() string {
	return strconv.FormatFloat(k.MM(), 'f', Precision, 64)
}
