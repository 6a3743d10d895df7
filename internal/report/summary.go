// Package report summarises the frame-size cohort after recovery: a
// statistical digest for the run log and an optional PNG chart of size per
// slot against the corruption threshold.
package report

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/backmassage/layerlapse/internal/frames"
)

// outlierZ marks slots whose size sits this many standard deviations below
// the mean. They passed the threshold but are worth a look.
const outlierZ = -2.5

// Summary describes the final frame sizes.
type Summary struct {
	Count      int
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
	Median     float64
	Threshold  float64
	BelowAfter int   // slots still under the threshold
	Outliers   []int // slots with a z-score under outlierZ
}

// Summarize computes the digest of slots. median and threshold are the
// values used by recovery, carried through for the log line.
func Summarize(slots []frames.Slot, median, threshold float64) Summary {
	s := Summary{Count: len(slots), Median: median, Threshold: threshold}
	if len(slots) == 0 {
		return s
	}
	sizes := make([]float64, len(slots))
	for i, sl := range slots {
		sizes[i] = float64(sl.Size)
		if frames.Corrupt(sl.Size, threshold) {
			s.BelowAfter++
		}
	}
	s.Mean, s.StdDev = stat.MeanStdDev(sizes, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	s.Min = floats.Min(sizes)
	s.Max = floats.Max(sizes)

	if s.StdDev > 0 {
		for i, v := range sizes {
			if stat.StdScore(v, s.Mean, s.StdDev) < outlierZ {
				s.Outliers = append(s.Outliers, slots[i].Index)
			}
		}
	}
	return s
}

// CV is the coefficient of variation (stddev / mean); 0 for an empty or
// zero-mean cohort.
func (s Summary) CV() float64 {
	if s.Mean == 0 {
		return 0
	}
	return s.StdDev / s.Mean
}
