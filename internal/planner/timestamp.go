package planner

import (
	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/layers"
)

// Timestamp picks the representative timestamp of a layer: the midpoint of
// its first and last samples, or the first sample under PolicyFirst.
func Timestamp(l layers.Layer, policy config.TimestampPolicy) float64 {
	if policy == config.PolicyFirst {
		return l.First()
	}
	return l.Midpoint()
}
