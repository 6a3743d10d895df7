package planner

import (
	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/layers"
)

// BuildPlan summarises what a run over set would do under cfg. The
// framerate assumes every layer yields a frame; the pipeline replans from
// the frames actually produced.
func BuildPlan(cfg *config.Config, set layers.StableSet) *Plan {
	p := &Plan{
		Layers:    len(set),
		Policy:    cfg.TimestampPolicy,
		Framerate: PlanFramerate(len(set), cfg.MinFramerate, cfg.MaxFramerate),
	}
	if len(set) > 0 {
		p.FirstTS = Timestamp(set[0], cfg.TimestampPolicy)
		p.LastTS = Timestamp(set[len(set)-1], cfg.TimestampPolicy)
	}
	return p
}
