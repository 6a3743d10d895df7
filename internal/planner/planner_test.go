package planner

import (
	"testing"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/layers"
)

// --- Helper builders ---

func defaultCfg() *config.Config {
	cfg := config.DefaultConfig()
	return &cfg
}

func layer(key layers.LayerKey, ts ...float64) layers.Layer {
	return layers.Layer{Key: key, Timestamps: ts}
}

// --- Framerate ---

func TestFramerate(t *testing.T) {
	tests := []struct {
		frames int
		want   int
		clamp  ClampKind
	}{
		{0, 15, ClampMin},
		{47, 15, ClampMin},
		{150, 15, ClampNone},
		{300, 30, ClampNone},
		{309, 30, ClampNone},
		{600, 60, ClampNone},
		{1000, 60, ClampMax},
		{-5, 15, ClampMin},
	}
	for _, tt := range tests {
		p := PlanFramerate(tt.frames, 15, 60)
		if p.Final != tt.want || p.Clamp != tt.clamp {
			t.Errorf("PlanFramerate(%d) = %d (%v), want %d (%v)", tt.frames, p.Final, p.Clamp, tt.want, tt.clamp)
		}
		if got := Framerate(tt.frames, 15, 60); got != tt.want {
			t.Errorf("Framerate(%d) = %d, want %d", tt.frames, got, tt.want)
		}
	}
}

func TestFramerate_NeverBelowMinimum(t *testing.T) {
	for n := 0; n <= 2000; n += 7 {
		for _, bounds := range [][2]int{{1, 1}, {15, 60}, {24, 24}, {5, 120}} {
			got := Framerate(n, bounds[0], bounds[1])
			if got < bounds[0] || got > bounds[1] {
				t.Fatalf("Framerate(%d, %d, %d) = %d, out of bounds", n, bounds[0], bounds[1], got)
			}
		}
	}
}

func TestPlaybackSeconds(t *testing.T) {
	p := PlanFramerate(300, 15, 60)
	if got := p.PlaybackSeconds(); got != 15 {
		t.Errorf("PlaybackSeconds() = %v, want 15 (10s motion + 5s hold)", got)
	}
	if got := (FrameratePlan{}).PlaybackSeconds(); got != 0 {
		t.Errorf("zero plan PlaybackSeconds() = %v, want 0", got)
	}
}

// --- Timestamp ---

func TestTimestamp_Policy(t *testing.T) {
	l := layer(200, 10, 11, 30)
	if got := Timestamp(l, config.PolicyMidpoint); got != 20 {
		t.Errorf("midpoint = %v, want 20", got)
	}
	if got := Timestamp(l, config.PolicyFirst); got != 10 {
		t.Errorf("first = %v, want 10", got)
	}
	if got := Timestamp(layer(300, 7), config.PolicyMidpoint); got != 7 {
		t.Errorf("single-sample midpoint = %v, want 7", got)
	}
}

// --- BuildPlan ---

func TestBuildPlan(t *testing.T) {
	cfg := defaultCfg()
	set := layers.StableSet{
		layer(200, 10, 12, 14),
		layer(400, 20, 22, 24),
		layer(600, 30, 34, 38),
	}
	p := BuildPlan(cfg, set)

	if p.Layers != 3 {
		t.Errorf("Layers = %d, want 3", p.Layers)
	}
	if p.FirstTS != 12 || p.LastTS != 34 {
		t.Errorf("span = %v..%v, want 12..34", p.FirstTS, p.LastTS)
	}
	if p.Framerate.Final != cfg.MinFramerate {
		t.Errorf("Framerate = %d, want min %d", p.Framerate.Final, cfg.MinFramerate)
	}
}

func TestBuildPlan_Empty(t *testing.T) {
	p := BuildPlan(defaultCfg(), nil)
	if p.Layers != 0 || p.FirstTS != 0 {
		t.Errorf("unexpected plan for empty set: %+v", p)
	}
}
