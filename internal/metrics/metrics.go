// Package metrics records run statistics on a private Prometheus registry
// and exports them as a node-exporter textfile at the end of a run.
//
// Metrics exposed:
//   - layerlapse_extract_attempts_total: extractor calls by phase and result
//   - layerlapse_extract_duration_seconds: extractor call latency by phase
//   - layerlapse_frame_size_bytes: size of every produced frame
//   - layerlapse_layers: layers by state (stable, rejected)
//   - layerlapse_frames: frames by state (produced, corrupt, recovered, exhausted)
//   - layerlapse_output_framerate: planned output framerate
//   - layerlapse_stage_duration_seconds: wall time of each pipeline stage
//   - layerlapse_last_run_success / layerlapse_last_run_timestamp_seconds
//
// Every metric carries the session label.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/backmassage/layerlapse/internal/frames"
)

// Metrics holds all metrics for one run.
type Metrics struct {
	reg *prometheus.Registry

	ExtractAttempts  *prometheus.CounterVec
	ExtractDuration  *prometheus.HistogramVec
	FrameSize        prometheus.Histogram
	Layers           *prometheus.GaugeVec
	Frames           *prometheus.GaugeVec
	OutputFramerate  prometheus.Gauge
	StageDuration    *prometheus.GaugeVec
	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// New creates the metrics on a fresh registry.
func New(session string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"session": session}

	return &Metrics{
		reg: reg,

		ExtractAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "layerlapse_extract_attempts_total",
			Help:        "Frame extractor calls, by phase and result",
			ConstLabels: labels,
		}, []string{"phase", "result"}),

		ExtractDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "layerlapse_extract_duration_seconds",
			Help:        "Time spent in one frame extractor call",
			ConstLabels: labels,
			Buckets:     []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),

		FrameSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "layerlapse_frame_size_bytes",
			Help:        "Size of each produced frame file",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),

		Layers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "layerlapse_layers",
			Help:        "Layers found in the print log, by state",
			ConstLabels: labels,
		}, []string{"state"}),

		Frames: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "layerlapse_frames",
			Help:        "Frame slots, by state",
			ConstLabels: labels,
		}, []string{"state"}),

		OutputFramerate: f.NewGauge(prometheus.GaugeOpts{
			Name:        "layerlapse_output_framerate",
			Help:        "Framerate the timelapse was assembled at",
			ConstLabels: labels,
		}),

		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "layerlapse_stage_duration_seconds",
			Help:        "Wall time of each pipeline stage in the last run",
			ConstLabels: labels,
		}, []string{"stage"}),

		LastRunSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name:        "layerlapse_last_run_success",
			Help:        "1 if the last run produced a timelapse, else 0",
			ConstLabels: labels,
		}),

		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name:        "layerlapse_last_run_timestamp_seconds",
			Help:        "Unix time the last run finished",
			ConstLabels: labels,
		}),
	}
}

// RecordAttempt implements frames.Recorder.
func (m *Metrics) RecordAttempt(a frames.Attempt) {
	result := "ok"
	if !a.OK {
		result = "failed"
	}
	m.ExtractAttempts.WithLabelValues(string(a.Phase), result).Inc()
	m.ExtractDuration.WithLabelValues(string(a.Phase)).Observe(a.Elapsed.Seconds())
	if a.OK {
		m.FrameSize.Observe(float64(a.Size))
	}
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// Finish stamps the run outcome.
func (m *Metrics) Finish(success bool, at time.Time) {
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile atomically writes every metric to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
