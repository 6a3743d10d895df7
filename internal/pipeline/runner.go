package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/display"
	"github.com/backmassage/layerlapse/internal/ffmpeg"
	"github.com/backmassage/layerlapse/internal/frames"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/ledger"
	"github.com/backmassage/layerlapse/internal/logging"
	"github.com/backmassage/layerlapse/internal/metrics"
	"github.com/backmassage/layerlapse/internal/naming"
	"github.com/backmassage/layerlapse/internal/planner"
	"github.com/backmassage/layerlapse/internal/probe"
	"github.com/backmassage/layerlapse/internal/report"
	"github.com/backmassage/layerlapse/internal/term"
)

// Deps are the external collaborators of a run. Optional fields may be
// left nil.
type Deps struct {
	Extractor ffmpeg.Extractor
	Assembler ffmpeg.Assembler

	// Probe inspects the recording; optional.
	Probe func(ctx context.Context, path string) (*probe.VideoInfo, error)

	// Progress receives the extraction progress bar; nil disables it.
	Progress io.Writer

	// Table receives the dry-run layer table; nil means os.Stdout.
	Table io.Writer
}

// DefaultDeps wires the ffmpeg-backed collaborators from cfg.
func DefaultDeps(cfg *config.Config) Deps {
	d := Deps{
		Extractor: ffmpeg.NewExtractor(cfg),
		Assembler: ffmpeg.NewAssembler(cfg),
		Probe: func(ctx context.Context, path string) (*probe.VideoInfo, error) {
			return probe.Probe(ctx, cfg.FFprobeCmd, path, cfg.ExtractTimeout)
		},
		Table: os.Stdout,
	}
	if !cfg.Verbose && term.IsTerminal(os.Stderr) {
		d.Progress = os.Stderr
	}
	return d
}

// run holds the state of one Run call.
type run struct {
	cfg   *config.Config
	log   *logging.Logger
	deps  Deps
	sess  naming.Session
	stats *RunStats

	ledger    *ledger.Ledger
	ledgerRun *ledger.Run
	metrics   *metrics.Metrics
}

// Run post-processes the session in cfg.SessionDir and assembles its
// timelapse. It returns layers.ErrNoLayers or ErrNoFrames when there is
// nothing to assemble, ErrInputMissing when the session inputs are absent,
// and ErrAssembly when the encode fails (frames are kept for a resume).
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, deps Deps) (stats RunStats, err error) {
	sess, err := naming.NewSession(cfg.SessionDir)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrInputMissing, err)
	}
	stats.Session = sess.ID
	stats.Output = sess.Output
	stats.DryRun = cfg.DryRun

	r := &run{
		cfg:   cfg,
		log:   log.With(zap.String("session", sess.ID)),
		deps:  deps,
		sess:  sess,
		stats: &stats,
	}
	if r.deps.Table == nil {
		r.deps.Table = os.Stdout
	}

	if err := checkSession(sess); err != nil {
		r.log.Error("Session directory not found: %s", sess.Dir)
		return stats, err
	}
	r.log.Info("Post-processing session: %s", sess.ID)

	existing, err := frames.DiscoverSlots(sess.FramesDir)
	if err != nil {
		return stats, err
	}
	resume := cfg.SkipExisting && len(existing) > 0 && !cfg.DryRun

	r.openDiagnostics(ctx, resume)
	defer func() { r.closeDiagnostics(ctx, err) }()

	switch {
	case cfg.DryRun:
		err = r.dryRun(existing)
		return stats, err
	case resume:
		stats.Resumed = true
		r.log.Info("Found %d existing frames in %s; skipping extraction (use --force to re-extract)",
			len(existing), naming.FramesDir)
	default:
		if err = r.extract(ctx); err != nil {
			return stats, err
		}
	}

	err = r.assemble(ctx)
	r.logSummary(err)
	return stats, err
}

// aggregate reads the print log into stable layers.
func (r *run) aggregate() (layers.StableSet, error) {
	f, err := os.Open(r.sess.LogPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputMissing, err)
	}
	defer f.Close()

	var res layers.Result
	err = r.stage("aggregate", func() error {
		var aggErr error
		res, aggErr = layers.Aggregate(f, layers.RulesFromConfig(r.cfg))
		return aggErr
	})
	r.stats.LogRows = res.Stats.Rows
	r.stats.LogSkipped = res.Stats.Skipped
	r.stats.Buckets = res.Buckets
	r.stats.Layers = len(res.Stable)
	r.stats.Rejected = res.Rejected

	switch {
	case errors.Is(err, layers.ErrNoLayers):
		r.log.Error("No stable layers found in %s (%d rows, %d skipped, %d rejected)",
			naming.LogFile, res.Stats.Rows, res.Stats.Skipped, len(res.Rejected))
		return nil, err
	case errors.Is(err, layers.ErrMissingColumn):
		r.log.Error("Print log is unusable: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrInputMissing, err)
	case err != nil:
		return nil, fmt.Errorf("read print log: %w", err)
	}

	if res.Stats.Skipped > 0 {
		r.log.Debug("Skipped %d malformed log rows of %d", res.Stats.Skipped, res.Stats.Rows)
	}
	for _, rej := range res.Rejected {
		r.log.Debug("Rejected layer %s", rej)
	}
	r.log.Info("Found %d stable layers (%d heights seen, %d rejected)",
		len(res.Stable), res.Buckets, len(res.Rejected))
	return res.Stable, nil
}

// dryRun aggregates and plans without touching the frames dir or ffmpeg.
func (r *run) dryRun(existing []frames.Slot) error {
	if err := checkInputs(r.sess, false); err != nil {
		r.log.Error("Print log not found in %s", r.sess.Dir)
		return err
	}
	if err := checkFile(r.sess.VideoPath); err != nil {
		r.log.Warn("[DRY] Recording not usable: %v", err)
	}

	set, err := r.aggregate()
	if err != nil {
		return err
	}
	plan := planner.BuildPlan(r.cfg, set)
	r.stats.Framerate = plan.Framerate
	r.logPlan(plan)
	printLayerTable(r.deps.Table, set, r.stats.Rejected, r.cfg.TimestampPolicy)

	if r.cfg.SkipExisting && len(existing) > 0 {
		r.log.Info("[DRY] %d frames already extracted; a real run would assemble those", len(existing))
	}
	r.log.Success("[DRY] Would extract %d frames into %s and assemble %s",
		plan.Layers, naming.FramesDir, filepath.Base(r.sess.Output))
	return nil
}

// extract runs aggregation, the initial pass and recovery.
func (r *run) extract(ctx context.Context) error {
	if err := checkInputs(r.sess, true); err != nil {
		r.log.Error("Log or video file not found in %s", r.sess.Dir)
		return err
	}

	set, err := r.aggregate()
	if err != nil {
		return err
	}
	plan := planner.BuildPlan(r.cfg, set)
	r.logPlan(plan)

	duration := r.probe(ctx, plan)

	if err := frames.PrepareDir(r.sess.FramesDir); err != nil {
		return err
	}

	slots := frames.NewSlotMap(set)
	onSlot, done := newProgress(r.deps.Progress, slots.Len())
	fr := &frames.Runner{
		Extractor: r.deps.Extractor,
		Log:       r.log,
		Recorder:  r.recorders(),
		Video:     r.sess.VideoPath,
		Dir:       r.sess.FramesDir,
		Policy:    r.cfg.TimestampPolicy,
		Duration:  duration,
		OnSlot:    onSlot,
	}

	r.log.Info("Extracting %d frames (%s timestamps)", slots.Len(), r.cfg.TimestampPolicy)
	err = r.stage("extract", func() error {
		var passErr error
		r.stats.Initial, passErr = fr.InitialPass(ctx, slots)
		return passErr
	})
	done()
	if err != nil {
		return err
	}
	pass := r.stats.Initial
	if pass.Failed > 0 {
		r.log.Warn("Initial extraction complete: %d of %d frames (%d failed)", pass.Produced, slots.Len(), pass.Failed)
	} else {
		r.log.Success("Initial extraction complete: %d frames", pass.Produced)
	}

	// Recovery needs the whole cohort on disk before it can judge any frame.
	fr.OnSlot = nil
	err = r.stage("recover", func() error {
		var recErr error
		r.stats.Recovery, recErr = fr.DetectAndRecover(ctx, slots, r.cfg.CorruptionRatio)
		return recErr
	})
	if err != nil {
		return err
	}
	r.reportSizes()
	return nil
}

// probe logs the recording's properties and returns its duration (0 when
// unknown).
func (r *run) probe(ctx context.Context, plan *planner.Plan) float64 {
	if r.deps.Probe == nil {
		return 0
	}
	info, err := r.deps.Probe(ctx, r.sess.VideoPath)
	if err != nil {
		r.log.Warn("Could not probe recording: %v", err)
		if info == nil {
			return 0
		}
	}
	r.log.Info("Recording: %s %s, %s", info.Resolution(), info.Codec, display.FormatClock(info.Duration))
	if !info.Covers(plan.LastTS) {
		r.log.Warn("Log runs to %s but the recording ends at %s; late layers may fail",
			display.FormatClock(plan.LastTS), display.FormatClock(info.Duration))
	}
	return info.Duration
}

// reportSizes logs the frame-size digest and writes the optional chart.
func (r *run) reportSizes() {
	rep := r.stats.Recovery
	if rep.Frames == 0 {
		return
	}
	sum := report.Summarize(rep.Sizes, rep.Median, rep.Threshold)
	r.stats.Sizes = sum
	r.log.Info("Frame sizes: mean %s, stddev %s (cv %.2f), range %s to %s",
		display.FormatBytes(int64(sum.Mean)), display.FormatBytes(int64(sum.StdDev)), sum.CV(),
		display.FormatBytes(int64(sum.Min)), display.FormatBytes(int64(sum.Max)))
	if len(rep.Corrupt) > 0 {
		r.log.Info("Corruption: %d flagged, %d recovered, %d exhausted, %d skipped",
			len(rep.Corrupt), len(rep.Recovered), len(rep.Exhausted), len(rep.Skipped))
	}
	if len(sum.Outliers) > 0 {
		r.log.Warn("Unusually small frames above the threshold: %v", sum.Outliers)
	}

	if r.cfg.SizeChart == "" {
		return
	}
	if err := report.SizeChart(r.cfg.SizeChart, r.sess.ID+" frame sizes", rep.Sizes, rep.Median, rep.Threshold); err != nil {
		r.log.Warn("Size chart not written: %v", err)
		return
	}
	r.log.Info("Size chart: %s", r.cfg.SizeChart)
}

// assemble counts the slots on disk, plans the framerate and encodes.
func (r *run) assemble(ctx context.Context) error {
	slots, err := frames.DiscoverSlots(r.sess.FramesDir)
	if err != nil {
		return err
	}
	r.stats.Frames = len(slots)
	if len(slots) == 0 {
		r.log.Error("Skipping assembly: no frames in %s", naming.FramesDir)
		return ErrNoFrames
	}

	fp := planner.PlanFramerate(len(slots), r.cfg.MinFramerate, r.cfg.MaxFramerate)
	r.stats.Framerate = fp
	r.log.Info("Framerate: %d fps for %d frames (raw %d, %s), playback %.1fs",
		fp.Final, fp.Frames, fp.Raw, fp.Clamp, fp.PlaybackSeconds())

	req := ffmpeg.AssemblyRequest{
		Pattern:     naming.FrameGlob(r.sess.FramesDir),
		Framerate:   fp.Final,
		HoldSeconds: config.HoldSeconds,
		Output:      r.sess.Output,
	}
	r.log.Info("Assembling video into %s", filepath.Base(r.sess.Output))
	err = r.stage("assemble", func() error { return r.deps.Assembler.Assemble(ctx, req) })
	if err != nil {
		r.log.Error("Assembly failed: %v", err)
		r.log.Info("Frames kept in %s; rerun to retry assembly", r.sess.FramesDir)
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	if fi, statErr := os.Stat(r.sess.Output); statErr == nil {
		r.stats.OutputBytes = fi.Size()
	}
	r.log.Success("Timelapse saved as %s (%s)", filepath.Base(r.sess.Output), display.FormatBytes(r.stats.OutputBytes))
	return nil
}

// stage times fn under name.
func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.stats.Stages = append(r.stats.Stages, StageTiming{Name: name, Elapsed: time.Since(start)})
	return err
}

// --- Logging helpers ---

func (r *run) logPlan(p *planner.Plan) {
	r.log.Info("Plan: %d layers, %s to %s, %d fps (%s)",
		p.Layers, display.FormatClock(p.FirstTS), display.FormatClock(p.LastTS),
		p.Framerate.Final, p.Framerate.Clamp)
}

func (r *run) logSummary(err error) {
	s := r.stats
	r.log.Info("==============================")
	switch {
	case s.Resumed:
		r.log.Info("Resumed from %d existing frames", s.Frames)
	default:
		r.log.Info("Layers: %d stable, %d rejected; frames: %d produced, %d gaps",
			s.Layers, len(s.Rejected), s.Frames, s.Gaps())
		if n := len(s.Recovery.Corrupt); n > 0 {
			r.log.Info("Recovery: %d of %d corrupt frames replaced", len(s.Recovery.Recovered), n)
		}
	}
	if err == nil {
		r.log.Success("Done in %s", s.Elapsed().Round(time.Millisecond))
	}
}
