package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/backmassage/layerlapse/internal/frames"
	"github.com/backmassage/layerlapse/internal/ledger"
	"github.com/backmassage/layerlapse/internal/metrics"
	"github.com/backmassage/layerlapse/internal/naming"
)

// ledgerPath is where the run ledger lives, or "" when disabled. A dry run
// only records when a path was given explicitly, so it leaves the session
// directory untouched by default.
func ledgerPath(dir, configured string, noLedger, dryRun bool) string {
	switch {
	case noLedger:
		return ""
	case configured != "":
		return configured
	case dryRun:
		return ""
	}
	return filepath.Join(dir, naming.LedgerFile)
}

// openDiagnostics creates the run's metrics and, when enabled, its ledger
// row. Ledger failures are warnings; the run goes on without it.
func (r *run) openDiagnostics(ctx context.Context, resume bool) {
	r.metrics = metrics.New(r.sess.ID)

	path := ledgerPath(r.sess.Dir, r.cfg.LedgerPath, r.cfg.NoLedger, r.cfg.DryRun)
	if path == "" {
		return
	}
	l, err := ledger.Open(path)
	if err != nil {
		r.log.Warn("Run ledger disabled: %v", err)
		return
	}
	if resume {
		r.logPriorRun(ctx, l)
	}

	mode := ledger.ModeFull
	switch {
	case r.cfg.DryRun:
		mode = ledger.ModeDryRun
	case resume:
		mode = ledger.ModeResume
	}
	lr, err := l.StartRun(ctx, ledger.RunInfo{Session: r.sess.ID, Dir: r.sess.Dir, Mode: mode})
	if err != nil {
		r.log.Warn("Run ledger disabled: %v", err)
		_ = l.Close()
		return
	}
	r.ledger, r.ledgerRun = l, lr
	r.log.Debug("Recording run %s in %s", lr.ID, path)
}

// logPriorRun reports what the run that left the frames on disk recorded.
func (r *run) logPriorRun(ctx context.Context, l *ledger.Ledger) {
	prev, ok, err := l.LastRun(ctx, r.sess.ID)
	if err != nil {
		r.log.Warn("Reading run ledger: %v", err)
		return
	}
	if !ok {
		return
	}
	if !prev.Finished {
		r.log.Warn("Previous run %s did not finish; existing frames may be incomplete", prev.ID)
		return
	}
	r.log.Info("Previous run %s: %s (%d frames at %d fps)", prev.ID, prev.Status, prev.Frames, prev.Framerate)

	attempts, err := l.Attempts(ctx, prev.ID)
	if err != nil {
		r.log.Warn("Reading run ledger: %v", err)
		return
	}
	failed := 0
	for _, a := range attempts {
		if !a.OK {
			failed++
		}
	}
	if failed > 0 {
		r.log.Info("Previous run had %d failed extraction attempts of %d", failed, len(attempts))
	}
}

// recorders fans extraction attempts out to metrics and the ledger.
func (r *run) recorders() frames.Recorder {
	rs := frames.Recorders{r.metrics}
	if r.ledgerRun != nil {
		rs = append(rs, r.ledgerRun)
	}
	return rs
}

// closeDiagnostics finalises the ledger row and writes the metrics textfile.
func (r *run) closeDiagnostics(ctx context.Context, runErr error) {
	s := r.stats

	if r.ledgerRun != nil {
		err := r.ledgerRun.Finish(ctx, ledger.Summary{
			Layers:    s.Layers,
			Frames:    s.Frames,
			Framerate: s.Framerate.Final,
			Status:    status(runErr, s.DryRun),
			Err:       runErr,
		})
		if err != nil {
			r.log.Warn("Run ledger incomplete: %v", err)
		}
	}
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			r.log.Warn("Closing run ledger: %v", err)
		}
	}

	m := r.metrics
	m.Layers.WithLabelValues("stable").Set(float64(s.Layers))
	m.Layers.WithLabelValues("rejected").Set(float64(len(s.Rejected)))
	m.Frames.WithLabelValues("assembled").Set(float64(s.Frames))
	m.Frames.WithLabelValues("gap").Set(float64(s.Gaps()))
	m.Frames.WithLabelValues("recovered").Set(float64(len(s.Recovery.Recovered)))
	m.Frames.WithLabelValues("exhausted").Set(float64(len(s.Recovery.Exhausted)))
	m.OutputFramerate.Set(float64(s.Framerate.Final))
	for _, st := range s.Stages {
		m.ObserveStage(st.Name, st.Elapsed)
	}
	m.Finish(runErr == nil && !s.DryRun, time.Now())

	if r.cfg.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(r.cfg.MetricsFile); err != nil {
		r.log.Warn("%v", err)
		return
	}
	r.log.Debug("Metrics written to %s", r.cfg.MetricsFile)
}
