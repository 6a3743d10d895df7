package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/backmassage/layerlapse/internal/config"
	"github.com/backmassage/layerlapse/internal/ffmpeg"
	"github.com/backmassage/layerlapse/internal/frames"
	"github.com/backmassage/layerlapse/internal/layers"
	"github.com/backmassage/layerlapse/internal/ledger"
	"github.com/backmassage/layerlapse/internal/logging"
	"github.com/backmassage/layerlapse/internal/naming"
	"github.com/backmassage/layerlapse/internal/planner"
)

// --- Fakes ---

// fakeExtractor writes a frame for every timestamp; timestamps listed in
// small get a tiny file so recovery flags them.
type fakeExtractor struct {
	mu    sync.Mutex
	small map[float64]bool
	calls []float64
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, ts float64, dest string) error {
	f.mu.Lock()
	f.calls = append(f.calls, ts)
	small := f.small[ts]
	f.mu.Unlock()
	size := 4096
	if small {
		size = 64
	}
	return os.WriteFile(dest, bytes.Repeat([]byte{'f'}, size), 0o644)
}

func (f *fakeExtractor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAssembler struct {
	err  error
	reqs []ffmpeg.AssemblyRequest
}

func (a *fakeAssembler) Assemble(_ context.Context, req ffmpeg.AssemblyRequest) error {
	a.reqs = append(a.reqs, req)
	if a.err != nil {
		return a.err
	}
	return os.WriteFile(req.Output, []byte("mp4"), 0o644)
}

// --- Helpers ---

// newSession creates a session directory with a recording and a log of
// three layers (0.2, 0.4, 0.6 mm), three samples each at 1s spacing.
func newSession(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "benchy_print")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var b strings.Builder
	b.WriteString("RelativeTimestamp,State,Z\n")
	b.WriteString("0.000,HOMING,0.000\n")
	ts := 1
	for _, z := range []float64{0.2, 0.4, 0.6} {
		for i := 0; i < 3; i++ {
			fmt.Fprintf(&b, "%d.000,PRINTING,%.3f\n", ts, z)
			ts++
		}
	}
	writeFile(t, filepath.Join(dir, naming.LogFile), b.String())
	writeFile(t, filepath.Join(dir, naming.VideoFile), "not really a video")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SessionDir = dir
	cfg.NoLedger = true
	return &cfg
}

type harness struct {
	ext  *fakeExtractor
	asm  *fakeAssembler
	deps Deps
	out  *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		ext: &fakeExtractor{small: map[float64]bool{}},
		asm: &fakeAssembler{},
		out: &bytes.Buffer{},
	}
	h.deps = Deps{Extractor: h.ext, Assembler: h.asm, Table: h.out}
	return h
}

// --- Run ---

func TestRun_FullPipeline(t *testing.T) {
	dir := newSession(t)
	cfg := testConfig(dir)
	h := newHarness()

	stats, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Layers)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 0, stats.Gaps())
	assert.False(t, stats.Resumed)
	// Midpoints of each layer's samples.
	assert.Equal(t, []float64{2, 5, 8}, h.ext.calls)

	require.Len(t, h.asm.reqs, 1)
	req := h.asm.reqs[0]
	sess, err := naming.NewSession(dir)
	require.NoError(t, err)
	assert.Equal(t, naming.FrameGlob(sess.FramesDir), req.Pattern)
	assert.Equal(t, planner.Framerate(3, cfg.MinFramerate, cfg.MaxFramerate), req.Framerate)
	assert.Equal(t, config.HoldSeconds, req.HoldSeconds)
	assert.Equal(t, filepath.Join(sess.Dir, "benchy_print_timelapse.mp4"), req.Output)
	assert.FileExists(t, req.Output)
	assert.Equal(t, int64(3), stats.OutputBytes)

	slots, err := frames.DiscoverSlots(sess.FramesDir)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestRun_RecoversSmallFrame(t *testing.T) {
	dir := newSession(t)
	h := newHarness()
	h.ext.small[5] = true // midpoint of the 0.4 mm layer

	stats, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, stats.Recovery.Corrupt)
	assert.Equal(t, []int{2}, stats.Recovery.Recovered)
	assert.Empty(t, stats.Recovery.Exhausted)
	// Three initial calls, then the layer's first alternate succeeds.
	assert.Equal(t, []float64{2, 5, 8, 4}, h.ext.calls)
	assert.Equal(t, 3, stats.Sizes.Count)
}

func TestRun_ResumeSkipsExtraction(t *testing.T) {
	dir := newSession(t)
	sess, err := naming.NewSession(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(sess.FramesDir, 0o755))
	writeFile(t, naming.FramePath(sess.FramesDir, 1), "one")
	writeFile(t, naming.FramePath(sess.FramesDir, 2), "two")

	h := newHarness()
	stats, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	require.NoError(t, err)

	assert.True(t, stats.Resumed)
	assert.Zero(t, h.ext.count(), "resume must not extract")
	assert.Equal(t, 2, stats.Frames)
	require.Len(t, h.asm.reqs, 1)
	assert.Equal(t, planner.Framerate(2, 15, 60), h.asm.reqs[0].Framerate)
}

func TestRun_ForceReextracts(t *testing.T) {
	dir := newSession(t)
	sess, err := naming.NewSession(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(sess.FramesDir, 0o755))
	writeFile(t, naming.FramePath(sess.FramesDir, 7), "stale")

	cfg := testConfig(dir)
	cfg.SkipExisting = false
	h := newHarness()
	stats, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.NoError(t, err)

	assert.False(t, stats.Resumed)
	assert.Equal(t, 3, h.ext.count())
	assert.NoFileExists(t, naming.FramePath(sess.FramesDir, 7), "frames dir is cleared first")
	assert.Equal(t, 3, stats.Frames)
}

func TestRun_NoLayers(t *testing.T) {
	dir := newSession(t)
	writeFile(t, filepath.Join(dir, naming.LogFile), "RelativeTimestamp,Z\n0,0\n1,0\n2,0.2\n")
	h := newHarness()

	_, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	assert.ErrorIs(t, err, layers.ErrNoLayers)
	assert.Equal(t, ExitNoData, ExitCode(err))
	assert.Zero(t, h.ext.count())
	assert.Empty(t, h.asm.reqs)
}

func TestRun_MalformedRowsAreNotSurfaced(t *testing.T) {
	dir := newSession(t)
	logPath := filepath.Join(dir, naming.LogFile)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	writeFile(t, logPath, string(data)+"garbage,PRINTING,nan\n")

	core, logs := observer.New(zapcore.InfoLevel)
	stats, err := Run(context.Background(), testConfig(dir), logging.FromZap(zap.New(core)), newHarness().deps)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.LogSkipped)
	assert.Zero(t, logs.FilterMessageSnippet("malformed").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestRun_MissingInputs(t *testing.T) {
	tests := []struct {
		name   string
		remove string
	}{
		{"no video", naming.VideoFile},
		{"no log", naming.LogFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newSession(t)
			require.NoError(t, os.Remove(filepath.Join(dir, tt.remove)))
			h := newHarness()

			_, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
			assert.ErrorIs(t, err, ErrInputMissing)
			assert.Equal(t, ExitFailure, ExitCode(err))
			assert.Zero(t, h.ext.count())
			assert.Empty(t, h.asm.reqs)
		})
	}
}

func TestRun_MissingSessionDir(t *testing.T) {
	h := newHarness()
	_, err := Run(context.Background(), testConfig(filepath.Join(t.TempDir(), "gone")), logging.NewNop(), h.deps)
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestRun_MissingColumnIsInputMissing(t *testing.T) {
	dir := newSession(t)
	writeFile(t, filepath.Join(dir, naming.LogFile), "RelativeTimestamp,State\n1,PRINTING\n")
	h := newHarness()

	_, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	assert.ErrorIs(t, err, ErrInputMissing)
	assert.ErrorIs(t, err, layers.ErrMissingColumn)
}

func TestRun_AssemblyFailureKeepsFrames(t *testing.T) {
	dir := newSession(t)
	h := newHarness()
	h.asm.err = fmt.Errorf("%w: exit status 1", ffmpeg.ErrAssemble)

	stats, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssembly)
	assert.ErrorIs(t, err, ffmpeg.ErrAssemble)
	assert.Equal(t, ExitFailure, ExitCode(err))

	slots, derr := frames.DiscoverSlots(filepath.Join(dir, naming.FramesDir))
	require.NoError(t, derr)
	assert.Len(t, slots, 3)
	assert.Equal(t, 3, stats.Frames)

	// A rerun resumes from the kept frames.
	h2 := newHarness()
	stats, err = Run(context.Background(), testConfig(dir), logging.NewNop(), h2.deps)
	require.NoError(t, err)
	assert.True(t, stats.Resumed)
	assert.Zero(t, h2.ext.count())
}

func TestRun_NoFramesProduced(t *testing.T) {
	dir := newSession(t)
	h := newHarness()
	h.deps.Extractor = failingExtractor{}

	stats, err := Run(context.Background(), testConfig(dir), logging.NewNop(), h.deps)
	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Equal(t, ExitNoData, ExitCode(err))
	assert.Equal(t, 3, stats.Initial.Failed)
	assert.Empty(t, h.asm.reqs)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, float64, string) error {
	return fmt.Errorf("%w: past end", ffmpeg.ErrExtract)
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	dir := newSession(t)
	require.NoError(t, os.Remove(filepath.Join(dir, naming.VideoFile)))
	cfg := testConfig(dir)
	cfg.DryRun = true
	cfg.NoLedger = false
	h := newHarness()

	stats, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.NoError(t, err)

	assert.True(t, stats.DryRun)
	assert.Equal(t, 3, stats.Layers)
	assert.Zero(t, h.ext.count())
	assert.Empty(t, h.asm.reqs)
	assert.NoDirExists(t, filepath.Join(dir, naming.FramesDir))
	assert.NoFileExists(t, filepath.Join(dir, naming.LedgerFile))
	assert.Contains(t, h.out.String(), "0.400")
}

func TestRun_Canceled(t *testing.T) {
	dir := newSession(t)
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testConfig(dir), logging.NewNop(), h.deps)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, h.asm.reqs)
}

// --- Diagnostics ---

func TestRun_WritesLedger(t *testing.T) {
	dir := newSession(t)
	cfg := testConfig(dir)
	cfg.NoLedger = false
	h := newHarness()

	_, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.NoError(t, err)

	path := filepath.Join(dir, naming.LedgerFile)
	require.FileExists(t, path)
	l, err := ledger.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	run, ok, err := l.LastRun(context.Background(), "benchy_print")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ledger.ModeFull, run.Mode)
	assert.True(t, run.Finished)
	assert.Equal(t, "ok", run.Status)
	assert.Equal(t, 3, run.Frames)

	attempts, err := l.Attempts(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
	for _, a := range attempts {
		assert.Equal(t, frames.PhaseInitial, a.Phase)
		assert.True(t, a.OK)
	}
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	dir := newSession(t)
	cfg := testConfig(dir)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "layerlapse.prom")
	h := newHarness()

	_, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `layerlapse_frames{session="benchy_print",state="assembled"} 3`)
	assert.Contains(t, text, `layerlapse_last_run_success{session="benchy_print"} 1`)
	assert.Contains(t, text, `layerlapse_extract_attempts_total{phase="initial",result="ok",session="benchy_print"} 3`)
}

func TestRun_ResumeReportsPriorRun(t *testing.T) {
	dir := newSession(t)
	cfg := testConfig(dir)
	cfg.NoLedger = false

	h := newHarness()
	h.asm.err = fmt.Errorf("%w: exit status 1", ffmpeg.ErrAssemble)
	_, err := Run(context.Background(), cfg, logging.NewNop(), h.deps)
	require.ErrorIs(t, err, ErrAssembly)

	core, logs := observer.New(zapcore.DebugLevel)
	stats, err := Run(context.Background(), cfg, logging.FromZap(zap.New(core)), newHarness().deps)
	require.NoError(t, err)
	require.True(t, stats.Resumed)

	prior := logs.FilterMessageSnippet("Previous run").All()
	require.Len(t, prior, 1)
	assert.Contains(t, prior[0].Message, "assembly failed")
	assert.Contains(t, prior[0].Message, "3 frames")
}

func TestDefaultDeps_ProbeHonorsExtractTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffprobe")
	writeFile(t, bin, "#!/bin/sh\nexec sleep 30\n")
	require.NoError(t, os.Chmod(bin, 0o755))

	cfg := config.DefaultConfig()
	cfg.FFprobeCmd = bin
	cfg.ExtractTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err := DefaultDeps(&cfg).Probe(context.Background(), "print_recording.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLedgerPath(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		noLedger   bool
		dryRun     bool
		want       string
	}{
		{"default", "", false, false, filepath.Join("/s", naming.LedgerFile)},
		{"configured", "/tmp/l.db", false, false, "/tmp/l.db"},
		{"disabled", "/tmp/l.db", true, false, ""},
		{"dry run default", "", false, true, ""},
		{"dry run configured", "/tmp/l.db", false, true, "/tmp/l.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledgerPath("/s", tt.configured, tt.noLedger, tt.dryRun))
		})
	}
}

// --- Errors and stats ---

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{layers.ErrNoLayers, ExitNoData},
		{fmt.Errorf("wrapped: %w", ErrNoFrames), ExitNoData},
		{fmt.Errorf("%w: log", ErrInputMissing), ExitFailure},
		{fmt.Errorf("%w: %w", ErrAssembly, ffmpeg.ErrTimeout), ExitFailure},
		{config.ErrConfig, ExitFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", status(nil, false))
	assert.Equal(t, "dry-run", status(nil, true))
	assert.Equal(t, "no layers", status(layers.ErrNoLayers, false))
	assert.Equal(t, "assembly failed", status(fmt.Errorf("%w: x", ErrAssembly), false))
	assert.Equal(t, "failed", status(errors.New("boom"), false))
}

func TestRunStats_Gaps(t *testing.T) {
	s := RunStats{Layers: 10, Frames: 7}
	assert.Equal(t, 3, s.Gaps())
	s.Resumed = true
	assert.Equal(t, 0, s.Gaps())
}

func TestPrintLayerTable(t *testing.T) {
	set := layers.StableSet{
		{Key: 200, Timestamps: []float64{1, 2, 3}},
		{Key: 400, Timestamps: []float64{4, 5, 6, 70}},
	}
	rejected := []layers.Rejection{{Key: 250, Previous: 200, Samples: 3, Reason: layers.RejectStepTooSmall}}

	var b bytes.Buffer
	printLayerTable(&b, set, rejected, config.PolicyMidpoint)
	out := b.String()
	assert.Contains(t, out, "0.200")
	assert.Contains(t, out, "0:37.000") // midpoint of 4 and 70
	assert.Contains(t, out, "Z=0.250")
}
