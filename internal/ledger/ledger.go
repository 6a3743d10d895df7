// Package ledger keeps a sqlite record of every run and every extraction
// attempt in a session, so a bad frame can be traced to the timestamps that
// were tried for it without re-running anything.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/backmassage/layerlapse/internal/frames"
	"github.com/backmassage/layerlapse/internal/layers"
)

// schema.sql creates the runs and attempts tables.
//
//go:embed schema.sql
var schemaSQL string

// Ledger is an open attempt database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path and applies the schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One writer; extraction is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure ledger: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Mode is how a run obtained its frames.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeResume Mode = "resume"
	ModeDryRun Mode = "dry-run"
)

// RunInfo identifies a run when it starts.
type RunInfo struct {
	Session string
	Dir     string
	Mode    Mode
}

// Summary is written when a run finishes.
type Summary struct {
	Layers    int
	Frames    int
	Framerate int
	Status    string
	Err       error
}

// Run is one started run. It implements frames.Recorder; insert failures
// are held and returned by Finish rather than interrupting extraction.
type Run struct {
	ID string

	ledger *Ledger

	mu  sync.Mutex
	err error
}

// StartRun inserts a run row under a fresh UUID.
func (l *Ledger) StartRun(ctx context.Context, info RunInfo) (*Run, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, session, session_dir, mode) VALUES (?, ?, ?, ?)`,
		id, info.Session, info.Dir, string(info.Mode))
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &Run{ID: id, ledger: l}, nil
}

// RecordAttempt stores one extraction attempt.
func (r *Run) RecordAttempt(a frames.Attempt) {
	var errText sql.NullString
	if a.Err != nil {
		errText = sql.NullString{String: a.Err.Error(), Valid: true}
	}
	_, err := r.ledger.db.Exec(`
		INSERT INTO attempts (run_id, phase, slot, layer_key, timestamp, ok, size_bytes, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(a.Phase), a.Slot, int64(a.Key), a.Timestamp, a.OK, a.Size, a.Elapsed.Milliseconds(), errText)
	if err != nil {
		r.mu.Lock()
		r.err = errors.Join(r.err, fmt.Errorf("record attempt slot %d: %w", a.Slot, err))
		r.mu.Unlock()
	}
}

// Finish stamps the run's end and summary. It also returns any error held
// from RecordAttempt.
func (r *Run) Finish(ctx context.Context, s Summary) error {
	var errText sql.NullString
	if s.Err != nil {
		errText = sql.NullString{String: s.Err.Error(), Valid: true}
	}
	_, err := r.ledger.db.ExecContext(context.WithoutCancel(ctx), `
		UPDATE runs
		SET finished_at = UNIXEPOCH('subsec'), layers = ?, frames = ?, framerate = ?, status = ?, error = ?
		WHERE id = ?`,
		s.Layers, s.Frames, s.Framerate, s.Status, errText, r.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		return errors.Join(r.err, fmt.Errorf("finish run: %w", err))
	}
	return r.err
}

// AttemptRow is a stored attempt.
type AttemptRow struct {
	Phase     frames.Phase
	Slot      int
	Key       layers.LayerKey
	Timestamp float64
	OK        bool
	Size      int64
	Error     string
}

// Attempts returns a run's attempts in insertion order.
func (l *Ledger) Attempts(ctx context.Context, runID string) ([]AttemptRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT phase, slot, layer_key, timestamp, ok, size_bytes, COALESCE(error, '')
		FROM attempts
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var (
			a     AttemptRow
			phase string
			key   int64
		)
		if err := rows.Scan(&phase, &a.Slot, &key, &a.Timestamp, &a.OK, &a.Size, &a.Error); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Phase = frames.Phase(phase)
		a.Key = layers.LayerKey(key)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RunRow is a stored run.
type RunRow struct {
	ID        string
	Session   string
	Mode      Mode
	Finished  bool
	Frames    int
	Framerate int
	Status    string
	Error     string
}

// LastRun returns the most recently started run for session. ok is false
// when the session has never run.
func (l *Ledger) LastRun(ctx context.Context, session string) (RunRow, bool, error) {
	var (
		r        RunRow
		mode     string
		finished sql.NullFloat64
		nFrames  sql.NullInt64
		fps      sql.NullInt64
		status   sql.NullString
		errText  sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT id, session, mode, finished_at, frames, framerate, status, error
		FROM runs
		WHERE session = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1`, session).
		Scan(&r.ID, &r.Session, &mode, &finished, &nFrames, &fps, &status, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, false, nil
	}
	if err != nil {
		return RunRow{}, false, fmt.Errorf("query last run: %w", err)
	}
	r.Mode = Mode(mode)
	r.Finished = finished.Valid
	r.Frames = int(nFrames.Int64)
	r.Framerate = int(fps.Int64)
	r.Status = status.String
	r.Error = errText.String
	return r, true, nil
}
