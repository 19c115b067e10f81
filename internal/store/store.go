// Package store persists batch runs and their per-frame lane results in SQLite.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Store wraps the results database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run is one batch invocation.
type Run struct {
	RunID         string          `json:"run_id"`
	Source        string          `json:"source"`
	ConfigJSON    json.RawMessage `json:"config,omitempty"`
	StartedAt     int64           `json:"started_at"`
	FinishedAt    int64           `json:"finished_at,omitempty"`
	FrameCount    int             `json:"frame_count"`
	FailedCount   int             `json:"failed_count"`
	FallbackCount int             `json:"fallback_count"`
}

// Finished reports whether FinishRun was called.
func (r *Run) Finished() bool { return r.FinishedAt != 0 }

// FrameRecord is the stored outcome for one input of a run.
type FrameRecord struct {
	ID         int64           `json:"id"`
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Fallback   bool            `json:"fallback"`
	Lines      int             `json:"hough_lines"`
	Candidates int             `json:"candidates"`
	Segments   []lanes.Segment `json:"segments"`
	Error      string          `json:"error,omitempty"`
	DurationNs int64           `json:"duration_ns"`
	CreatedAt  int64           `json:"created_at"`
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Pragmas are per connection; a single connection keeps foreign keys enforced.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun starts a new run. cfg is stored as JSON when non-nil.
func (s *Store) CreateRun(source string, cfg any) (*Run, error) {
	run := &Run{
		RunID:     uuid.New().String(),
		Source:    source,
		StartedAt: s.now().UnixNano(),
	}
	var cfgStr any
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal run config: %w", err)
		}
		run.ConfigJSON = b
		cfgStr = string(b)
	}
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO runs (run_id, source, config_json, started_at) VALUES (?, ?, ?, ?)`,
			run.RunID, run.Source, cfgStr, run.StartedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// AddFrameResult stores one frame outcome. rec.ID and rec.CreatedAt are filled in.
func (s *Store) AddFrameResult(rec *FrameRecord) error {
	if rec.RunID == "" {
		return errors.New("frame result without run id")
	}
	segs := rec.Segments
	if segs == nil {
		segs = []lanes.Segment{}
	}
	segJSON, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.now().UnixNano()
	}
	var errStr any
	if rec.Error != "" {
		errStr = rec.Error
	}

	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			INSERT INTO frame_results (
				run_id, source, width, height, fallback, hough_lines, candidates,
				segments_json, error, duration_ns, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Source, rec.Width, rec.Height, rec.Fallback, rec.Lines, rec.Candidates,
			string(segJSON), errStr, rec.DurationNs, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert frame result: %w", err)
		}
		rec.ID, err = res.LastInsertId()
		return err
	})
}

// FinishRun stamps the run's end time and recomputes its counters.
func (s *Store) FinishRun(runID string) error {
	var affected int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE runs SET
				finished_at = ?,
				frame_count = (SELECT COUNT(*) FROM frame_results WHERE run_id = ?),
				failed_count = (SELECT COUNT(*) FROM frame_results WHERE run_id = ? AND error IS NOT NULL),
				fallback_count = (SELECT COUNT(*) FROM frame_results WHERE run_id = ? AND fallback = 1)
			WHERE run_id = ?`,
			s.now().UnixNano(), runID, runID, runID, runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `run_id, source, config_json, started_at, finished_at, frame_count, failed_count, fallback_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var cfg sql.NullString
	var finished sql.NullInt64
	if err := row.Scan(&r.RunID, &r.Source, &cfg, &r.StartedAt, &finished,
		&r.FrameCount, &r.FailedCount, &r.FallbackCount); err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.FinishedAt = finished.Int64
	return &r, nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FrameResults returns a run's frames in insertion order.
func (s *Store) FrameResults(runID string) ([]*FrameRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, source, width, height, fallback, hough_lines, candidates,
		       segments_json, error, duration_ns, created_at
		FROM frame_results
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frame results: %w", err)
	}
	defer rows.Close()

	var out []*FrameRecord
	for rows.Next() {
		var rec FrameRecord
		var segJSON string
		var errStr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Source, &rec.Width, &rec.Height, &rec.Fallback,
			&rec.Lines, &rec.Candidates, &segJSON, &errStr, &rec.DurationNs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan frame result: %w", err)
		}
		if err := json.Unmarshal([]byte(segJSON), &rec.Segments); err != nil {
			return nil, fmt.Errorf("decode segments of frame %d: %w", rec.ID, err)
		}
		rec.Error = errStr.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its frames.
func (s *Store) DeleteRun(runID string) error {
	var affected int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy reruns fn with linear backoff while SQLite reports a locked database.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := range busyRetries {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * busyBackoff)
	}
	return err
}
