package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateRun inserts a new run. It fails with ErrRunActive when another run
// for the same tender is still pending or running; runs for one tender are
// serialized, never queued.
func (s *Store) CreateRun(r Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	var active int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM runs WHERE tender_id = ? AND status IN (?, ?)`,
		r.TenderID, RunPending, RunRunning).Scan(&active); err != nil {
		return fmt.Errorf("checking active runs: %w", err)
	}
	if active > 0 {
		return ErrRunActive
	}

	if _, err := tx.Exec(`
		INSERT INTO runs (id, tender_id, pipeline, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, NULL, '')`,
		r.ID, r.TenderID, r.Pipeline, r.Status, fmtTime(r.StartedAt),
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return tx.Commit()
}

// ErrRunActive is returned when a tender already has a pending or running run.
var ErrRunActive = fmt.Errorf("a run is already active for this tender")

// UpdateRunStatus moves a run to a new status. Terminal statuses also record
// the finish timestamp and, for failures, the error message. Updating a run
// that is already terminal is rejected.
func (s *Store) UpdateRunStatus(id, status, errMsg string) error {
	var finished any
	switch status {
	case RunCompleted, RunFailed, RunCancelled:
		finished = fmtTime(time.Now())
	}
	res, err := s.db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE id = ? AND status NOT IN (?, ?, ?)`,
		status, errMsg, finished, id, RunCompleted, RunFailed, RunCancelled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendRunLog appends one ordered log line to a run.
func (s *Store) AppendRunLog(runID string, l RunLog) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, seq, at, level, step_id, message)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM run_logs WHERE run_id = ?), ?, ?, ?, ?)`,
		runID, runID, fmtTime(l.At), l.Level, l.StepID, l.Message,
	)
	return err
}

// GetRun loads one run with its ordered log.
func (s *Store) GetRun(id string) (Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := s.db.QueryRow(`
		SELECT id, tender_id, pipeline, status, started_at, finished_at, error
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.TenderID, &r.Pipeline, &r.Status, &startedAt, &finishedAt, &r.Error)
	if err == sql.ErrNoRows {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if r.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT seq, at, level, step_id, message FROM run_logs WHERE run_id = ? ORDER BY seq ASC`, id,
	)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l RunLog
		var at string
		if err := rows.Scan(&l.Seq, &at, &l.Level, &l.StepID, &l.Message); err != nil {
			return Run{}, err
		}
		if l.At, err = parseTime(at); err != nil {
			return Run{}, fmt.Errorf("parsing log timestamp: %w", err)
		}
		r.Logs = append(r.Logs, l)
	}
	return r, rows.Err()
}

// ListRuns returns a tender's runs, newest first, without logs.
func (s *Store) ListRuns(tenderID string, limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, pipeline, status, started_at, finished_at, error
		FROM runs WHERE tender_id = ? ORDER BY started_at DESC LIMIT ?`, tenderID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.TenderID, &r.Pipeline, &r.Status, &startedAt, &finishedAt, &r.Error); err != nil {
			return nil, err
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
