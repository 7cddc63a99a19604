package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTender inserts a tender or updates its mutable attributes.
func (s *Store) SaveTender(t Tender) error {
	_, err := s.db.Exec(`
		INSERT INTO tenders (id, title, agency, status, published_at, due_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, agency = excluded.agency, status = excluded.status,
			published_at = excluded.published_at, due_at = excluded.due_at, updated_at = excluded.updated_at`,
		t.ID, t.Title, t.Agency, t.Status, fmtTimePtr(t.PublishedAt), fmtTimePtr(t.DueAt),
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt),
	)
	return err
}

// GetTender loads one tender by id.
func (s *Store) GetTender(id string) (Tender, error) {
	var t Tender
	var createdAt, updatedAt string
	var publishedAt, dueAt sql.NullString
	err := s.db.QueryRow(`
		SELECT id, title, agency, status, published_at, due_at, created_at, updated_at
		FROM tenders WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Agency, &t.Status, &publishedAt, &dueAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Tender{}, ErrNotFound
	}
	if err != nil {
		return Tender{}, err
	}
	if t.PublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return Tender{}, fmt.Errorf("parsing published_at: %w", err)
	}
	if t.DueAt, err = parseTimePtr(dueAt); err != nil {
		return Tender{}, fmt.Errorf("parsing due_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Tender{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Tender{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}

// UpdateTenderStatus transitions a tender's lifecycle status.
func (s *Store) UpdateTenderStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE tenders SET status = ?, updated_at = ? WHERE id = ?`,
		status, fmtTime(time.Now()), id)
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

// ListTenders returns tenders ordered by most recently updated.
func (s *Store) ListTenders(limit int) ([]Tender, error) {
	rows, err := s.db.Query(`
		SELECT id, title, agency, status, published_at, due_at, created_at, updated_at
		FROM tenders ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tender
	for rows.Next() {
		var t Tender
		var createdAt, updatedAt string
		var publishedAt, dueAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Agency, &t.Status, &publishedAt, &dueAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if t.PublishedAt, err = parseTimePtr(publishedAt); err != nil {
			return nil, fmt.Errorf("parsing published_at: %w", err)
		}
		if t.DueAt, err = parseTimePtr(dueAt); err != nil {
			return nil, fmt.Errorf("parsing due_at: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// SaveAuditRecord appends an immutable audit row.
func (s *Store) SaveAuditRecord(r AuditRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO audit_records (id, tender_id, actor, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenderID, r.Actor, r.Action, r.Detail, fmtTime(r.CreatedAt),
	)
	return err
}

// ListAuditRecords returns audit rows for a tender, oldest first.
func (s *Store) ListAuditRecords(tenderID string) ([]AuditRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, actor, action, detail, created_at
		FROM audit_records WHERE tender_id = ? ORDER BY created_at ASC, id ASC`, tenderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.TenderID, &r.Actor, &r.Action, &r.Detail, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
