package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertDocument inserts a document or, when a document with the same
// (tender, filename) already exists, re-versions it. An unchanged content
// hash is a no-op returning the stored row; a changed hash bumps the version,
// replaces the raw bytes and clears the parsed pages.
func (s *Store) UpsertDocument(d Document) (Document, error) {
	existing, err := s.findDocumentByName(d.TenderID, d.Filename)
	if err != nil && err != ErrNotFound {
		return Document{}, err
	}

	if err == nil {
		if existing.ContentHash == d.ContentHash {
			return existing, nil
		}

		tx, err := s.db.Begin()
		if err != nil {
			return Document{}, fmt.Errorf("beginning re-version transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM document_pages WHERE document_id = ?`, existing.ID); err != nil {
			return Document{}, fmt.Errorf("clearing pages: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE documents
			SET mime_type = ?, content_hash = ?, page_count = 0, version = version + 1,
				raw = ?, uploaded_at = ?, parsed_at = NULL
			WHERE id = ?`,
			d.MIMEType, d.ContentHash, d.Raw, fmtTime(d.UploadedAt), existing.ID,
		); err != nil {
			return Document{}, fmt.Errorf("re-versioning document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Document{}, fmt.Errorf("committing re-version: %w", err)
		}
		return s.GetDocument(existing.ID)
	}

	if d.Version == 0 {
		d.Version = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO documents (id, tender_id, filename, mime_type, content_hash, page_count, version, raw, uploaded_at, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		d.ID, d.TenderID, d.Filename, d.MIMEType, d.ContentHash, d.PageCount, d.Version, d.Raw, fmtTime(d.UploadedAt),
	)
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

func (s *Store) findDocumentByName(tenderID, filename string) (Document, error) {
	return s.scanDocument(s.db.QueryRow(`
		SELECT id, tender_id, filename, mime_type, content_hash, page_count, version, raw, uploaded_at, parsed_at
		FROM documents WHERE tender_id = ? AND filename = ?`, tenderID, filename))
}

// GetDocument loads one document by id, raw bytes included.
func (s *Store) GetDocument(id string) (Document, error) {
	return s.scanDocument(s.db.QueryRow(`
		SELECT id, tender_id, filename, mime_type, content_hash, page_count, version, raw, uploaded_at, parsed_at
		FROM documents WHERE id = ?`, id))
}

func (s *Store) scanDocument(row *sql.Row) (Document, error) {
	var d Document
	var uploadedAt string
	var parsedAt sql.NullString
	err := row.Scan(&d.ID, &d.TenderID, &d.Filename, &d.MIMEType, &d.ContentHash,
		&d.PageCount, &d.Version, &d.Raw, &uploadedAt, &parsedAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if d.UploadedAt, err = parseTime(uploadedAt); err != nil {
		return Document{}, fmt.Errorf("parsing uploaded_at: %w", err)
	}
	if d.ParsedAt, err = parseTimePtr(parsedAt); err != nil {
		return Document{}, fmt.Errorf("parsing parsed_at: %w", err)
	}
	return d, nil
}

// ListDocuments returns a tender's documents ordered by upload time.
// Raw bytes are not loaded; use GetDocument for those.
func (s *Store) ListDocuments(tenderID string) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, filename, mime_type, content_hash, page_count, version, uploaded_at, parsed_at
		FROM documents WHERE tender_id = ? ORDER BY uploaded_at ASC, filename ASC`, tenderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var uploadedAt string
		var parsedAt sql.NullString
		if err := rows.Scan(&d.ID, &d.TenderID, &d.Filename, &d.MIMEType, &d.ContentHash,
			&d.PageCount, &d.Version, &uploadedAt, &parsedAt); err != nil {
			return nil, err
		}
		if d.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, fmt.Errorf("parsing uploaded_at: %w", err)
		}
		if d.ParsedAt, err = parseTimePtr(parsedAt); err != nil {
			return nil, fmt.Errorf("parsing parsed_at: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// SavePages replaces a document's parsed pages and marks it parsed.
func (s *Store) SavePages(documentID string, pages []Page) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning pages transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM document_pages WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clearing pages: %w", err)
	}
	for _, p := range pages {
		if _, err := tx.Exec(`INSERT INTO document_pages (document_id, number, text) VALUES (?, ?, ?)`,
			documentID, p.Number, p.Text); err != nil {
			return fmt.Errorf("inserting page %d: %w", p.Number, err)
		}
	}
	res, err := tx.Exec(`UPDATE documents SET page_count = ?, parsed_at = ? WHERE id = ?`,
		len(pages), fmtTime(time.Now()), documentID)
	if err != nil {
		return fmt.Errorf("marking document parsed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// GetPages returns a document's pages in page order.
func (s *Store) GetPages(documentID string) ([]Page, error) {
	rows, err := s.db.Query(`
		SELECT number, text FROM document_pages WHERE document_id = ? ORDER BY number ASC`, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.Number, &p.Text); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
