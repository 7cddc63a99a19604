package storage

import (
	"database/sql"
	"fmt"
)

// SaveFieldExtraction upserts one field's extraction result by
// (tender, key), replacing its trace links wholesale.
func (s *Store) SaveFieldExtraction(fe FieldExtraction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning extraction transaction: %w", err)
	}
	defer tx.Rollback()

	// Natural-key upsert keeps the stable id on replacement so trace link
	// ownership follows the surviving row.
	var id string
	err = tx.QueryRow(`SELECT id FROM field_extractions WHERE tender_id = ? AND key = ?`,
		fe.TenderID, fe.Key).Scan(&id)
	if err == sql.ErrNoRows {
		id = fe.ID
		_, err = tx.Exec(`
			INSERT INTO field_extractions (id, tender_id, key, value_json, confidence, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, fe.TenderID, fe.Key, string(fe.Value), fe.Confidence, fmtTime(fe.ExtractedAt))
	} else if err == nil {
		_, err = tx.Exec(`
			UPDATE field_extractions SET value_json = ?, confidence = ?, extracted_at = ? WHERE id = ?`,
			string(fe.Value), fe.Confidence, fmtTime(fe.ExtractedAt), id)
	}
	if err != nil {
		return fmt.Errorf("upserting extraction %s: %w", fe.Key, err)
	}

	if err := replaceLinks(tx, ArtifactField, id, fe.TenderID, fe.Links); err != nil {
		return err
	}
	return tx.Commit()
}

// GetFieldExtractions loads all extraction results for a tender keyed by field.
func (s *Store) GetFieldExtractions(tenderID string) (map[string]FieldExtraction, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, key, value_json, confidence, extracted_at
		FROM field_extractions WHERE tender_id = ?`, tenderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[string]FieldExtraction)
	for rows.Next() {
		var fe FieldExtraction
		var value, extractedAt string
		if err := rows.Scan(&fe.ID, &fe.TenderID, &fe.Key, &value, &fe.Confidence, &extractedAt); err != nil {
			return nil, err
		}
		fe.Value = []byte(value)
		if fe.ExtractedAt, err = parseTime(extractedAt); err != nil {
			return nil, fmt.Errorf("parsing extracted_at: %w", err)
		}
		if fe.Links, err = s.loadLinks(ArtifactField, fe.ID); err != nil {
			return nil, err
		}
		results[fe.Key] = fe
	}
	return results, rows.Err()
}

// SaveChecklistItem upserts one checklist item by (tender, key),
// replacing its trace links wholesale.
func (s *Store) SaveChecklistItem(item ChecklistItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning checklist transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`SELECT id FROM checklist_items WHERE tender_id = ? AND key = ?`,
		item.TenderID, item.Key).Scan(&id)
	if err == sql.ErrNoRows {
		id = item.ID
		_, err = tx.Exec(`
			INSERT INTO checklist_items (id, tender_id, key, label, status, notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, item.TenderID, item.Key, item.Label, item.Status, item.Notes)
	} else if err == nil {
		_, err = tx.Exec(`
			UPDATE checklist_items SET label = ?, status = ?, notes = ? WHERE id = ?`,
			item.Label, item.Status, item.Notes, id)
	}
	if err != nil {
		return fmt.Errorf("upserting checklist item %s: %w", item.Key, err)
	}

	if err := replaceLinks(tx, ArtifactChecklist, id, item.TenderID, item.Links); err != nil {
		return err
	}
	return tx.Commit()
}

// ListChecklistItems returns a tender's checklist items ordered by key.
func (s *Store) ListChecklistItems(tenderID string) ([]ChecklistItem, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, key, label, status, notes
		FROM checklist_items WHERE tender_id = ? ORDER BY key ASC`, tenderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChecklistItem
	for rows.Next() {
		var item ChecklistItem
		if err := rows.Scan(&item.ID, &item.TenderID, &item.Key, &item.Label, &item.Status, &item.Notes); err != nil {
			return nil, err
		}
		if item.Links, err = s.loadLinks(ArtifactChecklist, item.ID); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// UpdateChecklistItemStatus records a manual reviewer resolution of one
// checklist item. Items without auto-check rules can only leave pending
// through this path.
func (s *Store) UpdateChecklistItemStatus(tenderID, key, status, notes string) error {
	res, err := s.db.Exec(`
		UPDATE checklist_items SET status = ?, notes = ? WHERE tender_id = ? AND key = ?`,
		status, notes, tenderID, key)
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

// SaveSummaryBlock upserts one summary block by (tender, blockKey),
// replacing its trace links wholesale.
func (s *Store) SaveSummaryBlock(b SummaryBlock) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning summary transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`SELECT id FROM summary_blocks WHERE tender_id = ? AND block_key = ?`,
		b.TenderID, b.BlockKey).Scan(&id)
	if err == sql.ErrNoRows {
		id = b.ID
		_, err = tx.Exec(`
			INSERT INTO summary_blocks (id, tender_id, block_key, markdown)
			VALUES (?, ?, ?, ?)`,
			id, b.TenderID, b.BlockKey, b.Markdown)
	} else if err == nil {
		_, err = tx.Exec(`UPDATE summary_blocks SET markdown = ? WHERE id = ?`, b.Markdown, id)
	}
	if err != nil {
		return fmt.Errorf("upserting summary block %s: %w", b.BlockKey, err)
	}

	if err := replaceLinks(tx, ArtifactSummary, id, b.TenderID, b.Links); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSummaryBlocks returns a tender's summary blocks ordered by key.
func (s *Store) ListSummaryBlocks(tenderID string) ([]SummaryBlock, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, block_key, markdown
		FROM summary_blocks WHERE tender_id = ? ORDER BY block_key ASC`, tenderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SummaryBlock
	for rows.Next() {
		var b SummaryBlock
		if err := rows.Scan(&b.ID, &b.TenderID, &b.BlockKey, &b.Markdown); err != nil {
			return nil, err
		}
		if b.Links, err = s.loadLinks(ArtifactSummary, b.ID); err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// replaceLinks deletes an artifact's trace links and inserts the new set.
// Cleanup cascades from the artifact side; links are never merged.
func replaceLinks(tx *sql.Tx, artifactType, artifactID, tenderID string, links []TraceLink) error {
	if _, err := tx.Exec(`DELETE FROM trace_links WHERE artifact_type = ? AND artifact_id = ?`,
		artifactType, artifactID); err != nil {
		return fmt.Errorf("clearing trace links: %w", err)
	}
	for _, l := range links {
		if _, err := tx.Exec(`
			INSERT INTO trace_links (id, tender_id, document_id, page, snippet, section, artifact_type, artifact_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, tenderID, l.DocumentID, l.Page, l.Snippet, l.Section, artifactType, artifactID,
		); err != nil {
			return fmt.Errorf("inserting trace link: %w", err)
		}
	}
	return nil
}

func (s *Store) loadLinks(artifactType, artifactID string) ([]TraceLink, error) {
	rows, err := s.db.Query(`
		SELECT id, tender_id, document_id, page, snippet, section
		FROM trace_links WHERE artifact_type = ? AND artifact_id = ? ORDER BY id ASC`,
		artifactType, artifactID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []TraceLink
	for rows.Next() {
		var l TraceLink
		if err := rows.Scan(&l.ID, &l.TenderID, &l.DocumentID, &l.Page, &l.Snippet, &l.Section); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
