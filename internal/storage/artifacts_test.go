package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSaveFieldExtractionUpsert(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	first := FieldExtraction{
		ID:          "fe-1",
		TenderID:    "t-1",
		Key:         "scope",
		Value:       json.RawMessage(`{"summary":"roads"}`),
		Confidence:  0.6,
		ExtractedAt: time.Now().UTC(),
		Links: []TraceLink{
			{ID: "l-1", DocumentID: "d-1", Page: 1, Snippet: "scope of work"},
			{ID: "l-2", DocumentID: "d-1", Page: 2, Snippet: "deliverables"},
		},
	}
	if err := s.SaveFieldExtraction(first); err != nil {
		t.Fatalf("SaveFieldExtraction: %v", err)
	}

	// Re-extraction with a fresh candidate id keeps the stored id and
	// replaces the links wholesale.
	second := first
	second.ID = "fe-other"
	second.Value = json.RawMessage(`{"summary":"bridges"}`)
	second.Confidence = 0.8
	second.Links = []TraceLink{{ID: "l-3", DocumentID: "d-1", Page: 3, Snippet: "bridge repair"}}
	if err := s.SaveFieldExtraction(second); err != nil {
		t.Fatalf("SaveFieldExtraction (replace): %v", err)
	}

	fields, err := s.GetFieldExtractions("t-1")
	if err != nil {
		t.Fatalf("GetFieldExtractions: %v", err)
	}
	fe, ok := fields["scope"]
	if !ok {
		t.Fatalf("scope extraction missing: %v", fields)
	}
	if fe.ID != "fe-1" {
		t.Errorf("id = %q, want stable id fe-1", fe.ID)
	}
	if fe.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", fe.Confidence)
	}
	if string(fe.Value) != `{"summary":"bridges"}` {
		t.Errorf("value = %s", fe.Value)
	}
	if len(fe.Links) != 1 || fe.Links[0].ID != "l-3" {
		t.Errorf("links not replaced: %+v", fe.Links)
	}
}

func TestChecklistItemsOrderedByKey(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	for _, key := range []string{"scope_identified", "deadline_identified"} {
		err := s.SaveChecklistItem(ChecklistItem{
			ID:       "ci-" + key,
			TenderID: "t-1",
			Key:      key,
			Label:    key,
			Status:   CheckPending,
		})
		if err != nil {
			t.Fatalf("SaveChecklistItem(%s): %v", key, err)
		}
	}

	items, err := s.ListChecklistItems("t-1")
	if err != nil {
		t.Fatalf("ListChecklistItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Key != "deadline_identified" || items[1].Key != "scope_identified" {
		t.Errorf("items out of key order: %s, %s", items[0].Key, items[1].Key)
	}
}

func TestSaveChecklistItemUpsert(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	item := ChecklistItem{
		ID:       "ci-1",
		TenderID: "t-1",
		Key:      "scope_identified",
		Label:    "Scope of work identified",
		Status:   CheckMissing,
		Links:    []TraceLink{{ID: "l-1", DocumentID: "d-1", Page: 1}},
	}
	if err := s.SaveChecklistItem(item); err != nil {
		t.Fatalf("SaveChecklistItem: %v", err)
	}

	item.ID = "ci-other"
	item.Status = CheckOK
	item.Links = nil
	if err := s.SaveChecklistItem(item); err != nil {
		t.Fatalf("SaveChecklistItem (replace): %v", err)
	}

	items, err := s.ListChecklistItems("t-1")
	if err != nil {
		t.Fatalf("ListChecklistItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if items[0].ID != "ci-1" || items[0].Status != CheckOK {
		t.Errorf("item = %+v", items[0])
	}
	if len(items[0].Links) != 0 {
		t.Errorf("links not cleared: %+v", items[0].Links)
	}
}

func TestUpdateChecklistItemStatus(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	err := s.SaveChecklistItem(ChecklistItem{
		ID:       "ci-1",
		TenderID: "t-1",
		Key:      "conflict_of_interest",
		Label:    "Conflict of interest declaration reviewed",
		Status:   CheckPending,
	})
	if err != nil {
		t.Fatalf("SaveChecklistItem: %v", err)
	}

	if err := s.UpdateChecklistItemStatus("t-1", "conflict_of_interest", CheckOK, "declaration on file"); err != nil {
		t.Fatalf("UpdateChecklistItemStatus: %v", err)
	}
	items, err := s.ListChecklistItems("t-1")
	if err != nil {
		t.Fatalf("ListChecklistItems: %v", err)
	}
	if items[0].Status != CheckOK || items[0].Notes != "declaration on file" {
		t.Errorf("item = %+v", items[0])
	}

	if err := s.UpdateChecklistItemStatus("t-1", "missing_key", CheckOK, ""); err != ErrNotFound {
		t.Errorf("unknown key = %v, want ErrNotFound", err)
	}
}

func TestSaveSummaryBlockUpsert(t *testing.T) {
	s := openTestStore(t)
	saveTestTender(t, s, "t-1")

	block := SummaryBlock{
		ID:       "sb-1",
		TenderID: "t-1",
		BlockKey: "scope",
		Markdown: "## Scope\n\nRoads.",
		Links:    []TraceLink{{ID: "l-1", DocumentID: "d-1", Page: 1}},
	}
	if err := s.SaveSummaryBlock(block); err != nil {
		t.Fatalf("SaveSummaryBlock: %v", err)
	}

	block.ID = "sb-other"
	block.Markdown = "## Scope\n\nBridges."
	block.Links = []TraceLink{{ID: "l-2", DocumentID: "d-1", Page: 2}}
	if err := s.SaveSummaryBlock(block); err != nil {
		t.Fatalf("SaveSummaryBlock (replace): %v", err)
	}

	blocks, err := s.ListSummaryBlocks("t-1")
	if err != nil {
		t.Fatalf("ListSummaryBlocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len = %d, want 1", len(blocks))
	}
	if blocks[0].ID != "sb-1" || blocks[0].Markdown != "## Scope\n\nBridges." {
		t.Errorf("block = %+v", blocks[0])
	}
	if len(blocks[0].Links) != 1 || blocks[0].Links[0].ID != "l-2" {
		t.Errorf("links not replaced: %+v", blocks[0].Links)
	}
}
