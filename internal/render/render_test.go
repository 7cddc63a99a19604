package render

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/tenderd/internal/extract"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func testFields() map[string]Field {
	deadline := time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)
	return map[string]Field{
		extract.KeyScope: {
			Key:        extract.KeyScope,
			Value:      extract.ScopeValue{Summary: "Road maintenance works."},
			Confidence: 0.8,
			Citations:  []Citation{{ID: "c-scope", Page: 1}},
		},
		extract.KeyEligibility: {
			Key:        extract.KeyEligibility,
			Value:      extract.EligibilityValue{Requirements: []extract.Requirement{{Text: "5 years experience"}}},
			Confidence: 0.1, // below threshold
			Citations:  []Citation{{ID: "c-elig", Page: 1}},
		},
		extract.KeyDeadlineSubmission: {
			Key: extract.KeyDeadlineSubmission,
			Value: extract.DeadlineValue{
				Primary: &extract.DeadlineCandidate{
					Type: "submission", Date: &deadline, Valid: true, Future: true, Bucket: "later",
				},
			},
			Confidence: 0.9,
			Citations:  []Citation{{ID: "c-deadline", Page: 2}},
		},
	}
}

func blockByKey(t *testing.T, blocks []Block, key string) Block {
	t.Helper()
	for _, b := range blocks {
		if b.Key == key {
			return b
		}
	}
	t.Fatalf("block %s missing: %+v", key, blocks)
	return Block{}
}

func TestRenderSummaryBlocks(t *testing.T) {
	r := testRenderer(t)
	blocks, err := r.RenderSummary(TenderInfo{ID: "t-1", Title: "Road works", Agency: "City"}, testFields(), nil)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}

	wantKeys := []string{"scope", "eligibility", "evaluation_criteria", "submission_mechanics", "deadline"}
	if len(blocks) != len(wantKeys) {
		t.Fatalf("blocks = %d, want %d: %+v", len(blocks), len(wantKeys), blocks)
	}
	for i, want := range wantKeys {
		if blocks[i].Key != want {
			t.Errorf("block[%d] key = %q, want %q", i, blocks[i].Key, want)
		}
	}

	scope := blockByKey(t, blocks, "scope")
	if !strings.Contains(scope.Markdown, "Road maintenance works.") {
		t.Errorf("scope markdown = %q", scope.Markdown)
	}
	if !strings.Contains(scope.Markdown, "[c:c-scope]") {
		t.Errorf("scope citation marker missing: %q", scope.Markdown)
	}
	if len(scope.CitationIDs) != 1 || scope.CitationIDs[0] != "c-scope" {
		t.Errorf("scope citation ids = %v", scope.CitationIDs)
	}

	deadline := blockByKey(t, blocks, "deadline")
	if !strings.Contains(deadline.Markdown, "March 15, 2027") {
		t.Errorf("deadline markdown = %q", deadline.Markdown)
	}
	if len(deadline.CitationIDs) != 1 || deadline.CitationIDs[0] != "c-deadline" {
		t.Errorf("deadline citation ids = %v", deadline.CitationIDs)
	}
}

func TestRenderSummaryLowConfidencePlaceholder(t *testing.T) {
	r := testRenderer(t)
	blocks, err := r.RenderSummary(TenderInfo{Title: "Road works"}, testFields(), nil)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}

	// Eligibility sits below the confidence threshold; its content is never
	// rendered, only the placeholder.
	elig := blockByKey(t, blocks, "eligibility")
	if !strings.Contains(elig.Markdown, Placeholder) {
		t.Errorf("eligibility markdown = %q, want placeholder", elig.Markdown)
	}
	if strings.Contains(elig.Markdown, "5 years experience") {
		t.Errorf("low-confidence content leaked: %q", elig.Markdown)
	}

	// Missing fields render the placeholder too.
	eval := blockByKey(t, blocks, "evaluation_criteria")
	if !strings.Contains(eval.Markdown, Placeholder) {
		t.Errorf("evaluation markdown = %q, want placeholder", eval.Markdown)
	}
	if len(eval.CitationIDs) != 0 {
		t.Errorf("evaluation citation ids = %v, want none", eval.CitationIDs)
	}
}

func TestRenderSummaryMetadataBlock(t *testing.T) {
	r := testRenderer(t)
	blocks, err := r.RenderSummary(TenderInfo{Title: "Road works"}, testFields(),
		map[string]string{"pipeline": "standard"})
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}

	notes := blockByKey(t, blocks, "processing_notes")
	if !strings.Contains(notes.Markdown, "pipeline: standard") {
		t.Errorf("notes markdown = %q", notes.Markdown)
	}
}

func TestSplitBlocksFallback(t *testing.T) {
	blocks := splitBlocks([]byte("Just a paragraph with no headings.\n"))
	if len(blocks) != 1 {
		t.Fatalf("blocks = %+v, want 1", blocks)
	}
	if blocks[0].Key != "summary" {
		t.Errorf("key = %q, want summary", blocks[0].Key)
	}
	if blocks[0].Markdown != "Just a paragraph with no headings." {
		t.Errorf("markdown = %q", blocks[0].Markdown)
	}
}

func TestCitationsInIgnoresUnknownMarkers(t *testing.T) {
	got := citationsIn("text [c:known] and [c:rogue] markers", []string{"known"})
	if len(got) != 1 || got[0] != "known" {
		t.Errorf("citationsIn = %v, want [known]", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Evaluation criteria", "evaluation_criteria"},
		{"  Submission mechanics  ", "submission_mechanics"},
		{"Scope", "scope"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderChecklistDelegates(t *testing.T) {
	r := testRenderer(t)

	if _, err := r.RenderChecklist("bogus", nil); err == nil {
		t.Error("unknown checklist template accepted")
	}

	ev, err := r.RenderChecklist("standard", nil)
	if err != nil {
		t.Fatalf("RenderChecklist: %v", err)
	}
	if len(ev.Items) != 7 {
		t.Errorf("items = %d, want 7", len(ev.Items))
	}
}

func TestNarrativePlaceholderOnWeakSignal(t *testing.T) {
	if got := narrative(Field{Confidence: 0.3, Value: extract.ScopeValue{Summary: "x"}}); got != Placeholder {
		t.Errorf("at-threshold narrative = %q, want placeholder", got)
	}
	if got := narrative(Field{Confidence: 0.9, Value: extract.DeadlineValue{}}); got != Placeholder {
		t.Errorf("nil-primary deadline narrative = %q, want placeholder", got)
	}
	if got := narrative(Field{Confidence: 0.9, Value: "unexpected shape"}); got != Placeholder {
		t.Errorf("unknown value narrative = %q, want placeholder", got)
	}
}
