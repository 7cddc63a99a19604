package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Tender lifecycle statuses.
const (
	TenderDraft          = "draft"
	TenderProcessing     = "processing"
	TenderReadyForReview = "ready_for_review"
	TenderApproved       = "approved"
	TenderRejected       = "rejected"
	TenderArchived       = "archived"
)

// Run statuses. Terminal statuses (completed, failed, cancelled) are final.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Checklist item statuses.
const (
	CheckPending       = "pending"
	CheckOK            = "ok"
	CheckMissing       = "missing"
	CheckNotApplicable = "not_applicable"
)

// Artifact types a TraceLink can belong to.
const (
	ArtifactField     = "field"
	ArtifactChecklist = "checklist"
	ArtifactSummary   = "summary"
)

// Tender is a procurement opportunity under review. It is the aggregate
// root for documents, extractions, checklist items, summary blocks and runs.
type Tender struct {
	ID          string
	Title       string
	Agency      string
	Status      string
	PublishedAt *time.Time
	DueAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Document is one ingested file belonging to a tender. Raw holds the
// uploaded bytes until the parse worker turns them into pages; re-uploading
// changed content bumps Version and replaces the pages.
type Document struct {
	ID          string
	TenderID    string
	Filename    string
	MIMEType    string
	ContentHash string
	PageCount   int
	Version     int
	Raw         []byte
	UploadedAt  time.Time
	ParsedAt    *time.Time
}

// Page is one parsed page of a document.
type Page struct {
	Number int
	Text   string
}

// TraceLink is an immutable pointer from an extracted fact back to its
// source page and snippet. It is owned by the artifact that cites it.
type TraceLink struct {
	ID         string
	TenderID   string
	DocumentID string
	Page       int
	Snippet    string
	Section    string
}

// FieldExtraction is one named field's result for a tender. At most one
// exists per (tender, key); re-extraction replaces it.
type FieldExtraction struct {
	ID          string
	TenderID    string
	Key         string
	Value       json.RawMessage
	Confidence  float64
	ExtractedAt time.Time
	Links       []TraceLink
}

// ChecklistItem is one compliance check for a tender.
type ChecklistItem struct {
	ID       string
	TenderID string
	Key      string
	Label    string
	Status   string
	Notes    string
	Links    []TraceLink
}

// SummaryBlock is one narrative section of the review package.
type SummaryBlock struct {
	ID       string
	TenderID string
	BlockKey string
	Markdown string
	Links    []TraceLink
}

// Run is one execution of a pipeline against a tender.
type Run struct {
	ID         string
	TenderID   string
	Pipeline   string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
	Logs       []RunLog
}

// RunLog is one ordered log line of a run.
type RunLog struct {
	Seq     int
	At      time.Time
	Level   string
	StepID  string
	Message string
}

// AuditRecord tracks status transitions and approval decisions.
type AuditRecord struct {
	ID        string
	TenderID  string
	Actor     string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Job is one unit of background work in the SQLite job queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
