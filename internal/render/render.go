// Package render compiles the narrative summary and checklist of a review
// package from extracted field values, re-embedding citation references.
//
// The renderer is an explicitly constructed instance carrying its helper set
// as configuration; there is no process-wide template registry.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/kalambet/tenderd/internal/checklist"
	"github.com/kalambet/tenderd/internal/extract"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// LowConfidenceThreshold is the confidence at or below which a field is
// rendered as "not clearly identified" instead of fabricated content.
const LowConfidenceThreshold = 0.3

// Placeholder rendered for low-confidence fields.
const Placeholder = "_Not clearly identified in the tender documents._"

// Citation is the renderer's view of a persisted trace link.
type Citation struct {
	ID   string
	Page int
}

// Field is one extracted field prepared for rendering.
type Field struct {
	Key        string
	Value      any
	Confidence float64
	Citations  []Citation
}

// TenderInfo is the tender header context for templates.
type TenderInfo struct {
	ID     string
	Title  string
	Agency string
}

// Block is one rendered summary section with the citation ids appearing in
// its text span. This structured output is the single source of truth for
// block-citation association; the textual markers are presentational.
type Block struct {
	Key         string
	Markdown    string
	CitationIDs []string
}

// Renderer binds the compiled summary template and its helper functions.
type Renderer struct {
	tmpl *template.Template
}

// summaryContext is the data bound against the summary template.
type summaryContext struct {
	Tender   TenderInfo
	Fields   map[string]Field
	Metadata map[string]string
}

// New compiles the embedded summary template with the renderer's helper set.
func New() (*Renderer, error) {
	r := &Renderer{}
	tmpl, err := template.New("summary.md.tmpl").Funcs(r.helpers()).ParseFS(templateFS, "templates/summary.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("compiling summary template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// helpers is the renderer's helper function set.
func (r *Renderer) helpers() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t *time.Time) string {
			if t == nil {
				return "unknown"
			}
			return t.Format("January 2, 2006")
		},
		"pct": func(confidence float64) string {
			return fmt.Sprintf("%.0f%%", confidence*100)
		},
		"cite": citeMarkers,
		"list": func(items []string) string {
			return strings.Join(items, ", ")
		},
		"lowconf": func(f Field) bool {
			return f.Confidence <= LowConfidenceThreshold
		},
		"narrative": narrative,
	}
}

// citeMarkers emits one citation marker per trace link of a field.
func citeMarkers(f Field) string {
	var b strings.Builder
	for _, c := range f.Citations {
		fmt.Fprintf(&b, " [c:%s]", c.ID)
	}
	return b.String()
}

// RenderSummary binds the template against the tender and its fields, then
// splits the output into per-section blocks on level-2 headings and
// re-associates each block with the citation ids inside its span. Documents
// with no level-2 headings collapse into a single "summary" block.
func (r *Renderer) RenderSummary(tender TenderInfo, fields map[string]Field, metadata map[string]string) ([]Block, error) {
	var buf bytes.Buffer
	ctx := summaryContext{Tender: tender, Fields: fields, Metadata: metadata}
	if err := r.tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("rendering summary: %w", err)
	}

	known := knownCitationIDs(fields)
	blocks := splitBlocks(buf.Bytes())
	for i := range blocks {
		blocks[i].CitationIDs = citationsIn(blocks[i].Markdown, known)
	}
	return blocks, nil
}

// RenderChecklist produces checklist items for the tender by delegating to
// the rule engine with the given template schema.
func (r *Renderer) RenderChecklist(templateID string, fields map[string]extract.Result) (checklist.Evaluation, error) {
	return checklist.Evaluate(templateID, fields)
}

// knownCitationIDs collects every citation id across the rendered fields,
// sorted for deterministic association order.
func knownCitationIDs(fields map[string]Field) []string {
	var ids []string
	for _, f := range fields {
		for _, c := range f.Citations {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// citationsIn returns the subset of known ids whose markers appear in text.
// Only ids drawn from the fields' real trace links can ever associate; the
// text is never scanned for arbitrary marker syntax.
func citationsIn(text string, known []string) []string {
	var out []string
	for _, id := range known {
		if strings.Contains(text, "[c:"+id+"]") {
			out = append(out, id)
		}
	}
	return out
}
