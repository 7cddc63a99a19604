// Package docparse converts uploaded document bytes into page-segmented
// text. PDFs keep their native page boundaries; plain text is chunked into
// fixed-size synthetic pages.
package docparse

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/tenderd/internal/textutil"
)

// DefaultWordsPerPage is the synthetic page size used when a document
// carries no page boundaries of its own.
const DefaultWordsPerPage = 500

// Parsed is the page-segmented output of one document.
type Parsed struct {
	FullText string
	Pages    []Page
	Metadata map[string]string
}

// Page is one page of parsed text, 1-based.
type Page struct {
	Number int
	Text   string
}

// Hash returns the hex SHA-256 of the raw content, used for deduplication
// and re-versioning.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse converts raw bytes into page-segmented text. Supported MIME types:
// application/pdf and text/plain (plus text/markdown treated as plain).
// Unsupported types are an error; the caller decides whether that is fatal.
func Parse(data []byte, mimeType string) (Parsed, error) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch base {
	case "application/pdf":
		return parsePDF(data)
	case "text/plain", "text/markdown", "":
		return parsePlain(data), nil
	default:
		return Parsed{}, fmt.Errorf("unsupported document type %q", mimeType)
	}
}

func parsePDF(data []byte) (Parsed, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Parsed{}, fmt.Errorf("opening pdf: %w", err)
	}

	out := Parsed{Metadata: map[string]string{"format": "pdf"}}
	var full []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page is a local condition; keep the rest.
			slog.Warn("pdf page extraction failed", "page", i, "error", err)
			text = ""
		}
		out.Pages = append(out.Pages, Page{Number: i, Text: text})
		full = append(full, text)
	}
	if len(out.Pages) == 0 {
		return Parsed{}, fmt.Errorf("pdf contains no readable pages")
	}
	out.FullText = strings.Join(full, "\n")
	out.Metadata["pages"] = strconv.Itoa(len(out.Pages))
	return out, nil
}

// parsePlain segments plain text into synthetic pages of
// DefaultWordsPerPage words each.
func parsePlain(data []byte) Parsed {
	text := string(data)
	chunks := textutil.ChunkWords(text, DefaultWordsPerPage)

	out := Parsed{
		FullText: text,
		Metadata: map[string]string{"format": "text"},
	}
	for i, c := range chunks {
		out.Pages = append(out.Pages, Page{Number: i + 1, Text: c})
	}
	if len(out.Pages) == 0 {
		out.Pages = []Page{{Number: 1, Text: ""}}
	}
	out.Metadata["pages"] = strconv.Itoa(len(out.Pages))
	return out
}
