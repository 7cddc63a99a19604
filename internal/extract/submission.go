package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// SubmissionValue is the structured result of the submission mechanics extractor.
type SubmissionValue struct {
	Format            FormatRequirements `json:"format"`
	Delivery          DeliveryInfo       `json:"delivery"`
	ProposalStructure []string           `json:"proposalStructure,omitempty"`
	Procedure         []string           `json:"procedure,omitempty"`
}

// FormatRequirements captures how the proposal must be packaged.
type FormatRequirements struct {
	Copies           int      `json:"copies,omitempty"`
	OriginalRequired bool     `json:"originalRequired"`
	Physical         bool     `json:"physical"`
	Electronic       bool     `json:"electronic"`
	FileFormats      []string `json:"fileFormats,omitempty"`
}

// DeliveryInfo captures where and how the proposal must be delivered.
type DeliveryInfo struct {
	Method  string `json:"method,omitempty"` // email, online portal, physical delivery, postal mail
	Address string `json:"address,omitempty"`
	Email   string `json:"email,omitempty"`
	Portal  string `json:"portal,omitempty"`
}

// deliveryMethods maps sniffing keywords to the canonical method label,
// in priority order: the first matching group wins.
var deliveryMethods = []struct {
	method   string
	keywords []string
}{
	{"email", []string{"email", "e-mail"}},
	{"online portal", []string{"portal", "online submission", "e-procurement", "electronically via"}},
	{"physical delivery", []string{"hand deliver", "delivered to", "drop off", "in person", "sealed envelope"}},
	{"postal mail", []string{"mail", "post", "courier"}},
}

// SubmissionExtractor mines proposal format and delivery mechanics.
type SubmissionExtractor struct {
	patterns patternSet
}

// NewSubmissionExtractor builds the submission mechanics extractor.
func NewSubmissionExtractor() *SubmissionExtractor {
	return &SubmissionExtractor{
		patterns: patternSet{
			keywords: []string{
				"submission", "submit", "proposal format", "copies", "envelope",
				"delivery", "e-procurement", "portal", "sealed",
			},
			strong: []*regexp.Regexp{
				regexp.MustCompile(`(?i)submission\s+(?:requirements?|instructions?|procedure)\s*:`),
				regexp.MustCompile(`(?i)proposals?\s+(?:must|shall)\s+be\s+submitted\b`),
				regexp.MustCompile(`(?i)\b\d+\s+(?:hard\s+)?cop(?:y|ies)\b`),
			},
			structural: []*regexp.Regexp{bulletLineRe},
		},
	}
}

func (e *SubmissionExtractor) Key() string { return KeySubmissionMechanics }

var (
	copiesRe     = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(?:hard\s+)?cop(?:y|ies)\b`)
	emailAddrRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	portalURLRe  = regexp.MustCompile(`https?://[^\s)>\]]+`)
	fileFormatRe = regexp.MustCompile(`(?i)\b(PDF|DOCX?|XLSX?|ZIP)\b`)
	addressRe    = regexp.MustCompile(`(?i)(?:delivered?|submitted?|sent)\s+to\s*:?\s+([^\n.]{10,160})`)
	structureRe  = regexp.MustCompile(`(?i)(?:proposal|bid|submission)\s+(?:must|shall|should)\s+(?:include|contain|consist of)\s*:?\s*([^\n]{5,200})`)
	procedureRe  = regexp.MustCompile(`(?m)^\s*(?:step\s+)?\d+[.)]\s+([^\n]{5,200})`)
)

// Extract mines format requirements (copy count, media, file formats),
// delivery info (method by keyword priority plus address/email/portal) and
// the ordered proposal-structure and procedure-step lists.
func (e *SubmissionExtractor) Extract(doc Document, _ []Document) Result {
	hits, citations := e.patterns.scan(doc)
	conf := e.patterns.confidence(doc, hits)
	text := doc.FullText()
	lower := strings.ToLower(text)

	var value SubmissionValue

	if m := copiesRe.FindStringSubmatch(text); m != nil {
		value.Format.Copies, _ = strconv.Atoi(m[1])
	}
	value.Format.OriginalRequired = strings.Contains(lower, "original")
	value.Format.Physical = strings.Contains(lower, "hard copy") ||
		strings.Contains(lower, "sealed envelope") || strings.Contains(lower, "printed")
	value.Format.Electronic = strings.Contains(lower, "electronic") ||
		strings.Contains(lower, "email") || strings.Contains(lower, "portal") ||
		strings.Contains(lower, "online")
	seenFmt := make(map[string]bool)
	for _, m := range fileFormatRe.FindAllString(text, -1) {
		f := strings.ToUpper(m)
		if !seenFmt[f] {
			seenFmt[f] = true
			value.Format.FileFormats = append(value.Format.FileFormats, f)
		}
	}

	for _, dm := range deliveryMethods {
		for _, kw := range dm.keywords {
			if strings.Contains(lower, kw) {
				value.Delivery.Method = dm.method
				break
			}
		}
		if value.Delivery.Method != "" {
			break
		}
	}
	if m := emailAddrRe.FindString(text); m != "" {
		value.Delivery.Email = m
	}
	if m := portalURLRe.FindString(text); m != "" {
		value.Delivery.Portal = m
	}
	if m := addressRe.FindStringSubmatch(text); m != nil {
		value.Delivery.Address = strings.TrimSpace(m[1])
	}

	for _, m := range structureRe.FindAllStringSubmatch(text, -1) {
		value.ProposalStructure = append(value.ProposalStructure, strings.TrimSpace(m[1]))
	}
	for _, m := range procedureRe.FindAllStringSubmatch(text, -1) {
		value.Procedure = append(value.Procedure, strings.TrimSpace(m[1]))
	}

	if conf == 0 {
		citations = nil
	}
	return Result{Key: KeySubmissionMechanics, Value: value, Confidence: conf, Citations: citations}
}
