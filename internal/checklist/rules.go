package checklist

import "github.com/kalambet/tenderd/internal/extract"

// DefaultTemplateID is the checklist schema used when a pipeline names none.
const DefaultTemplateID = "standard"

// templates is the fixed template registry.
var templates = map[string]Template{
	DefaultTemplateID: {
		ID: DefaultTemplateID,
		Items: []TemplateItem{
			{Key: "scope_identified", Label: "Scope of work identified"},
			{Key: "eligibility_identified", Label: "Eligibility requirements identified"},
			{Key: "evaluation_identified", Label: "Evaluation criteria identified"},
			{Key: "submission_method", Label: "Submission method identified"},
			{Key: "deadline_identified", Label: "Submission deadline identified"},
			{Key: "deadline_in_future", Label: "Submission deadline has not passed"},
			{Key: "conflict_of_interest", Label: "Conflict of interest declaration reviewed"},
		},
	},
}

// rules is the fixed auto-check rule table, keyed by checklist item key.
// Items without a rule default to pending (manual review).
var rules = map[string]Rule{
	"scope_identified": {
		Field:    extract.KeyScope,
		Op:       OpExists,
		Required: true,
	},
	"eligibility_identified": {
		Field:    extract.KeyEligibility,
		Op:       OpExists,
		Required: true,
	},
	"evaluation_identified": {
		Field: extract.KeyEvaluationCriteria,
		Op:    OpExists,
	},
	"submission_method": {
		Field: extract.KeySubmissionMechanics,
		Op:    OpMatches,
		Arg:   `"method":"(email|online portal|physical delivery|postal mail)"`,
	},
	"deadline_identified": {
		Field:    extract.KeyDeadlineSubmission,
		Op:       OpExists,
		Required: true,
	},
	"deadline_in_future": {
		Field: extract.KeyDeadlineSubmission,
		Op:    OpDateAfter,
		Arg:   "now",
	},
	// conflict_of_interest deliberately carries no rule: always manual.
}

// Templates returns the known template ids.
func Templates() []string {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, id)
	}
	return ids
}

// KnownTemplate reports whether a template id exists.
func KnownTemplate(id string) bool {
	_, ok := templates[id]
	return ok
}
