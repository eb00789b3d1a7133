package document

import (
	"time"

	"github.com/rpggio/qms/internal/workflow"
)

// Document is a controlled document and its workflow state
type Document struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"`
	Title            string           `json:"title"`
	Status           workflow.Status  `json:"status"`
	Version          workflow.Version `json:"version"`
	Executable       bool             `json:"executable"`
	ExecutionPhase   workflow.Phase   `json:"execution_phase"`
	ResponsibleUser  string           `json:"responsible_user,omitempty"`
	CheckedOut       bool             `json:"checked_out"`
	CheckedOutAt     *time.Time       `json:"checked_out_at,omitempty"`
	Assignees        []string         `json:"assignees,omitempty"`
	Completed        []string         `json:"completed,omitempty"`
	Reviewers        []string         `json:"reviewers,omitempty"`
	ParentID         *string          `json:"parent_id,omitempty"`
	EffectiveVersion string           `json:"effective_version,omitempty"`
	EffectiveAt      *time.Time       `json:"effective_at,omitempty"`
	Retiring         bool             `json:"retiring,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ModifiedAt       time.Time        `json:"modified_at"`
	Revision         int64            `json:"revision"`
}

// Pending returns assignees who have not yet acted in the current round.
func (d *Document) Pending() []string {
	pending := make([]string, 0, len(d.Assignees))
	for _, a := range d.Assignees {
		if !containsUser(d.Completed, a) {
			pending = append(pending, a)
		}
	}
	return pending
}

func (d *Document) clone() *Document {
	c := *d
	c.Assignees = append([]string(nil), d.Assignees...)
	c.Completed = append([]string(nil), d.Completed...)
	c.Reviewers = append([]string(nil), d.Reviewers...)
	if d.ParentID != nil {
		parent := *d.ParentID
		c.ParentID = &parent
	}
	if d.CheckedOutAt != nil {
		at := *d.CheckedOutAt
		c.CheckedOutAt = &at
	}
	if d.EffectiveAt != nil {
		at := *d.EffectiveAt
		c.EffectiveAt = &at
	}
	return &c
}

// ReviewRecord is one reviewer's verdict, appended and never changed
type ReviewRecord struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Reviewer   string           `json:"reviewer"`
	Outcome    workflow.Outcome `json:"outcome"`
	Comment    string           `json:"comment"`
	Phase      workflow.Phase   `json:"phase"`
	Version    string           `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
}

// FixResult reports what an administrative fix changed.
type FixResult struct {
	Document *Document `json:"document"`
	Changes  []string  `json:"changes"`
}

func containsUser(list []string, user string) bool {
	for _, u := range list {
		if u == user {
			return true
		}
	}
	return false
}

func mergeUsers(list []string, add ...string) []string {
	out := append([]string(nil), list...)
	for _, u := range add {
		if !containsUser(out, u) {
			out = append(out, u)
		}
	}
	return out
}
