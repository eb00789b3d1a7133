package mcp

import (
	"time"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/workflow"
)

// UserParams is embedded by every tool input. It names the actor when the
// transport does not authenticate one.
type UserParams struct {
	User string `json:"user,omitempty"`
}

type CreateParams struct {
	UserParams
	Type     string `json:"type"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id,omitempty"`
}

type DocumentParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
}

type RouteParams struct {
	UserParams
	DocumentID string   `json:"doc_id"`
	Target     string   `json:"target"`
	Assignees  []string `json:"assignees,omitempty"`
	Retire     bool     `json:"retire,omitempty"`
}

type AssignParams struct {
	UserParams
	DocumentID string   `json:"doc_id"`
	Assignees  []string `json:"assignees"`
}

type ReviewParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
	Outcome    string `json:"outcome"`
	Comment    string `json:"comment"`
}

type RejectParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
	Comment    string `json:"comment"`
}

type RevertParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
	Reason     string `json:"reason"`
}

type CancelParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
	Confirm    bool   `json:"confirm,omitempty"`
}

type ListParams struct {
	UserParams
	Types    []string `json:"types,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	ParentID *string  `json:"parent_id,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

type CommentsParams struct {
	UserParams
	DocumentID string `json:"doc_id"`
	Version    string `json:"version,omitempty"`
}

// DocumentResponse is the wire form of a document.
type DocumentResponse struct {
	ID               string     `json:"doc_id"`
	Type             string     `json:"doc_type"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	Version          string     `json:"version"`
	Executable       bool       `json:"executable"`
	ExecutionPhase   string     `json:"execution_phase,omitempty"`
	ResponsibleUser  string     `json:"responsible_user,omitempty"`
	CheckedOut       bool       `json:"checked_out"`
	CheckedOutAt     *time.Time `json:"checked_out_at,omitempty"`
	Assignees        []string   `json:"assignees,omitempty"`
	Pending          []string   `json:"pending_assignees,omitempty"`
	Reviewers        []string   `json:"reviewers,omitempty"`
	ParentID         string     `json:"parent_id,omitempty"`
	EffectiveVersion string     `json:"effective_version,omitempty"`
	EffectiveAt      *time.Time `json:"effective_at,omitempty"`
	Retiring         bool       `json:"retiring,omitempty"`
	ModifiedAt       time.Time  `json:"modified_at"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type EventListResponse struct {
	Events []audit.Event `json:"events"`
}

type FixResponse struct {
	Document DocumentResponse `json:"document"`
	Changes  []string         `json:"changes"`
}

type CancelResponse struct {
	DocumentID string `json:"doc_id"`
	Cancelled  bool   `json:"cancelled"`
}

func toDocumentResponse(doc *document.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:               doc.ID,
		Type:             doc.Type,
		Title:            doc.Title,
		Status:           string(doc.Status),
		Version:          doc.Version.String(),
		Executable:       doc.Executable,
		ResponsibleUser:  doc.ResponsibleUser,
		CheckedOut:       doc.CheckedOut,
		CheckedOutAt:     doc.CheckedOutAt,
		Assignees:        doc.Assignees,
		Pending:          doc.Pending(),
		Reviewers:        doc.Reviewers,
		ParentID:         stringValue(doc.ParentID),
		EffectiveVersion: doc.EffectiveVersion,
		EffectiveAt:      doc.EffectiveAt,
		Retiring:         doc.Retiring,
		ModifiedAt:       doc.ModifiedAt,
	}
	if doc.Executable {
		resp.ExecutionPhase = string(doc.ExecutionPhase)
	}
	return resp
}

func toDocumentList(docs []document.Document) DocumentListResponse {
	out := DocumentListResponse{Documents: make([]DocumentResponse, 0, len(docs))}
	for i := range docs {
		out.Documents = append(out.Documents, toDocumentResponse(&docs[i]))
	}
	return out
}

func toStatuses(in []string) []workflow.Status {
	if len(in) == 0 {
		return nil
	}
	out := make([]workflow.Status, 0, len(in))
	for _, s := range in {
		out = append(out, workflow.Status(s))
	}
	return out
}

func stringValue(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}
