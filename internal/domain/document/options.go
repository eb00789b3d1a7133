package document

import "github.com/rpggio/qms/internal/workflow"

// ListOptions provides filtering options for listing documents.
type ListOptions struct {
	Types           []string
	Statuses        []workflow.Status
	PendingAssignee string
	CheckedOutBy    string
	ParentID        *string
	Limit           int
	Offset          int
}
