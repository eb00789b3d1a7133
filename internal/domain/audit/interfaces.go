package audit

import "context"

// Repository provides read access to the audit trail.
// Events are written by the document store in the same transaction as the change they describe.
type Repository interface {
	List(ctx context.Context, opts ListOptions) ([]Event, error)
}
