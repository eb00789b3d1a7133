package audit

// ListOptions provides filtering options for listing audit events.
type ListOptions struct {
	DocumentID string
	Types      []EventType
	Actor      string
	Version    string
	Descending bool
	Limit      int
	Offset     int
}
