package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/qms/internal/domain/audit"
)

// AuditRepository implements audit.Repository for SQLite
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// List returns audit events matching the given options, in the order they were written
func (r *AuditRepository) List(ctx context.Context, opts audit.ListOptions) ([]audit.Event, error) {
	query := `
		SELECT id, document_id, document_type, event, actor, version,
		       from_status, to_status, outcome, comment, details, created_at
		FROM audit_log
	`

	args := []any{}
	conditions := []string{}

	if opts.DocumentID != "" {
		conditions = append(conditions, "document_id = ?")
		args = append(args, opts.DocumentID)
	}
	if len(opts.Types) > 0 {
		conditions = append(conditions, "event IN ("+placeholders(len(opts.Types))+")")
		for _, t := range opts.Types {
			args = append(args, string(t))
		}
	}
	if opts.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, opts.Actor)
	}
	if opts.Version != "" {
		conditions = append(conditions, "version = ?")
		args = append(args, opts.Version)
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	if opts.Descending {
		query += " ORDER BY seq DESC"
	} else {
		query += " ORDER BY seq ASC"
	}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			fromStatus sql.NullString
			toStatus   sql.NullString
			outcome    sql.NullString
			comment    sql.NullString
			details    sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.DocumentID,
			&e.DocumentType,
			&e.Type,
			&e.Actor,
			&e.Version,
			&fromStatus,
			&toStatus,
			&outcome,
			&comment,
			&details,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.FromStatus = fromStatus.String
		e.ToStatus = toStatus.String
		e.Outcome = outcome.String
		e.Comment = comment.String
		e.Details = details.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}

func insertEvent(ctx context.Context, q queryer, e *audit.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_log (id, document_id, document_type, event, actor, version,
		                       from_status, to_status, outcome, comment, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID,
		e.DocumentID,
		e.DocumentType,
		string(e.Type),
		e.Actor,
		e.Version,
		nullString(e.FromStatus),
		nullString(e.ToStatus),
		nullString(e.Outcome),
		nullString(e.Comment),
		nullString(e.Details),
		e.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("audit event for unknown document %s: %w", e.DocumentID, err)
		}
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
