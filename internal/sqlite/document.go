package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/repository"
	"github.com/rpggio/qms/internal/workflow"
)

const (
	roleAssignee = "assignee"
	roleReviewer = "reviewer"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentRepository implements document.Repository for SQLite
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `
	id, type, title, status, version, executable, execution_phase,
	responsible_user, checked_out, checked_out_at, parent_id,
	effective_version, effective_at, retiring, created_at, modified_at, revision
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var (
		doc          document.Document
		version      string
		responsible  sql.NullString
		checkedOutAt sql.NullTime
		parentID     sql.NullString
		effectiveVer sql.NullString
		effectiveAt  sql.NullTime
	)
	err := row.Scan(
		&doc.ID,
		&doc.Type,
		&doc.Title,
		&doc.Status,
		&version,
		&doc.Executable,
		&doc.ExecutionPhase,
		&responsible,
		&doc.CheckedOut,
		&checkedOutAt,
		&parentID,
		&effectiveVer,
		&effectiveAt,
		&doc.Retiring,
		&doc.CreatedAt,
		&doc.ModifiedAt,
		&doc.Revision,
	)
	if err != nil {
		return nil, err
	}

	v, err := workflow.ParseVersion(version)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Version = v
	doc.ResponsibleUser = responsible.String
	doc.EffectiveVersion = effectiveVer.String
	if checkedOutAt.Valid {
		t := checkedOutAt.Time
		doc.CheckedOutAt = &t
	}
	if effectiveAt.Valid {
		t := effectiveAt.Time
		doc.EffectiveAt = &t
	}
	if parentID.Valid {
		p := parentID.String
		doc.ParentID = &p
	}
	return &doc, nil
}

// Get retrieves a document by ID
func (r *DocumentRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := loadParticipants(ctx, r.db, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns documents matching the given options
func (r *DocumentRepository) List(ctx context.Context, opts document.ListOptions) ([]document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`

	args := []any{}
	conditions := []string{}

	if len(opts.Types) > 0 {
		conditions = append(conditions, "type IN ("+placeholders(len(opts.Types))+")")
		for _, t := range opts.Types {
			args = append(args, strings.ToUpper(t))
		}
	}
	if len(opts.Statuses) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(opts.Statuses))+")")
		for _, s := range opts.Statuses {
			args = append(args, s)
		}
	}
	if opts.PendingAssignee != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM document_participants p
			WHERE p.document_id = documents.id AND p.role = ? AND p.username = ? AND p.completed = 0
		)`)
		args = append(args, roleAssignee, opts.PendingAssignee)
	}
	if opts.CheckedOutBy != "" {
		conditions = append(conditions, "checked_out = 1 AND responsible_user = ?")
		args = append(args, opts.CheckedOutBy)
	}
	if opts.ParentID != nil {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, *opts.ParentID)
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	query += " ORDER BY id"

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
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	var docs []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	rows.Close()

	// Participants are loaded after the cursor is closed; the pool holds one connection.
	for i := range docs {
		if err := loadParticipants(ctx, r.db, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Reviews returns a document's review records, oldest first
func (r *DocumentRepository) Reviews(ctx context.Context, documentID string) ([]document.ReviewRecord, error) {
	query := `
		SELECT id, document_id, reviewer, outcome, comment, phase, version, created_at
		FROM review_records
		WHERE document_id = ?
		ORDER BY created_at, rowid
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []document.ReviewRecord
	for rows.Next() {
		var rec document.ReviewRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.DocumentID,
			&rec.Reviewer,
			&rec.Outcome,
			&rec.Comment,
			&rec.Phase,
			&rec.Version,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

// NextSequence returns one more than the highest number used under idPrefix
func (r *DocumentRepository) NextSequence(ctx context.Context, idPrefix string) (int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM documents WHERE substr(id, 1, ?) = ?`, len(idPrefix), idPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to scan document ids: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan document id: %w", err)
		}
		rest := strings.TrimPrefix(id, idPrefix)
		if rest == "" || strings.Trim(rest, "0123456789") != "" {
			continue
		}
		if n, ok := workflow.SequenceNumber(id); ok && n > highest {
			highest = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate document ids: %w", err)
	}
	return highest + 1, nil
}

// Commit writes a document, its participants, an optional review and audit events
// in one transaction. An update only applies if the stored revision still matches.
func (r *DocumentRepository) Commit(ctx context.Context, change document.Change) error {
	doc := change.Document
	if doc == nil {
		return fmt.Errorf("commit without document")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if change.ExpectedRevision == 0 {
		err = insertDocument(ctx, tx, doc)
	} else {
		err = updateDocument(ctx, tx, doc, change.ExpectedRevision)
	}
	if err != nil {
		return err
	}

	if err := replaceParticipants(ctx, tx, doc); err != nil {
		return err
	}

	if change.Review != nil {
		if err := insertReview(ctx, tx, change.Review); err != nil {
			return err
		}
	}

	for i := range change.Events {
		if err := insertEvent(ctx, tx, &change.Events[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes a document and, by cascade, its participants, reviews and audit trail
func (r *DocumentRepository) Delete(ctx context.Context, id string, expectedRevision int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND revision = ?`, id, expectedRevision)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missingOrConflict(ctx, r.db, id)
	}
	return nil
}

func insertDocument(ctx context.Context, q queryer, doc *document.Document) error {
	query := `INSERT INTO documents (` + documentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		doc.ID,
		doc.Type,
		doc.Title,
		doc.Status,
		doc.Version.String(),
		doc.Executable,
		doc.ExecutionPhase,
		nullString(doc.ResponsibleUser),
		doc.CheckedOut,
		doc.CheckedOutAt,
		doc.ParentID,
		nullString(doc.EffectiveVersion),
		doc.EffectiveAt,
		doc.Retiring,
		doc.CreatedAt,
		doc.ModifiedAt,
		doc.Revision,
	)
	if err != nil {
		if isUniqueViolation(err) || isPrimaryKeyViolation(err) {
			return repository.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func updateDocument(ctx context.Context, q queryer, doc *document.Document, expectedRevision int64) error {
	query := `
		UPDATE documents
		SET title = ?, status = ?, version = ?, execution_phase = ?, responsible_user = ?,
		    checked_out = ?, checked_out_at = ?, effective_version = ?, effective_at = ?,
		    retiring = ?, modified_at = ?, revision = ?
		WHERE id = ? AND revision = ?
	`

	result, err := q.ExecContext(ctx, query,
		doc.Title,
		doc.Status,
		doc.Version.String(),
		doc.ExecutionPhase,
		nullString(doc.ResponsibleUser),
		doc.CheckedOut,
		doc.CheckedOutAt,
		nullString(doc.EffectiveVersion),
		doc.EffectiveAt,
		doc.Retiring,
		doc.ModifiedAt,
		doc.Revision,
		doc.ID,
		expectedRevision,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return missingOrConflict(ctx, q, doc.ID)
	}
	return nil
}

func missingOrConflict(ctx context.Context, q queryer, id string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check document existence: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	// Document exists but revision doesn't match - conflict
	return repository.ErrConflict
}

func replaceParticipants(ctx context.Context, q queryer, doc *document.Document) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM document_participants WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}

	insert := `
		INSERT INTO document_participants (document_id, role, username, completed, position)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, user := range doc.Assignees {
		completed := containsString(doc.Completed, user)
		if _, err := q.ExecContext(ctx, insert, doc.ID, roleAssignee, user, completed, i); err != nil {
			return fmt.Errorf("failed to add assignee: %w", err)
		}
	}
	for i, user := range doc.Reviewers {
		if _, err := q.ExecContext(ctx, insert, doc.ID, roleReviewer, user, true, i); err != nil {
			return fmt.Errorf("failed to add reviewer: %w", err)
		}
	}
	return nil
}

func loadParticipants(ctx context.Context, q queryer, doc *document.Document) error {
	rows, err := q.QueryContext(ctx, `
		SELECT role, username, completed
		FROM document_participants
		WHERE document_id = ?
		ORDER BY role, position
	`, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	doc.Assignees, doc.Completed, doc.Reviewers = nil, nil, nil
	for rows.Next() {
		var role, user string
		var completed bool
		if err := rows.Scan(&role, &user, &completed); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		switch role {
		case roleAssignee:
			doc.Assignees = append(doc.Assignees, user)
			if completed {
				doc.Completed = append(doc.Completed, user)
			}
		case roleReviewer:
			doc.Reviewers = append(doc.Reviewers, user)
		}
	}
	return rows.Err()
}

func insertReview(ctx context.Context, q queryer, rec *document.ReviewRecord) error {
	query := `
		INSERT INTO review_records (id, document_id, reviewer, outcome, comment, phase, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.DocumentID,
		rec.Reviewer,
		rec.Outcome,
		rec.Comment,
		rec.Phase,
		rec.Version,
		createdAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func joinConditions(conditions []string) string {
	return strings.Join(conditions, " AND ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
