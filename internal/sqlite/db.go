package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases and per-connection pragmas consistent.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// Concurrent CLI invocations wait for the writer instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist yet
func (db *DB) RunMigrations() error {
	migration := `
-- Controlled documents
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN (
        'DRAFT', 'IN_REVIEW', 'REVIEWED', 'IN_APPROVAL', 'APPROVED', 'EFFECTIVE',
        'IN_PRE_REVIEW', 'PRE_REVIEWED', 'IN_PRE_APPROVAL', 'PRE_APPROVED', 'IN_EXECUTION',
        'IN_POST_REVIEW', 'POST_REVIEWED', 'IN_POST_APPROVAL', 'POST_APPROVED', 'CLOSED', 'RETIRED'
    )),
    version TEXT NOT NULL,
    executable INTEGER NOT NULL,
    execution_phase TEXT NOT NULL CHECK(execution_phase IN ('NONE', 'PRE', 'POST')),
    responsible_user TEXT,
    checked_out INTEGER NOT NULL DEFAULT 0,
    checked_out_at TIMESTAMP,
    parent_id TEXT,
    effective_version TEXT,
    effective_at TIMESTAMP,
    retiring INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    modified_at TIMESTAMP NOT NULL,
    revision INTEGER NOT NULL,
    FOREIGN KEY (parent_id) REFERENCES documents(id)
);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent_id);

-- Current-round assignees and last completed review round
CREATE TABLE IF NOT EXISTS document_participants (
    document_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('assignee', 'reviewer')),
    username TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL,
    PRIMARY KEY (document_id, role, username),
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_participants_user ON document_participants(username, role, completed);

-- Review records (append-only)
CREATE TABLE IF NOT EXISTS review_records (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    reviewer TEXT NOT NULL,
    outcome TEXT NOT NULL CHECK(outcome IN ('RECOMMEND', 'REQUEST_UPDATES')),
    comment TEXT NOT NULL,
    phase TEXT NOT NULL,
    version TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_reviews_document ON review_records(document_id);

-- Audit trail (append-only)
CREATE TABLE IF NOT EXISTS audit_log (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    document_id TEXT NOT NULL,
    document_type TEXT NOT NULL,
    event TEXT NOT NULL,
    actor TEXT NOT NULL,
    version TEXT NOT NULL,
    from_status TEXT,
    to_status TEXT,
    outcome TEXT,
    comment TEXT,
    details TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_audit_document ON audit_log(document_id);
CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_log(event);

-- API keys for HTTP authentication
CREATE TABLE IF NOT EXISTS api_keys (
    key_hash TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used TIMESTAMP,
    description TEXT
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(username);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
