package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/qms/internal/repository"
)

// APIKeyRepository stores hashed bearer tokens for HTTP clients
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create registers token for username. Only the token's hash is stored.
func (r *APIKeyRepository) Create(ctx context.Context, token, username, description string) error {
	if token == "" || username == "" {
		return fmt.Errorf("token and username are required")
	}
	query := `INSERT INTO api_keys (key_hash, username, created_at, description) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, HashToken(token), username, time.Now(), nullString(description))
	if err != nil {
		if isUniqueViolation(err) || isPrimaryKeyViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ResolveUser returns the username a bearer token belongs to
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)

	var username string
	err := r.db.QueryRowContext(ctx, `SELECT username FROM api_keys WHERE key_hash = ?`, hash).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && username == "") {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return username, nil
}

// HashToken returns the hex SHA-256 of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
