package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/qms/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	require.NoError(t, repo.Create(ctx, "secret-token", "alice", "laptop"))
	require.ErrorIs(t, repo.Create(ctx, "secret-token", "bob", ""), repository.ErrDuplicate)

	user, err := repo.ResolveUser(ctx, "secret-token")
	require.NoError(t, err)
	require.Equal(t, "alice", user)

	_, err = repo.ResolveUser(ctx, "wrong-token")
	require.ErrorIs(t, err, repository.ErrNotFound)

	var stored string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT key_hash FROM api_keys`).Scan(&stored))
	require.Equal(t, HashToken("secret-token"), stored)
	require.NotContains(t, stored, "secret")
}
