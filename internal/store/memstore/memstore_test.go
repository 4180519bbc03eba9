package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adb-analytics/apiserver/internal/store"
	"github.com/adb-analytics/apiserver/types"
)

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(New())

	created, err := repo.Create(ctx, types.User{Username: "ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, types.User{Username: "other", Email: "ANA@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectRepositoryScopesByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewProjectRepository(New())

	_, err := repo.Create(ctx, types.Project{OwnerID: "a", ProjectName: "first"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.Project{OwnerID: "b", ProjectName: "other"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.Project{OwnerID: "a", ProjectName: "second"})
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].ProjectName)
	assert.Equal(t, "second", list[1].ProjectName)

	empty, err := repo.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestPasswordResetConsumeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordResetRepository(New())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, types.PasswordReset{TokenHash: "h", UserID: "u", ExpiresAt: now.Add(time.Hour)}))

	reset, err := repo.Consume(ctx, "h", now)
	require.NoError(t, err)
	assert.Equal(t, "u", reset.UserID)
	require.NotNil(t, reset.UsedAt)

	_, err = repo.Consume(ctx, "h", now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPasswordResetExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewPasswordResetRepository(New())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, types.PasswordReset{TokenHash: "h", UserID: "u", ExpiresAt: now}))
	_, err := repo.Consume(ctx, "h", now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPasswordResetRedeem(t *testing.T) {
	ctx := context.Background()
	db := New()
	users := NewUserRepository(db)
	resets := NewPasswordResetRepository(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	user, err := users.Create(ctx, types.User{Email: "ana@example.com", PasswordHash: "old"})
	require.NoError(t, err)
	require.NoError(t, resets.Create(ctx, types.PasswordReset{TokenHash: "h", UserID: user.ID, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, resets.Redeem(ctx, "h", now, "new"))
	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.PasswordHash)

	assert.ErrorIs(t, resets.Redeem(ctx, "h", now, "newer"), store.ErrNotFound)
}

func TestPasswordResetRedeemKeepsTokenWhenUserMissing(t *testing.T) {
	ctx := context.Background()
	resets := NewPasswordResetRepository(New())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, resets.Create(ctx, types.PasswordReset{TokenHash: "h", UserID: "gone", ExpiresAt: now.Add(time.Hour)}))
	assert.ErrorIs(t, resets.Redeem(ctx, "h", now, "new"), store.ErrNotFound)

	reset, err := resets.Consume(ctx, "h", now)
	require.NoError(t, err)
	assert.Equal(t, "gone", reset.UserID)
}
