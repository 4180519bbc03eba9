package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/adb-analytics/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewUserRepository(db)

	t.Run("inserts user with generated id", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(sqlmock.AnyArg(), "johndoe", "john@example.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		user, err := repo.Create(context.Background(), types.User{
			Username:     "johndoe",
			Email:        "john@example.com",
			PasswordHash: "hash",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("maps unique violation to ErrDuplicate", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.Create(context.Background(), types.User{Email: "john@example.com"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at, updated_at\s+FROM users\s+WHERE email = \$1`).
		WithArgs("john@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("u-1", "johndoe", "john@example.com", "hash", now, now))

	user, err := repo.GetByEmail(context.Background(), "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "hash", user.PasswordHash)

	mock.ExpectQuery(`FROM users`).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE users`).
		WithArgs("newhash", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "newhash"))

	mock.ExpectExec(`UPDATE users`).
		WithArgs("newhash", sqlmock.AnyArg(), "u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "u-2", "newhash"), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_CreateAndList(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProjectRepository(db)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs(sqlmock.AnyArg(), "u-1", "Irrigation", "Nepal", 500000.0, start, end, "Canal rehabilitation project", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.Create(context.Background(), types.Project{
		OwnerID:     "u-1",
		ProjectName: "Irrigation",
		Country:     "Nepal",
		Budget:      500000,
		StartDate:   start,
		EndDate:     end,
		Description: "Canal rehabilitation project",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	columns := []string{"id", "owner_id", "project_name", "country", "budget", "start_date", "end_date", "description", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM projects\s+WHERE owner_id = \$1\s+ORDER BY created_at, id`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(created.ID, "u-1", "Irrigation", "Nepal", 500000.0, start, end, "Canal rehabilitation project", created.CreatedAt, created.UpdatedAt))

	projects, err := repo.ListByOwner(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, created, projects[0])

	mock.ExpectQuery(`FROM projects`).
		WithArgs("u-2").
		WillReturnRows(sqlmock.NewRows(columns))
	projects, err = repo.ListByOwner(context.Background(), "u-2")
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordResetRepository_Consume(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPasswordResetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE password_resets`).
		WithArgs("hash", now).
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "user_id", "expires_at", "used_at", "created_at"}).
			AddRow("hash", "u-1", now.Add(time.Hour), now, now.Add(-time.Minute)))

	reset, err := repo.Consume(context.Background(), "hash", now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", reset.UserID)
	require.NotNil(t, reset.UsedAt)

	mock.ExpectQuery(`UPDATE password_resets`).
		WithArgs("hash", now).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Consume(context.Background(), "hash", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordResetRepository_Redeem(t *testing.T) {
	now := time.Now().UTC()
	resetRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"token_hash", "user_id", "expires_at", "used_at", "created_at"}).
			AddRow("hash", "u-1", now.Add(time.Hour), now, now.Add(-time.Minute))
	}

	t.Run("commits consume and password together", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPasswordResetRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE password_resets`).WithArgs("hash", now).WillReturnRows(resetRows())
		mock.ExpectExec(`UPDATE users`).WithArgs("new-hash", now, "u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Redeem(context.Background(), "hash", now, "new-hash"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the password write fails", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPasswordResetRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE password_resets`).WithArgs("hash", now).WillReturnRows(resetRows())
		mock.ExpectExec(`UPDATE users`).WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.Redeem(context.Background(), "hash", now, "new-hash")
		assert.ErrorIs(t, err, sql.ErrConnDone)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token", func(t *testing.T) {
		db, mock := setupMock(t)
		repo := NewPasswordResetRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE password_resets`).WithArgs("hash", now).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Redeem(context.Background(), "hash", now, "new-hash"), ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
