package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adb-analytics/apiserver/types"
)

// PasswordResetRepository stores pending reset tokens.
type PasswordResetRepository struct {
	db *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset types.PasswordReset) error {
	reset.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO password_resets (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, reset.TokenHash, reset.UserID, reset.ExpiresAt, reset.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Consume marks an unused, unexpired reset as used and returns it.
// Expired, used and unknown tokens all yield ErrNotFound.
func (r *PasswordResetRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (types.PasswordReset, error) {
	return consumeReset(ctx, r.db, tokenHash, now)
}

// Redeem consumes the reset and stores passwordHash for its user in one
// transaction. If the password cannot be written the token stays usable.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash string, now time.Time, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	reset, err := consumeReset(ctx, tx, tokenHash, now)
	if err != nil {
		return err
	}

	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, passwordHash, now, reset.UserID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func consumeReset(ctx context.Context, q queryRower, tokenHash string, now time.Time) (types.PasswordReset, error) {
	const query = `
		UPDATE password_resets
		SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING token_hash, user_id, expires_at, used_at, created_at`
	var reset types.PasswordReset
	var usedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, tokenHash, now).Scan(
		&reset.TokenHash,
		&reset.UserID,
		&reset.ExpiresAt,
		&usedAt,
		&reset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PasswordReset{}, ErrNotFound
		}
		return types.PasswordReset{}, err
	}
	if usedAt.Valid {
		reset.UsedAt = &usedAt.Time
	}
	return reset, nil
}
