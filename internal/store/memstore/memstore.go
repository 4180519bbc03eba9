// Package memstore keeps users, projects and reset tokens in process
// memory. It backs DB_DRIVER=memory and the handler tests.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/adb-analytics/apiserver/internal/store"
	"github.com/adb-analytics/apiserver/types"
	"github.com/google/uuid"
)

// DB is shared by the repositories built from it.
type DB struct {
	mu       sync.RWMutex
	users    map[string]types.User
	emails   map[string]string
	projects []types.Project
	resets   map[string]types.PasswordReset
	now      func() time.Time
}

func New() *DB {
	return &DB{
		users:  make(map[string]types.User),
		emails: make(map[string]string),
		resets: make(map[string]types.PasswordReset),
		now:    time.Now,
	}
}

type UserRepository struct{ db *DB }

func NewUserRepository(db *DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	id, ok := r.db.emails[strings.ToLower(email)]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.db.users[id], nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := r.db.emails[key]; taken {
		return types.User{}, store.ErrDuplicate
	}
	now := r.db.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.db.users[user.ID] = user
	r.db.emails[key] = user.ID
	return user, nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = r.db.now().UTC()
	r.db.users[id] = user
	return nil
}

type ProjectRepository struct{ db *DB }

func NewProjectRepository(db *DB) *ProjectRepository { return &ProjectRepository{db: db} }

// ListByOwner returns the owner's projects in insertion order.
func (r *ProjectRepository) ListByOwner(_ context.Context, ownerID string) ([]types.Project, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]types.Project, 0)
	for _, p := range r.db.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProjectRepository) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now().UTC()
	project.ID = uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now
	r.db.projects = append(r.db.projects, project)
	return project, nil
}

type PasswordResetRepository struct{ db *DB }

func NewPasswordResetRepository(db *DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(_ context.Context, reset types.PasswordReset) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, exists := r.db.resets[reset.TokenHash]; exists {
		return store.ErrDuplicate
	}
	reset.CreatedAt = r.db.now().UTC()
	r.db.resets[reset.TokenHash] = reset
	return nil
}

func (r *PasswordResetRepository) Consume(_ context.Context, tokenHash string, now time.Time) (types.PasswordReset, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reset, err := r.usable(tokenHash, now)
	if err != nil {
		return types.PasswordReset{}, err
	}
	used := now
	reset.UsedAt = &used
	r.db.resets[tokenHash] = reset
	return reset, nil
}

// Redeem consumes the reset and sets the password under one lock. The
// token is left unused when its user no longer exists.
func (r *PasswordResetRepository) Redeem(_ context.Context, tokenHash string, now time.Time, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reset, err := r.usable(tokenHash, now)
	if err != nil {
		return err
	}
	user, ok := r.db.users[reset.UserID]
	if !ok {
		return store.ErrNotFound
	}

	used := now
	reset.UsedAt = &used
	r.db.resets[tokenHash] = reset
	user.PasswordHash = passwordHash
	user.UpdatedAt = now
	r.db.users[user.ID] = user
	return nil
}

func (r *PasswordResetRepository) usable(tokenHash string, now time.Time) (types.PasswordReset, error) {
	reset, ok := r.db.resets[tokenHash]
	if !ok || reset.UsedAt != nil || !now.Before(reset.ExpiresAt) {
		return types.PasswordReset{}, store.ErrNotFound
	}
	return reset, nil
}
