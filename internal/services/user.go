package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/adb-analytics/apiserver/internal/notify"
	"github.com/adb-analytics/apiserver/internal/store"
	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/adb-analytics/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const defaultResetTTL = time.Hour

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// PasswordResetRepository defines persistence operations for reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset types.PasswordReset) error
	// Redeem consumes an unused, unexpired reset and stores passwordHash
	// for its user as one unit. Unknown, used and expired tokens yield
	// store.ErrNotFound.
	Redeem(ctx context.Context, tokenHash string, now time.Time, passwordHash string) error
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
}

// EmailDispatcher delivers or enqueues outgoing mail.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, email notify.Email) error
}

// UserService encapsulates account use-cases.
type UserService struct {
	users       UserRepository
	resets      PasswordResetRepository
	tokens      TokenIssuer
	emails      EmailDispatcher
	frontendURL string

	resetTTL time.Duration
	hashCost int
	now      func() time.Time
}

func NewUserService(
	users UserRepository,
	resets PasswordResetRepository,
	tokens TokenIssuer,
	emails EmailDispatcher,
	frontendURL string,
) *UserService {
	return &UserService{
		users:       users,
		resets:      resets,
		tokens:      tokens,
		emails:      emails,
		frontendURL: frontendURL,
		resetTTL:    defaultResetTTL,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Register creates an account and returns a token for it. The welcome
// email is best effort.
func (s *UserService) Register(ctx context.Context, in validation.RegistrationInput) (string, types.User, error) {
	in, err := validation.ValidateRegistration(in)
	if err != nil {
		return "", types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return "", types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", types.User{}, ErrEmailTaken
		}
		return "", types.User{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", types.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.send(ctx, func() (notify.Email, error) { return notify.WelcomeEmail(user.Email, user.Username) })
	return token, user, nil
}

// Login checks credentials and returns a fresh token.
func (s *UserService) Login(ctx context.Context, in validation.LoginInput) (string, types.User, error) {
	in, err := validation.ValidateLogin(in)
	if err != nil {
		return "", types.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", types.User{}, ErrInvalidCredentials
		}
		return "", types.User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", types.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", types.User{}, fmt.Errorf("issue token: %w", err)
	}
	return token, user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// ForgotPassword emails a reset link when the address belongs to an
// account. Unknown addresses succeed silently.
func (s *UserService) ForgotPassword(ctx context.Context, in validation.ForgotPasswordInput) error {
	in, err := validation.ValidateForgotPassword(in)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	reset := types.PasswordReset{
		TokenHash: hashResetToken(token),
		UserID:    user.ID,
		ExpiresAt: s.now().UTC().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.send(ctx, func() (notify.Email, error) {
		return notify.PasswordResetEmail(user.Email, s.frontendURL, token)
	})
	return nil
}

// ResetPassword replaces the account password. The token is only spent
// when the new password is stored.
func (s *UserService) ResetPassword(ctx context.Context, in validation.ResetPasswordInput) error {
	in, err := validation.ValidateResetPassword(in)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.resets.Redeem(ctx, hashResetToken(in.Token), s.now().UTC(), string(hashed)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("redeem reset token: %w", err)
	}
	return nil
}

func (s *UserService) send(ctx context.Context, build func() (notify.Email, error)) {
	if s.emails == nil {
		return
	}
	email, err := build()
	if err != nil {
		log.Printf("services: render email: %v", err)
		return
	}
	if err := s.emails.Dispatch(ctx, email); err != nil {
		log.Printf("services: send email to %s: %v", email.To, err)
	}
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
