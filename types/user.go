package types

import "time"

// User represents an account in the system.
// It contains identity and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id" bson:"_id"`

	// Username is the display name chosen at registration.
	Username string `json:"username" db:"username" bson:"username"`

	// Email is the user's email address. It is unique across accounts
	// and is the login identifier.
	Email string `json:"email" db:"email" bson:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"passwordHash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// PasswordReset is a pending password reset request. Only the SHA-256
// hash of the emailed token is stored.
type PasswordReset struct {
	TokenHash string     `json:"-" db:"token_hash" bson:"_id"`
	UserID    string     `json:"userId" db:"user_id" bson:"userId"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at" bson:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at" bson:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at" bson:"createdAt"`
}
