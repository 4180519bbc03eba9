package validation

import "strings"

// RegistrationInput is the sign-up form.
type RegistrationInput struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordInput requests a reset link.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordInput is what the server receives to complete a reset.
type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// ResetPasswordForm is the client-side form with the confirmation field.
type ResetPasswordForm struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

var accountMessages = map[string]map[string]string{
	"username": {
		"required": "Username is required",
		"min":      "Username must be at least 3 characters",
		"max":      "Username must be at most 30 characters",
	},
	"email":           {"": "Invalid email address"},
	"password":        {"": "Password must be at least 8 characters"},
	"confirmPassword": {"": "Passwords don't match"},
	"token":           {"": "Reset token is required"},
}

var loginMessages = map[string]map[string]string{
	"email":    {"": "Invalid email address"},
	"password": {"": "Password is required"},
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateRegistration(in RegistrationInput) (RegistrationInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := orNil(check(in, accountMessages)); err != nil {
		return RegistrationInput{}, err
	}
	return in, nil
}

func ValidateLogin(in LoginInput) (LoginInput, error) {
	in.Email = normalizeEmail(in.Email)
	if err := orNil(check(in, loginMessages)); err != nil {
		return LoginInput{}, err
	}
	return in, nil
}

func ValidateForgotPassword(in ForgotPasswordInput) (ForgotPasswordInput, error) {
	in.Email = normalizeEmail(in.Email)
	if err := orNil(check(in, accountMessages)); err != nil {
		return ForgotPasswordInput{}, err
	}
	return in, nil
}

func ValidateResetPassword(in ResetPasswordInput) (ResetPasswordInput, error) {
	in.Token = strings.TrimSpace(in.Token)
	if err := orNil(check(in, accountMessages)); err != nil {
		return ResetPasswordInput{}, err
	}
	return in, nil
}

// ValidateResetPasswordForm checks the new password and its confirmation.
// A mismatch is reported on confirmPassword.
func ValidateResetPasswordForm(in ResetPasswordForm) (ResetPasswordForm, error) {
	if err := orNil(check(in, accountMessages)); err != nil {
		return ResetPasswordForm{}, err
	}
	return in, nil
}
