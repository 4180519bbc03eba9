package notify

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<h1>Welcome to ADB Data Analytics Platform</h1>
<p>Dear {{.Username}},</p>
<p>Thank you for registering with the ADB Data Analytics Platform.</p>
<p>You can now log in and start managing your projects.</p>
`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<h1>Password Reset Request</h1>
<p>You requested a password reset. Click the link below to reset your password:</p>
<a href="{{.URL}}">Reset Password</a>
<p>If you didn't request this, please ignore this email.</p>
`))

func WelcomeEmail(to, username string) (Email, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, struct{ Username string }{username}); err != nil {
		return Email{}, err
	}
	return Email{To: to, Subject: "Welcome to ADB Data Analytics Platform", HTML: buf.String()}, nil
}

// PasswordResetEmail links to the frontend reset page carrying token.
func PasswordResetEmail(to, frontendURL, token string) (Email, error) {
	link := strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)

	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, struct{ URL string }{link}); err != nil {
		return Email{}, err
	}
	return Email{To: to, Subject: "Password Reset Request", HTML: buf.String()}, nil
}
