// Package client talks to the analytics API over HTTP and maps failures
// onto a small set of error types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adb-analytics/apiserver/internal/analytics"
	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/adb-analytics/apiserver/types"
)

const defaultTimeout = 15 * time.Second

// AuthError is returned on 401 responses.
type AuthError struct{ Message string }

func (e *AuthError) Error() string { return "unauthorized: " + e.Message }

// ConflictError is returned on 409 responses. Message is the server's text.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// ValidationError is returned on 400 responses.
type ValidationError struct {
	Message string
	Fields  validation.Errors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return e.Fields.Error()
	}
	return e.Message
}

// NetworkError wraps transport failures. The request may not have reached the server.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is returned for any other non-2xx status.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string { return fmt.Sprintf("server error %d: %s", e.Status, e.Message) }

// AuthResult is what register and login return.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Summary mirrors GET /api/projects/summary.
type Summary struct {
	Summary   analytics.Summary `json:"summary"`
	Budget    []analytics.Point `json:"budget"`
	Countries []analytics.Point `json:"countries"`
	Timeline  []analytics.Span  `json:"timeline"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token is sent as a bearer token on protected routes when non-empty.
	Token func() string
	// OnUnauthorized runs when the server rejects a bearer token with 401.
	OnUnauthorized func()
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Register(ctx context.Context, in validation.RegistrationInput) (AuthResult, error) {
	var out AuthResult
	err := c.doPublic(ctx, http.MethodPost, "/api/auth/register", in, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, in validation.LoginInput) (AuthResult, error) {
	var out AuthResult
	err := c.doPublic(ctx, http.MethodPost, "/api/auth/login", in, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var out types.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

func (c *Client) ForgotPassword(ctx context.Context, in validation.ForgotPasswordInput) error {
	return c.doPublic(ctx, http.MethodPost, "/api/forgot-password", in, nil)
}

func (c *Client) ResetPassword(ctx context.Context, in validation.ResetPasswordInput) error {
	return c.doPublic(ctx, http.MethodPost, "/api/reset-password", in, nil)
}

func (c *Client) CreateProject(ctx context.Context, in validation.ProjectInput) (types.Project, error) {
	var out types.Project
	err := c.do(ctx, http.MethodPost, "/api/projects", in, &out)
	return out, err
}

func (c *Client) ListProjects(ctx context.Context) ([]types.Project, error) {
	out := make([]types.Project, 0)
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/api/projects/summary", nil, &out)
	return out, err
}

// ArchiveReport asks the server to store the current summary and returns its key.
func (c *Client) ArchiveReport(ctx context.Context) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	err := c.do(ctx, http.MethodPost, "/api/projects/reports", nil, &out)
	return out.Key, err
}

// ReportInfo mirrors an entry of GET /api/projects/reports.
type ReportInfo struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func (c *Client) ListReports(ctx context.Context) ([]ReportInfo, error) {
	out := make([]ReportInfo, 0)
	err := c.do(ctx, http.MethodGet, "/api/projects/reports", nil, &out)
	return out, err
}

// Report fetches one archived summary.
func (c *Client) Report(ctx context.Context, id string) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/api/projects/reports/"+url.PathEscape(id), nil, &out)
	return out, err
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// do calls a protected route with the bearer token.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token := ""
	if c.Token != nil {
		token = c.Token()
	}
	err := c.send(ctx, method, path, token, in, out)

	var authErr *AuthError
	if token != "" && c.OnUnauthorized != nil && errors.As(err, &authErr) {
		c.OnUnauthorized()
	}
	return err
}

// doPublic calls a route that takes no token. A 401 there is about the
// submitted credentials, not the session.
func (c *Client) doPublic(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, "", in, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &ServerError{Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
		return nil
	}
	return responseError(resp.StatusCode, data)
}

func responseError(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(status)
		}
	}

	switch status {
	case http.StatusUnauthorized:
		return &AuthError{Message: body.Error}
	case http.StatusConflict:
		return &ConflictError{Message: body.Error}
	case http.StatusBadRequest:
		return &ValidationError{Message: body.Error, Fields: body.Fields}
	default:
		return &ServerError{Status: status, Message: body.Error}
	}
}
