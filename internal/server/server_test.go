package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adb-analytics/apiserver/config"
	"github.com/adb-analytics/apiserver/internal/auth"
	"github.com/adb-analytics/apiserver/internal/notify"
	"github.com/adb-analytics/apiserver/internal/storage"
	"github.com/adb-analytics/apiserver/internal/store/memstore"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, notify.Email) error { return nil }

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{Database: config.DatabaseConfig{Driver: "memory"}})
	assert.Error(t, err)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.Config{
		JWTSecret: "secret",
		Database:  config.DatabaseConfig{Driver: "sqlite"},
	})
	assert.Error(t, err)
}

func TestNewMemoryBackend(t *testing.T) {
	srv, err := New(context.Background(), config.Config{
		JWTSecret: "secret",
		Database:  config.DatabaseConfig{Driver: "memory"},
		MQ:        config.MQConfig{Backend: "none"},
		Storage:   config.StorageConfig{Backend: "none"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func TestRouterRegisterThenProjects(t *testing.T) {
	mem := memstore.New()
	router := NewRouter(Deps{
		Repos: Repositories{
			Users:    memstore.NewUserRepository(mem),
			Projects: memstore.NewProjectRepository(mem),
			Resets:   memstore.NewPasswordResetRepository(mem),
		},
		Issuer:    auth.NewIssuer("secret", time.Hour),
		Emails:    nopDispatcher{},
		RateLimit: config.RateLimitConfig{ForgotPasswordPerMinute: 5, ForgotPasswordBurst: 3},
	})

	body := `{"username":"ana","email":"ana@example.com","password":"secret123"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestNewWithMemoryQueue(t *testing.T) {
	srv, err := New(context.Background(), config.Config{
		JWTSecret: "secret",
		Database:  config.DatabaseConfig{Driver: "memory"},
		MQ:        config.MQConfig{Backend: "memory", Channel: "emails"},
		Storage:   config.StorageConfig{Backend: "memory"},
	})
	require.NoError(t, err)

	body := strings.NewReader(`{"username":"amina","email":"amina@example.com","password":"longenough"}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", body))
	assert.Equal(t, http.StatusCreated, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

func newMemoryRouter(rl config.RateLimitConfig, objects *storage.Storage) *chi.Mux {
	mem := memstore.New()
	return NewRouter(Deps{
		Repos: Repositories{
			Users:    memstore.NewUserRepository(mem),
			Projects: memstore.NewProjectRepository(mem),
			Resets:   memstore.NewPasswordResetRepository(mem),
		},
		Issuer:    auth.NewIssuer("secret", time.Hour),
		Emails:    nopDispatcher{},
		Objects:   objects,
		RateLimit: rl,
	})
}

func forgotFrom(router http.Handler, forwarded string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/forgot-password", strings.NewReader(`{"email":"nobody@example.com"}`))
	req.RemoteAddr = "192.0.2.7:4711"
	req.Header.Set("X-Forwarded-For", forwarded)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestForgotPasswordLimitIgnoresForwardedForByDefault(t *testing.T) {
	router := newMemoryRouter(config.RateLimitConfig{ForgotPasswordPerMinute: 1, ForgotPasswordBurst: 1}, nil)

	assert.Equal(t, http.StatusOK, forgotFrom(router, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, forgotFrom(router, "10.0.0.2"))
}

func TestForgotPasswordLimitHonoursTrustedProxy(t *testing.T) {
	router := newMemoryRouter(config.RateLimitConfig{ForgotPasswordPerMinute: 1, ForgotPasswordBurst: 1, TrustProxy: true}, nil)

	assert.Equal(t, http.StatusOK, forgotFrom(router, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, forgotFrom(router, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, forgotFrom(router, "10.0.0.2"))
}

func TestReportsWithoutStorage(t *testing.T) {
	router := newMemoryRouter(config.RateLimitConfig{}, nil)

	rec := httptest.NewRecorder()
	body := `{"username":"ana","email":"ana@example.com","password":"secret123"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodPost, "/api/projects/reports", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
