package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adb-analytics/apiserver/internal/auth"
	"github.com/adb-analytics/apiserver/internal/client"
	"github.com/adb-analytics/apiserver/internal/projectstore"
	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/adb-analytics/apiserver/types"
)

type fakeAuth struct {
	issuer *auth.Issuer
	err    error
}

func (f fakeAuth) Login(_ context.Context, in validation.LoginInput) (client.AuthResult, error) {
	return f.issue(in.Email)
}

func (f fakeAuth) Register(_ context.Context, in validation.RegistrationInput) (client.AuthResult, error) {
	return f.issue(in.Email)
}

func (f fakeAuth) issue(email string) (client.AuthResult, error) {
	if f.err != nil {
		return client.AuthResult{}, f.err
	}
	user := types.User{ID: "user-1", Email: email}
	token, err := f.issuer.Issue(user)
	return client.AuthResult{Token: token, User: user}, err
}

func newSession(t *testing.T, tokens TokenStore) *Session {
	t.Helper()
	return New(tokens, fakeAuth{issuer: auth.NewIssuer("secret", time.Hour)})
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) add(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestAnonymousByDefault(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	_, ok := s.CurrentUser()
	assert.False(t, ok)
}

func TestLoginThenLogout(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	rec := &recorder{}
	cancel := s.Subscribe(rec.add)
	defer cancel()

	require.NoError(t, s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com", Password: "secret123"}))
	assert.True(t, s.IsAuthenticated())
	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, User{ID: "user-1", Email: "ana@example.com"}, user)
	assert.NotEmpty(t, s.Token())

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())

	states := rec.snapshot()
	require.Len(t, states, 2)
	assert.True(t, states[0].Authenticated)
	assert.False(t, states[1].Authenticated)
}

func TestMalformedTokenIsAnonymous(t *testing.T) {
	store := &MemoryTokenStore{}
	require.NoError(t, store.Save("not-a-jwt"))
	s := newSession(t, store)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
}

func TestExpiredTokenIsAnonymous(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	require.NoError(t, s.Register(context.Background(), validation.RegistrationInput{Email: "ana@example.com"}))
	require.True(t, s.IsAuthenticated())

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, s.IsAuthenticated())
}

func TestFailedLoginKeepsState(t *testing.T) {
	s := New(&MemoryTokenStore{}, fakeAuth{err: &client.AuthError{Message: "Invalid email or password"}})
	err := s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com", Password: "x"})
	var authErr *client.AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.False(t, s.IsAuthenticated())
}

func TestWatchBroadcastsExpiry(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	require.NoError(t, s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com"}))

	expired := make(chan State, 1)
	cancel := s.Subscribe(func(st State) {
		if !st.Authenticated {
			select {
			case expired <- st:
			default:
			}
		}
	})
	defer cancel()

	var mu sync.Mutex
	offset := time.Duration(0)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return time.Now().Add(offset)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.Watch(ctx, 5*time.Millisecond)

	mu.Lock()
	offset = 2 * time.Hour
	mu.Unlock()

	select {
	case st := <-expired:
		assert.False(t, st.Authenticated)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry was not broadcast")
	}
}

func TestCancelSubscription(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	rec := &recorder{}
	cancel := s.Subscribe(rec.add)
	cancel()
	cancel()

	require.NoError(t, s.Logout())
	assert.Empty(t, rec.snapshot())
}

func TestBindStoreClearsOnLogout(t *testing.T) {
	s := newSession(t, &MemoryTokenStore{})
	projects := projectstore.New()
	cancel := BindStore(s, projects)
	defer cancel()

	require.NoError(t, s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com"}))
	projects.Add(types.Project{ID: "p1"})
	require.Equal(t, 1, projects.Len())

	require.NoError(t, s.Logout())
	assert.Equal(t, 0, projects.Len())
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("abc"))
	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRejectedTokenForcesAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	tokens := &MemoryTokenStore{}
	s := newSession(t, tokens)
	require.NoError(t, s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com"}))
	require.True(t, s.IsAuthenticated())

	projects := projectstore.New()
	projects.Add(types.Project{ID: "p1"})
	defer BindStore(s, projects)()
	rec := &recorder{}
	defer s.Subscribe(rec.add)()

	api := client.New(srv.URL)
	s.Attach(api)
	_, err := api.ListProjects(context.Background())
	var authErr *client.AuthError
	require.ErrorAs(t, err, &authErr)

	assert.False(t, s.IsAuthenticated())
	stored, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 0, projects.Len())

	states := rec.snapshot()
	require.Len(t, states, 1)
	assert.False(t, states[0].Authenticated)
}

func TestFailedLoginDoesNotDropSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid email or password"}`))
	}))
	defer srv.Close()

	s := newSession(t, &MemoryTokenStore{})
	require.NoError(t, s.Login(context.Background(), validation.LoginInput{Email: "ana@example.com"}))

	api := client.New(srv.URL)
	s.Attach(api)
	_, err := api.Login(context.Background(), validation.LoginInput{Email: "ana@example.com", Password: "wrongpass"})
	var authErr *client.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, s.IsAuthenticated())
}
