// Package session holds the client's authentication state. The state is
// derived from the persisted token on every read, so a token that expires
// or is removed outside the process turns the session anonymous.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adb-analytics/apiserver/internal/auth"
	"github.com/adb-analytics/apiserver/internal/client"
	"github.com/adb-analytics/apiserver/internal/projectstore"
	"github.com/adb-analytics/apiserver/internal/validation"
)

const DefaultWatchInterval = time.Minute

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, in validation.LoginInput) (client.AuthResult, error)
	Register(ctx context.Context, in validation.RegistrationInput) (client.AuthResult, error)
}

// User is the identity carried in the token.
type User struct {
	ID    string
	Email string
}

// State is what observers receive.
type State struct {
	Authenticated bool
	User          User
	ExpiresAt     time.Time
}

func (st State) equal(o State) bool {
	return st.Authenticated == o.Authenticated && st.User == o.User && st.ExpiresAt.Equal(o.ExpiresAt)
}

type Session struct {
	tokens TokenStore
	authn  Authenticator
	now    func() time.Time

	mu        sync.Mutex
	last      State
	observers map[int]func(State)
	nextID    int
}

func New(tokens TokenStore, authn Authenticator) *Session {
	s := &Session{
		tokens:    tokens,
		authn:     authn,
		now:       time.Now,
		observers: make(map[int]func(State)),
	}
	s.last = s.State()
	return s
}

// Login authenticates, persists the token and notifies observers.
func (s *Session) Login(ctx context.Context, in validation.LoginInput) error {
	res, err := s.authn.Login(ctx, in)
	if err != nil {
		return err
	}
	return s.store(res.Token)
}

// Register creates an account and signs in with it.
func (s *Session) Register(ctx context.Context, in validation.RegistrationInput) error {
	res, err := s.authn.Register(ctx, in)
	if err != nil {
		return err
	}
	return s.store(res.Token)
}

// Logout removes the token. Observers are notified even if the session
// was already anonymous.
func (s *Session) Logout() error {
	if err := s.tokens.Clear(); err != nil {
		return err
	}
	s.publish(s.State(), true)
	return nil
}

// Invalidate drops a token the server refused and notifies observers
// with the anonymous state.
func (s *Session) Invalidate() error {
	return s.Logout()
}

// Attach makes c send the session token and invalidates the session when
// a protected call comes back with an AuthError.
func (s *Session) Attach(c *client.Client) {
	c.Token = s.Token
	c.OnUnauthorized = func() {
		_ = s.Invalidate()
	}
}

func (s *Session) store(token string) error {
	if err := s.tokens.Save(token); err != nil {
		return err
	}
	s.publish(s.State(), true)
	return nil
}

// State reads the persisted token. A missing, unreadable, malformed or
// expired token is anonymous.
func (s *Session) State() State {
	token, err := s.tokens.Load()
	if err != nil || token == "" {
		return State{}
	}
	claims, err := auth.Decode(token, s.now())
	if err != nil {
		return State{}
	}
	return State{
		Authenticated: true,
		User:          User{ID: claims.Subject, Email: claims.Email},
		ExpiresAt:     claims.ExpiresAt.Time,
	}
}

func (s *Session) IsAuthenticated() bool {
	return s.State().Authenticated
}

func (s *Session) CurrentUser() (User, bool) {
	st := s.State()
	return st.User, st.Authenticated
}

// Token returns the bearer token, or "" when anonymous.
func (s *Session) Token() string {
	if !s.State().Authenticated {
		return ""
	}
	token, _ := s.tokens.Load()
	return token
}

// Subscribe registers fn for state changes and returns a function that removes it.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Watch re-reads the token every interval until ctx is done and notifies
// observers when the state changed, for example when the token expired.
func (s *Session) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish(s.State(), false)
		}
	}
}

// publish records st and calls observers outside the lock. Unless force
// is set, an unchanged state is not broadcast.
func (s *Session) publish(st State, force bool) {
	s.mu.Lock()
	if !force && st.equal(s.last) {
		s.mu.Unlock()
		return
	}
	s.last = st

	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}

// BindStore empties projects whenever the session becomes anonymous.
func BindStore(s *Session, projects *projectstore.Store) (cancel func()) {
	return s.Subscribe(func(st State) {
		if !st.Authenticated {
			projects.Reset()
		}
	})
}
