// Package session holds the process-wide authentication state.
//
// The Store is the single source of truth for "is someone logged in, and
// are they an admin". Credential verification is delegated to the identity
// provider; the store keeps the resolved session in memory and persists it
// wholesale to the local "auth" state record on every mutation.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/swiftassist/server/internal/domain"
	"github.com/swiftassist/server/internal/identity"
	"github.com/swiftassist/server/internal/store"
)

// StateStore is the slice of the repository the session snapshot is
// persisted through.
type StateStore interface {
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, data []byte) error
	DeleteState(ctx context.Context, key string) error
}

// Store is the session store. One instance per running app, injected into
// the handlers that need it.
type Store struct {
	mu      sync.Mutex
	session domain.Session

	repo StateStore
	idp  identity.Client

	// devLogins enables the legacy fixture credentials (admin/admin123,
	// user/user123). Development only.
	devLogins bool
}

// NewStore creates a session store in the logged-out state.
func NewStore(repo StateStore, idp identity.Client, devLogins bool) *Store {
	return &Store{repo: repo, idp: idp, devLogins: devLogins}
}

// LoadState reads the locally persisted session and reconciles it against
// the identity provider. This is a best-effort refresh: provider failures
// keep the local state, an invalid or expired provider session clears it.
// Never returns an error to the caller.
func (s *Store) LoadState(ctx context.Context) {
	data, err := s.repo.GetState(ctx, store.StateKeyAuth)
	if err != nil {
		slog.Warn("failed to read persisted session", "error", err)
		return
	}

	var persisted domain.Session
	if len(data) > 0 {
		if err := json.Unmarshal(data, &persisted); err != nil {
			slog.Warn("discarding corrupt persisted session", "error", err)
			persisted = domain.Session{}
		}
	}

	s.mu.Lock()
	s.session = persisted
	s.mu.Unlock()

	if persisted.AccessToken == "" {
		return
	}

	// The provider session takes precedence over the local snapshot.
	user, err := s.idp.UserFromToken(ctx, persisted.AccessToken)
	if err != nil {
		slog.Warn("session reconciliation failed, keeping local state", "error", err)
		return
	}
	if user == nil {
		slog.Info("provider session expired, clearing local state")
		s.clear(ctx)
		return
	}

	s.mu.Lock()
	s.session.Authenticated = true
	s.session.User = mapUser(user)
	snapshot := s.session
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

// Login verifies credentials with the identity provider and stores the
// resulting session. Local state is unchanged on failure.
func (s *Store) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if s.devLogins {
		if user := fixtureUser(email, password); user != nil {
			s.set(ctx, user, nil)
			return user, nil
		}
	}

	idpUser, tokens, err := s.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user := mapUser(idpUser)
	s.set(ctx, user, tokens)
	return user, nil
}

// Register creates an account with the identity provider and stores the
// new session. Local state is unchanged on failure.
func (s *Store) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	idpUser, tokens, err := s.idp.SignUp(ctx, username, email, password)
	if err != nil {
		return nil, err
	}

	user := mapUser(idpUser)
	// The sign-up carries the username explicitly; metadata may lag behind.
	if username != "" {
		user.Username = username
	}
	s.set(ctx, user, tokens)
	return user, nil
}

// HandleCallback completes an external OAuth handshake using the tokens
// delivered to the callback route. Returns (nil, nil) when the provider
// holds no valid session, which callers must treat as "not logged in".
func (s *Store) HandleCallback(ctx context.Context, accessToken, refreshToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, nil
	}

	idpUser, err := s.idp.UserFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if idpUser == nil {
		return nil, nil
	}

	user := mapUser(idpUser)
	s.set(ctx, user, &identity.Tokens{AccessToken: accessToken, RefreshToken: refreshToken})
	return user, nil
}

// Logout invalidates the provider session best-effort and unconditionally
// clears local state. Remote failure never skips the local clearing.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.session.AccessToken
	s.mu.Unlock()

	if token != "" {
		if err := s.idp.SignOut(ctx, token); err != nil {
			slog.Warn("provider sign-out failed", "error", err)
		}
	}

	s.clear(ctx)
}

// IsLoggedIn reports the current in-memory authentication state. No I/O.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Authenticated
}

// IsAdmin reports whether the current session belongs to a logged-in
// admin. Never true when logged out. No I/O.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.IsAdmin()
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (s *Store) CurrentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.Authenticated || s.session.User == nil {
		return nil
	}
	user := *s.session.User
	return &user
}

// Snapshot returns a copy of the current session without tokens, suitable
// for returning to the client.
func (s *Store) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := domain.Session{Authenticated: s.session.Authenticated}
	if s.session.User != nil {
		user := *s.session.User
		snapshot.User = &user
	}
	return snapshot
}

func (s *Store) set(ctx context.Context, user *domain.User, tokens *identity.Tokens) {
	s.mu.Lock()
	s.session = domain.Session{Authenticated: true, User: user}
	if tokens != nil {
		s.session.AccessToken = tokens.AccessToken
		s.session.RefreshToken = tokens.RefreshToken
	}
	snapshot := s.session
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()

	if err := s.repo.DeleteState(ctx, store.StateKeyAuth); err != nil {
		slog.Warn("failed to delete persisted session", "error", err)
	}
}

// persist writes the full session snapshot as a single record. The write
// is best-effort: in-memory state is already updated and stays
// authoritative for reads.
func (s *Store) persist(ctx context.Context, snapshot domain.Session) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Warn("failed to encode session snapshot", "error", err)
		return
	}
	if err := s.repo.PutState(ctx, store.StateKeyAuth, data); err != nil {
		slog.Warn("failed to persist session snapshot", "error", err)
	}
}

func mapUser(u *identity.User) *domain.User {
	return &domain.User{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username(),
		Role:     u.Role(),
	}
}

// fixtureUser implements the legacy static credential pairs kept for
// development compatibility.
func fixtureUser(email, password string) *domain.User {
	switch {
	case email == "admin" && password == "admin123":
		return &domain.User{Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	case email == "user" && password == "user123":
		return &domain.User{Username: "user", Email: "user@example.com", Role: domain.RoleUser}
	default:
		return nil
	}
}
