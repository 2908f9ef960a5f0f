package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/swiftassist/server/internal/domain"
	"github.com/swiftassist/server/internal/identity"
	"github.com/swiftassist/server/internal/store"
)

type fakeStateStore struct {
	state map[string][]byte
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{state: make(map[string][]byte)}
}

func (f *fakeStateStore) GetState(_ context.Context, key string) ([]byte, error) {
	return f.state[key], nil
}

func (f *fakeStateStore) PutState(_ context.Context, key string, data []byte) error {
	f.state[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStateStore) DeleteState(_ context.Context, key string) error {
	delete(f.state, key)
	return nil
}

type fakeIdentity struct {
	signInUser   *identity.User
	signInTokens *identity.Tokens
	signInErr    error

	signUpUser   *identity.User
	signUpTokens *identity.Tokens
	signUpErr    error

	tokenUser *identity.User
	tokenErr  error

	signOutErr   error
	signOutCalls int
}

func (f *fakeIdentity) SignUp(context.Context, string, string, string) (*identity.User, *identity.Tokens, error) {
	return f.signUpUser, f.signUpTokens, f.signUpErr
}

func (f *fakeIdentity) SignInWithPassword(context.Context, string, string) (*identity.User, *identity.Tokens, error) {
	return f.signInUser, f.signInTokens, f.signInErr
}

func (f *fakeIdentity) UserFromToken(context.Context, string) (*identity.User, error) {
	return f.tokenUser, f.tokenErr
}

func (f *fakeIdentity) SignOut(context.Context, string) error {
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeIdentity) OAuthURL(provider, _ string) string {
	return "https://idp.example.com/authorize?provider=" + provider
}

func adminIdentity() *fakeIdentity {
	return &fakeIdentity{
		signInUser: &identity.User{
			ID:       "u-1",
			Email:    "root@example.com",
			Metadata: map[string]any{"name": "root", "role": "admin"},
		},
		signInTokens: &identity.Tokens{AccessToken: "at", RefreshToken: "rt"},
	}
}

func TestFreshStoreIsLoggedOut(t *testing.T) {
	s := NewStore(newFakeStateStore(), &fakeIdentity{}, false)

	if s.IsLoggedIn() {
		t.Error("Fresh store should not be logged in")
	}
	if s.IsAdmin() {
		t.Error("Fresh store should not be admin")
	}
	if s.CurrentUser() != nil {
		t.Error("Fresh store should have no current user")
	}
}

func TestLoginStoresAndPersistsSession(t *testing.T) {
	repo := newFakeStateStore()
	s := NewStore(repo, adminIdentity(), false)

	user, err := s.Login(context.Background(), "root@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Username != "root" || user.Role != domain.RoleAdmin {
		t.Errorf("Unexpected user: %+v", user)
	}
	if !s.IsLoggedIn() || !s.IsAdmin() {
		t.Error("Expected logged-in admin session")
	}

	data := repo.state[store.StateKeyAuth]
	if data == nil {
		t.Fatal("Expected session snapshot to be persisted")
	}
	var persisted domain.Session
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if !persisted.Authenticated || persisted.AccessToken != "at" {
		t.Errorf("Persisted snapshot incomplete: %+v", persisted)
	}
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	repo := newFakeStateStore()
	s := NewStore(repo, &fakeIdentity{signInErr: identity.ErrInvalidCredentials}, false)

	_, err := s.Login(context.Background(), "root@example.com", "wrong")
	if !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("Expected ErrInvalidCredentials, got %v", err)
	}
	if s.IsLoggedIn() {
		t.Error("Failed login must not authenticate")
	}
	if repo.state[store.StateKeyAuth] != nil {
		t.Error("Failed login must not persist a snapshot")
	}
}

func TestDevFixtureLogins(t *testing.T) {
	idp := &fakeIdentity{signInErr: identity.ErrInvalidCredentials}
	s := NewStore(newFakeStateStore(), idp, true)

	user, err := s.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Fixture login failed: %v", err)
	}
	if user.Role != domain.RoleAdmin || !s.IsAdmin() {
		t.Errorf("Expected fixture admin, got %+v", user)
	}

	s.Logout(context.Background())
	user, err = s.Login(context.Background(), "user", "user123")
	if err != nil {
		t.Fatalf("Fixture login failed: %v", err)
	}
	if user.Role != domain.RoleUser || s.IsAdmin() {
		t.Errorf("Expected fixture non-admin, got %+v", user)
	}
}

func TestDevFixtureDisabledInProduction(t *testing.T) {
	s := NewStore(newFakeStateStore(), &fakeIdentity{signInErr: identity.ErrInvalidCredentials}, false)

	if _, err := s.Login(context.Background(), "admin", "admin123"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("Fixture logins must be disabled, got %v", err)
	}
}

func TestIsAdminImpliesLoggedIn(t *testing.T) {
	repo := newFakeStateStore()
	s := NewStore(repo, adminIdentity(), false)

	if _, err := s.Login(context.Background(), "root@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if s.IsAdmin() && !s.IsLoggedIn() {
		t.Error("IsAdmin must imply IsLoggedIn")
	}

	s.Logout(context.Background())
	if s.IsAdmin() {
		t.Error("IsAdmin must be false when logged out")
	}
}

func TestLogoutClearsStateEvenWhenRemoteSignOutFails(t *testing.T) {
	repo := newFakeStateStore()
	idp := adminIdentity()
	idp.signOutErr = errors.New("provider unavailable")
	s := NewStore(repo, idp, false)

	if _, err := s.Login(context.Background(), "root@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	s.Logout(context.Background())

	if idp.signOutCalls != 1 {
		t.Errorf("Expected one remote sign-out attempt, got %d", idp.signOutCalls)
	}
	if s.IsLoggedIn() {
		t.Error("Logout must clear local state despite remote failure")
	}
	if repo.state[store.StateKeyAuth] != nil {
		t.Error("Logout must remove the persisted snapshot")
	}
}

func TestRegisterStoresSession(t *testing.T) {
	idp := &fakeIdentity{
		signUpUser: &identity.User{
			ID:       "u-2",
			Email:    "new@example.com",
			Metadata: map[string]any{"role": "user"},
		},
		signUpTokens: &identity.Tokens{AccessToken: "at2"},
	}
	s := NewStore(newFakeStateStore(), idp, false)

	user, err := s.Register(context.Background(), "newbie", "new@example.com", "secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Username != "newbie" {
		t.Errorf("Expected explicit username to win, got %q", user.Username)
	}
	if !s.IsLoggedIn() || s.IsAdmin() {
		t.Error("Expected logged-in non-admin session after registration")
	}
}

func TestHandleCallbackNoValidSession(t *testing.T) {
	s := NewStore(newFakeStateStore(), &fakeIdentity{}, false)

	user, err := s.HandleCallback(context.Background(), "expired-token", "")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil user for invalid provider session, got %+v", user)
	}
	if s.IsLoggedIn() {
		t.Error("Invalid callback must leave the store logged out")
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	idp := &fakeIdentity{
		tokenUser: &identity.User{
			ID:       "u-3",
			Email:    "oauth@example.com",
			Metadata: map[string]any{"name": "oauth-user"},
		},
	}
	s := NewStore(newFakeStateStore(), idp, false)

	user, err := s.HandleCallback(context.Background(), "valid-token", "refresh")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if user == nil || user.Username != "oauth-user" {
		t.Fatalf("Unexpected callback user: %+v", user)
	}
	if user.Role != domain.RoleUser {
		t.Errorf("Expected default role user, got %q", user.Role)
	}
	if !s.IsLoggedIn() {
		t.Error("Successful callback must authenticate")
	}
}

func persistSession(t *testing.T, repo *fakeStateStore, session domain.Session) {
	t.Helper()
	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("Failed to encode session: %v", err)
	}
	repo.state[store.StateKeyAuth] = data
}

func TestLoadStateKeepsLocalOnProviderFailure(t *testing.T) {
	repo := newFakeStateStore()
	persistSession(t, repo, domain.Session{
		Authenticated: true,
		User:          &domain.User{Username: "alice", Role: domain.RoleUser},
		AccessToken:   "at",
	})

	s := NewStore(repo, &fakeIdentity{tokenErr: identity.ErrExternalAuth}, false)
	s.LoadState(context.Background())

	if !s.IsLoggedIn() {
		t.Error("Provider failure must keep the local session")
	}
	if got := s.CurrentUser(); got == nil || got.Username != "alice" {
		t.Errorf("Unexpected user after reconcile failure: %+v", got)
	}
}

func TestLoadStateClearsExpiredProviderSession(t *testing.T) {
	repo := newFakeStateStore()
	persistSession(t, repo, domain.Session{
		Authenticated: true,
		User:          &domain.User{Username: "alice", Role: domain.RoleAdmin},
		AccessToken:   "stale",
	})

	s := NewStore(repo, &fakeIdentity{}, false)
	s.LoadState(context.Background())

	if s.IsLoggedIn() {
		t.Error("Expired provider session must clear local state")
	}
	if repo.state[store.StateKeyAuth] != nil {
		t.Error("Expired provider session must remove the persisted snapshot")
	}
}

func TestLoadStateRefreshesUserFromProvider(t *testing.T) {
	repo := newFakeStateStore()
	persistSession(t, repo, domain.Session{
		Authenticated: true,
		User:          &domain.User{Username: "old-name", Role: domain.RoleUser},
		AccessToken:   "at",
	})

	idp := &fakeIdentity{
		tokenUser: &identity.User{
			ID:       "u-1",
			Email:    "alice@example.com",
			Metadata: map[string]any{"name": "alice", "role": "admin"},
		},
	}
	s := NewStore(repo, idp, false)
	s.LoadState(context.Background())

	got := s.CurrentUser()
	if got == nil || got.Username != "alice" {
		t.Fatalf("Expected refreshed user, got %+v", got)
	}
	if !s.IsAdmin() {
		t.Error("Refreshed role must be reflected in authorization reads")
	}
}

func TestLoadStateWithoutPersistedSession(t *testing.T) {
	s := NewStore(newFakeStateStore(), &fakeIdentity{}, false)
	s.LoadState(context.Background())

	if s.IsLoggedIn() {
		t.Error("Empty persisted state must stay logged out")
	}
}

func TestSnapshotOmitsTokens(t *testing.T) {
	s := NewStore(newFakeStateStore(), adminIdentity(), false)
	if _, err := s.Login(context.Background(), "root@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := s.Snapshot()
	if snap.AccessToken != "" || snap.RefreshToken != "" {
		t.Error("Snapshot must not expose tokens")
	}
	if !snap.Authenticated || snap.User == nil {
		t.Errorf("Snapshot incomplete: %+v", snap)
	}
}
