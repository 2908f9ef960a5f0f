// Package settings owns the process-wide settings record and resolves the
// system context for a conversation.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/swiftassist/server/internal/domain"
	"github.com/swiftassist/server/internal/store"
)

// DefaultContext seeds the global system context when no settings record
// has been persisted yet.
const DefaultContext = `You are an AI assistant for SwiftAssist, a company that provides AI-powered solutions.
Your role is to help customers by answering questions about our services, pricing, and capabilities.
Be professional, helpful, and accurate in your responses.`

// StateStore is the slice of the repository the service persists through.
type StateStore interface {
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, data []byte) error
}

// Service holds the settings snapshot. Every mutator persists the whole
// record immediately, so a setter call is visible to all subsequent
// resolutions.
type Service struct {
	mu       sync.Mutex
	settings domain.Settings
	repo     StateStore
}

// Load reads the persisted settings record, seeding defaults when absent.
func Load(ctx context.Context, repo StateStore) (*Service, error) {
	s := &Service{
		repo: repo,
		settings: domain.Settings{
			DefaultContext: DefaultContext,
			UserContexts:   make(map[string]string),
		},
	}

	data, err := repo.GetState(ctx, store.StateKeySettings)
	if err != nil {
		return nil, fmt.Errorf("read settings record: %w", err)
	}
	if data == nil {
		// First run: persist the seeded defaults.
		s.mu.Lock()
		err := s.persist(ctx)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.settings); err != nil {
		return nil, fmt.Errorf("decode settings record: %w", err)
	}
	if s.settings.UserContexts == nil {
		s.settings.UserContexts = make(map[string]string)
	}
	return s, nil
}

// ResolveContext computes the system context for a user.
// Precedence, first match wins:
//  1. nil user: the global default context.
//  2. a per-user override keyed by username, including the empty string.
//  3. the global default context.
func (s *Service) ResolveContext(user *domain.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		return s.settings.DefaultContext
	}
	if override, ok := s.settings.UserContexts[user.Username]; ok {
		return override
	}
	return s.settings.DefaultContext
}

// APIKey returns the configured completion API key, empty when unset.
func (s *Service) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.APIKey
}

// SetAPIKey stores the completion API key and persists immediately.
func (s *Service) SetAPIKey(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.APIKey = key
	return s.persist(ctx)
}

// DefaultContextText returns the global default context.
func (s *Service) DefaultContextText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.DefaultContext
}

// SetDefaultContext replaces the global default context and persists
// immediately.
func (s *Service) SetDefaultContext(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.DefaultContext = text
	return s.persist(ctx)
}

// SetUserContext sets a per-user override. The empty string is a valid
// override, distinct from no entry.
func (s *Service) SetUserContext(ctx context.Context, userKey, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.UserContexts[userKey] = text
	return s.persist(ctx)
}

// DeleteUserContext removes a per-user override, restoring the default for
// that user.
func (s *Service) DeleteUserContext(ctx context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings.UserContexts, userKey)
	return s.persist(ctx)
}

// Snapshot returns a deep copy of the current settings.
func (s *Service) Snapshot() *domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// persist writes the whole settings record. Callers must hold s.mu.
func (s *Service) persist(ctx context.Context) error {
	data, err := json.Marshal(&s.settings)
	if err != nil {
		return fmt.Errorf("encode settings record: %w", err)
	}
	if err := s.repo.PutState(ctx, store.StateKeySettings, data); err != nil {
		return fmt.Errorf("persist settings record: %w", err)
	}
	return nil
}
