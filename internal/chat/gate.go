// Package chat assembles conversations and delegates them to the hosted
// completion API.
package chat

import (
	"context"

	"github.com/swiftassist/server/internal/domain"
)

// CompletionClient sends one assembled conversation to the completion API
// and returns the reply content verbatim.
type CompletionClient interface {
	Complete(ctx context.Context, apiKey string, msgs []domain.Message) (string, error)
}

// SettingsReader is the slice of the settings service the gate needs.
type SettingsReader interface {
	APIKey() string
	ResolveContext(user *domain.User) string
}

// Gate decides, per outbound request, how system context merges with the
// rolling history before the conversation is handed to the completion API.
type Gate struct {
	settings SettingsReader
	client   CompletionClient
}

// NewGate creates a conversation gate.
func NewGate(settings SettingsReader, client CompletionClient) *Gate {
	return &Gate{settings: settings, client: client}
}

// PrepareRequest assembles the ordered message sequence for one user turn.
//
// A system message already present in history is authoritative and the
// resolved context is ignored; otherwise one system message is prepended.
// The new user message is appended unless an identical user entry is
// already part of the sequence, guarding against duplicate submission.
func PrepareRequest(userMessage string, history []domain.Message, resolvedContext string) []domain.Message {
	msgs := make([]domain.Message, 0, len(history)+2)
	if !domain.HasSystemMessage(history) {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: resolvedContext})
	}
	msgs = append(msgs, history...)

	if !containsUserMessage(msgs, userMessage) {
		msgs = append(msgs, domain.Message{Role: domain.RoleUserMessage, Content: userMessage})
	}
	return msgs
}

func containsUserMessage(msgs []domain.Message, content string) bool {
	for _, m := range msgs {
		if m.Role == domain.RoleUserMessage && m.Content == content {
			return true
		}
	}
	return false
}

// Send performs exactly one completion call for a user turn. No retries.
// The API key is checked before any network activity; a missing key fails
// with ErrMissingAPIKey without touching the client.
func (g *Gate) Send(ctx context.Context, userMessage string, history []domain.Message, user *domain.User) (string, error) {
	apiKey := g.settings.APIKey()
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}

	resolved := g.settings.ResolveContext(user)
	msgs := PrepareRequest(userMessage, history, resolved)

	return g.client.Complete(ctx, apiKey, msgs)
}
