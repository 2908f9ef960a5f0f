// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/swiftassist/server/internal/domain"
)

// State record keys. Both records are read wholesale at startup and
// written wholesale on every mutation.
const (
	StateKeyAuth     = "auth"
	StateKeySettings = "settings"
)

// Repository defines the interface for local persistence: the two opaque
// state records plus the customer directory mirrored from the managed
// relational store.
type Repository interface {
	// GetState retrieves a state record blob. Returns nil when absent.
	GetState(ctx context.Context, key string) ([]byte, error)

	// PutState writes a state record wholesale, replacing any previous blob.
	PutState(ctx context.Context, key string, data []byte) error

	// DeleteState removes a state record. Deleting an absent record is not
	// an error.
	DeleteState(ctx context.Context, key string) error

	// UpsertCompany finds a company by name or creates it.
	UpsertCompany(ctx context.Context, name string) (*domain.Company, error)

	// ListCustomers retrieves all directory users with their company name.
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)

	// GetCustomer retrieves a directory user by ID.
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)

	// GetCustomerByEmail retrieves a directory user by email.
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)

	// CreateCustomer inserts a new directory user.
	CreateCustomer(ctx context.Context, c *domain.Customer) error

	// UpdateCustomer updates an existing directory user.
	UpdateCustomer(ctx context.Context, c *domain.Customer) error

	// DeleteCustomer removes a directory user.
	DeleteCustomer(ctx context.Context, id string) error

	// ListChatTemplates retrieves all chat templates.
	ListChatTemplates(ctx context.Context) ([]*domain.ChatTemplate, error)

	// CreateChatTemplate inserts a new chat template.
	CreateChatTemplate(ctx context.Context, t *domain.ChatTemplate) error

	// CreateConversation inserts a new transcript header.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a transcript header by ID.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// AppendChatMessage appends one transcript entry.
	AppendChatMessage(ctx context.Context, m *domain.ChatMessage) error

	// ListChatMessages retrieves a conversation's transcript in order.
	ListChatMessages(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
