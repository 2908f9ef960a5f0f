package domain

import "time"

// Company groups directory users for the admin panel.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer is a managed directory record edited through the admin CRUD.
// This is distinct from User: User is the authenticated identity, Customer
// is a row in the customer directory. Metadata holds free-form fields the
// admin UI displays (bot links, location, business type, token balances).
type Customer struct {
	ID            string         `json:"id"`
	CompanyID     string         `json:"company_id"`
	Company       string         `json:"company,omitempty"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Role          string         `json:"role"`
	PasswordHash  string         `json:"-"`
	OAuthProvider string         `json:"oauth_provider,omitempty"`
	OAuthID       string         `json:"oauth_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ChatTemplate is a reusable prompt configuration owned by a company.
type ChatTemplate struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	Name           string    `json:"name"`
	PromptTemplate string    `json:"prompt_template"`
	ContextData    string    `json:"context_data,omitempty"`
	Settings       string    `json:"settings,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Conversation is a persisted chat transcript header.
type Conversation struct {
	ID        string    `json:"id"`
	UserKey   string    `json:"user_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one persisted transcript entry.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
