package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swiftassist/server/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestStateRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetState(ctx, StateKeyAuth)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for absent key, got %q", got)
	}

	if err := repo.PutState(ctx, StateKeyAuth, []byte(`{"authenticated":true}`)); err != nil {
		t.Fatalf("PutState failed: %v", err)
	}
	got, err = repo.GetState(ctx, StateKeyAuth)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if string(got) != `{"authenticated":true}` {
		t.Errorf("Unexpected state: %q", got)
	}

	// Overwrite replaces the record wholesale.
	if err := repo.PutState(ctx, StateKeyAuth, []byte(`{}`)); err != nil {
		t.Fatalf("PutState overwrite failed: %v", err)
	}
	got, _ = repo.GetState(ctx, StateKeyAuth)
	if string(got) != `{}` {
		t.Errorf("Expected overwritten state, got %q", got)
	}

	if err := repo.DeleteState(ctx, StateKeyAuth); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	got, _ = repo.GetState(ctx, StateKeyAuth)
	if got != nil {
		t.Errorf("Expected nil after delete, got %q", got)
	}
}

func TestUpsertCompanyIsIdempotent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first, err := repo.UpsertCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}
	second, err := repo.UpsertCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected same company, got %q and %q", first.ID, second.ID)
	}
}

func TestCustomerCRUD(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	company, err := repo.UpsertCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}

	now := time.Now()
	cust := &domain.Customer{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		Name:      "Alice",
		Email:     "alice@acme.test",
		Role:      domain.RoleUser,
		Metadata:  map[string]any{"location": "Berlin"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateCustomer(ctx, cust); err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}

	got, err := repo.GetCustomer(ctx, cust.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected customer, got nil")
	}
	if got.Name != "Alice" || got.Company != "Acme" {
		t.Errorf("Unexpected customer: %+v", got)
	}
	if got.Metadata["location"] != "Berlin" {
		t.Errorf("Metadata did not round-trip: %+v", got.Metadata)
	}

	byEmail, err := repo.GetCustomerByEmail(ctx, "alice@acme.test")
	if err != nil {
		t.Fatalf("GetCustomerByEmail failed: %v", err)
	}
	if byEmail == nil || byEmail.ID != cust.ID {
		t.Errorf("Unexpected lookup by email: %+v", byEmail)
	}

	got.Name = "Alice B"
	if err := repo.UpdateCustomer(ctx, got); err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}
	updated, _ := repo.GetCustomer(ctx, cust.ID)
	if updated.Name != "Alice B" {
		t.Errorf("Update did not persist, got %q", updated.Name)
	}

	customers, err := repo.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(customers) != 1 {
		t.Errorf("Expected one customer, got %d", len(customers))
	}

	if err := repo.DeleteCustomer(ctx, cust.ID); err != nil {
		t.Fatalf("DeleteCustomer failed: %v", err)
	}
	gone, err := repo.GetCustomer(ctx, cust.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if gone != nil {
		t.Errorf("Expected nil after delete, got %+v", gone)
	}
}

func TestGetCustomerNotFound(t *testing.T) {
	repo := newTestStore(t)

	got, err := repo.GetCustomer(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing customer, got %+v", got)
	}
}

func TestChatTemplates(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	company, err := repo.UpsertCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("UpsertCompany failed: %v", err)
	}

	now := time.Now()
	tmpl := &domain.ChatTemplate{
		ID:             uuid.NewString(),
		CompanyID:      company.ID,
		Name:           "Greeting",
		PromptTemplate: "Greet the customer politely.",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreateChatTemplate(ctx, tmpl); err != nil {
		t.Fatalf("CreateChatTemplate failed: %v", err)
	}

	templates, err := repo.ListChatTemplates(ctx)
	if err != nil {
		t.Fatalf("ListChatTemplates failed: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Greeting" {
		t.Errorf("Unexpected templates: %+v", templates)
	}
}

func TestConversationTranscript(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		UserKey:   "alice",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	for i, content := range []string{"hello", "hi there"} {
		role := domain.RoleUserMessage
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msg := &domain.ChatMessage{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Role:           role,
			Content:        content,
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		if err := repo.AppendChatMessage(ctx, msg); err != nil {
			t.Fatalf("AppendChatMessage failed: %v", err)
		}
	}

	got, err := repo.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got == nil || got.UserKey != "alice" {
		t.Fatalf("Unexpected conversation: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("Appending messages must bump updated_at")
	}

	msgs, err := repo.ListChatMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListChatMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected two messages, got %d", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Errorf("Transcript out of order: %+v", msgs)
	}
}

func TestChatMessagesKeepInsertionOrder(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		UserKey:   "alice",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// Both halves of a turn share one second-resolution timestamp, and the
	// later message may sort first by id. Insertion order must still win.
	turn := []*domain.ChatMessage{
		{ID: "zzz", ConversationID: conv.ID, Role: domain.RoleUserMessage, Content: "question", CreatedAt: now},
		{ID: "aaa", ConversationID: conv.ID, Role: domain.RoleAssistant, Content: "answer", CreatedAt: now},
	}
	for _, msg := range turn {
		if err := repo.AppendChatMessage(ctx, msg); err != nil {
			t.Fatalf("AppendChatMessage failed: %v", err)
		}
	}

	msgs, err := repo.ListChatMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListChatMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected two messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUserMessage || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("Transcript inverted: got %q then %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	repo := newTestStore(t)

	got, err := repo.GetConversation(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing conversation, got %+v", got)
	}
}
