package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/swiftassist/server/internal/domain"
	"github.com/swiftassist/server/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		password_hash TEXT,
		oauth_provider TEXT,
		oauth_id TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);

	CREATE TABLE IF NOT EXISTS chat_templates (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		prompt_template TEXT NOT NULL,
		context_data TEXT,
		settings TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_key TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_key);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation ON chat_messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetState retrieves a state record blob. Returns nil when absent.
func (s *SQLiteStore) GetState(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM app_state WHERE key = ?`, key)

	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan state row: %w", err)
	}
	return data, nil
}

// PutState writes a state record wholesale, replacing any previous blob.
// Retries briefly on SQLite lock contention: state records are written on
// every session/settings mutation and must not be lost to a busy database.
func (s *SQLiteStore) PutState(ctx context.Context, key string, data []byte) error {
	query := `
	INSERT INTO app_state (key, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.db.ExecContext(ctx, query, key, data, time.Now().Unix())
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return fmt.Errorf("put state %q: %w", key, err)
}

// DeleteState removes a state record.
func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// UpsertCompany finds a company by name or creates it.
func (s *SQLiteStore) UpsertCompany(ctx context.Context, name string) (*domain.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM companies WHERE name = ?`, name)

	var c domain.Company
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.Name, &createdAt, &updatedAt)
	if err == nil {
		c.CreatedAt = time.Unix(createdAt, 0)
		c.UpdatedAt = time.Unix(updatedAt, 0)
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("scan company row: %w", err)
	}

	now := time.Now()
	c = domain.Company{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return &c, nil
}

const customerColumns = `
	u.id, u.company_id, COALESCE(c.name, ''), u.name, u.email, u.role,
	u.password_hash, u.oauth_provider, u.oauth_id, u.metadata,
	u.created_at, u.updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var cust domain.Customer
	var passwordHash, oauthProvider, oauthID, metadata sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&cust.ID, &cust.CompanyID, &cust.Company, &cust.Name, &cust.Email, &cust.Role,
		&passwordHash, &oauthProvider, &oauthID, &metadata,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cust.PasswordHash = passwordHash.String
	cust.OAuthProvider = oauthProvider.String
	cust.OAuthID = oauthID.String
	cust.CreatedAt = time.Unix(createdAt, 0)
	cust.UpdatedAt = time.Unix(updatedAt, 0)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &cust.Metadata); err != nil {
			return nil, fmt.Errorf("decode customer metadata: %w", err)
		}
	}
	return &cust, nil
}

// ListCustomers retrieves all directory users with their company name.
func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	query := `SELECT` + customerColumns + `
		FROM users u LEFT JOIN companies c ON c.id = u.company_id
		ORDER BY u.created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, cust)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

// GetCustomer retrieves a directory user by ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT` + customerColumns + `
		FROM users u LEFT JOIN companies c ON c.id = u.company_id
		WHERE u.id = ?`

	cust, err := scanCustomer(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer row: %w", err)
	}
	return cust, nil
}

// GetCustomerByEmail retrieves a directory user by email.
func (s *SQLiteStore) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := `SELECT` + customerColumns + `
		FROM users u LEFT JOIN companies c ON c.id = u.company_id
		WHERE u.email = ?`

	cust, err := scanCustomer(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer row: %w", err)
	}
	return cust, nil
}

func encodeMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode customer metadata: %w", err)
	}
	return string(data), nil
}

// CreateCustomer inserts a new directory user.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	metadata, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO users (id, company_id, name, email, role, password_hash,
		oauth_provider, oauth_id, metadata, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		c.ID, c.CompanyID, c.Name, c.Email, c.Role,
		nullable(c.PasswordHash), nullable(c.OAuthProvider), nullable(c.OAuthID), metadata,
		c.CreatedAt.Unix(), c.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// UpdateCustomer updates an existing directory user.
func (s *SQLiteStore) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	metadata, err := encodeMetadata(c.Metadata)
	if err != nil {
		return err
	}

	query := `
	UPDATE users SET company_id = ?, name = ?, email = ?, role = ?,
		password_hash = ?, oauth_provider = ?, oauth_id = ?, metadata = ?, updated_at = ?
	WHERE id = ?`

	_, err = s.db.ExecContext(ctx, query,
		c.CompanyID, c.Name, c.Email, c.Role,
		nullable(c.PasswordHash), nullable(c.OAuthProvider), nullable(c.OAuthID), metadata,
		time.Now().Unix(), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// DeleteCustomer removes a directory user.
func (s *SQLiteStore) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// ListChatTemplates retrieves all chat templates.
func (s *SQLiteStore) ListChatTemplates(ctx context.Context) ([]*domain.ChatTemplate, error) {
	query := `
	SELECT id, company_id, name, prompt_template, context_data, settings, created_at, updated_at
	FROM chat_templates ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query chat templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.ChatTemplate
	for rows.Next() {
		var t domain.ChatTemplate
		var contextData, settings sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &t.PromptTemplate,
			&contextData, &settings, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chat template row: %w", err)
		}
		t.ContextData = contextData.String
		t.Settings = settings.String
		t.CreatedAt = time.Unix(createdAt, 0)
		t.UpdatedAt = time.Unix(updatedAt, 0)
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat templates: %w", err)
	}
	return templates, nil
}

// CreateChatTemplate inserts a new chat template.
func (s *SQLiteStore) CreateChatTemplate(ctx context.Context, t *domain.ChatTemplate) error {
	query := `
	INSERT INTO chat_templates (id, company_id, name, prompt_template, context_data, settings, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.CompanyID, t.Name, t.PromptTemplate,
		nullable(t.ContextData), nullable(t.Settings),
		t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert chat template: %w", err)
	}
	return nil
}

// CreateConversation inserts a new transcript header.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	query := `INSERT INTO conversations (id, user_key, created_at, updated_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		conv.ID, conv.UserKey, conv.CreatedAt.Unix(), conv.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a transcript header by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_key, created_at, updated_at FROM conversations WHERE id = ?`, id)

	var conv domain.Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&conv.ID, &conv.UserKey, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)
	return &conv, nil
}

// AppendChatMessage appends one transcript entry and bumps the
// conversation's updated_at.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, m *domain.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		m.CreatedAt.Unix(), m.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat message: %w", err)
	}
	return nil
}

// ListChatMessages retrieves a conversation's transcript in insertion
// order. Timestamps only have second resolution and both halves of a turn
// share one, so rowid is the ordering key.
func (s *SQLiteStore) ListChatMessages(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error) {
	query := `
	SELECT id, conversation_id, role, content, created_at
	FROM chat_messages WHERE conversation_id = ? ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
