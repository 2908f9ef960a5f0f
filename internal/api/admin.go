package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/swiftassist/server/internal/domain"
)

type customerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Company  string         `json:"company"`
	Role     string         `json:"role"`
	Password string         `json:"password,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type templateRequest struct {
	Name           string `json:"name"`
	Company        string `json:"company"`
	PromptTemplate string `json:"prompt_template"`
	ContextData    string `json:"context_data,omitempty"`
	Settings       string `json:"settings,omitempty"`
}

type settingsRequest struct {
	APIKey         *string `json:"apiKey,omitempty"`
	DefaultContext *string `json:"adminContext,omitempty"`
}

type userContextRequest struct {
	Context string `json:"context"`
}

// HandleListCustomers returns all directory users.
func (h *Handler) HandleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.repo.ListCustomers(r.Context())
	if err != nil {
		slog.Error("failed to list customers", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	JSON(w, http.StatusOK, customers)
}

// HandleGetCustomer returns one directory user.
func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	cust, err := h.repo.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to get customer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if cust == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	JSON(w, http.StatusOK, cust)
}

// HandleCreateCustomer creates a directory user, hashing any supplied
// password before it is stored.
func (h *Handler) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" {
		Error(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}

	existing, err := h.repo.GetCustomerByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("failed to check customer email", "error", err)
		Error(w, http.StatusInternalServerError, "failed to add user")
		return
	}
	if existing != nil {
		Error(w, http.StatusConflict, "a user with this email already exists")
		return
	}

	company, err := h.repo.UpsertCompany(r.Context(), companyName(req.Company))
	if err != nil {
		slog.Error("failed to upsert company", "error", err)
		Error(w, http.StatusInternalServerError, "failed to add user")
		return
	}

	now := time.Now()
	cust := &domain.Customer{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			Error(w, http.StatusInternalServerError, "failed to add user")
			return
		}
		cust.PasswordHash = string(hash)
	}

	if err := h.repo.CreateCustomer(r.Context(), cust); err != nil {
		slog.Error("failed to create customer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to add user")
		return
	}
	JSON(w, http.StatusCreated, cust)
}

// HandleUpdateCustomer updates a directory user.
func (h *Handler) HandleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cust, err := h.repo.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to get customer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	if cust == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	if req.Name != "" {
		cust.Name = req.Name
	}
	if req.Email != "" {
		cust.Email = req.Email
	}
	if req.Role != "" {
		cust.Role = req.Role
	}
	if req.Metadata != nil {
		cust.Metadata = req.Metadata
	}
	if req.Company != "" {
		company, err := h.repo.UpsertCompany(r.Context(), req.Company)
		if err != nil {
			slog.Error("failed to upsert company", "error", err)
			Error(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		cust.CompanyID = company.ID
		cust.Company = company.Name
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			Error(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		cust.PasswordHash = string(hash)
	}

	if err := h.repo.UpdateCustomer(r.Context(), cust); err != nil {
		slog.Error("failed to update customer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	JSON(w, http.StatusOK, cust)
}

// HandleDeleteCustomer removes a directory user.
func (h *Handler) HandleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("failed to delete customer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to remove user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListTemplates returns all chat templates.
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.repo.ListChatTemplates(r.Context())
	if err != nil {
		slog.Error("failed to list chat templates", "error", err)
		Error(w, http.StatusInternalServerError, "failed to fetch templates")
		return
	}
	if templates == nil {
		templates = []*domain.ChatTemplate{}
	}
	JSON(w, http.StatusOK, templates)
}

// HandleCreateTemplate creates a chat template.
func (h *Handler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.PromptTemplate == "" {
		Error(w, http.StatusBadRequest, "name and prompt_template are required")
		return
	}

	company, err := h.repo.UpsertCompany(r.Context(), companyName(req.Company))
	if err != nil {
		slog.Error("failed to upsert company", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	now := time.Now()
	tmpl := &domain.ChatTemplate{
		ID:             uuid.NewString(),
		CompanyID:      company.ID,
		Name:           req.Name,
		PromptTemplate: req.PromptTemplate,
		ContextData:    req.ContextData,
		Settings:       req.Settings,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.repo.CreateChatTemplate(r.Context(), tmpl); err != nil {
		slog.Error("failed to create chat template", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	JSON(w, http.StatusCreated, tmpl)
}

// HandleGetSettings returns the settings snapshot for the admin panel.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.settings.Snapshot())
}

// HandleUpdateSettings updates the API key and/or the global default
// context. Absent fields are left untouched.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.APIKey != nil {
		if err := h.settings.SetAPIKey(r.Context(), *req.APIKey); err != nil {
			slog.Error("failed to save api key", "error", err)
			Error(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	if req.DefaultContext != nil {
		if err := h.settings.SetDefaultContext(r.Context(), *req.DefaultContext); err != nil {
			slog.Error("failed to save default context", "error", err)
			Error(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	JSON(w, http.StatusOK, h.settings.Snapshot())
}

// HandleSetUserContext sets a per-user context override. An empty context
// is a valid override.
func (h *Handler) HandleSetUserContext(w http.ResponseWriter, r *http.Request) {
	var req userContextRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userKey := chi.URLParam(r, "userKey")
	if err := h.settings.SetUserContext(r.Context(), userKey, req.Context); err != nil {
		slog.Error("failed to save user context", "user_key", userKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save context")
		return
	}
	JSON(w, http.StatusOK, h.settings.Snapshot())
}

// HandleDeleteUserContext removes a per-user context override.
func (h *Handler) HandleDeleteUserContext(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	if err := h.settings.DeleteUserContext(r.Context(), userKey); err != nil {
		slog.Error("failed to delete user context", "user_key", userKey, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete context")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func companyName(name string) string {
	if name == "" {
		return "SwiftAssist"
	}
	return name
}
