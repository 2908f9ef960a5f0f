// Package api provides HTTP handlers for the SwiftAssist API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swiftassist/server/internal/chat"
	"github.com/swiftassist/server/internal/identity"
	"github.com/swiftassist/server/internal/middleware"
	"github.com/swiftassist/server/internal/session"
	"github.com/swiftassist/server/internal/settings"
	"github.com/swiftassist/server/internal/store"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Handler bundles the services behind the HTTP API.
type Handler struct {
	sessions *session.Store
	settings *settings.Service
	gate     *chat.Gate
	repo     store.Repository
	idp      identity.Client

	oauthRedirect string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(sessions *session.Store, svc *settings.Service, gate *chat.Gate, repo store.Repository, idp identity.Client, oauthRedirect string) *Handler {
	return &Handler{
		sessions:      sessions,
		settings:      svc,
		gate:          gate,
		repo:          repo,
		idp:           idp,
		oauthRedirect: oauthRedirect,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.Get("/oauth/{provider}", h.HandleOAuthStart)
		r.Post("/callback", h.HandleOAuthCallback)
		r.Post("/logout", h.HandleLogout)
		r.Get("/session", h.HandleSession)
	})

	r.Post("/api/chat", h.HandleChat)
	r.Get("/api/chat/{conversationID}", h.HandleTranscript)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.sessions))
		r.Get("/users", h.HandleListCustomers)
		r.Post("/users", h.HandleCreateCustomer)
		r.Get("/users/{id}", h.HandleGetCustomer)
		r.Put("/users/{id}", h.HandleUpdateCustomer)
		r.Delete("/users/{id}", h.HandleDeleteCustomer)
		r.Get("/templates", h.HandleListTemplates)
		r.Post("/templates", h.HandleCreateTemplate)
		r.Get("/settings", h.HandleGetSettings)
		r.Put("/settings", h.HandleUpdateSettings)
		r.Put("/settings/contexts/{userKey}", h.HandleSetUserContext)
		r.Delete("/settings/contexts/{userKey}", h.HandleDeleteUserContext)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}
