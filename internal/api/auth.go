package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swiftassist/server/internal/identity"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type callbackRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// HandleRegister creates an account with the identity provider and logs
// the new user in.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.sessions.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrRegistrationFailed) {
			Error(w, http.StatusUnprocessableEntity, "registration failed")
			return
		}
		slog.Error("registration failed", "error", err)
		Error(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}

	JSON(w, http.StatusCreated, map[string]any{"user": user})
}

// HandleLogin verifies credentials and establishes the session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.Error("login failed", "error", err)
		Error(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleOAuthStart returns the provider's authorize URL for the SPA to
// redirect to.
func (h *Handler) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	if provider == "" {
		Error(w, http.StatusBadRequest, "provider is required")
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"url": h.idp.OAuthURL(provider, h.oauthRedirect),
	})
}

// HandleOAuthCallback completes the OAuth handshake with the tokens the
// provider delivered to the callback page. The absence of a valid external
// session is not an error: the client is simply not logged in.
func (h *Handler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.sessions.HandleCallback(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		slog.Error("oauth callback failed", "error", err)
		Error(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	if user == nil {
		JSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	JSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

// HandleLogout clears the session. Always succeeds from the client's
// perspective, even when the provider-side sign-out fails.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// HandleSession returns the current session snapshot.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.sessions.Snapshot())
}
