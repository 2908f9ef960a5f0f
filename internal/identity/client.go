// Package identity provides a client for the hosted identity provider.
//
// The provider exposes a GoTrue-compatible HTTP API: sign-up, password
// sign-in, OAuth authorize redirect, current-user fetch, and sign-out.
// Credential verification and session issuance live entirely on the
// provider side; this client only maps its payloads into domain types.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects a
	// password sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRegistrationFailed is returned when the provider rejects a sign-up.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrExternalAuth is returned for provider failures that are not
	// credential-related.
	ErrExternalAuth = errors.New("identity provider error")
)

// Tokens is the session token pair issued by the provider.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Client is the interface consumed by the session store.
type Client interface {
	// SignUp creates an account and returns the new user with its session
	// tokens.
	SignUp(ctx context.Context, username, email, password string) (*User, *Tokens, error)

	// SignInWithPassword verifies credentials and returns the user with its
	// session tokens. Returns ErrInvalidCredentials when rejected.
	SignInWithPassword(ctx context.Context, email, password string) (*User, *Tokens, error)

	// UserFromToken fetches the user behind an access token. Returns
	// (nil, nil) when the token no longer identifies a valid session.
	UserFromToken(ctx context.Context, accessToken string) (*User, error)

	// SignOut invalidates the provider-side session for the token.
	SignOut(ctx context.Context, accessToken string) error

	// OAuthURL returns the provider's OAuth authorize redirect target.
	OAuthURL(provider, redirectTo string) string
}

// User is the provider's user payload. Metadata carries at least name and
// role; the session store maps this into domain.User.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// Username returns the metadata name, falling back to the email local part.
func (u *User) Username() string {
	if name, ok := u.Metadata["name"].(string); ok && name != "" {
		return name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// Role returns the metadata role, defaulting to "user".
func (u *User) Role() string {
	if role, ok := u.Metadata["role"].(string); ok && role != "" {
		return role
	}
	return "user"
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a provider client. apiKey is the project's public
// (anon) key sent on every request.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

type errorResponse struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *errorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// SignUp creates an account with the username and role stored in the
// provider's user metadata.
func (c *HTTPClient) SignUp(ctx context.Context, username, email, password string) (*User, *Tokens, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]any{
			"name": username,
			"role": "user",
		},
	}

	var resp sessionResponse
	status, err := c.post(ctx, "/auth/v1/signup", "", body, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExternalAuth, err)
	}
	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: status %d", ErrRegistrationFailed, status)
	}
	if resp.User == nil {
		return nil, nil, fmt.Errorf("%w: no user in response", ErrRegistrationFailed)
	}
	return resp.User, &Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// SignInWithPassword verifies credentials via the password grant.
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (*User, *Tokens, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var resp sessionResponse
	status, err := c.post(ctx, "/auth/v1/token?grant_type=password", "", body, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExternalAuth, err)
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return nil, nil, ErrInvalidCredentials
	default:
		return nil, nil, fmt.Errorf("%w: status %d", ErrExternalAuth, status)
	}
	if resp.User == nil {
		return nil, nil, fmt.Errorf("%w: no user in response", ErrExternalAuth)
	}
	return resp.User, &Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// UserFromToken fetches the user behind an access token. A 401 means the
// session is gone and yields (nil, nil), not an error.
func (c *HTTPClient) UserFromToken(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalAuth, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var user User
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("%w: decode user: %v", ErrExternalAuth, err)
		}
		return &user, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrExternalAuth, resp.StatusCode, readErrorText(resp.Body))
	}
}

// SignOut invalidates the provider-side session for the token.
func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", ErrExternalAuth, resp.StatusCode)
	}
	return nil
}

// OAuthURL returns the provider's OAuth authorize redirect target.
func (c *HTTPClient) OAuthURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *HTTPClient) post(ctx context.Context, path, accessToken string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, accessToken, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func readErrorText(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.text() != "" {
		return e.text()
	}
	return strings.TrimSpace(string(data))
}
