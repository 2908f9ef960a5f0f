// Package domain contains core domain types for the SwiftAssist server.
package domain

// Role values carried in the identity provider's user metadata.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the authenticated identity resolved from the identity provider.
// Username is the stable key used for per-user context overrides.
type User struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin returns true if the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
