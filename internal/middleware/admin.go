package middleware

import "net/http"

// SessionReader exposes the authorization reads the middleware needs.
type SessionReader interface {
	IsLoggedIn() bool
	IsAdmin() bool
}

// RequireAdmin returns middleware that rejects requests unless the current
// session belongs to a logged-in admin. Authorization is checked against
// the server-held session, never against client-supplied claims.
func RequireAdmin(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.IsLoggedIn() {
				http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
				return
			}
			if !sessions.IsAdmin() {
				http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
