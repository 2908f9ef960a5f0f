package domain

// Session is the current authentication state of the running app.
// It is persisted wholesale to the "auth" state record on every mutation.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	User          *User  `json:"user,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
}

// IsAdmin reports whether the session belongs to a logged-in admin.
// Never true for a logged-out session, regardless of what the user
// field happens to contain.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Authenticated && s.User.IsAdmin()
}
