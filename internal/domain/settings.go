package domain

// Settings is the process-wide configuration mutated through the admin
// panel. Persisted wholesale to the "settings" state record.
//
// UserContexts is keyed by username. An entry whose value is the empty
// string is a real override, distinct from no entry at all.
type Settings struct {
	APIKey         string            `json:"apiKey"`
	DefaultContext string            `json:"adminContext"`
	UserContexts   map[string]string `json:"customerContexts"`
}

// Clone returns a deep copy so callers cannot mutate the live map.
func (s *Settings) Clone() *Settings {
	cp := *s
	cp.UserContexts = make(map[string]string, len(s.UserContexts))
	for k, v := range s.UserContexts {
		cp.UserContexts[k] = v
	}
	return &cp
}
