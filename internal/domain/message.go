package domain

// Message roles understood by the completion API.
const (
	RoleSystem      = "system"
	RoleUserMessage = "user"
	RoleAssistant   = "assistant"
)

// Message is one entry in a conversation. An ordered slice of messages
// forms the conversation sent to the completion API; the slice itself is
// ephemeral and lives only for the duration of a chat view.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HasSystemMessage reports whether the sequence already carries a
// system message anywhere in its order.
func HasSystemMessage(msgs []Message) bool {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}
