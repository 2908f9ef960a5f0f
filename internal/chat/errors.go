package chat

import "errors"

// Failure classification for one outbound chat request.
var (
	// ErrMissingAPIKey is returned before any network call when no
	// completion API key is configured.
	ErrMissingAPIKey = errors.New("api key not set")
	// ErrAuth is returned when the completion API rejects the key (401).
	ErrAuth = errors.New("authentication error")
	// ErrRateLimited is returned when the completion API throttles (429).
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrProvider is returned for other completion API failures that
	// carried a message.
	ErrProvider = errors.New("completion provider error")
	// ErrTransport is returned when no response was received at all.
	ErrTransport = errors.New("no response from completion provider")
)

// ErrorCode returns a stable machine-readable code for a gate error, or
// the empty string for errors outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "missing_api_key"
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	default:
		return ""
	}
}

// UserMessage renders a gate error as the user-readable explanation shown
// in the chat view. A failed turn becomes an assistant bubble, not a
// broken conversation.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "The assistant is not configured yet: no API key has been set. Please ask an administrator to add one in settings."
	case errors.Is(err, ErrAuth):
		return "Authentication error: please check the configured API key."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded: too many requests to the completion API. Please wait a moment and try again."
	case errors.Is(err, ErrProvider):
		return "The completion API reported an error: " + err.Error()
	case errors.Is(err, ErrTransport):
		return "Failed to get a response from the completion API. Please try again later."
	default:
		return "Something went wrong while sending your message. Please try again."
	}
}
