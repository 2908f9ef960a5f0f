package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/swiftassist/server/internal/config"
	"github.com/swiftassist/server/internal/domain"
)

// OpenAIClient implements CompletionClient against the OpenAI chat
// completion API. The API key is passed per call because it is mutable at
// runtime through the settings service.
type OpenAIClient struct {
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a completion client from configuration.
func NewOpenAIClient(cfg config.CompletionConfig) *OpenAIClient {
	return &OpenAIClient{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends the assembled conversation and returns the first choice's
// message content verbatim.
func (c *OpenAIClient) Complete(ctx context.Context, apiKey string, msgs []domain.Message) (string, error) {
	clientCfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		clientCfg.BaseURL = c.baseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	reqMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		reqMsgs = append(reqMsgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  reqMsgs,
		MaxTokens: c.maxTokens,
	}
	if c.temperature > 0 {
		temp := c.temperature
		req.Temperature = &temp
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps SDK errors onto the gate taxonomy. Errors that never
// produced an HTTP response are transport failures.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func classifyStatus(status int, message string) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuth, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return fmt.Errorf("%w: %s", ErrProvider, message)
	}
}
