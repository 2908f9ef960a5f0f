package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/swiftassist/server/internal/chat"
	"github.com/swiftassist/server/internal/domain"
)

type chatRequest struct {
	Message        string           `json:"message"`
	History        []domain.Message `json:"history"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	Error          string `json:"error,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// HandleChat performs one user turn through the conversation gate.
//
// Gate failures are not surfaced as HTTP errors: the turn degrades to an
// assistant-role bubble carrying a user-readable explanation, so a failed
// send never corrupts the visible conversation.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	user := h.sessions.CurrentUser()
	reply, err := h.gate.Send(r.Context(), req.Message, req.History, user)
	if err != nil {
		code := chat.ErrorCode(err)
		if code == "" {
			slog.Error("chat send failed", "error", err)
			Error(w, http.StatusInternalServerError, "failed to process message")
			return
		}
		slog.Warn("chat send degraded to bubble", "code", code, "error", err)
		JSON(w, http.StatusOK, chatResponse{
			Role:           domain.RoleAssistant,
			Content:        chat.UserMessage(err),
			Error:          code,
			ConversationID: req.ConversationID,
		})
		return
	}

	conversationID := h.recordTurn(r.Context(), req.ConversationID, user, req.Message, reply)

	JSON(w, http.StatusOK, chatResponse{
		Role:           domain.RoleAssistant,
		Content:        reply,
		ConversationID: conversationID,
	})
}

// HandleTranscript returns a persisted conversation transcript in order.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.repo.GetConversation(r.Context(), conversationID)
	if err != nil {
		slog.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}

	msgs, err := h.repo.ListChatMessages(r.Context(), conversationID)
	if err != nil {
		slog.Error("failed to load transcript", "conversation_id", conversationID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"conversation": conv, "messages": msgs})
}

// recordTurn persists the user/assistant exchange when the client tracks a
// conversation. Best-effort: transcript failures are logged, never
// surfaced, and never block the reply.
func (h *Handler) recordTurn(ctx context.Context, conversationID string, user *domain.User, userMessage, reply string) string {
	if conversationID == "" {
		return ""
	}

	conv, err := h.repo.GetConversation(ctx, conversationID)
	if err != nil {
		slog.Warn("failed to look up conversation", "conversation_id", conversationID, "error", err)
		return conversationID
	}
	if conv == nil {
		userKey := "anonymous"
		if user != nil {
			userKey = user.Username
		}
		now := time.Now()
		conv = &domain.Conversation{
			ID:        conversationID,
			UserKey:   userKey,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.repo.CreateConversation(ctx, conv); err != nil {
			slog.Warn("failed to create conversation", "conversation_id", conversationID, "error", err)
			return conversationID
		}
	}

	now := time.Now()
	for _, m := range []domain.ChatMessage{
		{ID: uuid.NewString(), ConversationID: conversationID, Role: domain.RoleUserMessage, Content: userMessage, CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: conversationID, Role: domain.RoleAssistant, Content: reply, CreatedAt: now},
	} {
		if err := h.repo.AppendChatMessage(ctx, &m); err != nil {
			slog.Warn("failed to append chat message", "conversation_id", conversationID, "error", err)
			return conversationID
		}
	}
	return conversationID
}
