package apiserver

import (
	"log/slog"
	"net/http"

	"lingua-go/internal/auth"
	"lingua-go/internal/middleware"
	"lingua-go/internal/services"
)

// ChatHandler hands out chat provider tokens.
type ChatHandler struct {
	chatService services.ChatService
	log         *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService services.ChatService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

// TokenHandler handles GET /api/chat/token
func (h *ChatHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	token, err := h.chatService.MintToken(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"token": token})
}
