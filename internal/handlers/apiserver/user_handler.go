package apiserver

import (
	"log/slog"
	"net/http"

	"lingua-go/internal/auth"
	"lingua-go/internal/middleware"
	"lingua-go/internal/services"
)

// UserHandler serves recommendation and friend listing endpoints.
type UserHandler struct {
	friendService services.FriendRequestService
	log           *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(friendService services.FriendRequestService, log *slog.Logger) *UserHandler {
	return &UserHandler{friendService: friendService, log: log}
}

// RecommendedUsersHandler handles GET /api/users?limit=N
func (h *UserHandler) RecommendedUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	users, err := h.friendService.RecommendUsers(r.Context(), userID, intQuery(r, "limit", services.DefaultRecommendationLimit))
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// ListFriendsHandler handles GET /api/users/friends
func (h *UserHandler) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	friends, err := h.friendService.GetFriendsList(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}
