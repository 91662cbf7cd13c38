package apiserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"lingua-go/internal/auth"
	"lingua-go/internal/middleware"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
)

// FriendRequestHandler handles HTTP requests related to friend requests.
type FriendRequestHandler struct {
	friendService services.FriendRequestService
	log           *slog.Logger
}

// NewFriendRequestHandler creates a new FriendRequestHandler.
func NewFriendRequestHandler(fs services.FriendRequestService, log *slog.Logger) *FriendRequestHandler {
	return &FriendRequestHandler{friendService: fs, log: log}
}

// FriendRequestsResponse is the body of GET /api/users/friend-requests.
type FriendRequestsResponse struct {
	IncomingReqs []*models.FriendRequestWithSender    `json:"incomingReqs"`
	AcceptedReqs []*models.FriendRequestWithRecipient `json:"acceptedReqs"`
}

// SendFriendRequestHandler handles POST /api/users/friend-request/{id}
func (h *FriendRequestHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	request, err := h.friendService.SendFriendRequest(r.Context(), senderID, mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, request)
}

// AcceptFriendRequestHandler handles POST /api/users/friend-request/{id}/accept
func (h *FriendRequestHandler) AcceptFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	request, err := h.friendService.AcceptFriendRequest(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": "friend request accepted",
		"request": request,
	})
}

// ListFriendRequestsHandler handles GET /api/users/friend-requests
func (h *FriendRequestHandler) ListFriendRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	incoming, err := h.friendService.ListIncomingRequests(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	accepted, err := h.friendService.ListAcceptedRequests(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, FriendRequestsResponse{IncomingReqs: incoming, AcceptedReqs: accepted})
}

// ListOutgoingRequestsHandler handles GET /api/users/outgoing-friend-requests
func (h *FriendRequestHandler) ListOutgoingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	outgoing, err := h.friendService.ListOutgoingRequests(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, outgoing)
}
