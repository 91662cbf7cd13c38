package imtypes

import "time"

// FriendRequestEventType names a friend-request transition.
type FriendRequestEventType string

const (
	FriendRequestSent     FriendRequestEventType = "friend_request.sent"
	FriendRequestAccepted FriendRequestEventType = "friend_request.accepted"
)

// FriendRequestEvent is published after a friend-request transition has been committed.
type FriendRequestEvent struct {
	Type        FriendRequestEventType `json:"type"`
	RequestID   string                 `json:"requestId"`
	SenderID    string                 `json:"senderId"`
	RecipientID string                 `json:"recipientId"`
	Timestamp   time.Time              `json:"timestamp"`
}
