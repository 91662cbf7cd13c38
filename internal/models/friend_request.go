package models

import "strings"

// FriendRequestStatus 定义好友请求的状态
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
)

// FriendRequest 代表一个好友请求记录
type FriendRequest struct {
	BaseModel
	SenderID    string              `gorm:"type:varchar(36);not null;index" json:"senderId"`
	RecipientID string              `gorm:"type:varchar(36);not null;index" json:"recipientId"`
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// PendingKey holds the unordered pair key while the request is pending and
	// is cleared on acceptance. The unique index on it allows at most one
	// pending request per pair; NULLs never collide.
	PendingKey *string `gorm:"type:varchar(80);uniqueIndex" json:"-"`
}

// TableName 指定 FriendRequest 模型的表名。
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// PairKey returns a key for the unordered pair {a, b}.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}

// FriendRequestWithSender is returned when listing incoming requests.
type FriendRequestWithSender struct {
	FriendRequest
	Sender *UserSummary `json:"sender"`
}

// FriendRequestWithRecipient is returned when listing outgoing or accepted requests.
type FriendRequestWithRecipient struct {
	FriendRequest
	Recipient *UserSummary `json:"recipient"`
}
