package models

import "time"

// UserFriend is one directed entry of a user's friend set. Acceptance writes
// both directions, so each user record owns its own denormalised set.
type UserFriend struct {
	UserID    string    `gorm:"type:varchar(36);primaryKey;autoIncrement:false"`
	FriendID  string    `gorm:"type:varchar(36);primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time
}

// TableName 指定 UserFriend 模型的表名。
func (UserFriend) TableName() string {
	return "user_friends"
}
