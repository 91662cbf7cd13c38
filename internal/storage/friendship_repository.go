package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lingua-go/internal/models"
)

// ErrSelfFriendship is returned when a user would be added to their own friend set.
var ErrSelfFriendship = errors.New("user cannot befriend themselves")

// FriendshipRepository defines the interface for friendship data operations.
type FriendshipRepository interface {
	AddFriendPair(ctx context.Context, userID1, userID2 string) error
	AreUsersFriends(ctx context.Context, userID1, userID2 string) (bool, error)
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GormFriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

// AddFriendPair adds each user to the other's friend set. Entries that already
// exist are left alone, so repeating the call is a no-op.
func (r *gormFriendshipRepository) AddFriendPair(ctx context.Context, userID1, userID2 string) error {
	if userID1 == userID2 {
		return ErrSelfFriendship
	}
	rows := []models.UserFriend{
		{UserID: userID1, FriendID: userID2},
		{UserID: userID2, FriendID: userID1},
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// AreUsersFriends checks if two users are already friends.
func (r *gormFriendshipRepository) AreUsersFriends(ctx context.Context, userID1, userID2 string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserFriend{}).
		Where("user_id = ? AND friend_id = ?", userID1, userID2).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetFriendIDs retrieves a list of user IDs who are friends with the given userID.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	friendIDs := []string{}
	err := r.db.WithContext(ctx).
		Model(&models.UserFriend{}).
		Where("user_id = ?", userID).
		Order("created_at, friend_id").
		Pluck("friend_id", &friendIDs).Error
	if err != nil {
		return nil, err
	}
	return friendIDs, nil
}
