package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lingua-go/internal/models"
)

var summaryColumns = []string{"id", "full_name", "profile_pic", "bio", "native_language", "learning_language", "location"}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetSummariesByIDs(ctx context.Context, ids []string) ([]*models.UserSummary, error)
	ListRecommended(ctx context.Context, userID string, limit int) ([]*models.UserSummary, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create inserts a new user and assigns its id. A taken email comes back as
// gorm.ErrDuplicatedKey.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	return nil
}

// GetByID retrieves a user by their ID, friend set included.
func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	if err := r.loadFriends(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, compared exactly as stored.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if err := r.loadFriends(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update writes every column of an existing user.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// GetSummariesByIDs retrieves public profile fields for a list of user IDs.
// Unknown ids are skipped.
func (r *gormUserRepository) GetSummariesByIDs(ctx context.Context, ids []string) ([]*models.UserSummary, error) {
	summaries := []*models.UserSummary{}
	if len(ids) == 0 {
		return summaries, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(summaryColumns).
		Where("id IN ?", ids).
		Order("full_name, id").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListRecommended returns onboarded users other than userID who are neither
// friends with userID nor part of a pending request with userID. The filter
// is evaluated by the database on every call.
func (r *gormUserRepository) ListRecommended(ctx context.Context, userID string, limit int) ([]*models.UserSummary, error) {
	db := r.db.WithContext(ctx)

	friends := db.Model(&models.UserFriend{}).
		Select("friend_id").
		Where("user_id = ?", userID)
	sentTo := db.Model(&models.FriendRequest{}).
		Select("recipient_id").
		Where("sender_id = ? AND status = ?", userID, models.FriendRequestStatusPending)
	receivedFrom := db.Model(&models.FriendRequest{}).
		Select("sender_id").
		Where("recipient_id = ? AND status = ?", userID, models.FriendRequestStatusPending)

	summaries := []*models.UserSummary{}
	err := db.Model(&models.User{}).
		Select(summaryColumns).
		Where("id <> ? AND is_onboarded = ?", userID, true).
		Where("id NOT IN (?)", friends).
		Where("id NOT IN (?)", sentTo).
		Where("id NOT IN (?)", receivedFrom).
		Order("created_at, id").
		Limit(limit).
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *gormUserRepository) loadFriends(ctx context.Context, user *models.User) error {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.UserFriend{}).
		Where("user_id = ?", user.ID).
		Order("created_at, friend_id").
		Pluck("friend_id", &ids).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	user.Friends = ids
	return nil
}
