package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lingua-go/internal/models"
)

// FriendRequestRepository defines the interface for friend request data operations.
type FriendRequestRepository interface {
	Create(ctx context.Context, request *models.FriendRequest) error
	FindPendingRequest(ctx context.Context, userID1, userID2 string) (*models.FriendRequest, error)
	GetRequestByID(ctx context.Context, requestID string) (*models.FriendRequest, error)
	MarkAccepted(ctx context.Context, requestID string) (bool, error)
	ListIncomingPending(ctx context.Context, recipientID string) ([]models.FriendRequest, error)
	ListOutgoingPending(ctx context.Context, senderID string) ([]models.FriendRequest, error)
	ListAcceptedSentBy(ctx context.Context, senderID string) ([]models.FriendRequest, error)
}

type gormFriendRequestRepository struct {
	db *gorm.DB
}

func NewGormFriendRequestRepository(db *gorm.DB) FriendRequestRepository {
	return &gormFriendRequestRepository{db: db}
}

// Create stores a new pending request. The pending key makes a second pending
// request for the same pair, in either direction, fail with gorm.ErrDuplicatedKey.
func (r *gormFriendRequestRepository) Create(ctx context.Context, request *models.FriendRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	key := models.PairKey(request.SenderID, request.RecipientID)
	request.Status = models.FriendRequestStatusPending
	request.PendingKey = &key
	return r.db.WithContext(ctx).Create(request).Error
}

// FindPendingRequest checks if there is an existing pending request between two users (in either direction).
func (r *gormFriendRequestRepository) FindPendingRequest(ctx context.Context, userID1, userID2 string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userID1, userID2, userID2, userID1).
		Where("status = ?", models.FriendRequestStatusPending).
		First(&request).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No pending request found is not an error in this context
		}
		return nil, err
	}
	return &request, nil
}

func (r *gormFriendRequestRepository) GetRequestByID(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// MarkAccepted flips a pending request to accepted and releases its pending
// key. It reports false when the request was not pending any more, so two
// racing accepts cannot both succeed.
func (r *gormFriendRequestRepository) MarkAccepted(ctx context.Context, requestID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, models.FriendRequestStatusPending).
		Updates(map[string]interface{}{
			"status":      models.FriendRequestStatusAccepted,
			"pending_key": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormFriendRequestRepository) ListIncomingPending(ctx context.Context, recipientID string) ([]models.FriendRequest, error) {
	return r.list(ctx, "recipient_id = ? AND status = ?", recipientID, models.FriendRequestStatusPending)
}

func (r *gormFriendRequestRepository) ListOutgoingPending(ctx context.Context, senderID string) ([]models.FriendRequest, error) {
	return r.list(ctx, "sender_id = ? AND status = ?", senderID, models.FriendRequestStatusPending)
}

func (r *gormFriendRequestRepository) ListAcceptedSentBy(ctx context.Context, senderID string) ([]models.FriendRequest, error) {
	return r.list(ctx, "sender_id = ? AND status = ?", senderID, models.FriendRequestStatusAccepted)
}

func (r *gormFriendRequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.FriendRequest, error) {
	requests := []models.FriendRequest{}
	err := r.db.WithContext(ctx).Where(query, args...).Order("created_at, id").Find(&requests).Error
	return requests, err
}
