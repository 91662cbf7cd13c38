package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"lingua-go/internal/apperr"
	"lingua-go/internal/imtypes"
	"lingua-go/internal/metrics"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

var (
	ErrFriendRequestSelf     = apperr.New(apperr.KindInvalidRequest, "you can't send a friend request to yourself")
	ErrRecipientNotFound     = apperr.New(apperr.KindNotFound, "recipient not found")
	ErrAlreadyFriends        = apperr.New(apperr.KindAlreadyFriends, "you are already friends with this user")
	ErrFriendRequestExists   = apperr.New(apperr.KindRequestAlreadyExists, "a friend request already exists between you and this user")
	ErrFriendRequestNotFound = apperr.New(apperr.KindNotFound, "friend request not found")
	ErrNotRecipientOfRequest = apperr.New(apperr.KindForbidden, "you are not authorized to accept this request")
	ErrRequestNotPending     = apperr.New(apperr.KindInvalidState, "friend request is not pending")
)

const (
	DefaultRecommendationLimit = 50
	MaxRecommendationLimit     = 200
)

// EventPublisher publishes committed friend-request transitions.
type EventPublisher interface {
	PublishFriendRequestEvent(ctx context.Context, event imtypes.FriendRequestEvent) error
}

// FriendRequestService defines the interface for friend request operations.
type FriendRequestService interface {
	SendFriendRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, actingUserID, requestID string) (*models.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithSender, error)
	ListAcceptedRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithRecipient, error)
	ListOutgoingRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithRecipient, error)
	GetFriendsList(ctx context.Context, userID string) ([]*models.UserSummary, error)
	RecommendUsers(ctx context.Context, userID string, limit int) ([]*models.UserSummary, error)
}

type friendRequestService struct {
	db             *gorm.DB
	userRepo       storage.UserRepository
	friendRepo     storage.FriendRequestRepository
	friendshipRepo storage.FriendshipRepository
	publisher      EventPublisher
	publishTimeout time.Duration
	log            *slog.Logger
}

// NewFriendRequestService creates a new FriendRequestService instance.
// publishTimeout bounds each event publish; zero means no bound.
func NewFriendRequestService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	friendRepo storage.FriendRequestRepository,
	friendshipRepo storage.FriendshipRepository,
	publisher EventPublisher,
	publishTimeout time.Duration,
	log *slog.Logger,
) FriendRequestService {
	return &friendRequestService{
		db:             db,
		userRepo:       userRepo,
		friendRepo:     friendRepo,
		friendshipRepo: friendshipRepo,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		log:            log,
	}
}

// SendFriendRequest creates a pending request from senderID to recipientID.
// Preconditions are checked in a fixed order so each failure is distinct.
func (s *friendRequestService) SendFriendRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error) {
	// 1. Check if recipient exists
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("检查接收用户时出错: %w", err)
	}

	// 2. No requests to oneself
	if senderID == recipientID {
		return nil, ErrFriendRequestSelf
	}

	// 3. Check if users are already friends
	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("检查好友关系时出错: %w", err)
	}
	if areFriends {
		return nil, ErrAlreadyFriends
	}

	// 4. Check if a pending request already exists (in either direction)
	existing, err := s.friendRepo.FindPendingRequest(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("检查现有请求时出错: %w", err)
	}
	if existing != nil {
		return nil, ErrFriendRequestExists
	}

	request := &models.FriendRequest{SenderID: senderID, RecipientID: recipientID}
	if err := s.friendRepo.Create(ctx, request); err != nil {
		// the unique pending key caught a concurrent send for the same pair
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFriendRequestExists
		}
		return nil, fmt.Errorf("保存好友请求失败: %w", err)
	}

	metrics.FriendRequestTransitions.WithLabelValues("sent").Inc()
	s.log.Info("friend request sent", "request_id", request.ID, "sender_id", senderID, "recipient_id", recipientID)
	s.publish(ctx, imtypes.FriendRequestSent, request)
	return request, nil
}

// AcceptFriendRequest marks the request accepted and adds both users to each
// other's friend set in one transaction.
func (s *friendRequestService) AcceptFriendRequest(ctx context.Context, actingUserID, requestID string) (*models.FriendRequest, error) {
	var accepted *models.FriendRequest

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txFriendRepo := storage.NewGormFriendRequestRepository(tx)
		txFriendshipRepo := storage.NewGormFriendshipRepository(tx)

		// 1. Retrieve the friend request
		request, err := txFriendRepo.GetRequestByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFriendRequestNotFound
			}
			return fmt.Errorf("检索好友请求失败: %w", err)
		}

		// 2. Validate the request
		if request.RecipientID != actingUserID {
			return ErrNotRecipientOfRequest
		}
		if request.Status != models.FriendRequestStatusPending {
			return ErrRequestNotPending
		}

		// 3. Flip the status; a concurrent accept that got there first leaves nothing to update
		ok, err := txFriendRepo.MarkAccepted(ctx, requestID)
		if err != nil {
			return fmt.Errorf("更新好友请求状态失败: %w", err)
		}
		if !ok {
			return ErrRequestNotPending
		}

		// 4. Symmetric, idempotent friend-set additions
		if err := txFriendshipRepo.AddFriendPair(ctx, request.SenderID, request.RecipientID); err != nil {
			return fmt.Errorf("创建好友关系失败: %w", err)
		}

		request.Status = models.FriendRequestStatusAccepted
		request.PendingKey = nil
		accepted = request
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	metrics.FriendRequestTransitions.WithLabelValues("accepted").Inc()
	s.log.Info("friend request accepted", "request_id", requestID, "sender_id", accepted.SenderID, "recipient_id", actingUserID)
	s.publish(ctx, imtypes.FriendRequestAccepted, accepted)
	return accepted, nil
}

// ListIncomingRequests returns pending requests addressed to userID with the sender's profile.
func (s *friendRequestService) ListIncomingRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithSender, error) {
	requests, err := s.friendRepo.ListIncomingPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取待处理好友请求失败: %w", err)
	}

	senders, err := s.summariesByID(ctx, requests, func(r models.FriendRequest) string { return r.SenderID })
	if err != nil {
		return nil, err
	}

	result := make([]*models.FriendRequestWithSender, 0, len(requests))
	for _, req := range requests {
		result = append(result, &models.FriendRequestWithSender{FriendRequest: req, Sender: senders[req.SenderID]})
	}
	return result, nil
}

// ListAcceptedRequests returns requests sent by userID that have been accepted.
func (s *friendRequestService) ListAcceptedRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithRecipient, error) {
	requests, err := s.friendRepo.ListAcceptedSentBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取已接受好友请求失败: %w", err)
	}
	return s.withRecipients(ctx, requests)
}

// ListOutgoingRequests returns pending requests sent by userID.
func (s *friendRequestService) ListOutgoingRequests(ctx context.Context, userID string) ([]*models.FriendRequestWithRecipient, error) {
	requests, err := s.friendRepo.ListOutgoingPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取已发送好友请求失败: %w", err)
	}
	return s.withRecipients(ctx, requests)
}

// GetFriendsList retrieves the profile summary of every friend of the given user.
func (s *friendRequestService) GetFriendsList(ctx context.Context, userID string) ([]*models.UserSummary, error) {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	friends, err := s.userRepo.GetSummariesByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("获取好友信息失败: %w", err)
	}
	return friends, nil
}

// RecommendUsers lists onboarded users userID could send a request to.
// limit falls back to DefaultRecommendationLimit and is capped at MaxRecommendationLimit.
func (s *friendRequestService) RecommendUsers(ctx context.Context, userID string, limit int) ([]*models.UserSummary, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	if limit > MaxRecommendationLimit {
		limit = MaxRecommendationLimit
	}
	users, err := s.userRepo.ListRecommended(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("获取推荐用户失败: %w", err)
	}
	return users, nil
}

func (s *friendRequestService) withRecipients(ctx context.Context, requests []models.FriendRequest) ([]*models.FriendRequestWithRecipient, error) {
	recipients, err := s.summariesByID(ctx, requests, func(r models.FriendRequest) string { return r.RecipientID })
	if err != nil {
		return nil, err
	}
	result := make([]*models.FriendRequestWithRecipient, 0, len(requests))
	for _, req := range requests {
		result = append(result, &models.FriendRequestWithRecipient{FriendRequest: req, Recipient: recipients[req.RecipientID]})
	}
	return result, nil
}

func (s *friendRequestService) summariesByID(ctx context.Context, requests []models.FriendRequest, pick func(models.FriendRequest) string) (map[string]*models.UserSummary, error) {
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, pick(req))
	}
	summaries, err := s.userRepo.GetSummariesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取用户信息失败: %w", err)
	}
	byID := make(map[string]*models.UserSummary, len(summaries))
	for _, u := range summaries {
		byID[u.ID] = u
	}
	return byID, nil
}

// publish runs after commit. A failed publish never undoes the transition,
// and the caller waits at most publishTimeout for it.
func (s *friendRequestService) publish(ctx context.Context, eventType imtypes.FriendRequestEventType, request *models.FriendRequest) {
	// the transition is committed, a client disconnect should not drop the event
	ctx = context.WithoutCancel(ctx)
	if s.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
	}

	event := imtypes.FriendRequestEvent{
		Type:        eventType,
		RequestID:   request.ID,
		SenderID:    request.SenderID,
		RecipientID: request.RecipientID,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.publisher.PublishFriendRequestEvent(ctx, event); err != nil {
		s.log.Error("publishing friend request event failed", "request_id", request.ID, "type", eventType, "error", err)
	}
}
