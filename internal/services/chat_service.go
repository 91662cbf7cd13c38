package services

import (
	"context"
	"log/slog"
	"time"

	"lingua-go/internal/apperr"
	"lingua-go/internal/imtypes"
	"lingua-go/internal/metrics"
	"lingua-go/internal/models"
)

// ErrChatProvider is returned when the chat provider fails or times out.
var ErrChatProvider = apperr.New(apperr.KindChatProvider, "chat service is unavailable, please try again later")

// ChatService keeps local users mirrored in the chat provider and mints
// provider tokens. It holds no state besides the injected provider.
type ChatService interface {
	MirrorUser(ctx context.Context, user *models.User) error
	MintToken(ctx context.Context, userID string) (string, error)
}

type chatService struct {
	provider imtypes.ChatProvider
	timeout  time.Duration
	log      *slog.Logger
}

// NewChatService creates a ChatService. Every provider call is bounded by timeout.
func NewChatService(provider imtypes.ChatProvider, timeout time.Duration, log *slog.Logger) ChatService {
	return &chatService{provider: provider, timeout: timeout, log: log}
}

// MirrorUser upserts the user's id, name and picture into the chat registry.
func (s *chatService) MirrorUser(ctx context.Context, user *models.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.provider.UpsertUser(ctx, imtypes.ChatUser{
		ID:    user.ID,
		Name:  user.FullName,
		Image: user.ProfilePic,
	})
	if err != nil {
		metrics.ChatProviderCalls.WithLabelValues("upsert_user", metrics.ResultError).Inc()
		s.log.Error("chat user upsert failed", "user_id", user.ID, "error", err)
		return apperr.Wrap(ErrChatProvider, err)
	}
	metrics.ChatProviderCalls.WithLabelValues("upsert_user", metrics.ResultSuccess).Inc()
	return nil
}

// MintToken returns a chat token scoped to userID.
func (s *chatService) MintToken(ctx context.Context, userID string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	token, err := s.provider.CreateToken(ctx, userID)
	if err != nil {
		metrics.ChatProviderCalls.WithLabelValues("create_token", metrics.ResultError).Inc()
		s.log.Error("chat token creation failed", "user_id", userID, "error", err)
		return "", apperr.Wrap(ErrChatProvider, err)
	}
	metrics.ChatProviderCalls.WithLabelValues("create_token", metrics.ResultSuccess).Inc()
	return token, nil
}

func (s *chatService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
