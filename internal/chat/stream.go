// Package chat adapts the Stream chat service to imtypes.ChatProvider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	stream "github.com/GetStream/stream-chat-go/v6"

	"lingua-go/internal/config"
	"lingua-go/internal/imtypes"
)

// ErrNotConfigured is returned by the disabled provider.
var ErrNotConfigured = errors.New("chat provider credentials are not configured")

type streamProvider struct {
	client *stream.Client
}

// NewStreamProvider builds a provider from the API key and secret.
func NewStreamProvider(cfg config.ChatConfig) (imtypes.ChatProvider, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrNotConfigured
	}
	client, err := stream.NewClient(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create stream client: %w", err)
	}
	return &streamProvider{client: client}, nil
}

func (p *streamProvider) UpsertUser(ctx context.Context, user imtypes.ChatUser) error {
	_, err := p.client.UpsertUser(ctx, &stream.User{
		ID:    user.ID,
		Name:  user.Name,
		Image: user.Image,
	})
	if err != nil {
		return fmt.Errorf("upsert stream user %s: %w", user.ID, err)
	}
	return nil
}

// CreateToken signs locally, no round trip to the provider is made.
func (p *streamProvider) CreateToken(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token, err := p.client.CreateToken(userID, time.Time{})
	if err != nil {
		return "", fmt.Errorf("create stream token for %s: %w", userID, err)
	}
	return token, nil
}

// disabledProvider fails every call. Used when no credentials are configured
// outside production so the rest of the API still starts.
type disabledProvider struct{}

// NewDisabledProvider returns a provider that always fails with ErrNotConfigured.
func NewDisabledProvider() imtypes.ChatProvider {
	return disabledProvider{}
}

func (disabledProvider) UpsertUser(context.Context, imtypes.ChatUser) error {
	return ErrNotConfigured
}

func (disabledProvider) CreateToken(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
