package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/imtypes"
	"lingua-go/internal/logger"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
	"lingua-go/internal/storage/storagetest"
)

type fakeChatProvider struct {
	mu        sync.Mutex
	upserts   []imtypes.ChatUser
	upsertErr error
	block     bool
}

func (f *fakeChatProvider) UpsertUser(ctx context.Context, user imtypes.ChatUser) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, user)
	return nil
}

func (f *fakeChatProvider) CreateToken(ctx context.Context, userID string) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "chat-token-" + userID, nil
}

func (f *fakeChatProvider) upserted() []imtypes.ChatUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]imtypes.ChatUser(nil), f.upserts...)
}

const testPublishTimeout = 200 * time.Millisecond

type recordingPublisher struct {
	mu     sync.Mutex
	events []imtypes.FriendRequestEvent
	err    error
	// stall waits for the context to end, like a broker that never acks
	stall bool
}

func (p *recordingPublisher) PublishFriendRequestEvent(ctx context.Context, event imtypes.FriendRequestEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	stall, err := p.stall, p.err
	p.mu.Unlock()
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *recordingPublisher) recorded() []imtypes.FriendRequestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]imtypes.FriendRequestEvent(nil), p.events...)
}

// memoryLimiter is an in-process auth.LoginLimiter.
type memoryLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newMemoryLimiter(max int) *memoryLimiter {
	return &memoryLimiter{max: max, failures: map[string]int{}}
}

func (l *memoryLimiter) Allowed(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] < l.max, nil
}

func (l *memoryLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allowed(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenLimiter) RecordFailure(context.Context, string) error { return errors.New("redis down") }
func (brokenLimiter) Reset(context.Context, string) error         { return errors.New("redis down") }

type testEnv struct {
	db        *gorm.DB
	users     storage.UserRepository
	chat      *fakeChatProvider
	publisher *recordingPublisher
	sessions  *auth.SessionManager

	auth    AuthService
	user    UserService
	friends FriendRequestService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimiter(t, auth.NoopLoginLimiter{})
}

func newTestEnvWithLimiter(t *testing.T, limiter auth.LoginLimiter) *testEnv {
	t.Helper()
	db := storagetest.NewDB(t)
	log := logger.Discard()

	env := &testEnv{
		db:        db,
		users:     storage.NewGormUserRepository(db),
		chat:      &fakeChatProvider{},
		publisher: &recordingPublisher{},
		sessions:  auth.NewSessionManager(config.AuthConfig{JWTSecretKey: "test", JWTExpiry: time.Hour}),
	}
	chat := NewChatService(env.chat, time.Second, log)
	env.auth = NewAuthService(env.users, env.sessions, limiter, chat,
		config.AvatarConfig{BaseURL: "https://avatar.example/public", Count: 100}, log)
	env.user = NewUserService(db, env.users, chat, log)
	env.friends = NewFriendRequestService(db, env.users,
		storage.NewGormFriendRequestRepository(db),
		storage.NewGormFriendshipRepository(db),
		env.publisher, testPublishTimeout, log)
	return env
}

// onboardedUser creates a user directly in the store, skipping bcrypt.
func (e *testEnv) onboardedUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		FullName:         name,
		Email:            name + "@x.com",
		PasswordHash:     "hash",
		NativeLanguage:   "es",
		LearningLanguage: "en",
		IsOnboarded:      true,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func ids(users []*models.UserSummary) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
