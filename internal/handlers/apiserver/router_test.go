package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/imtypes"
	"lingua-go/internal/logger"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
	"lingua-go/internal/storage/storagetest"
)

const testCookie = "jwt"

type stubChatProvider struct {
	mu        sync.Mutex
	upserted  map[string]imtypes.ChatUser
	upsertErr error
}

func (p *stubChatProvider) UpsertUser(_ context.Context, user imtypes.ChatUser) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.upsertErr != nil {
		return p.upsertErr
	}
	p.upserted[user.ID] = user
	return nil
}

func (p *stubChatProvider) CreateToken(_ context.Context, userID string) (string, error) {
	return "chat-" + userID, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishFriendRequestEvent(context.Context, imtypes.FriendRequestEvent) error {
	return nil
}

type testServer struct {
	handler http.Handler
	chat    *stubChatProvider
}

func newTestServer(t *testing.T, frontendDist string) *testServer {
	t.Helper()
	db := storagetest.NewDB(t)
	log := logger.Discard()
	sessions := auth.NewSessionManager(config.AuthConfig{JWTSecretKey: "router-test", JWTExpiry: time.Hour})

	provider := &stubChatProvider{upserted: map[string]imtypes.ChatUser{}}
	chat := services.NewChatService(provider, time.Second, log)
	users := storage.NewGormUserRepository(db)

	authService := services.NewAuthService(users, sessions, auth.NoopLoginLimiter{}, chat,
		config.AvatarConfig{BaseURL: "https://avatar.example/public", Count: 10}, log)
	userService := services.NewUserService(db, users, chat, log)
	friendService := services.NewFriendRequestService(db, users,
		storage.NewGormFriendRequestRepository(db),
		storage.NewGormFriendshipRepository(db),
		noopPublisher{}, time.Second, log)

	r := NewRouter(RouterConfig{
		DB:            db,
		Sessions:      sessions,
		CookieName:    testCookie,
		FrontendDist:  frontendDist,
		AuthService:   authService,
		UserService:   userService,
		FriendService: friendService,
		ChatService:   chat,
		Log:           log,
	})
	return &testServer{handler: r, chat: provider}
}

// do sends a JSON request, attaching the session cookie when one is given.
func (s *testServer) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: session})
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("response carries no %q cookie", testCookie)
	return nil
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// signupOnboarded registers a user, completes onboarding and returns the session and id.
func (s *testServer) signupOnboarded(t *testing.T, name string) (string, string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: name, Email: name + "@example.com", Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	session := sessionCookie(t, rr).Value
	user := decodeBody[UserResponse](t, rr).User

	rr = s.do(t, http.MethodPost, "/api/auth/onboarding", session, models.ProfileFields{
		NativeLanguage: "es", LearningLanguage: "en", Bio: "hola",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return session, user.ID
}

func TestSignupLoginOnboardingFlow(t *testing.T) {
	s := newTestServer(t, "")

	rr := s.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Ana", Email: "ana@example.com", Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	signupCookie := sessionCookie(t, rr)
	assert.True(t, signupCookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, signupCookie.SameSite)
	assert.Equal(t, 3600, signupCookie.MaxAge)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	session := sessionCookie(t, rr).Value

	rr = s.do(t, http.MethodGet, "/api/auth/me", session, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody[UserResponse](t, rr)
	assert.True(t, me.Success)
	assert.False(t, me.User.IsOnboarded)

	// not onboarded yet
	rr = s.do(t, http.MethodGet, "/api/users", session, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "ONBOARDING_REQUIRED", decodeBody[ErrorResponse](t, rr).Kind)

	rr = s.do(t, http.MethodPost, "/api/auth/onboarding", session, models.ProfileFields{NativeLanguage: "es"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rr).Error, "learningLanguage")

	rr = s.do(t, http.MethodPost, "/api/auth/onboarding", session, models.ProfileFields{
		NativeLanguage: "es", LearningLanguage: "en", Location: "Madrid",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/auth/me", session, nil)
	me = decodeBody[UserResponse](t, rr)
	assert.True(t, me.User.IsOnboarded)
	assert.Equal(t, "Madrid", me.User.Location)
	assert.Contains(t, s.chat.upserted, me.User.ID)

	rr = s.do(t, http.MethodGet, "/api/users", session, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, "")
	s.signupOnboarded(t, "ana")

	rr := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeBody[ErrorResponse](t, rr).Kind)
	assert.Empty(t, rr.Result().Cookies())
}

func TestSignupDuplicateEmail(t *testing.T) {
	s := newTestServer(t, "")
	s.signupOnboarded(t, "ana")

	rr := s.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Other", Email: "ana@example.com", Password: "secret123",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", decodeBody[ErrorResponse](t, rr).Kind)
}

func TestInvalidBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[ErrorResponse](t, rr).Kind)
}

func TestFriendRequestFlow(t *testing.T) {
	s := newTestServer(t, "")
	anaSession, anaID := s.signupOnboarded(t, "ana")
	benSession, benID := s.signupOnboarded(t, "ben")

	rr := s.do(t, http.MethodGet, "/api/users", anaSession, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	recommended := decodeBody[[]models.UserSummary](t, rr)
	require.Len(t, recommended, 1)
	assert.Equal(t, benID, recommended[0].ID)

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+benID, anaSession, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	request := decodeBody[models.FriendRequest](t, rr)
	assert.Equal(t, models.FriendRequestStatusPending, request.Status)

	// pending either way blocks a second request
	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+anaID, benSession, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "REQUEST_ALREADY_EXISTS", decodeBody[ErrorResponse](t, rr).Kind)

	rr = s.do(t, http.MethodGet, "/api/users/outgoing-friend-requests", anaSession, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	outgoing := decodeBody[[]models.FriendRequestWithRecipient](t, rr)
	require.Len(t, outgoing, 1)
	assert.Equal(t, benID, outgoing[0].Recipient.ID)

	rr = s.do(t, http.MethodGet, "/api/users/friend-requests", benSession, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	lists := decodeBody[FriendRequestsResponse](t, rr)
	require.Len(t, lists.IncomingReqs, 1)
	assert.Equal(t, anaID, lists.IncomingReqs[0].Sender.ID)
	assert.Empty(t, lists.AcceptedReqs)

	// only the recipient may accept
	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+request.ID+"/accept", anaSession, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", decodeBody[ErrorResponse](t, rr).Kind)

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+request.ID+"/accept", benSession, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+request.ID+"/accept", benSession, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	for _, tc := range []struct {
		session, friendID string
	}{{anaSession, benID}, {benSession, anaID}} {
		rr = s.do(t, http.MethodGet, "/api/users/friends", tc.session, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		friends := decodeBody[[]models.UserSummary](t, rr)
		require.Len(t, friends, 1)
		assert.Equal(t, tc.friendID, friends[0].ID)
	}

	rr = s.do(t, http.MethodGet, "/api/users/friend-requests", anaSession, nil)
	lists = decodeBody[FriendRequestsResponse](t, rr)
	require.Len(t, lists.AcceptedReqs, 1)
	assert.Equal(t, benID, lists.AcceptedReqs[0].Recipient.ID)

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/"+benID, anaSession, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_FRIENDS", decodeBody[ErrorResponse](t, rr).Kind)

	rr = s.do(t, http.MethodGet, "/api/users", anaSession, nil)
	assert.Empty(t, decodeBody[[]models.UserSummary](t, rr))
}

func TestFriendRequestErrors(t *testing.T) {
	s := newTestServer(t, "")
	anaSession, anaID := s.signupOnboarded(t, "ana")

	rr := s.do(t, http.MethodPost, "/api/users/friend-request/"+anaID, anaSession, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/missing-user", anaSession, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/users/friend-request/missing-request/accept", anaSession, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, "")
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodPost, "/api/auth/onboarding"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/friends"},
		{http.MethodGet, "/api/users/friend-requests"},
		{http.MethodGet, "/api/chat/token"},
	} {
		rr := s.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
		assert.Equal(t, "UNAUTHENTICATED", decodeBody[ErrorResponse](t, rr).Kind, route.path)

		rr = s.do(t, route.method, route.path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t, "")
	session, _ := s.signupOnboarded(t, "ana")

	rr := s.do(t, http.MethodPost, "/api/auth/logout", session, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := sessionCookie(t, rr)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestChatToken(t *testing.T) {
	s := newTestServer(t, "")
	session, id := s.signupOnboarded(t, "ana")

	rr := s.do(t, http.MethodGet, "/api/chat/token", session, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "chat-"+id, decodeBody[map[string]string](t, rr)["token"])
}

func TestOnboardingRollsBackWhenMirrorFails(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Ana", Email: "ana@example.com", Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	session := sessionCookie(t, rr).Value

	s.chat.mu.Lock()
	s.chat.upsertErr = errors.New("stream unavailable")
	s.chat.mu.Unlock()

	rr = s.do(t, http.MethodPost, "/api/auth/onboarding", session, models.ProfileFields{
		NativeLanguage: "es", LearningLanguage: "en",
	})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "CHAT_PROVIDER_ERROR", decodeBody[ErrorResponse](t, rr).Kind)

	rr = s.do(t, http.MethodGet, "/api/auth/me", session, nil)
	assert.False(t, decodeBody[UserResponse](t, rr).User.IsOnboarded)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "")

	rr := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])

	rr = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestFrontendFallback(t *testing.T) {
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "app.js"), []byte("console.log(1)"), 0o644))
	s := newTestServer(t, dist)

	rr := s.do(t, http.MethodGet, "/friends", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "app</html>")

	rr = s.do(t, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "console.log")

	rr = s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
