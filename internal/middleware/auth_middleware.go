package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"lingua-go/internal/auth"
	"lingua-go/internal/services"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware verifies the session token and attaches the caller's user ID
// to the request context. The token is read from the session cookie first and
// from an "Authorization: Bearer" header otherwise.
func AuthMiddleware(sessions *auth.SessionManager, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.Verify(tokenFromRequest(r, cookieName))
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequireOnboarded rejects callers who have not completed onboarding. It must
// run after AuthMiddleware.
func RequireOnboarded(users services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserIDFromContext(r.Context())
			if !ok {
				writeError(w, auth.ErrUnauthenticated)
				return
			}
			if _, err := users.RequireOnboarded(r.Context(), userID); err != nil {
				// a valid token for a user that no longer exists
				if errors.Is(err, services.ErrUserNotFound) {
					err = auth.ErrUnauthenticated
				}
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	headerParts := strings.SplitN(authHeader, " ", 2)
	if len(headerParts) == 2 && strings.EqualFold(headerParts[0], "bearer") {
		return strings.TrimSpace(headerParts[1])
	}
	return ""
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回空字符串和false。
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
