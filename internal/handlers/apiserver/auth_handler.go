package apiserver

import (
	"log/slog"
	"net/http"

	"lingua-go/internal/auth"
	"lingua-go/internal/middleware"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	authService  services.AuthService
	userService  services.UserService
	sessions     *auth.SessionManager
	cookieName   string
	secureCookie bool
	log          *slog.Logger
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(
	authService services.AuthService,
	userService services.UserService,
	sessions *auth.SessionManager,
	cookieName string,
	secureCookie bool,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		userService:  userService,
		sessions:     sessions,
		cookieName:   cookieName,
		secureCookie: secureCookie,
		log:          log,
	}
}

// SignupRequest 是用户注册请求的结构体。
type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 是用户登录请求的结构体。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse wraps the user returned by the auth endpoints.
type UserResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}

	token, user, err := h.authService.Signup(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusCreated, UserResponse{Success: true, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSONResponse(w, http.StatusOK, UserResponse{Success: true, User: user})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so the only
// effect is telling the client to drop the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.secureCookie,
	})
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"success": true, "message": "logout successful"})
}

// Onboard handles POST /api/auth/onboarding.
func (h *AuthHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	var fields models.ProfileFields
	if err := decodeJSON(r, &fields); err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}

	user, err := h.userService.CompleteOnboarding(r.Context(), userID, fields)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, UserResponse{Success: true, User: user})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, r, h.log, auth.ErrUnauthenticated)
		return
	}

	user, err := h.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeJSONError(w, r, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, UserResponse{Success: true, User: user})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.Expiry().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.secureCookie,
	})
}
