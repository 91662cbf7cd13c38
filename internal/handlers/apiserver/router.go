package apiserver

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"lingua-go/internal/auth"
	"lingua-go/internal/middleware"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
)

// RouterConfig collects what the HTTP surface needs.
type RouterConfig struct {
	DB           *gorm.DB
	Sessions     *auth.SessionManager
	CookieName   string
	SecureCookie bool
	// FrontendDist, when set, is served for every non-API path.
	FrontendDist string

	AuthService   services.AuthService
	UserService   services.UserService
	FriendService services.FriendRequestService
	ChatService   services.ChatService

	Log *slog.Logger
}

// NewRouter wires handlers and middleware into a gorilla/mux router.
func NewRouter(cfg RouterConfig) *mux.Router {
	authHandler := NewAuthHandler(cfg.AuthService, cfg.UserService, cfg.Sessions, cfg.CookieName, cfg.SecureCookie, cfg.Log)
	userHandler := NewUserHandler(cfg.FriendService, cfg.Log)
	friendReqHandler := NewFriendRequestHandler(cfg.FriendService, cfg.Log)
	chatHandler := NewChatHandler(cfg.ChatService, cfg.Log)

	authMW := middleware.AuthMiddleware(cfg.Sessions, cfg.CookieName)
	onboardedMW := middleware.RequireOnboarded(cfg.UserService)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(cfg.Log))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(cfg.DB)).Methods(http.MethodGet)

	// 认证路由
	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/signup", authHandler.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	authRouter.Handle("/onboarding", authMW(http.HandlerFunc(authHandler.Onboard))).Methods(http.MethodPost)
	authRouter.Handle("/me", authMW(http.HandlerFunc(authHandler.Me))).Methods(http.MethodGet)

	// 用户与好友路由，需要登录并完成引导
	userRouter := r.PathPrefix("/api/users").Subrouter()
	userRouter.Use(authMW, onboardedMW)
	userRouter.HandleFunc("", userHandler.RecommendedUsersHandler).Methods(http.MethodGet)
	userRouter.HandleFunc("/friends", userHandler.ListFriendsHandler).Methods(http.MethodGet)
	userRouter.HandleFunc("/friend-request/{id}", friendReqHandler.SendFriendRequestHandler).Methods(http.MethodPost)
	userRouter.HandleFunc("/friend-request/{id}/accept", friendReqHandler.AcceptFriendRequestHandler).Methods(http.MethodPost)
	userRouter.HandleFunc("/friend-requests", friendReqHandler.ListFriendRequestsHandler).Methods(http.MethodGet)
	userRouter.HandleFunc("/outgoing-friend-requests", friendReqHandler.ListOutgoingRequestsHandler).Methods(http.MethodGet)

	chatRouter := r.PathPrefix("/api/chat").Subrouter()
	chatRouter.Use(authMW)
	chatRouter.HandleFunc("/token", chatHandler.TokenHandler).Methods(http.MethodGet)

	if cfg.FrontendDist != "" {
		r.PathPrefix("/").Handler(spaHandler(cfg.FrontendDist))
		cfg.Log.Info("serving frontend", "dist", cfg.FrontendDist)
	}
	return r
}

func healthHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := storage.Ping(ctx, db); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// spaHandler serves files from dist and falls back to index.html so client
// side routes resolve. /api paths never fall back.
func spaHandler(dist string) http.Handler {
	fileServer := http.FileServer(http.Dir(dist))
	indexPath := filepath.Join(dist, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		potentialFilePath := filepath.Join(dist, filepath.Clean("/"+r.URL.Path))
		if fileInfo, err := os.Stat(potentialFilePath); err == nil && !fileInfo.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	})
}
