package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"

	"lingua-go/internal/config"
)

// CORS wraps a handler with the configured cross-origin policy. Credentials
// must be allowed for the frontend to send the session cookie.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods(cfg.AllowedMethods),
		handlers.AllowedHeaders(cfg.AllowedHeaders),
		handlers.ExposedHeaders(cfg.ExposedHeaders),
		handlers.MaxAge(cfg.MaxAge),
	}
	if cfg.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	return handlers.CORS(corsOptions...)
}
