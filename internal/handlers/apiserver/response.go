package apiserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"lingua-go/internal/apperr"
)

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var errInvalidBody = apperr.Validation("invalid request body")

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		// headers are already sent, nothing useful can be done on failure
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeJSONError maps err to its status and writes the structured error body.
// Internal errors are logged and reach the client as a generic message.
func writeJSONError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSONResponse(w, status, ErrorResponse{Error: apperr.PublicMessage(err), Kind: string(kind)})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(errInvalidBody, err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
