package middleware

import (
	"encoding/json"
	"net/http"

	"lingua-go/internal/apperr"
)

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": apperr.PublicMessage(err),
		"kind":  string(kind),
	})
}
