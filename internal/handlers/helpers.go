package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/openfeeder/internal/common"
)

// Feed error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInvalidURL    = "INVALID_URL"
	ErrCodeInvalidParam  = "INVALID_PARAM"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		common.GetLogger().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteFeedError writes a feed error envelope
func WriteFeedError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"schema": "openfeeder/1.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}
