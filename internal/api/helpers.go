package api

import (
	"encoding/json"
	"net/http"

	"github.com/nmslite/switchaudit/internal/middleware"
)

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends a standardized error response
func sendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	middleware.SendError(w, r, status, code, message, details)
}

// decodeJSON decodes request body with error handling
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", nil)
		return input, false
	}
	return input, true
}
