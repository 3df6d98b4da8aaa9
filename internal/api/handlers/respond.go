package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scomapp/scom-be/internal/validation"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondInternal(w http.ResponseWriter) {
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondValidation(w http.ResponseWriter, errs []validation.FieldError) {
	respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
