package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"green-rewards/internal/models"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	respondWithJSON(w, code, errorResponse{Error: errorCode, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindPermission:
		return http.StatusForbidden
	case models.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

// respondWithServiceError writes a typed ledger error. Directory failures are
// logged and hidden behind a generic message.
func respondWithServiceError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var e *models.Error
	if !errors.As(err, &e) || e.Kind == models.KindUnavailable {
		logger.Error().Err(err).Msg("Directory unavailable")
		respondWithError(w, http.StatusServiceUnavailable, models.ErrUnavailable.Code, "Service temporarily unavailable")
		return
	}
	respondWithError(w, statusFor(e.Kind), e.Code, e.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
