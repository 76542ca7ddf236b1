package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is satisfied by every directory backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store  Pinger
	driver string
	logger zerolog.Logger
}

func NewHealthHandler(store Pinger, driver string, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{store: store, driver: driver, logger: logger}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Str("driver", h.driver).Msg("Health check failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": h.driver,
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": h.driver,
	})
}
