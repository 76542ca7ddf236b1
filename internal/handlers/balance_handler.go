package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"green-rewards/internal/middleware"
	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

type BalanceHandler struct {
	balanceService *services.BalanceService
	logger         zerolog.Logger
}

func NewBalanceHandler(balanceService *services.BalanceService, logger zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

func (h *BalanceHandler) GetMyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	h.writeHistory(w, r, userID)
}

func (h *BalanceHandler) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, mux.Vars(r)["id"])
}

func (h *BalanceHandler) writeHistory(w http.ResponseWriter, r *http.Request, accountID string) {
	limit, offset := pageParams(r)
	history, err := h.balanceService.ListAccountHistory(r.Context(), accountID, limit, offset)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (h *BalanceHandler) ResetPoints(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPointsRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := middleware.GetUsername(r)
	prior, err := h.balanceService.ResetAccountPoints(r.Context(), mux.Vars(r)["id"], actor, req.Reason)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Points reset",
		"prior_point": prior,
	})
}
