package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

type PartnerHandler struct {
	partnerService *services.PartnerService
	logger         zerolog.Logger
}

func NewPartnerHandler(partnerService *services.PartnerService, logger zerolog.Logger) *PartnerHandler {
	return &PartnerHandler{
		partnerService: partnerService,
		logger:         logger,
	}
}

// List returns active partners; ?all=true includes inactive ones.
func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	partners, err := h.partnerService.List(r.Context(), activeOnly)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	if partners == nil {
		partners = []*models.Partner{}
	}
	respondWithJSON(w, http.StatusOK, partners)
}

func (h *PartnerHandler) Names(w http.ResponseWriter, r *http.Request) {
	names, err := h.partnerService.Names(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

func (h *PartnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	partner, err := h.partnerService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, partner)
}

func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.PartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	partner, err := h.partnerService.Create(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, partner)
}

func (h *PartnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.PartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	partner, err := h.partnerService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, partner)
}

func (h *PartnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.partnerService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "Partner deactivated"})
}
