package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

type VoucherHandler struct {
	voucherService *services.VoucherService
	logger         zerolog.Logger
}

func NewVoucherHandler(voucherService *services.VoucherService, logger zerolog.Logger) *VoucherHandler {
	return &VoucherHandler{
		voucherService: voucherService,
		logger:         logger,
	}
}

func (h *VoucherHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.voucherService.ListAvailable(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	h.writeVouchers(w, vouchers)
}

func (h *VoucherHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.voucherService.ListAll(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	h.writeVouchers(w, vouchers)
}

func (h *VoucherHandler) writeVouchers(w http.ResponseWriter, vouchers []*models.Voucher) {
	if vouchers == nil {
		vouchers = []*models.Voucher{}
	}
	respondWithJSON(w, http.StatusOK, vouchers)
}

func (h *VoucherHandler) Get(w http.ResponseWriter, r *http.Request) {
	voucher, err := h.voucherService.GetVoucher(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, voucher)
}

func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	voucher, err := h.voucherService.CreateVoucher(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, voucher)
}

func (h *VoucherHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	voucher, err := h.voucherService.UpdateVoucher(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, voucher)
}

func (h *VoucherHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.voucherService.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
