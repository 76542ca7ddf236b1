package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"green-rewards/internal/middleware"
	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

// TransactionHandler exposes the point-moving ledger operations: bill
// credits, voucher exchanges and grant usage.
type TransactionHandler struct {
	redemptionService *services.RedemptionService
	voucherService    *services.VoucherService
	logger            zerolog.Logger
}

func NewTransactionHandler(redemptionService *services.RedemptionService, voucherService *services.VoucherService, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		redemptionService: redemptionService,
		voucherService:    voucherService,
		logger:            logger,
	}
}

// AddPoint credits a scanned bill to the account encoded in the user QR.
func (h *TransactionHandler) AddPoint(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	balance, err := h.redemptionService.RedeemBill(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, models.RedeemBillResponse{
		Message:  "Points added",
		NewPoint: balance,
	})
}

// Exchange spends the caller's points on the voucher in the path.
func (h *TransactionHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	balance, grant, err := h.voucherService.ExchangeVoucherForAccount(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, models.ExchangeResponse{
		Message:  "Voucher exchanged",
		NewPoint: balance,
		Grant:    grant,
	})
}

func (h *TransactionHandler) UseGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.voucherService.MarkVoucherUsed(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Voucher marked as used",
		"voucher": grant,
	})
}
