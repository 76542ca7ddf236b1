package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"green-rewards/internal/middleware"
	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

type UserHandler struct {
	userService    *services.UserService
	voucherService *services.VoucherService
	logger         zerolog.Logger
}

func NewUserHandler(userService *services.UserService, voucherService *services.VoucherService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService:    userService,
		voucherService: voucherService,
		logger:         logger,
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	account, err := h.userService.GetAccount(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	account.History = nil
	respondWithJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *UserHandler) MyVouchers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	grants, err := h.voucherService.ListAccountVouchers(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	if grants == nil {
		grants = []*models.Grant{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"vouchers": grants})
}

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.userService.ListAccounts(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	out := make([]models.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		a.History = nil
		a.UsedBills = nil
		out = append(out, models.NewAccountResponse(a))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	account, err := h.userService.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	actor, _ := middleware.GetUsername(r)
	if err := h.userService.UpdateRole(r.Context(), mux.Vars(r)["id"], req.Role, actor); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "Role updated"})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUsername(r)
	if err := h.userService.DeleteAccount(r.Context(), mux.Vars(r)["id"], actor); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{Message: "User deleted"})
}
