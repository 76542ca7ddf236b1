package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/services"
)

type AuthHandler struct {
	userService *services.UserService
	authService *services.AuthService
	logger      zerolog.Logger
}

func NewAuthHandler(userService *services.UserService, authService *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("username", req.Username).Msg("Registration failed")
		respondWithServiceError(w, h.logger, err)
		return
	}

	h.respondWithTokens(w, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.userService.Authenticate(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	h.respondWithTokens(w, http.StatusOK, account)
}

// Refresh exchanges a refresh token for a new token pair. The account is
// reloaded so role changes take effect.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid refresh token")
		respondWithError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired refresh token")
		return
	}

	account, err := h.userService.GetAccount(r.Context(), claims.UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	h.respondWithTokens(w, http.StatusOK, account)
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, code int, account *models.Account) {
	token, err := h.authService.GenerateToken(account)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}
	refresh, err := h.authService.GenerateRefreshToken(account)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}

	respondWithJSON(w, code, models.AuthResponse{
		User:         models.NewAccountResponse(account),
		Token:        token,
		RefreshToken: refresh,
	})
}
