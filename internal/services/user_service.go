package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

type UserService struct {
	accounts store.AccountStore
	balances *BalanceService
	logger   zerolog.Logger
	now      func() time.Time
}

func NewUserService(accounts store.AccountStore, balances *BalanceService, logger zerolog.Logger) *UserService {
	return &UserService{
		accounts: accounts,
		balances: balances,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword returns the bcrypt hash stored for an account password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	if username == "" || email == "" || phone == "" || req.Password == "" {
		return nil, models.Invalid("username, email, phone and password are required")
	}
	if strings.HasPrefix(username, models.QRPrefix) {
		return nil, models.Invalid("username cannot start with %q", models.QRPrefix)
	}
	// Login and scan identifiers must resolve to one account, so a username
	// may not equal another account's email or phone, and vice versa. The
	// directory enforces the same rule atomically on insert.
	for _, identity := range store.Identities(&models.Account{Username: username, Email: email, Phone: phone}) {
		_, err := s.accounts.FindAccountByIdentity(ctx, identity)
		if err == nil {
			return nil, models.ErrAccountExists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, translate("check identity", err, nil)
		}
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, models.Unavailable("hash password", err)
	}

	now := s.now()
	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, models.ErrAccountExists
		}
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, translate("create account", err, nil)
	}

	s.logger.Info().Str("user_id", account.ID).Str("username", account.Username).Msg("User registered successfully")
	return account, nil
}

// Authenticate checks the password of the account matching identifier by
// username, email or phone.
func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.Account, error) {
	identifier := strings.TrimSpace(req.Identity())
	if identifier == "" || req.Password == "" {
		return nil, models.Invalid("identifier and password are required")
	}

	account, err := s.accounts.FindAccountByIdentity(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, translate("find account", err, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("identifier", identifier).Msg("Failed authentication attempt")
		return nil, models.ErrInvalidCredentials
	}

	s.logger.Info().Str("user_id", account.ID).Str("username", account.Username).Msg("User authenticated successfully")
	return account, nil
}

func (s *UserService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		return nil, translate("find account", err, models.ErrAccountNotFound)
	}
	return account, nil
}

func (s *UserService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, translate("list accounts", err, nil)
	}
	return accounts, nil
}

// UpdateRole changes the role of a non-admin account.
func (s *UserService) UpdateRole(ctx context.Context, id, role, actor string) error {
	newRole := models.UserRole(strings.ToLower(strings.TrimSpace(role)))
	if !newRole.Valid() {
		return models.Invalid("invalid role %q", role)
	}

	if err := s.accounts.UpdateAccountRole(ctx, id, newRole); err != nil {
		s.logger.Warn().Err(err).Str("user_id", id).Str("new_role", string(newRole)).Msg("Role update rejected")
		return translate("update role", err, models.ErrAccountNotFound)
	}

	s.logger.Info().Str("user_id", id).Str("new_role", string(newRole)).Str("actor", actor).Msg("User role updated")
	return nil
}

// DeleteAccount removes a non-admin account and drops its balance lock.
func (s *UserService) DeleteAccount(ctx context.Context, id, actor string) error {
	unlock := s.balances.lockAccount(id)
	defer unlock()

	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("user_id", id).Msg("Account delete rejected")
		return translate("delete account", err, models.ErrAccountNotFound)
	}
	s.balances.forgetAccount(id)
	s.logger.Info().Str("user_id", id).Str("actor", actor).Msg("User deleted")
	return nil
}
