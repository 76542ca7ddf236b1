package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

type VoucherService struct {
	store          store.Store
	balanceService *BalanceService
	logger         zerolog.Logger
	now            func() time.Time
}

func NewVoucherService(st store.Store, balanceService *BalanceService, logger zerolog.Logger) *VoucherService {
	return &VoucherService{
		store:          st,
		balanceService: balanceService,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *VoucherService) CreateVoucher(ctx context.Context, req *models.CreateVoucherRequest) (*models.Voucher, error) {
	partner := strings.TrimSpace(req.Partner)
	switch {
	case partner == "":
		return nil, models.Invalid("partner is required")
	case req.Point <= 0:
		return nil, models.Invalid("point must be greater than zero")
	case req.MaxPerUser < 0:
		return nil, models.Invalid("maxPerUser cannot be negative")
	case req.Expired.IsZero():
		return nil, models.Invalid("expired is required")
	}

	now := s.now()
	voucher := &models.Voucher{
		ID:         uuid.NewString(),
		Partner:    partner,
		Cost:       req.Point,
		MaxPerUser: req.MaxPerUser,
		ExpiresAt:  req.Expired.UTC(),
		Status:     models.VoucherStatusAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateVoucher(ctx, voucher); err != nil {
		return nil, translate("create voucher", err, nil)
	}

	s.logger.Info().
		Str("voucher_id", voucher.ID).
		Str("partner", voucher.Partner).
		Int64("cost", voucher.Cost).
		Int("max_per_user", voucher.MaxPerUser).
		Msg("Voucher created")
	return voucher, nil
}

func (s *VoucherService) UpdateVoucher(ctx context.Context, id string, req *models.UpdateVoucherRequest) (*models.Voucher, error) {
	voucher, err := s.GetVoucher(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Partner != nil {
		if strings.TrimSpace(*req.Partner) == "" {
			return nil, models.Invalid("partner cannot be empty")
		}
		voucher.Partner = strings.TrimSpace(*req.Partner)
	}
	if req.Point != nil {
		if *req.Point <= 0 {
			return nil, models.Invalid("point must be greater than zero")
		}
		voucher.Cost = *req.Point
	}
	if req.MaxPerUser != nil {
		if *req.MaxPerUser < 0 {
			return nil, models.Invalid("maxPerUser cannot be negative")
		}
		voucher.MaxPerUser = *req.MaxPerUser
	}
	if req.Expired != nil {
		voucher.ExpiresAt = req.Expired.UTC()
	}
	if req.Status != nil {
		if *req.Status != models.VoucherStatusAvailable && *req.Status != models.VoucherStatusInactive {
			return nil, models.Invalid("status must be available or inactive")
		}
		voucher.Status = *req.Status
	}
	voucher.UpdatedAt = s.now()

	if err := s.store.UpdateVoucher(ctx, voucher); err != nil {
		return nil, translate("update voucher", err, models.ErrVoucherNotFound)
	}
	s.logger.Info().Str("voucher_id", id).Str("status", string(voucher.Status)).Msg("Voucher updated")
	return voucher, nil
}

func (s *VoucherService) GetVoucher(ctx context.Context, id string) (*models.Voucher, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.Invalid("voucher id is required")
	}
	voucher, err := s.store.FindVoucherByID(ctx, id)
	if err != nil {
		return nil, translate("find voucher", err, models.ErrVoucherNotFound)
	}
	return voucher, nil
}

// ListAvailable returns exchangeable vouchers, cheapest first.
func (s *VoucherService) ListAvailable(ctx context.Context) ([]*models.Voucher, error) {
	vouchers, err := s.store.ListVouchers(ctx, store.VoucherFilter{AvailableOnly: true, SortByCost: true})
	if err != nil {
		return nil, translate("list vouchers", err, nil)
	}
	return vouchers, nil
}

// ListAll returns every voucher, newest first.
func (s *VoucherService) ListAll(ctx context.Context) ([]*models.Voucher, error) {
	vouchers, err := s.store.ListVouchers(ctx, store.VoucherFilter{})
	if err != nil {
		return nil, translate("list vouchers", err, nil)
	}
	return vouchers, nil
}

func (s *VoucherService) Stats(ctx context.Context) (*models.VoucherStats, error) {
	stats, err := s.store.VoucherStats(ctx)
	if err != nil {
		return nil, translate("voucher stats", err, nil)
	}
	return stats, nil
}

// ExchangeVoucher spends the points of the account the identity resolves to.
// Staff tooling uses it; callers acting for themselves go through
// ExchangeVoucherForAccount with their authenticated account id.
func (s *VoucherService) ExchangeVoucher(ctx context.Context, identity, voucherID string) (int64, *models.Grant, error) {
	identity = models.NormalizeIdentity(identity)
	if identity == "" {
		return 0, nil, models.Invalid("account and voucher_id are required")
	}

	account, err := s.store.FindAccountByIdentity(ctx, identity)
	if err != nil {
		return 0, nil, translate("find account", err, models.ErrAccountNotFound)
	}
	return s.ExchangeVoucherForAccount(ctx, account.ID, voucherID)
}

// ExchangeVoucherForAccount spends points on a voucher. Preconditions are
// checked in order (account, voucher, status, expiry, balance, quota) and the
// first failure is returned. The directory re-checks balance and quota
// atomically with the debit.
func (s *VoucherService) ExchangeVoucherForAccount(ctx context.Context, accountID, voucherID string) (int64, *models.Grant, error) {
	accountID = strings.TrimSpace(accountID)
	voucherID = strings.TrimSpace(voucherID)
	if accountID == "" || voucherID == "" {
		return 0, nil, models.Invalid("account and voucher_id are required")
	}

	unlock := s.balanceService.lockAccount(accountID)
	defer unlock()

	// Read under the lock so the checks see the latest balance.
	account, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return 0, nil, translate("find account", err, models.ErrAccountNotFound)
	}

	voucher, err := s.store.FindVoucherByID(ctx, voucherID)
	if err != nil {
		return 0, nil, translate("find voucher", err, models.ErrVoucherNotFound)
	}
	now := s.now()
	if voucher.Status != models.VoucherStatusAvailable {
		return 0, nil, models.ErrVoucherUnavailable
	}
	if voucher.Expired(now) {
		return 0, nil, models.ErrVoucherExpired
	}

	if account.Balance < voucher.Cost {
		return 0, nil, models.ErrInsufficientBalance
	}
	if !voucher.Unlimited() {
		count, err := s.store.CountGrants(ctx, account.ID, voucher.ID)
		if err != nil {
			return 0, nil, translate("count grants", err, nil)
		}
		if count >= voucher.MaxPerUser {
			return 0, nil, models.ErrQuotaExceeded
		}
	}

	grant := &models.Grant{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		Username:    account.Username,
		VoucherID:   voucher.ID,
		Partner:     voucher.Partner,
		Cost:        voucher.Cost,
		Status:      models.GrantStatusUsable,
		ExchangedAt: now,
	}
	balance, err := s.store.ExchangeVoucher(ctx, store.Exchange{
		AccountID:  account.ID,
		Grant:      grant,
		MaxPerUser: voucher.MaxPerUser,
		At:         now,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("account_id", account.ID).
			Str("voucher_id", voucher.ID).
			Msg("Voucher exchange rejected")
		return 0, nil, translate("exchange voucher", err, models.ErrAccountNotFound)
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("voucher_id", voucher.ID).
		Str("grant_id", grant.ID).
		Int64("cost", voucher.Cost).
		Int64("balance", balance).
		Msg("Voucher exchanged")
	return balance, grant, nil
}

// MarkVoucherUsed flips a usable grant to used. Unknown and already-used
// grants both report models.ErrGrantNotFound.
func (s *VoucherService) MarkVoucherUsed(ctx context.Context, grantID string) (*models.Grant, error) {
	if strings.TrimSpace(grantID) == "" {
		return nil, models.Invalid("grant id is required")
	}
	grant, err := s.store.MarkGrantUsed(ctx, grantID, s.now())
	if err != nil {
		return nil, translate("mark grant used", err, models.ErrGrantNotFound)
	}
	s.logger.Info().Str("grant_id", grantID).Str("account_id", grant.AccountID).Msg("Voucher marked used")
	return grant, nil
}

func (s *VoucherService) ListAccountVouchers(ctx context.Context, accountID string) ([]*models.Grant, error) {
	grants, err := s.store.ListGrantsByAccount(ctx, accountID)
	if err != nil {
		return nil, translate("list grants", err, nil)
	}
	return grants, nil
}
