package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

// RedemptionService credits points for scanned partner bills, once per bill.
type RedemptionService struct {
	accounts       store.AccountStore
	partners       *PartnerService
	balanceService *BalanceService
	logger         zerolog.Logger
	now            func() time.Time
}

func NewRedemptionService(accounts store.AccountStore, partners *PartnerService, balanceService *BalanceService, logger zerolog.Logger) *RedemptionService {
	return &RedemptionService{
		accounts:       accounts,
		partners:       partners,
		balanceService: balanceService,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// RedeemBill credits req.Point to the account named by req.Identity and
// returns the new balance. A bill code already used by the account fails with
// models.ErrDuplicateBill and leaves the balance untouched.
func (s *RedemptionService) RedeemBill(ctx context.Context, req *models.RedeemBillRequest) (int64, error) {
	identity := models.NormalizeIdentity(req.Identity)
	partnerRef := strings.TrimSpace(req.Partner)
	billCode := strings.TrimSpace(req.BillCode)

	switch {
	case identity == "":
		return 0, models.Invalid("username is required")
	case partnerRef == "":
		return 0, models.Invalid("partner is required")
	case billCode == "":
		return 0, models.Invalid("billCode is required")
	case req.Point <= 0:
		return 0, models.Invalid("point must be greater than zero")
	}

	account, err := s.accounts.FindAccountByIdentity(ctx, identity)
	if err != nil {
		return 0, translate("find account", err, models.ErrAccountNotFound)
	}

	partner := s.partners.DisplayName(ctx, partnerRef)

	unlock := s.balanceService.lockAccount(account.ID)
	defer unlock()

	balance, err := s.accounts.CreditBill(ctx, account.ID, store.BillCredit{
		BillCode: billCode,
		Partner:  partner,
		Points:   req.Point,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("account_id", account.ID).
			Str("bill_code", billCode).
			Msg("Bill redemption rejected")
		return 0, translate("credit bill", err, models.ErrAccountNotFound)
	}

	s.logger.Info().
		Str("account_id", account.ID).
		Str("partner", partner).
		Str("bill_code", billCode).
		Int64("points", req.Point).
		Int64("balance", balance).
		Msg("Bill redeemed")
	return balance, nil
}
