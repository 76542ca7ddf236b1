package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

// BalanceService owns per-account serialization and the administrative side
// of the ledger.
type BalanceService struct {
	accounts store.AccountStore
	logger   zerolog.Logger
	mu       sync.Map
	now      func() time.Time
}

func NewBalanceService(accounts store.AccountStore, logger zerolog.Logger) *BalanceService {
	return &BalanceService{
		accounts: accounts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *BalanceService) getMutex(accountID string) *sync.Mutex {
	mu, _ := s.mu.LoadOrStore(accountID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lockAccount serializes balance mutations for one account inside this process.
// The directory's conditional updates enforce the same rules across processes.
func (s *BalanceService) lockAccount(accountID string) func() {
	mu := s.getMutex(accountID)
	mu.Lock()
	return mu.Unlock
}

// forgetAccount drops the mutex of a deleted account. Goroutines already
// holding or waiting on it finish against the directory, which reports the
// account as missing.
func (s *BalanceService) forgetAccount(accountID string) {
	s.mu.Delete(accountID)
}

func (s *BalanceService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return 0, translate("fetch balance", err, models.ErrAccountNotFound)
	}
	return account.Balance, nil
}

// ResetAccountPoints zeroes the balance of a non-admin account and returns the
// balance it had.
func (s *BalanceService) ResetAccountPoints(ctx context.Context, accountID, actor, reason string) (int64, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, models.Invalid("account id is required")
	}

	unlock := s.lockAccount(accountID)
	defer unlock()

	prior, err := s.accounts.ResetBalance(ctx, accountID, store.Reset{
		Actor:  actor,
		Reason: strings.TrimSpace(reason),
		At:     s.now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Str("actor", actor).Msg("Point reset rejected")
		return 0, translate("reset balance", err, models.ErrAccountNotFound)
	}

	s.logger.Info().
		Str("account_id", accountID).
		Str("actor", actor).
		Int64("prior_balance", prior).
		Msg("Account points reset")
	return prior, nil
}

func (s *BalanceService) ListAccountHistory(ctx context.Context, accountID string, limit, offset int) ([]models.HistoryEntry, error) {
	history, err := s.accounts.ListHistory(ctx, accountID, limit, offset)
	if err != nil {
		return nil, translate("list history", err, models.ErrAccountNotFound)
	}
	return history, nil
}
