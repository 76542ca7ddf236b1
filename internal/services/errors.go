package services

import (
	"errors"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

// translate maps a directory error onto the ledger taxonomy. notFound is the
// error reported for store.ErrNotFound in the context of op.
func translate(op string, err error, notFound *models.Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, store.ErrDuplicateBill):
		return models.ErrDuplicateBill
	case errors.Is(err, store.ErrInsufficientBalance):
		return models.ErrInsufficientBalance
	case errors.Is(err, store.ErrQuotaExceeded):
		return models.ErrQuotaExceeded
	case errors.Is(err, store.ErrZeroBalance):
		return models.ErrZeroBalance
	case errors.Is(err, store.ErrProtected):
		return models.ErrProtectedAccount
	}
	var typed *models.Error
	if errors.As(err, &typed) {
		return err
	}
	return models.Unavailable(op, err)
}
