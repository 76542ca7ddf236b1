// Package store defines the directories the ledger reads and mutates.
//
// Every mutating method that touches an account balance is a single atomic
// operation in each backend: callers never read a balance and write it back.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"green-rewards/internal/models"
)

var (
	ErrNotFound            = errors.New("store: not found")
	ErrAlreadyExists       = errors.New("store: already exists")
	ErrDuplicateBill       = errors.New("store: bill code already used")
	ErrInsufficientBalance = errors.New("store: insufficient balance")
	ErrQuotaExceeded       = errors.New("store: voucher quota exceeded")
	ErrZeroBalance         = errors.New("store: balance already zero")
	ErrProtected           = errors.New("store: account is protected")
)

// BillCredit is the earn side of the ledger.
type BillCredit struct {
	BillCode string
	Partner  string
	Points   int64
	At       time.Time
}

// Exchange is the spend side of the ledger. Grant.ID must be set by the caller.
type Exchange struct {
	AccountID  string
	Grant      *models.Grant
	MaxPerUser int
	At         time.Time
}

type Reset struct {
	Actor  string
	Reason string
	At     time.Time
}

type VoucherFilter struct {
	AvailableOnly bool
	// SortByCost sorts ascending by cost; otherwise newest first.
	SortByCost bool
}

type AccountStore interface {
	// CreateAccount fails with ErrAlreadyExists when any of Identities(a)
	// already identifies another account.
	CreateAccount(ctx context.Context, a *models.Account) error
	// EnsureAccount inserts a only when no account with its username exists.
	EnsureAccount(ctx context.Context, a *models.Account) (bool, error)
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
	FindAccountByIdentity(ctx context.Context, identifier string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	// UpdateAccountRole fails with ErrProtected when the account is an admin.
	UpdateAccountRole(ctx context.Context, id string, role models.UserRole) error
	DeleteAccount(ctx context.Context, id string) error

	// CreditBill adds the bill to the used set, credits the points and
	// appends an earn entry, or fails with ErrDuplicateBill.
	CreditBill(ctx context.Context, accountID string, c BillCredit) (int64, error)
	// ResetBalance zeroes a non-admin balance and appends one reset entry.
	// It returns the prior balance.
	ResetBalance(ctx context.Context, accountID string, r Reset) (int64, error)
	ListHistory(ctx context.Context, accountID string, limit, offset int) ([]models.HistoryEntry, error)
}

type VoucherStore interface {
	CreateVoucher(ctx context.Context, v *models.Voucher) error
	FindVoucherByID(ctx context.Context, id string) (*models.Voucher, error)
	ListVouchers(ctx context.Context, f VoucherFilter) ([]*models.Voucher, error)
	UpdateVoucher(ctx context.Context, v *models.Voucher) error
	VoucherStats(ctx context.Context) (*models.VoucherStats, error)
}

type GrantStore interface {
	// ExchangeVoucher debits Grant.Cost only if the balance covers it and the
	// account holds fewer than MaxPerUser grants of the voucher (0 = unlimited),
	// then records the grant and a redeem entry. Returns the new balance.
	ExchangeVoucher(ctx context.Context, e Exchange) (int64, error)
	CountGrants(ctx context.Context, accountID, voucherID string) (int, error)
	ListGrantsByAccount(ctx context.Context, accountID string) ([]*models.Grant, error)
	// MarkGrantUsed flips a usable grant to used, or returns ErrNotFound.
	MarkGrantUsed(ctx context.Context, grantID string, at time.Time) (*models.Grant, error)
}

type PartnerStore interface {
	CreatePartner(ctx context.Context, p *models.Partner) error
	// EnsurePartner inserts p only when no partner with its name exists.
	EnsurePartner(ctx context.Context, p *models.Partner) (bool, error)
	FindPartnerByID(ctx context.Context, id string) (*models.Partner, error)
	FindPartnerByName(ctx context.Context, name string) (*models.Partner, error)
	ListPartners(ctx context.Context, activeOnly bool) ([]*models.Partner, error)
	UpdatePartner(ctx context.Context, p *models.Partner) error
}

type Store interface {
	AccountStore
	VoucherStore
	GrantStore
	PartnerStore

	Ping(ctx context.Context) error
	Close() error
}

// Identities returns the distinct non-empty login identifiers of a. Usernames,
// emails and phones share one namespace: no value may identify two accounts.
func Identities(a *models.Account) []string {
	out := make([]string, 0, 3)
	for _, v := range []string{a.Username, a.Email, a.Phone} {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Page clamps a history page request.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
