package models

import "time"

type VoucherStatus string

const (
	VoucherStatusAvailable VoucherStatus = "available"
	VoucherStatusInactive  VoucherStatus = "inactive"
)

type Voucher struct {
	ID         string        `json:"_id"`
	Partner    string        `json:"partner"`
	Cost       int64         `json:"point"`
	MaxPerUser int           `json:"maxPerUser"`
	ExpiresAt  time.Time     `json:"expired"`
	Status     VoucherStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Expired reports whether the voucher can no longer be exchanged at now.
func (v *Voucher) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// Unlimited reports whether the voucher has no per-account quota.
func (v *Voucher) Unlimited() bool {
	return v.MaxPerUser == 0
}

type GrantStatus string

const (
	GrantStatusUsable GrantStatus = "usable"
	GrantStatusUsed   GrantStatus = "used"
)

// Grant is a voucher issued to an account by an exchange.
type Grant struct {
	ID          string      `json:"_id"`
	AccountID   string      `json:"account_id"`
	Username    string      `json:"username"`
	VoucherID   string      `json:"voucher_id"`
	Partner     string      `json:"partner"`
	Cost        int64       `json:"point"`
	Status      GrantStatus `json:"status"`
	ExchangedAt time.Time   `json:"exchanged_at"`
	UsedAt      *time.Time  `json:"used_at"`
}

type CreateVoucherRequest struct {
	Partner    string    `json:"partner"`
	Point      int64     `json:"point"`
	MaxPerUser int       `json:"maxPerUser"`
	Expired    time.Time `json:"expired"`
}

// UpdateVoucherRequest carries optional fields; nil means unchanged.
type UpdateVoucherRequest struct {
	Partner    *string        `json:"partner,omitempty"`
	Point      *int64         `json:"point,omitempty"`
	MaxPerUser *int           `json:"maxPerUser,omitempty"`
	Expired    *time.Time     `json:"expired,omitempty"`
	Status     *VoucherStatus `json:"status,omitempty"`
}

type VoucherStats struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
	Exchanged int64 `json:"exchanged"`
	Used      int64 `json:"used"`
}
