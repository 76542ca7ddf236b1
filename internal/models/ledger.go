package models

import "time"

type EntryType string

const (
	EntryTypeEarn   EntryType = "earn"
	EntryTypeReset  EntryType = "reset"
	EntryTypeRedeem EntryType = "redeem"
)

// HistoryEntry is one line of an account's point ledger. Amount is signed.
type HistoryEntry struct {
	Type      EntryType `json:"type"`
	Amount    int64     `json:"point"`
	Partner   string    `json:"partner,omitempty"`
	BillCode  string    `json:"billCode,omitempty"`
	VoucherID string    `json:"voucher_id,omitempty"`
	GrantID   string    `json:"grant_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"date"`
}

type RedeemBillRequest struct {
	Identity string `json:"username"`
	Partner  string `json:"partner"`
	BillCode string `json:"billCode"`
	Point    int64  `json:"point"`
}

type RedeemBillResponse struct {
	Message  string `json:"message"`
	NewPoint int64  `json:"new_point"`
}

type ExchangeResponse struct {
	Message  string `json:"message"`
	NewPoint int64  `json:"new_point"`
	Grant    *Grant `json:"voucher"`
}
