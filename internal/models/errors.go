package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation_error"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindPermission  ErrorKind = "permission_denied"
	KindUnavailable ErrorKind = "dependency_unavailable"
	KindAuth        ErrorKind = "authentication_failed"
)

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so that sentinel errors below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidInput        = &Error{Kind: KindValidation, Code: "invalid_input", Message: "invalid input"}
	ErrAccountNotFound     = &Error{Kind: KindNotFound, Code: "account_not_found", Message: "account not found"}
	ErrVoucherNotFound     = &Error{Kind: KindNotFound, Code: "voucher_not_found", Message: "voucher not found"}
	ErrGrantNotFound       = &Error{Kind: KindNotFound, Code: "grant_not_found", Message: "voucher grant not found or already used"}
	ErrPartnerNotFound     = &Error{Kind: KindNotFound, Code: "partner_not_found", Message: "partner not found"}
	ErrDuplicateBill       = &Error{Kind: KindConflict, Code: "duplicate_bill", Message: "bill code has already been redeemed"}
	ErrVoucherUnavailable  = &Error{Kind: KindConflict, Code: "voucher_unavailable", Message: "voucher is not available"}
	ErrVoucherExpired      = &Error{Kind: KindConflict, Code: "voucher_expired", Message: "voucher has expired"}
	ErrInsufficientBalance = &Error{Kind: KindConflict, Code: "insufficient_balance", Message: "not enough points"}
	ErrQuotaExceeded       = &Error{Kind: KindConflict, Code: "quota_exceeded", Message: "voucher exchange limit reached"}
	ErrZeroBalance         = &Error{Kind: KindConflict, Code: "zero_balance", Message: "account balance is already zero"}
	ErrAccountExists       = &Error{Kind: KindConflict, Code: "account_exists", Message: "username, email or phone already registered"}
	ErrPartnerExists       = &Error{Kind: KindConflict, Code: "partner_exists", Message: "partner name already exists"}
	ErrProtectedAccount    = &Error{Kind: KindPermission, Code: "protected_account", Message: "admin accounts cannot be modified"}
	ErrInvalidCredentials  = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "invalid identifier or password"}
	ErrUnavailable         = &Error{Kind: KindUnavailable, Code: "dependency_unavailable", Message: "directory unavailable"}
)

// Invalid returns a validation error with a specific message.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an unexpected directory failure.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: ErrUnavailable.Code, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindUnavailable for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}
