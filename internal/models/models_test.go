package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := map[string]string{
		"alice":           "alice",
		"  alice ":        "alice",
		"USERQR|alice":    "alice",
		" USERQR| alice ": "alice",
		"USERQR|":         "",
		"userqr|alice":    "userqr|alice",
		"a@example.com":   "a@example.com",
		"USERQR|USERQR|x": "USERQR|x",
	}
	for in, want := range tests {
		if got := NormalizeIdentity(in); got != want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVoucherExpired(t *testing.T) {
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v := &Voucher{ExpiresAt: expiry}

	if v.Expired(expiry.Add(-time.Nanosecond)) {
		t.Error("voucher expired before its expiry")
	}
	if !v.Expired(expiry) {
		t.Error("voucher not expired at its expiry instant")
	}
	if !v.Unlimited() {
		t.Error("zero maxPerUser should be unlimited")
	}
}

func TestAccountRoles(t *testing.T) {
	tests := []struct {
		role           UserRole
		admin, manager bool
	}{
		{RoleAdmin, true, true},
		{RoleManager, false, true},
		{RoleUser, false, false},
	}
	for _, tc := range tests {
		a := &Account{Role: tc.role}
		if a.IsAdmin() != tc.admin || a.IsManager() != tc.manager {
			t.Errorf("%s: IsAdmin=%v IsManager=%v", tc.role, a.IsAdmin(), a.IsManager())
		}
	}
	if UserRole("owner").Valid() {
		t.Error("unknown role reported valid")
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("redeem: %w", Invalid("point must be greater than zero"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("Invalid() does not match ErrInvalidInput")
	}
	if errors.Is(err, ErrDuplicateBill) {
		t.Fatal("Invalid() matches ErrDuplicateBill")
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("KindOf() = %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnavailable {
		t.Fatal("untyped error not reported as unavailable")
	}
}
