package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store/memory"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type ledger struct {
	store       *memory.Store
	balances    *BalanceService
	partners    *PartnerService
	redemptions *RedemptionService
	vouchers    *VoucherService
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	st := memory.New()
	logger := zerolog.Nop()

	l := &ledger{store: st}
	l.balances = NewBalanceService(st, logger)
	l.partners = NewPartnerService(st, logger)
	l.redemptions = NewRedemptionService(st, l.partners, l.balances, logger)
	l.vouchers = NewVoucherService(st, l.balances, logger)

	clock := func() time.Time { return fixedNow }
	l.balances.now = clock
	l.partners.now = clock
	l.redemptions.now = clock
	l.vouchers.now = clock
	return l
}

func (l *ledger) addAccount(t *testing.T, username string, role models.UserRole, balance int64) *models.Account {
	t.Helper()
	a := &models.Account{
		ID:        "id-" + username,
		Username:  username,
		Email:     username + "@example.com",
		Phone:     "phone-" + username,
		Role:      role,
		Balance:   balance,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	if err := l.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount(%s) error = %v", username, err)
	}
	return a
}

func (l *ledger) addVoucher(t *testing.T, cost int64, maxPerUser int, expires time.Time) *models.Voucher {
	t.Helper()
	v, err := l.vouchers.CreateVoucher(context.Background(), &models.CreateVoucherRequest{
		Partner:    "Green Mart",
		Point:      cost,
		MaxPerUser: maxPerUser,
		Expired:    expires,
	})
	if err != nil {
		t.Fatalf("CreateVoucher() error = %v", err)
	}
	return v
}

func (l *ledger) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := l.balances.GetBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBalance(%s) error = %v", id, err)
	}
	return b
}

func TestRedeemBill(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 100)
	if _, err := l.partners.Create(ctx, &models.PartnerRequest{Name: strPtr("Green Mart")}); err != nil {
		t.Fatalf("Create partner error = %v", err)
	}

	balance, err := l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
		Identity: "USERQR|alice",
		Partner:  "Green Mart",
		BillCode: "B1",
		Point:    20,
	})
	if err != nil {
		t.Fatalf("RedeemBill() error = %v", err)
	}
	if balance != 120 {
		t.Fatalf("RedeemBill() balance = %d, want 120", balance)
	}

	_, err = l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
		Identity: "alice",
		Partner:  "Green Mart",
		BillCode: "B1",
		Point:    20,
	})
	if !errors.Is(err, models.ErrDuplicateBill) {
		t.Fatalf("second RedeemBill() error = %v, want ErrDuplicateBill", err)
	}
	if got := l.balance(t, alice.ID); got != 120 {
		t.Fatalf("balance after duplicate = %d, want 120", got)
	}

	history, err := l.balances.ListAccountHistory(ctx, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListAccountHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	e := history[0]
	if e.Type != models.EntryTypeEarn || e.Amount != 20 || e.BillCode != "B1" || e.Partner != "Green Mart" {
		t.Fatalf("unexpected earn entry %+v", e)
	}
}

func TestRedeemBillResolvesPartnerID(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 0)
	p, err := l.partners.Create(ctx, &models.PartnerRequest{Name: strPtr("Eco Cafe")})
	if err != nil {
		t.Fatalf("Create partner error = %v", err)
	}

	if _, err := l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
		Identity: alice.Email, Partner: p.ID, BillCode: "X", Point: 5,
	}); err != nil {
		t.Fatalf("RedeemBill() error = %v", err)
	}
	if _, err := l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
		Identity: alice.Phone, Partner: "Unknown Shop", BillCode: "Y", Point: 5,
	}); err != nil {
		t.Fatalf("RedeemBill() error = %v", err)
	}

	history, _ := l.balances.ListAccountHistory(ctx, alice.ID, 0, 0)
	if history[1].Partner != "Eco Cafe" {
		t.Errorf("partner id resolved to %q, want Eco Cafe", history[1].Partner)
	}
	if history[0].Partner != "Unknown Shop" {
		t.Errorf("unknown partner recorded as %q, want raw reference", history[0].Partner)
	}
}

func TestRedeemBillValidation(t *testing.T) {
	l := newLedger(t)
	l.addAccount(t, "alice", models.RoleUser, 0)

	tests := []struct {
		name string
		req  models.RedeemBillRequest
		want *models.Error
	}{
		{"missing identity", models.RedeemBillRequest{Partner: "P", BillCode: "B", Point: 1}, models.ErrInvalidInput},
		{"qr prefix only", models.RedeemBillRequest{Identity: "USERQR|", Partner: "P", BillCode: "B", Point: 1}, models.ErrInvalidInput},
		{"missing partner", models.RedeemBillRequest{Identity: "alice", BillCode: "B", Point: 1}, models.ErrInvalidInput},
		{"missing bill", models.RedeemBillRequest{Identity: "alice", Partner: "P", Point: 1}, models.ErrInvalidInput},
		{"zero points", models.RedeemBillRequest{Identity: "alice", Partner: "P", BillCode: "B"}, models.ErrInvalidInput},
		{"negative points", models.RedeemBillRequest{Identity: "alice", Partner: "P", BillCode: "B", Point: -5}, models.ErrInvalidInput},
		{"unknown account", models.RedeemBillRequest{Identity: "bob", Partner: "P", BillCode: "B", Point: 1}, models.ErrAccountNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.redemptions.RedeemBill(context.Background(), &tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("RedeemBill() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestConcurrentDuplicateBillCreditsOnce(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 0)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
				Identity: "alice", Partner: "P", BillCode: "SAME", Point: 10,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrDuplicateBill):
				duplicates++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || duplicates != workers-1 {
		t.Fatalf("succeeded = %d, duplicates = %d", succeeded, duplicates)
	}
	if got := l.balance(t, alice.ID); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func TestExchangeVoucherScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 120)
	v := l.addVoucher(t, 50, 1, fixedNow.Add(24*time.Hour))

	balance, grant, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID)
	if err != nil {
		t.Fatalf("ExchangeVoucher() error = %v", err)
	}
	if balance != 70 {
		t.Fatalf("ExchangeVoucher() balance = %d, want 70", balance)
	}
	if grant.Status != models.GrantStatusUsable || grant.AccountID != alice.ID || grant.VoucherID != v.ID {
		t.Fatalf("unexpected grant %+v", grant)
	}

	if _, _, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID); !errors.Is(err, models.ErrQuotaExceeded) {
		t.Fatalf("second ExchangeVoucher() error = %v, want ErrQuotaExceeded", err)
	}
	if got := l.balance(t, alice.ID); got != 70 {
		t.Fatalf("balance after quota failure = %d, want 70", got)
	}

	history, _ := l.balances.ListAccountHistory(ctx, alice.ID, 0, 0)
	if len(history) != 1 || history[0].Type != models.EntryTypeRedeem || history[0].Amount != -50 || history[0].GrantID != grant.ID {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestExchangeVoucherFailures(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addAccount(t, "alice", models.RoleUser, 40)

	expired := l.addVoucher(t, 10, 0, fixedNow)
	pricey := l.addVoucher(t, 50, 0, fixedNow.Add(time.Hour))
	inactive := l.addVoucher(t, 10, 0, fixedNow.Add(time.Hour))
	status := models.VoucherStatusInactive
	if _, err := l.vouchers.UpdateVoucher(ctx, inactive.ID, &models.UpdateVoucherRequest{Status: &status}); err != nil {
		t.Fatalf("UpdateVoucher() error = %v", err)
	}

	tests := []struct {
		name      string
		identity  string
		voucherID string
		want      *models.Error
	}{
		{"unknown account", "bob", pricey.ID, models.ErrAccountNotFound},
		{"unknown voucher", "alice", "missing", models.ErrVoucherNotFound},
		{"inactive voucher", "alice", inactive.ID, models.ErrVoucherUnavailable},
		{"expiry boundary", "alice", expired.ID, models.ErrVoucherExpired},
		{"insufficient balance", "alice", pricey.ID, models.ErrInsufficientBalance},
		{"missing voucher id", "alice", "", models.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := l.vouchers.ExchangeVoucher(ctx, tc.identity, tc.voucherID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ExchangeVoucher() error = %v, want %v", err, tc.want)
			}
			if got := l.balance(t, "id-alice"); got != 40 {
				t.Fatalf("balance = %d, want 40", got)
			}
		})
	}
}

func TestExchangeVoucherForAccount(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addAccount(t, "alice", models.RoleUser, 100)
	v := l.addVoucher(t, 30, 0, fixedNow.Add(time.Hour))

	if _, _, err := l.vouchers.ExchangeVoucherForAccount(ctx, "missing", v.ID); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("ExchangeVoucherForAccount(unknown) error = %v, want ErrAccountNotFound", err)
	}
	if _, _, err := l.vouchers.ExchangeVoucherForAccount(ctx, "", v.ID); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("ExchangeVoucherForAccount(empty) error = %v, want ErrInvalidInput", err)
	}
	balance, grant, err := l.vouchers.ExchangeVoucherForAccount(ctx, "id-alice", v.ID)
	if err != nil {
		t.Fatalf("ExchangeVoucherForAccount() error = %v", err)
	}
	if balance != 70 || grant.AccountID != "id-alice" || grant.Username != "alice" {
		t.Fatalf("balance = %d, grant = %+v", balance, grant)
	}
}

func TestExchangeVoucherUnlimited(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addAccount(t, "alice", models.RoleUser, 30)
	v := l.addVoucher(t, 10, 0, fixedNow.Add(time.Hour))

	for i := 0; i < 3; i++ {
		if _, _, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID); err != nil {
			t.Fatalf("exchange %d error = %v", i, err)
		}
	}
	if _, _, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID); !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("fourth exchange error = %v, want ErrInsufficientBalance", err)
	}
}

func TestConcurrentExchangeNeverOverspends(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 100)
	v := l.addVoucher(t, 30, 0, fixedNow.Add(time.Hour))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID)
			if err != nil && !errors.Is(err, models.ErrInsufficientBalance) {
				t.Errorf("unexpected error %v", err)
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3", succeeded)
	}
	if got := l.balance(t, alice.ID); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func TestConcurrentExchangeRespectsQuota(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 1000)
	v := l.addVoucher(t, 10, 2, fixedNow.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID)
			if err != nil && !errors.Is(err, models.ErrQuotaExceeded) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	grants, err := l.vouchers.ListAccountVouchers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListAccountVouchers() error = %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("grants = %d, want 2", len(grants))
	}
	if got := l.balance(t, alice.ID); got != 980 {
		t.Fatalf("balance = %d, want 980", got)
	}
}

func TestMarkVoucherUsed(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	l.addAccount(t, "alice", models.RoleUser, 50)
	v := l.addVoucher(t, 20, 0, fixedNow.Add(time.Hour))
	_, grant, err := l.vouchers.ExchangeVoucher(ctx, "alice", v.ID)
	if err != nil {
		t.Fatalf("ExchangeVoucher() error = %v", err)
	}

	used, err := l.vouchers.MarkVoucherUsed(ctx, grant.ID)
	if err != nil {
		t.Fatalf("MarkVoucherUsed() error = %v", err)
	}
	if used.Status != models.GrantStatusUsed || used.UsedAt == nil || !used.UsedAt.Equal(fixedNow) {
		t.Fatalf("unexpected grant after use %+v", used)
	}

	if _, err := l.vouchers.MarkVoucherUsed(ctx, grant.ID); !errors.Is(err, models.ErrGrantNotFound) {
		t.Fatalf("second MarkVoucherUsed() error = %v, want ErrGrantNotFound", err)
	}
	if _, err := l.vouchers.MarkVoucherUsed(ctx, "missing"); !errors.Is(err, models.ErrGrantNotFound) {
		t.Fatalf("MarkVoucherUsed(missing) error = %v, want ErrGrantNotFound", err)
	}

	stats, err := l.vouchers.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := models.VoucherStats{Total: 1, Available: 1, Exchanged: 1, Used: 1}
	if *stats != want {
		t.Fatalf("Stats() = %+v, want %+v", *stats, want)
	}
}

func TestResetAccountPoints(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 75)
	empty := l.addAccount(t, "empty", models.RoleUser, 0)
	root := l.addAccount(t, "root", models.RoleAdmin, 10)

	prior, err := l.balances.ResetAccountPoints(ctx, alice.ID, "admin", "fraud review")
	if err != nil {
		t.Fatalf("ResetAccountPoints() error = %v", err)
	}
	if prior != 75 {
		t.Fatalf("prior = %d, want 75", prior)
	}
	if got := l.balance(t, alice.ID); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	history, _ := l.balances.ListAccountHistory(ctx, alice.ID, 0, 0)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if e := history[0]; e.Type != models.EntryTypeReset || e.Amount != -75 || e.Reason != "fraud review" || e.Actor != "admin" {
		t.Fatalf("unexpected reset entry %+v", e)
	}

	tests := []struct {
		name string
		id   string
		want *models.Error
	}{
		{"zero balance", empty.ID, models.ErrZeroBalance},
		{"already reset", alice.ID, models.ErrZeroBalance},
		{"admin", root.ID, models.ErrProtectedAccount},
		{"unknown", "missing", models.ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.balances.ResetAccountPoints(ctx, tc.id, "admin", ""); !errors.Is(err, tc.want) {
				t.Fatalf("ResetAccountPoints() error = %v, want %v", err, tc.want)
			}
		})
	}

	if h, _ := l.balances.ListAccountHistory(ctx, empty.ID, 0, 0); len(h) != 0 {
		t.Fatalf("zero-balance reset wrote history %+v", h)
	}
	if got := l.balance(t, root.ID); got != 10 {
		t.Fatalf("admin balance = %d, want 10", got)
	}
}

func TestListAccountHistoryPaging(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	alice := l.addAccount(t, "alice", models.RoleUser, 0)
	for i := 0; i < 260; i++ {
		if _, err := l.redemptions.RedeemBill(ctx, &models.RedeemBillRequest{
			Identity: "alice", Partner: "P", BillCode: fmt.Sprintf("B%03d", i), Point: 1,
		}); err != nil {
			t.Fatalf("RedeemBill(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name          string
		limit, offset int
		wantLen       int
		wantFirstBill string
	}{
		{"default limit", 0, 0, 50, "B259"},
		{"capped limit", 1000, 0, 200, "B259"},
		{"offset", 10, 5, 10, "B254"},
		{"tail", 50, 250, 10, "B009"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			history, err := l.balances.ListAccountHistory(ctx, alice.ID, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("ListAccountHistory() error = %v", err)
			}
			if len(history) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(history), tc.wantLen)
			}
			if history[0].BillCode != tc.wantFirstBill {
				t.Fatalf("first = %s, want %s", history[0].BillCode, tc.wantFirstBill)
			}
		})
	}

	if _, err := l.balances.ListAccountHistory(ctx, "missing", 0, 0); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("ListAccountHistory(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestCreateVoucherValidation(t *testing.T) {
	l := newLedger(t)
	later := fixedNow.Add(time.Hour)

	tests := []struct {
		name string
		req  models.CreateVoucherRequest
	}{
		{"missing partner", models.CreateVoucherRequest{Point: 10, Expired: later}},
		{"zero cost", models.CreateVoucherRequest{Partner: "P", Expired: later}},
		{"negative quota", models.CreateVoucherRequest{Partner: "P", Point: 10, MaxPerUser: -1, Expired: later}},
		{"missing expiry", models.CreateVoucherRequest{Partner: "P", Point: 10}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.vouchers.CreateVoucher(context.Background(), &tc.req); !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("CreateVoucher() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestListAvailableSortsByCost(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	later := fixedNow.Add(time.Hour)
	l.addVoucher(t, 30, 0, later)
	l.addVoucher(t, 10, 0, later)
	hidden := l.addVoucher(t, 5, 0, later)
	status := models.VoucherStatusInactive
	if _, err := l.vouchers.UpdateVoucher(ctx, hidden.ID, &models.UpdateVoucherRequest{Status: &status}); err != nil {
		t.Fatalf("UpdateVoucher() error = %v", err)
	}

	vouchers, err := l.vouchers.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(vouchers) != 2 || vouchers[0].Cost != 10 || vouchers[1].Cost != 30 {
		t.Fatalf("unexpected vouchers %+v", vouchers)
	}

	all, _ := l.vouchers.ListAll(ctx)
	if len(all) != 3 {
		t.Fatalf("ListAll() len = %d, want 3", len(all))
	}
}

func strPtr(s string) *string { return &s }
