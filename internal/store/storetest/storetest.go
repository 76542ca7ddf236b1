// Package storetest checks the behaviour every store.Store backend shares.
// Backends call Run from their own tests; names are suffixed per run so the
// suite can share a database with other data.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

type fixture struct {
	st     store.Store
	suffix string
	now    time.Time
}

// Run executes the conformance suite against the store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, f *fixture)
	}{
		{"IdentityNamespace", testIdentityNamespace},
		{"EmptyContactsDoNotCollide", testEmptyContactsDoNotCollide},
		{"DeleteReleasesIdentities", testDeleteReleasesIdentities},
		{"CreditBillOnce", testCreditBillOnce},
		{"ConcurrentCreditBill", testConcurrentCreditBill},
		{"ExchangeConditions", testExchangeConditions},
		{"ResetBalance", testResetBalance},
		{"MarkGrantUsed", testMarkGrantUsed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, &fixture{
				st:     newStore(t),
				suffix: uuid.NewString()[:8],
				now:    time.Now().UTC().Truncate(time.Millisecond),
			})
		})
	}
}

func (f *fixture) name(base string) string {
	return base + "-" + f.suffix
}

func (f *fixture) account(t *testing.T, username string, role models.UserRole, balance int64) *models.Account {
	t.Helper()
	a := &models.Account{
		ID:        uuid.NewString(),
		Username:  f.name(username),
		Email:     f.name(username) + "@example.com",
		Phone:     f.name("phone-" + username),
		Role:      role,
		Balance:   balance,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	if err := f.st.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount(%s) error = %v", a.Username, err)
	}
	return a
}

func (f *fixture) voucher(t *testing.T, cost int64, maxPerUser int) *models.Voucher {
	t.Helper()
	v := &models.Voucher{
		ID:         uuid.NewString(),
		Partner:    f.name("Green Mart"),
		Cost:       cost,
		MaxPerUser: maxPerUser,
		ExpiresAt:  f.now.Add(time.Hour),
		Status:     models.VoucherStatusAvailable,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	if err := f.st.CreateVoucher(context.Background(), v); err != nil {
		t.Fatalf("CreateVoucher() error = %v", err)
	}
	return v
}

func (f *fixture) exchange(a *models.Account, v *models.Voucher) (int64, string, error) {
	g := &models.Grant{
		ID:          uuid.NewString(),
		AccountID:   a.ID,
		Username:    a.Username,
		VoucherID:   v.ID,
		Partner:     v.Partner,
		Cost:        v.Cost,
		Status:      models.GrantStatusUsable,
		ExchangedAt: f.now,
	}
	balance, err := f.st.ExchangeVoucher(context.Background(), store.Exchange{
		AccountID:  a.ID,
		Grant:      g,
		MaxPerUser: v.MaxPerUser,
		At:         f.now,
	})
	return balance, g.ID, err
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	a, err := f.st.FindAccountByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindAccountByID(%s) error = %v", id, err)
	}
	return a.Balance
}

func testIdentityNamespace(t *testing.T, f *fixture) {
	ctx := context.Background()
	alice := f.account(t, "alice", models.RoleUser, 0)

	tests := []struct {
		name string
		a    models.Account
	}{
		{"same username", models.Account{Username: alice.Username, Email: f.name("x") + "@example.com", Phone: f.name("x")}},
		{"username is another phone", models.Account{Username: alice.Phone, Email: f.name("y") + "@example.com", Phone: f.name("y")}},
		{"username is another email", models.Account{Username: alice.Email, Email: f.name("z") + "@example.com", Phone: f.name("z")}},
		{"phone is another username", models.Account{Username: f.name("bob"), Email: f.name("bob") + "@example.com", Phone: alice.Username}},
		{"email is another phone", models.Account{Username: f.name("carol"), Email: alice.Phone, Phone: f.name("carol")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := tc.a
			a.ID = uuid.NewString()
			a.Role = models.RoleUser
			a.CreatedAt, a.UpdatedAt = f.now, f.now
			if err := f.st.CreateAccount(ctx, &a); !errors.Is(err, store.ErrAlreadyExists) {
				t.Fatalf("CreateAccount() error = %v, want ErrAlreadyExists", err)
			}
		})
	}

	for _, identity := range []string{alice.Username, alice.Email, alice.Phone} {
		got, err := f.st.FindAccountByIdentity(ctx, identity)
		if err != nil || got.ID != alice.ID {
			t.Fatalf("FindAccountByIdentity(%s) = %v, %v; want %s", identity, got, err, alice.ID)
		}
	}
}

func testEmptyContactsDoNotCollide(t *testing.T, f *fixture) {
	ctx := context.Background()
	for _, username := range []string{"seed-a", "seed-b"} {
		a := &models.Account{
			ID:        uuid.NewString(),
			Username:  f.name(username),
			Role:      models.RoleUser,
			CreatedAt: f.now,
			UpdatedAt: f.now,
		}
		created, err := f.st.EnsureAccount(ctx, a)
		if err != nil || !created {
			t.Fatalf("EnsureAccount(%s) = %v, %v", a.Username, created, err)
		}
	}
	if _, err := f.st.FindAccountByIdentity(ctx, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindAccountByIdentity(\"\") error = %v, want ErrNotFound", err)
	}
}

func testDeleteReleasesIdentities(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.account(t, "dave", models.RoleUser, 0)
	if err := f.st.DeleteAccount(ctx, a.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if _, err := f.st.FindAccountByIdentity(ctx, a.Phone); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindAccountByIdentity(deleted) error = %v, want ErrNotFound", err)
	}
	f.account(t, "dave", models.RoleUser, 0)
}

func testCreditBillOnce(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.account(t, "erin", models.RoleUser, 100)
	credit := store.BillCredit{BillCode: f.name("B1"), Partner: "Green Mart", Points: 20, At: f.now}

	balance, err := f.st.CreditBill(ctx, a.ID, credit)
	if err != nil || balance != 120 {
		t.Fatalf("CreditBill() = %d, %v; want 120", balance, err)
	}
	if _, err := f.st.CreditBill(ctx, a.ID, credit); !errors.Is(err, store.ErrDuplicateBill) {
		t.Fatalf("second CreditBill() error = %v, want ErrDuplicateBill", err)
	}
	if _, err := f.st.CreditBill(ctx, uuid.NewString(), credit); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("CreditBill(unknown) error = %v, want ErrNotFound", err)
	}
	if got := f.balance(t, a.ID); got != 120 {
		t.Fatalf("balance = %d, want 120", got)
	}

	history, err := f.st.ListHistory(ctx, a.ID, 0, 0)
	if err != nil || len(history) != 1 || history[0].Type != models.EntryTypeEarn {
		t.Fatalf("ListHistory() = %+v, %v", history, err)
	}
}

func testConcurrentCreditBill(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.account(t, "frank", models.RoleUser, 0)
	credit := store.BillCredit{BillCode: f.name("B2"), Partner: "Green Mart", Points: 10, At: f.now}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.st.CreditBill(ctx, a.ID, credit); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("%d concurrent credits succeeded, want 1", succeeded)
	}
	if got := f.balance(t, a.ID); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func testExchangeConditions(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.account(t, "grace", models.RoleUser, 120)
	capped := f.voucher(t, 50, 1)
	pricey := f.voucher(t, 500, 0)

	balance, _, err := f.exchange(a, capped)
	if err != nil || balance != 70 {
		t.Fatalf("ExchangeVoucher() = %d, %v; want 70", balance, err)
	}
	if _, _, err := f.exchange(a, capped); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatalf("second ExchangeVoucher() error = %v, want ErrQuotaExceeded", err)
	}
	if _, _, err := f.exchange(a, pricey); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("ExchangeVoucher(pricey) error = %v, want ErrInsufficientBalance", err)
	}
	if got := f.balance(t, a.ID); got != 70 {
		t.Fatalf("balance = %d, want 70", got)
	}
	if n, err := f.st.CountGrants(ctx, a.ID, capped.ID); err != nil || n != 1 {
		t.Fatalf("CountGrants() = %d, %v; want 1", n, err)
	}

	unlimited := f.voucher(t, 30, 0)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.exchange(a, unlimited)
		}()
	}
	wg.Wait()

	if got := f.balance(t, a.ID); got != 10 {
		t.Fatalf("balance after concurrent exchanges = %d, want 10", got)
	}
	if n, _ := f.st.CountGrants(ctx, a.ID, unlimited.ID); n != 2 {
		t.Fatalf("grants after concurrent exchanges = %d, want 2", n)
	}
}

func testResetBalance(t *testing.T, f *fixture) {
	ctx := context.Background()
	user := f.account(t, "heidi", models.RoleUser, 70)
	admin := f.account(t, "root", models.RoleAdmin, 70)
	reset := store.Reset{Actor: "root", Reason: "audit", At: f.now}

	prior, err := f.st.ResetBalance(ctx, user.ID, reset)
	if err != nil || prior != 70 {
		t.Fatalf("ResetBalance() = %d, %v; want 70", prior, err)
	}
	if _, err := f.st.ResetBalance(ctx, user.ID, reset); !errors.Is(err, store.ErrZeroBalance) {
		t.Fatalf("second ResetBalance() error = %v, want ErrZeroBalance", err)
	}
	if _, err := f.st.ResetBalance(ctx, admin.ID, reset); !errors.Is(err, store.ErrProtected) {
		t.Fatalf("ResetBalance(admin) error = %v, want ErrProtected", err)
	}

	history, _ := f.st.ListHistory(ctx, user.ID, 0, 0)
	if len(history) != 1 || history[0].Amount != -70 || history[0].Type != models.EntryTypeReset {
		t.Fatalf("history = %+v, want one -70 reset", history)
	}
}

func testMarkGrantUsed(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.account(t, "ivan", models.RoleUser, 50)
	v := f.voucher(t, 50, 0)

	_, grantID, err := f.exchange(a, v)
	if err != nil {
		t.Fatalf("ExchangeVoucher() error = %v", err)
	}
	g, err := f.st.MarkGrantUsed(ctx, grantID, f.now)
	if err != nil || g.Status != models.GrantStatusUsed || g.UsedAt == nil {
		t.Fatalf("MarkGrantUsed() = %+v, %v", g, err)
	}
	if _, err := f.st.MarkGrantUsed(ctx, grantID, f.now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second MarkGrantUsed() error = %v, want ErrNotFound", err)
	}
}
