// Package memory is an in-process directory used by tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	accounts map[string]*models.Account
	vouchers map[string]*models.Voucher
	grants   map[string]*models.Grant
	partners map[string]*models.Partner
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		vouchers: make(map[string]*models.Voucher),
		grants:   make(map[string]*models.Grant),
		partners: make(map[string]*models.Partner),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.UsedBills = append([]string(nil), a.UsedBills...)
	c.History = append([]models.HistoryEntry(nil), a.History...)
	return &c
}

func copyGrant(g *models.Grant) *models.Grant {
	c := *g
	if g.UsedAt != nil {
		t := *g.UsedAt
		c.UsedAt = &t
	}
	return &c
}

// Accounts

func (s *Store) identityTaken(a *models.Account) bool {
	wanted := store.Identities(a)
	for _, existing := range s.accounts {
		for _, id := range store.Identities(existing) {
			if slices.Contains(wanted, id) {
				return true
			}
		}
	}
	return false
}

func (s *Store) CreateAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok || s.identityTaken(a) {
		return store.ErrAlreadyExists
	}
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

func (s *Store) EnsureAccount(_ context.Context, a *models.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == a.Username {
			return false, nil
		}
	}
	if s.identityTaken(a) {
		return false, store.ErrAlreadyExists
	}
	s.accounts[a.ID] = copyAccount(a)
	return true, nil
}

func (s *Store) FindAccountByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) FindAccountByIdentity(_ context.Context, identifier string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if slices.Contains(store.Identities(a), identifier) {
			return copyAccount(a), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListAccounts(context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAccountRole(_ context.Context, id string, role models.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.IsAdmin() && role != models.RoleAdmin {
		return store.ErrProtected
	}
	a.Role = role
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.IsAdmin() {
		return store.ErrProtected
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreditBill(_ context.Context, accountID string, c store.BillCredit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if a.HasUsedBill(c.BillCode) {
		return 0, store.ErrDuplicateBill
	}
	a.Balance += c.Points
	a.UsedBills = append(a.UsedBills, c.BillCode)
	a.History = append(a.History, models.HistoryEntry{
		Type:      models.EntryTypeEarn,
		Amount:    c.Points,
		Partner:   c.Partner,
		BillCode:  c.BillCode,
		CreatedAt: c.At,
	})
	a.UpdatedAt = c.At
	return a.Balance, nil
}

func (s *Store) ResetBalance(_ context.Context, accountID string, r store.Reset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if a.IsAdmin() {
		return 0, store.ErrProtected
	}
	if a.Balance == 0 {
		return 0, store.ErrZeroBalance
	}
	prior := a.Balance
	a.Balance = 0
	a.History = append(a.History, models.HistoryEntry{
		Type:      models.EntryTypeReset,
		Amount:    -prior,
		Reason:    r.Reason,
		Actor:     r.Actor,
		CreatedAt: r.At,
	})
	a.UpdatedAt = r.At
	return prior, nil
}

func (s *Store) ListHistory(_ context.Context, accountID string, limit, offset int) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	limit, offset = store.Page(limit, offset)

	out := make([]models.HistoryEntry, 0, limit)
	for i := len(a.History) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.History[i])
	}
	return out, nil
}

// Vouchers

func (s *Store) CreateVoucher(_ context.Context, v *models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vouchers[v.ID]; ok {
		return store.ErrAlreadyExists
	}
	c := *v
	s.vouchers[v.ID] = &c
	return nil
}

func (s *Store) FindVoucherByID(_ context.Context, id string) (*models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vouchers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (s *Store) ListVouchers(_ context.Context, f store.VoucherFilter) ([]*models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		if f.AvailableOnly && v.Status != models.VoucherStatusAvailable {
			continue
		}
		c := *v
		out = append(out, &c)
	}
	if f.SortByCost {
		sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}

func (s *Store) UpdateVoucher(_ context.Context, v *models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vouchers[v.ID]; !ok {
		return store.ErrNotFound
	}
	c := *v
	s.vouchers[v.ID] = &c
	return nil
}

func (s *Store) VoucherStats(context.Context) (*models.VoucherStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.VoucherStats{Total: int64(len(s.vouchers)), Exchanged: int64(len(s.grants))}
	for _, v := range s.vouchers {
		if v.Status == models.VoucherStatusAvailable {
			stats.Available++
		}
	}
	for _, g := range s.grants {
		if g.Status == models.GrantStatusUsed {
			stats.Used++
		}
	}
	return stats, nil
}

// Grants

func (s *Store) countGrants(accountID, voucherID string) int {
	n := 0
	for _, g := range s.grants {
		if g.AccountID == accountID && g.VoucherID == voucherID {
			n++
		}
	}
	return n
}

func (s *Store) ExchangeVoucher(_ context.Context, e store.Exchange) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[e.AccountID]
	if !ok {
		return 0, store.ErrNotFound
	}
	g := e.Grant
	if a.Balance < g.Cost {
		return 0, store.ErrInsufficientBalance
	}
	if e.MaxPerUser > 0 && s.countGrants(e.AccountID, g.VoucherID) >= e.MaxPerUser {
		return 0, store.ErrQuotaExceeded
	}

	a.Balance -= g.Cost
	a.History = append(a.History, models.HistoryEntry{
		Type:      models.EntryTypeRedeem,
		Amount:    -g.Cost,
		Partner:   g.Partner,
		VoucherID: g.VoucherID,
		GrantID:   g.ID,
		CreatedAt: e.At,
	})
	a.UpdatedAt = e.At
	s.grants[g.ID] = copyGrant(g)
	return a.Balance, nil
}

func (s *Store) CountGrants(_ context.Context, accountID, voucherID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countGrants(accountID, voucherID), nil
}

func (s *Store) ListGrantsByAccount(_ context.Context, accountID string) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Grant
	for _, g := range s.grants {
		if g.AccountID == accountID {
			out = append(out, copyGrant(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExchangedAt.After(out[j].ExchangedAt) })
	return out, nil
}

func (s *Store) MarkGrantUsed(_ context.Context, grantID string, at time.Time) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[grantID]
	if !ok || g.Status != models.GrantStatusUsable {
		return nil, store.ErrNotFound
	}
	g.Status = models.GrantStatusUsed
	g.UsedAt = &at
	return copyGrant(g), nil
}

// Partners

func (s *Store) CreatePartner(_ context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.partners {
		if existing.Name == p.Name {
			return store.ErrAlreadyExists
		}
	}
	c := *p
	s.partners[p.ID] = &c
	return nil
}

func (s *Store) EnsurePartner(ctx context.Context, p *models.Partner) (bool, error) {
	err := s.CreatePartner(ctx, p)
	if err == store.ErrAlreadyExists {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) FindPartnerByID(_ context.Context, id string) (*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) FindPartnerByName(_ context.Context, name string) (*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.partners {
		if p.Name == name {
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPartners(_ context.Context, activeOnly bool) ([]*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Partner, 0, len(s.partners))
	for _, p := range s.partners {
		if activeOnly && p.Status != models.PartnerStatusActive {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdatePartner(_ context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[p.ID]; !ok {
		return store.ErrNotFound
	}
	for id, existing := range s.partners {
		if id != p.ID && existing.Name == p.Name {
			return store.ErrAlreadyExists
		}
	}
	c := *p
	s.partners[p.ID] = &c
	return nil
}
