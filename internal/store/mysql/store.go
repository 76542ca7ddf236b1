// Package mysql implements the directories on MySQL. Balance mutations run in
// one transaction that locks the user row, so they are linearizable per account.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"green-rewards/internal/models"
	"green-rewards/internal/store"
)

const errDuplicateEntry = 1062

var _ store.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("store", "mysql").Logger(),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const accountColumns = "id, username, email, phone, password_hash, role, balance, created_at, updated_at"

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var role string
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.Phone, &a.PasswordHash, &role, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	a.Role = models.UserRole(role)
	return &a, nil
}

// Accounts

// CreateAccount inserts the user row and one user_identities row per login
// identifier in one transaction. The identities primary key rejects a value
// already used as any account's username, email or phone.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			a.ID, a.Username, a.Email, a.Phone, a.PasswordHash, string(a.Role), a.Balance, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return err
		}
		for _, identity := range store.Identities(a) {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO user_identities (identity, user_id) VALUES (?, ?)",
				identity, a.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if isDuplicate(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("username", a.Username).Msg("Error creating user")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) EnsureAccount(ctx context.Context, a *models.Account) (bool, error) {
	if _, err := s.FindAccountByUsername(ctx, a.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	err := s.CreateAccount(ctx, a)
	if errors.Is(err, store.ErrAlreadyExists) {
		// A concurrent seeder won the insert.
		if _, ferr := s.FindAccountByUsername(ctx, a.Username); ferr == nil {
			return false, nil
		}
		return false, err
	}
	return err == nil, err
}

func (s *Store) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.loadAccount(ctx, "SELECT "+accountColumns+" FROM users WHERE username = ?", username)
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.loadAccount(ctx, "SELECT "+accountColumns+" FROM users WHERE id = ?", id)
}

func (s *Store) FindAccountByIdentity(ctx context.Context, identifier string) (*models.Account, error) {
	return s.loadAccount(ctx,
		"SELECT "+accountColumns+" FROM users JOIN user_identities ON user_identities.user_id = users.id WHERE user_identities.identity = ?",
		identifier,
	)
}

func (s *Store) loadAccount(ctx context.Context, query string, args ...any) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT bill_code FROM used_bills WHERE user_id = ? ORDER BY created_at", a.ID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("error scanning used bill: %w", err)
		}
		a.UsedBills = append(a.UsedBills, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing users")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateAccountRole(ctx context.Context, id string, role models.UserRole) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == models.RoleAdmin && role != models.RoleAdmin {
			return store.ErrProtected
		}
		_, err = tx.ExecContext(ctx, "UPDATE users SET role = ?, updated_at = ? WHERE id = ?", string(role), time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update user role: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ? AND role <> ?", id, string(models.RoleAdmin))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Error deleting user")
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	a, err := s.FindAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if a.IsAdmin() {
		return store.ErrProtected
	}
	return store.ErrNotFound
}

func lockRole(ctx context.Context, tx *sql.Tx, id string) (models.UserRole, error) {
	var role string
	err := tx.QueryRowContext(ctx, "SELECT role FROM users WHERE id = ? FOR UPDATE", id).Scan(&role)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock user: %w", err)
	}
	return models.UserRole(role), nil
}

func lockBalance(ctx context.Context, tx *sql.Tx, id string) (int64, models.UserRole, error) {
	var balance int64
	var role string
	err := tx.QueryRowContext(ctx, "SELECT balance, role FROM users WHERE id = ? FOR UPDATE", id).Scan(&balance, &role)
	if err == sql.ErrNoRows {
		return 0, "", store.ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to fetch balance: %w", err)
	}
	return balance, models.UserRole(role), nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, userID string, e models.HistoryEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO point_history (user_id, type, amount, partner, bill_code, voucher_id, grant_id, reason, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(e.Type), e.Amount, e.Partner, e.BillCode, e.VoucherID, e.GrantID, e.Reason, e.Actor, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func (s *Store) CreditBill(ctx context.Context, accountID string, c store.BillCredit) (int64, error) {
	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, _, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}

		// The primary key on (user_id, bill_code) is the add-to-set primitive.
		_, err = tx.ExecContext(ctx,
			"INSERT INTO used_bills (user_id, bill_code, created_at) VALUES (?, ?, ?)",
			accountID, c.BillCode, c.At,
		)
		if isDuplicate(err) {
			return store.ErrDuplicateBill
		}
		if err != nil {
			return fmt.Errorf("failed to record bill: %w", err)
		}

		balance = current + c.Points
		_, err = tx.ExecContext(ctx, "UPDATE users SET balance = ?, updated_at = ? WHERE id = ?", balance, c.At, accountID)
		if err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		return insertHistory(ctx, tx, accountID, models.HistoryEntry{
			Type:      models.EntryTypeEarn,
			Amount:    c.Points,
			Partner:   c.Partner,
			BillCode:  c.BillCode,
			CreatedAt: c.At,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) ResetBalance(ctx context.Context, accountID string, r store.Reset) (int64, error) {
	var prior int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		balance, role, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if role == models.RoleAdmin {
			return store.ErrProtected
		}
		if balance == 0 {
			return store.ErrZeroBalance
		}
		prior = balance

		_, err = tx.ExecContext(ctx, "UPDATE users SET balance = 0, updated_at = ? WHERE id = ?", r.At, accountID)
		if err != nil {
			return fmt.Errorf("failed to reset balance: %w", err)
		}
		return insertHistory(ctx, tx, accountID, models.HistoryEntry{
			Type:      models.EntryTypeReset,
			Amount:    -prior,
			Reason:    r.Reason,
			Actor:     r.Actor,
			CreatedAt: r.At,
		})
	})
	if err != nil {
		return 0, err
	}
	return prior, nil
}

func (s *Store) ListHistory(ctx context.Context, accountID string, limit, offset int) ([]models.HistoryEntry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", accountID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	limit, offset = store.Page(limit, offset)
	query := `
		SELECT type, amount, partner, bill_code, voucher_id, grant_id, reason, actor, created_at
		FROM point_history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", accountID).Msg("Error fetching point history")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	history := make([]models.HistoryEntry, 0, limit)
	for rows.Next() {
		var e models.HistoryEntry
		var typ string
		if err := rows.Scan(&typ, &e.Amount, &e.Partner, &e.BillCode, &e.VoucherID, &e.GrantID, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning point history: %w", err)
		}
		e.Type = models.EntryType(typ)
		history = append(history, e)
	}
	return history, rows.Err()
}

// Vouchers

const voucherColumns = "id, partner, cost, max_per_user, expires_at, status, created_at, updated_at"

func scanVoucher(row rowScanner) (*models.Voucher, error) {
	var v models.Voucher
	var status string
	err := row.Scan(&v.ID, &v.Partner, &v.Cost, &v.MaxPerUser, &v.ExpiresAt, &status, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	v.Status = models.VoucherStatus(status)
	return &v, nil
}

func (s *Store) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vouchers ("+voucherColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		v.ID, v.Partner, v.Cost, v.MaxPerUser, v.ExpiresAt, string(v.Status), v.CreatedAt, v.UpdatedAt,
	)
	if isDuplicate(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating voucher")
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

func (s *Store) FindVoucherByID(ctx context.Context, id string) (*models.Voucher, error) {
	return scanVoucher(s.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE id = ?", id))
}

func (s *Store) ListVouchers(ctx context.Context, f store.VoucherFilter) ([]*models.Voucher, error) {
	var b strings.Builder
	b.WriteString("SELECT " + voucherColumns + " FROM vouchers")
	var args []any
	if f.AvailableOnly {
		b.WriteString(" WHERE status = ?")
		args = append(args, string(models.VoucherStatusAvailable))
	}
	if f.SortByCost {
		b.WriteString(" ORDER BY cost ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC")
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing vouchers")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var vouchers []*models.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (s *Store) UpdateVoucher(ctx context.Context, v *models.Voucher) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE vouchers SET partner = ?, cost = ?, max_per_user = ?, expires_at = ?, status = ?, updated_at = ? WHERE id = ?",
		v.Partner, v.Cost, v.MaxPerUser, v.ExpiresAt, string(v.Status), v.UpdatedAt, v.ID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("voucher_id", v.ID).Msg("Error updating voucher")
		return fmt.Errorf("failed to update voucher: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindVoucherByID(ctx, v.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) VoucherStats(ctx context.Context) (*models.VoucherStats, error) {
	var stats models.VoucherStats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status = ?), 0) FROM vouchers",
		string(models.VoucherStatusAvailable),
	).Scan(&stats.Total, &stats.Available)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status = ?), 0) FROM voucher_grants",
		string(models.GrantStatusUsed),
	).Scan(&stats.Exchanged, &stats.Used)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &stats, nil
}

// Grants

const grantColumns = "id, user_id, username, voucher_id, partner, cost, status, exchanged_at, used_at"

func scanGrant(row rowScanner) (*models.Grant, error) {
	var g models.Grant
	var status string
	var usedAt sql.NullTime
	err := row.Scan(&g.ID, &g.AccountID, &g.Username, &g.VoucherID, &g.Partner, &g.Cost, &status, &g.ExchangedAt, &usedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	g.Status = models.GrantStatus(status)
	if usedAt.Valid {
		t := usedAt.Time
		g.UsedAt = &t
	}
	return &g, nil
}

func (s *Store) ExchangeVoucher(ctx context.Context, e store.Exchange) (int64, error) {
	g := e.Grant
	var balance int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, _, err := lockBalance(ctx, tx, e.AccountID)
		if err != nil {
			return err
		}
		if current < g.Cost {
			return store.ErrInsufficientBalance
		}

		// The user row lock serializes concurrent exchanges, so the count is stable.
		if e.MaxPerUser > 0 {
			var count int
			err = tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM voucher_grants WHERE user_id = ? AND voucher_id = ?",
				e.AccountID, g.VoucherID,
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to count grants: %w", err)
			}
			if count >= e.MaxPerUser {
				return store.ErrQuotaExceeded
			}
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE users SET balance = balance - ?, updated_at = ? WHERE id = ? AND balance >= ?",
			g.Cost, e.At, e.AccountID, g.Cost,
		)
		if err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		} else if n != 1 {
			return store.ErrInsufficientBalance
		}
		balance = current - g.Cost

		_, err = tx.ExecContext(ctx,
			"INSERT INTO voucher_grants ("+grantColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)",
			g.ID, g.AccountID, g.Username, g.VoucherID, g.Partner, g.Cost, string(g.Status), g.ExchangedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create grant: %w", err)
		}

		return insertHistory(ctx, tx, e.AccountID, models.HistoryEntry{
			Type:      models.EntryTypeRedeem,
			Amount:    -g.Cost,
			Partner:   g.Partner,
			VoucherID: g.VoucherID,
			GrantID:   g.ID,
			CreatedAt: e.At,
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) CountGrants(ctx context.Context, accountID, voucherID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM voucher_grants WHERE user_id = ? AND voucher_id = ?",
		accountID, voucherID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return count, nil
}

func (s *Store) ListGrantsByAccount(ctx context.Context, accountID string) ([]*models.Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+grantColumns+" FROM voucher_grants WHERE user_id = ? ORDER BY exchanged_at DESC",
		accountID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", accountID).Msg("Error fetching grants")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var grants []*models.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) MarkGrantUsed(ctx context.Context, grantID string, at time.Time) (*models.Grant, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE voucher_grants SET status = ?, used_at = ? WHERE id = ? AND status = ?",
		string(models.GrantStatusUsed), at, grantID, string(models.GrantStatusUsable),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("grant_id", grantID).Msg("Error marking grant used")
		return nil, fmt.Errorf("failed to update grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return nil, store.ErrNotFound
	}
	return scanGrant(s.db.QueryRowContext(ctx, "SELECT "+grantColumns+" FROM voucher_grants WHERE id = ?", grantID))
}

// Partners

const partnerColumns = "id, name, type, COALESCE(description, ''), image_id, status, created_at, updated_at"

func scanPartner(row rowScanner) (*models.Partner, error) {
	var p models.Partner
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Description, &p.ImageID, &status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	p.Status = models.PartnerStatus(status)
	return &p, nil
}

func (s *Store) CreatePartner(ctx context.Context, p *models.Partner) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO partners (id, name, type, description, image_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Type, p.Description, p.ImageID, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if isDuplicate(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("name", p.Name).Msg("Error creating partner")
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

func (s *Store) EnsurePartner(ctx context.Context, p *models.Partner) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO partners (id, name, type, description, image_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Type, p.Description, p.ImageID, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed partner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (s *Store) FindPartnerByID(ctx context.Context, id string) (*models.Partner, error) {
	return scanPartner(s.db.QueryRowContext(ctx, "SELECT "+partnerColumns+" FROM partners WHERE id = ?", id))
}

func (s *Store) FindPartnerByName(ctx context.Context, name string) (*models.Partner, error) {
	return scanPartner(s.db.QueryRowContext(ctx, "SELECT "+partnerColumns+" FROM partners WHERE name = ?", name))
}

func (s *Store) ListPartners(ctx context.Context, activeOnly bool) ([]*models.Partner, error) {
	query := "SELECT " + partnerColumns + " FROM partners"
	var args []any
	if activeOnly {
		query += " WHERE status = ?"
		args = append(args, string(models.PartnerStatusActive))
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing partners")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var partners []*models.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (s *Store) UpdatePartner(ctx context.Context, p *models.Partner) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE partners SET name = ?, type = ?, description = ?, image_id = ?, status = ?, updated_at = ? WHERE id = ?",
		p.Name, p.Type, p.Description, p.ImageID, string(p.Status), p.UpdatedAt, p.ID,
	)
	if isDuplicate(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		s.logger.Error().Err(err).Str("partner_id", p.ID).Msg("Error updating partner")
		return fmt.Errorf("failed to update partner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindPartnerByID(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}
