package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// NormalizeDSN forces the driver options the directory relies on.
func NormalizeDSN(dbURL string) (string, error) {
	cfg, err := mysql.ParseDSN(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid DB_URL: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	return cfg.FormatDSN(), nil
}

func InitDB(ctx context.Context, dbURL string, logger zerolog.Logger) (*sql.DB, error) {
	dsn, err := NormalizeDSN(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is not responding: %w", err)
	}

	logger.Info().Msg("Connected to MySQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id CHAR(36) PRIMARY KEY,
		username VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		balance BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_users_username (username),
		INDEX idx_users_role (role),
		CONSTRAINT chk_users_balance CHECK (balance >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS user_identities (
		identity VARCHAR(255) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		INDEX idx_user_identities_user (user_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS used_bills (
		user_id CHAR(36) NOT NULL,
		bill_code VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (user_id, bill_code),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS point_history (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		type VARCHAR(20) NOT NULL,
		amount BIGINT NOT NULL,
		partner VARCHAR(255) NOT NULL DEFAULT '',
		bill_code VARCHAR(255) NOT NULL DEFAULT '',
		voucher_id CHAR(36) NOT NULL DEFAULT '',
		grant_id CHAR(36) NOT NULL DEFAULT '',
		reason VARCHAR(500) NOT NULL DEFAULT '',
		actor VARCHAR(100) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_point_history_user (user_id, id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS partners (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(100) NOT NULL DEFAULT '',
		description TEXT,
		image_id VARCHAR(100) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_partners_name (name),
		INDEX idx_partners_status (status)
	);`,
	`CREATE TABLE IF NOT EXISTS vouchers (
		id CHAR(36) PRIMARY KEY,
		partner VARCHAR(255) NOT NULL,
		cost BIGINT NOT NULL,
		max_per_user INT NOT NULL DEFAULT 0,
		expires_at DATETIME(6) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'available',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_vouchers_status (status),
		INDEX idx_vouchers_expires (expires_at),
		CONSTRAINT chk_vouchers_cost CHECK (cost > 0)
	);`,
	`CREATE TABLE IF NOT EXISTS voucher_grants (
		id CHAR(36) PRIMARY KEY,
		user_id CHAR(36) NOT NULL,
		username VARCHAR(100) NOT NULL,
		voucher_id CHAR(36) NOT NULL,
		partner VARCHAR(255) NOT NULL,
		cost BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'usable',
		exchanged_at DATETIME(6) NOT NULL,
		used_at DATETIME(6) NULL,
		INDEX idx_grants_user_voucher (user_id, voucher_id),
		INDEX idx_grants_status (status)
	);`,
}

func RunMigrations(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	for _, q := range migrations {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info().Int("statements", len(migrations)).Msg("Migrations completed")
	return nil
}
