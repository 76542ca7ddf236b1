package mysql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"green-rewards/internal/db"
	"green-rewards/internal/store"
	"green-rewards/internal/store/storetest"
)

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate entry", &mysql.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry 'B1' for key 'PRIMARY'"}, true},
		{"wrapped duplicate", fmt.Errorf("insert used bill: %w", &mysql.MySQLError{Number: errDuplicateEntry}), true},
		{"check constraint", &mysql.MySQLError{Number: 3819, Message: "Check constraint 'chk_users_balance' is violated."}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDuplicate(tc.err); got != tc.want {
				t.Fatalf("isDuplicate(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

// Set GREEN_REWARDS_TEST_MYSQL_DSN to a scratch database to run the shared
// store suite against MySQL.
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("GREEN_REWARDS_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("GREEN_REWARDS_TEST_MYSQL_DSN not set")
	}

	ctx := context.Background()
	logger := zerolog.Nop()
	conn, err := db.InitDB(ctx, dsn, logger)
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.RunMigrations(ctx, conn, logger); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	s := New(conn, logger)
	storetest.Run(t, func(*testing.T) store.Store { return s })
}
