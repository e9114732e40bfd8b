package repo_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/tooldir/internal/config"
	"github.com/xxxsen/tooldir/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "tooldir",
		Password: "tooldir_pass",
		DBName:   "tooldir_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	for _, table := range []string{"users", "verification_codes", "feedback"} {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
