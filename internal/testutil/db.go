// Package testutil provides helpers for integration tests that run
// against a real MySQL instance.  Tests using them skip automatically
// when no database is reachable, so the unit suite stays runnable
// anywhere.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/migrations"
)

const (
	defaultTestDSN = "root@tcp(localhost:3306)/plot_reservation_test?parseTime=true&multiStatements=false"
	testLockName   = "plot_reservation_test"
)

// NewTestDB opens the test database, or skips the test when it is not
// reachable.  A MySQL named lock serializes tests across packages so
// truncation in one suite never races inserts in another.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("skipping MySQL integration tests: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	lockTestDB(t, db)
	return db
}

// ApplyMigrations runs the embedded migrations against the test
// database.
func ApplyMigrations(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

// TruncateAll resets every data table between tests.  Locations are
// reseeded because the repositories validate against them.
func TruncateAll(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, stmt := range []string{
		`DELETE FROM outbox_events`,
		`DELETE FROM transactions`,
		`DELETE FROM plots`,
		`ALTER TABLE outbox_events AUTO_INCREMENT = 1`,
		`ALTER TABLE transactions AUTO_INCREMENT = 1`,
		`ALTER TABLE plots AUTO_INCREMENT = 1`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("reset tables (%s): %v", stmt, err)
		}
	}
}

// InsertPlot creates an available plot for a test fixture and returns
// it with its generated id.
func InsertPlot(t *testing.T, ctx context.Context, db *sql.DB, location, plotNo string, price int64) model.Plot {
	t.Helper()
	res, err := db.ExecContext(ctx,
		`INSERT INTO plots (plot_no, location, street_name, price, area_sqm, status, remaining_amount)
         VALUES (?, ?, 'Test Street', ?, 400, 'available', ?)`,
		plotNo, location, price, price,
	)
	if err != nil {
		t.Fatalf("insert plot: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("plot id: %v", err)
	}
	return model.Plot{
		ID:              uint64(id),
		PlotNo:          plotNo,
		Location:        location,
		StreetName:      "Test Street",
		Price:           price,
		AreaSqm:         400,
		Status:          model.PlotAvailable,
		RemainingAmount: price,
	}
}

func lockTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The lock is session-scoped, so it must be taken and released on
	// one pinned connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	var got int
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 30)`, testLockName).Scan(&got); err != nil || got != 1 {
		conn.Close()
		t.Fatalf("acquire test lock: got=%d err=%v", got, err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, testLockName)
		conn.Close()
	})
}
