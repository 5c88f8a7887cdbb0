package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
	"github.com/veridia/plot-reservation/internal/testutil"
)

func insertEvents(t *testing.T, ctx context.Context, db *sql.DB, repo *repository.OutboxRepo, events ...outbox.Event) {
	t.Helper()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.InsertTx(ctx, tx, events...); err != nil {
		tx.Rollback()
		t.Fatalf("insert events: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func event(typ string) outbox.Event {
	return outbox.Event{
		AggregateType: "transaction",
		AggregateID:   "1",
		Type:          typ,
		Payload:       []byte(`{}`),
	}
}

func TestOutboxRepo(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, db)
	repo := repository.NewOutboxRepo(db)

	t.Run("lock claims pending events once", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, db)
		insertEvents(t, ctx, db, repo, event(outbox.TypeEmail), event(outbox.TypeSMS))

		batch, err := repo.LockBatch(ctx, "relay-a", 10, time.Minute)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		if len(batch) != 2 {
			t.Fatalf("expected 2 claimed events, got %d", len(batch))
		}

		// A second relay sees nothing while the lease is live.
		batch2, err := repo.LockBatch(ctx, "relay-b", 10, time.Minute)
		if err != nil {
			t.Fatalf("second lock: %v", err)
		}
		if len(batch2) != 0 {
			t.Fatalf("expected empty batch under a live lease, got %d", len(batch2))
		}
	})

	t.Run("batch size bounds the claim", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, db)
		insertEvents(t, ctx, db, repo, event(outbox.TypeEmail), event(outbox.TypeSMS), event(outbox.TypeMarkSold))

		batch, err := repo.LockBatch(ctx, "relay-a", 2, time.Minute)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		if len(batch) != 2 {
			t.Fatalf("expected 2 events, got %d", len(batch))
		}
		if batch[0].ID > batch[1].ID {
			t.Fatalf("expected id order, got %d then %d", batch[0].ID, batch[1].ID)
		}
	})

	t.Run("sent events are never claimed again", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, db)
		insertEvents(t, ctx, db, repo, event(outbox.TypeEmail))

		batch, err := repo.LockBatch(ctx, "relay-a", 10, time.Minute)
		if err != nil || len(batch) != 1 {
			t.Fatalf("lock: len=%d err=%v", len(batch), err)
		}
		if err := repo.MarkSent(ctx, []uint64{batch[0].ID}); err != nil {
			t.Fatalf("mark sent: %v", err)
		}

		batch, err = repo.LockBatch(ctx, "relay-a", 10, 0)
		if err != nil {
			t.Fatalf("relock: %v", err)
		}
		if len(batch) != 0 {
			t.Fatalf("sent event must not be reclaimed, got %d", len(batch))
		}
	})

	t.Run("released events come back after the lease", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, db)
		insertEvents(t, ctx, db, repo, event(outbox.TypeMarkSold))

		batch, err := repo.LockBatch(ctx, "relay-a", 10, time.Minute)
		if err != nil || len(batch) != 1 {
			t.Fatalf("lock: len=%d err=%v", len(batch), err)
		}
		if err := repo.Release(ctx, batch[0].ID, "store unreachable"); err != nil {
			t.Fatalf("release: %v", err)
		}

		// Under a live lease the released event stays backed off.
		batch2, err := repo.LockBatch(ctx, "relay-a", 10, time.Minute)
		if err != nil {
			t.Fatalf("lock during backoff: %v", err)
		}
		if len(batch2) != 0 {
			t.Fatalf("expected backoff to hold the event, got %d", len(batch2))
		}

		// With a zero lease the lapse is immediate.
		batch3, err := repo.LockBatch(ctx, "relay-a", 10, 0)
		if err != nil {
			t.Fatalf("lock after lease: %v", err)
		}
		if len(batch3) != 1 {
			t.Fatalf("expected the event back, got %d", len(batch3))
		}
		if batch3[0].RetryCount != 1 {
			t.Fatalf("expected retry count 1, got %d", batch3[0].RetryCount)
		}
		if batch3[0].LastError == nil || *batch3[0].LastError != "store unreachable" {
			t.Fatalf("expected recorded error, got %v", batch3[0].LastError)
		}
	})

	t.Run("failed events are dead-lettered", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, db)
		insertEvents(t, ctx, db, repo, event(outbox.TypeEmail))

		batch, err := repo.LockBatch(ctx, "relay-a", 10, time.Minute)
		if err != nil || len(batch) != 1 {
			t.Fatalf("lock: len=%d err=%v", len(batch), err)
		}
		if err := repo.Fail(ctx, batch[0].ID, "mailer gone"); err != nil {
			t.Fatalf("fail: %v", err)
		}

		batch, err = repo.LockBatch(ctx, "relay-a", 10, 0)
		if err != nil {
			t.Fatalf("relock: %v", err)
		}
		if len(batch) != 0 {
			t.Fatalf("dead-lettered event must not be reclaimed, got %d", len(batch))
		}

		var status string
		if err := db.QueryRowContext(ctx, `SELECT status FROM outbox_events`).Scan(&status); err != nil {
			t.Fatalf("read status: %v", err)
		}
		if status != "failed" {
			t.Fatalf("expected failed status, got %s", status)
		}
	})
}
