package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"giftcode-relay/internal/config"
	"giftcode-relay/internal/database"

	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordSuccessIdempotent(t *testing.T) {
	repo := NewRedemptionRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	t1 := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)

	if err := repo.RecordSuccess(ctx, 100, "CODE1", t1); err != nil {
		t.Fatalf("first RecordSuccess failed: %v", err)
	}
	if err := repo.RecordSuccess(ctx, 100, "CODE1", t1); err != nil {
		t.Fatalf("duplicate RecordSuccess errored: %v", err)
	}
	// later timestamp must not overwrite the first record
	if err := repo.RecordSuccess(ctx, 100, "CODE1", t2); err != nil {
		t.Fatalf("RecordSuccess with new timestamp errored: %v", err)
	}

	records, err := repo.History(ctx, 100)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].RedeemedAt.Equal(t1) {
		t.Errorf("redeemed_at = %v, want first-write %v", records[0].RedeemedAt, t1)
	}
}

func TestHistoryInsertionOrder(t *testing.T) {
	repo := NewRedemptionRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	codes := []string{"ZULU", "ALPHA", "MIKE"}
	for i, code := range codes {
		at := time.Date(2024, 12, 1, 10, i, 0, 0, time.UTC)
		if err := repo.RecordSuccess(ctx, 200, code, at); err != nil {
			t.Fatalf("RecordSuccess(%s) failed: %v", code, err)
		}
	}

	records, err := repo.History(ctx, 200)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != len(codes) {
		t.Fatalf("expected %d records, got %d", len(codes), len(records))
	}
	for i, code := range codes {
		if records[i].Code != code {
			t.Errorf("records[%d].Code = %s, want %s", i, records[i].Code, code)
		}
	}
}

func TestHistoryScopedToAccount(t *testing.T) {
	repo := NewRedemptionRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	now := time.Now()
	if err := repo.RecordSuccess(ctx, 100, "CODE1", now); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordSuccess(ctx, 200, "CODE1", now); err != nil {
		t.Fatal(err)
	}

	records, err := repo.History(ctx, 100)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 || records[0].Fid != 100 {
		t.Errorf("expected exactly the fid 100 record, got %+v", records)
	}

	empty, err := repo.History(ctx, 300)
	if err != nil {
		t.Fatalf("History for unknown fid failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records for unknown fid, got %d", len(empty))
	}
}

func TestRecordSuccessConcurrent(t *testing.T) {
	repo := NewRedemptionRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- repo.RecordSuccess(ctx, 100, "RACE", time.Now())
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent RecordSuccess failed: %v", err)
		}
	}

	records, err := repo.History(ctx, 100)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after concurrent writes, got %d", len(records))
	}
}
