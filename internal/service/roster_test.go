package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"giftcode-relay/internal/api"
	"giftcode-relay/internal/constants"
	"giftcode-relay/internal/repository"

	"github.com/rs/zerolog"
)

func newTestRoster(t *testing.T, client GameClient) (*Roster, *repository.AccountRepository, *repository.RedemptionRepository) {
	t.Helper()
	db := newTestDB(t)
	accounts := repository.NewAccountRepository(db, zerolog.Nop())
	ledger := repository.NewRedemptionRepository(db, zerolog.Nop())
	return NewRoster(client, accounts, ledger, zerolog.Nop()), accounts, ledger
}

func TestRosterAdd(t *testing.T) {
	fake := newFakeClient()
	fake.onGetPlayer = func(fid int64, call int) (*api.PlayerResponse, error) {
		switch fid {
		case 100:
			return playerOK(100, "Ann", 30), nil
		case 200:
			return playerOK(200, "Bo", 35), nil
		case 999:
			return &api.PlayerResponse{Msg: "role not exist"}, nil
		}
		return nil, fmt.Errorf("unreachable")
	}

	roster, accounts, _ := newTestRoster(t, fake)

	// 200 is already known
	if _, err := accounts.Insert(context.Background(), 200, "Bo", 35); err != nil {
		t.Fatal(err)
	}

	result, err := roster.Add(context.Background(), []int64{100, 200, 999})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(result.Added) != 1 || result.Added[0] != "Ann" {
		t.Errorf("added = %v, want [Ann]", result.Added)
	}
	if len(result.Existing) != 1 || result.Existing[0] != 200 {
		t.Errorf("existing = %v, want [200]", result.Existing)
	}
	if len(result.Failed) != 1 || result.Failed[0] != 999 {
		t.Errorf("failed = %v, want [999]", result.Failed)
	}

	acct, err := accounts.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("added account not stored: %v", err)
	}
	if acct.Nickname != "Ann" || acct.FurnaceLv != 30 {
		t.Errorf("stored account %+v", acct)
	}
}

func TestRosterRefresh(t *testing.T) {
	fake := newFakeClient()
	fake.onGetPlayer = func(fid int64, call int) (*api.PlayerResponse, error) {
		return playerOK(100, "AnnRenamed", 41), nil
	}

	roster, accounts, _ := newTestRoster(t, fake)
	if _, err := accounts.Insert(context.Background(), 100, "Ann", 30); err != nil {
		t.Fatal(err)
	}

	acct, err := roster.Refresh(context.Background(), 100)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if acct.Nickname != "AnnRenamed" || acct.FurnaceLv != 41 {
		t.Errorf("refreshed account %+v", acct)
	}

	stored, err := accounts.Get(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Nickname != "AnnRenamed" {
		t.Errorf("refresh not persisted: %+v", stored)
	}

	if _, err := roster.Refresh(context.Background(), 999); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

// A lookup that spends most of the external-API budget on retries must not
// starve the database writes that follow it.
func TestRosterSlowLookupStillWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past the database timeout")
	}

	slow := func(fid int64, call int) (*api.PlayerResponse, error) {
		time.Sleep(constants.DatabaseTimeout + 250*time.Millisecond)
		return playerOK(fid, "Ann", 30), nil
	}

	t.Run("refresh", func(t *testing.T) {
		fake := newFakeClient()
		fake.onGetPlayer = slow

		roster, accounts, _ := newTestRoster(t, fake)
		if _, err := accounts.Insert(context.Background(), 100, "OldAnn", 12); err != nil {
			t.Fatal(err)
		}

		acct, err := roster.Refresh(context.Background(), 100)
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if acct.Nickname != "Ann" || acct.FurnaceLv != 30 {
			t.Errorf("refreshed account %+v", acct)
		}
		stored, err := accounts.Get(context.Background(), 100)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Nickname != "Ann" {
			t.Errorf("refresh not persisted: %+v", stored)
		}
	})

	t.Run("link", func(t *testing.T) {
		fake := newFakeClient()
		fake.onGetPlayer = slow

		roster, accounts, _ := newTestRoster(t, fake)

		if err := roster.Link(context.Background(), 100, "discord:42"); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
		acct, err := accounts.Get(context.Background(), 100)
		if err != nil {
			t.Fatal(err)
		}
		if acct.ExternalID != "discord:42" {
			t.Errorf("external id = %q", acct.ExternalID)
		}
	})
}

func TestRosterLinkInsertsUnknownAccount(t *testing.T) {
	fake := newFakeClient()
	fake.onGetPlayer = func(fid int64, call int) (*api.PlayerResponse, error) {
		return playerOK(100, "Ann", 30), nil
	}

	roster, accounts, _ := newTestRoster(t, fake)

	if err := roster.Link(context.Background(), 100, "discord:42"); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	acct, err := accounts.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("linked account not stored: %v", err)
	}
	if acct.ExternalID != "discord:42" {
		t.Errorf("external id = %q", acct.ExternalID)
	}

	if err := roster.Unlink(context.Background(), 100); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	acct, _ = accounts.Get(context.Background(), 100)
	if acct.ExternalID != "" {
		t.Errorf("external id not cleared: %q", acct.ExternalID)
	}

	if err := roster.Unlink(context.Background(), 999); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRosterHistory(t *testing.T) {
	roster, _, ledger := newTestRoster(t, newFakeClient())

	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	if err := ledger.RecordSuccess(context.Background(), 100, "WINTER2024", at); err != nil {
		t.Fatal(err)
	}

	records, err := roster.History(context.Background(), 100)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 || records[0].Code != "WINTER2024" {
		t.Errorf("history = %+v", records)
	}
}
