package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"giftcode-relay/internal/domain"

	"github.com/rs/zerolog"
)

type AccountRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAccountRepository(db *sql.DB, logger zerolog.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

const accountColumns = "fid, nickname, furnace_lv, COALESCE(external_id, ''), created_at, updated_at"

// List returns the full roster ordered by nickname. The orchestrator uses it
// as the atomic run-start snapshot.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY nickname ASC, fid ASC")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.Fid, &a.Nickname, &a.FurnaceLv, &a.ExternalID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Get(ctx context.Context, fid int64) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE fid = ?", fid).
		Scan(&a.Fid, &a.Nickname, &a.FurnaceLv, &a.ExternalID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Insert adds a new roster entry. It reports whether a row was created; an
// already known fid is left untouched.
func (r *AccountRepository) Insert(ctx context.Context, fid int64, nickname string, furnaceLv int) (bool, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (fid, nickname, furnace_lv, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fid, nickname, furnaceLv, now, now)
	if err != nil {
		return false, fmt.Errorf("insert account %d: %w", fid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert account %d: %w", fid, err)
	}
	return n > 0, nil
}

// UpdateProfile writes back the nickname and furnace level observed from the
// game service.
func (r *AccountRepository) UpdateProfile(ctx context.Context, fid int64, nickname string, furnaceLv int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET nickname = ?, furnace_lv = ?, updated_at = ? WHERE fid = ?",
		nickname, furnaceLv, time.Now(), fid)
	if err != nil {
		return fmt.Errorf("update profile for %d: %w", fid, err)
	}
	return nil
}

// SetExternalID links or, with an empty id, unlinks the account's external
// identity. The column carries a uniqueness constraint, so linking an identity
// already bound to another account fails.
func (r *AccountRepository) SetExternalID(ctx context.Context, fid int64, externalID string) error {
	var val any
	if externalID != "" {
		val = externalID
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET external_id = ?, updated_at = ? WHERE fid = ?",
		val, time.Now(), fid)
	if err != nil {
		return fmt.Errorf("set external id for %d: %w", fid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set external id for %d: %w", fid, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, fid int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE fid = ?", fid)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", fid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account %d: %w", fid, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	r.logger.Info().Int64("fid", fid).Msg("account removed from roster")
	return nil
}
