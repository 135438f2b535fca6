package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"giftcode-relay/internal/domain"

	"github.com/rs/zerolog"
)

// RedemptionRepository is the ledger of successful (fid, code) redemptions.
type RedemptionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRedemptionRepository(db *sql.DB, logger zerolog.Logger) *RedemptionRepository {
	return &RedemptionRepository{db: db, logger: logger}
}

// RecordSuccess inserts the (fid, code) pair if absent. A pair that already
// exists is left untouched: first write wins, duplicates are not an error.
// Safe under concurrent invocation; the primary key arbitrates.
func (r *RedemptionRepository) RecordSuccess(ctx context.Context, fid int64, code string, redeemedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO redemptions (fid, code, redeemed_at) VALUES (?, ?, ?)",
		fid, code, redeemedAt)
	if err != nil {
		return fmt.Errorf("record redemption %d/%s: %w", fid, code, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record redemption %d/%s: %w", fid, code, err)
	}
	if n == 0 {
		r.logger.Debug().Int64("fid", fid).Str("code", code).Msg("redemption already recorded")
	}
	return nil
}

// History returns the account's redemptions in insertion order.
func (r *RedemptionRepository) History(ctx context.Context, fid int64) ([]domain.RedemptionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT fid, code, redeemed_at FROM redemptions WHERE fid = ? ORDER BY rowid ASC", fid)
	if err != nil {
		return nil, fmt.Errorf("redemption history for %d: %w", fid, err)
	}
	defer rows.Close()

	var records []domain.RedemptionRecord
	for rows.Next() {
		var rec domain.RedemptionRecord
		if err := rows.Scan(&rec.Fid, &rec.Code, &rec.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
