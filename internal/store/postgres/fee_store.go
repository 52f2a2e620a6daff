package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/easyarb/arbbot/internal/domain"
)

// FeeStore implements domain.FeeStore using PostgreSQL.
type FeeStore struct {
	pool *pgxpool.Pool
}

var _ domain.FeeStore = (*FeeStore)(nil)

// NewFeeStore creates a FeeStore backed by the given connection pool.
func NewFeeStore(pool *pgxpool.Pool) *FeeStore {
	return &FeeStore{pool: pool}
}

// GetFees returns the fee schedule for a venue. Withdrawal fees are stored
// as a JSONB object keyed by asset.
func (s *FeeStore) GetFees(ctx context.Context, venueID string) (domain.FeeSchedule, error) {
	const query = `SELECT taker_fee, withdrawal_fees FROM venue_fees WHERE venue = $1`

	var takerStr string
	var withdrawalJSON []byte
	err := s.pool.QueryRow(ctx, query, venueID).Scan(&takerStr, &withdrawalJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.FeeSchedule{}, domain.ErrNotFound
		}
		return domain.FeeSchedule{}, fmt.Errorf("postgres: get fees %s: %w", venueID, err)
	}

	taker, err := decimal.NewFromString(takerStr)
	if err != nil {
		return domain.FeeSchedule{}, fmt.Errorf("postgres: parse taker fee for %s: %w", venueID, err)
	}

	schedule := domain.FeeSchedule{Taker: taker}
	if len(withdrawalJSON) > 0 {
		var raw map[string]string
		if err := json.Unmarshal(withdrawalJSON, &raw); err != nil {
			return domain.FeeSchedule{}, fmt.Errorf("postgres: unmarshal withdrawal fees for %s: %w", venueID, err)
		}
		schedule.Withdrawal = make(map[domain.Asset]decimal.Decimal, len(raw))
		for asset, fee := range raw {
			parsed, err := decimal.NewFromString(fee)
			if err != nil {
				return domain.FeeSchedule{}, fmt.Errorf("postgres: parse withdrawal fee %s/%s: %w", venueID, asset, err)
			}
			schedule.Withdrawal[domain.Asset(asset)] = parsed
		}
	}

	return schedule, nil
}

// UpsertFees inserts or updates a venue's fee schedule.
func (s *FeeStore) UpsertFees(ctx context.Context, venueID string, schedule domain.FeeSchedule) error {
	raw := make(map[string]string, len(schedule.Withdrawal))
	for asset, fee := range schedule.Withdrawal {
		raw[string(asset)] = fee.String()
	}
	withdrawalJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("postgres: marshal withdrawal fees for %s: %w", venueID, err)
	}

	const query = `
		INSERT INTO venue_fees (venue, taker_fee, withdrawal_fees, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (venue) DO UPDATE SET
			taker_fee = EXCLUDED.taker_fee,
			withdrawal_fees = EXCLUDED.withdrawal_fees,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, venueID, schedule.Taker.String(), withdrawalJSON); err != nil {
		return fmt.Errorf("postgres: upsert fees %s: %w", venueID, err)
	}
	return nil
}
