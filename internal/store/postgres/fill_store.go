package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcomefi/clob/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL. Every write is
// idempotent: fills insert with ON CONFLICT DO NOTHING and settlement
// metadata updates are repeatable, so a block scanner re-observing a
// transaction cannot double-count.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Record inserts a fill. Duplicate ids are a no-op.
func (s *FillStore) Record(ctx context.Context, f domain.Fill) error {
	const query = `
		INSERT INTO fills (
			id, market_key, outcome_index, maker_order_id, taker_order_id,
			price_ticks, amount, maker_fee, taker_fee, sequence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	var taker *string
	if f.TakerOrderID != "" {
		taker = &f.TakerOrderID
	}

	_, err := s.pool.Exec(ctx, query,
		f.ID, string(f.MarketKey), f.OutcomeIndex, f.MakerOrderID, taker,
		f.PriceTicks, f.Amount.String(), f.MakerFee.String(), f.TakerFee.String(),
		int64(f.Sequence), f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record fill %s: %w", f.ID, err)
	}
	return nil
}

// MarkSettled attaches on-chain settlement metadata to a fill. Re-applying
// the same settlement is a no-op.
func (s *FillStore) MarkSettled(ctx context.Context, fillID, txHash string, blockNumber uint64) error {
	const query = `
		UPDATE fills
		SET tx_hash = $2, block_number = $3, settled_at = COALESCE(settled_at, NOW())
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, fillID, txHash, int64(blockNumber)); err != nil {
		return fmt.Errorf("postgres: mark fill %s settled: %w", fillID, err)
	}
	return nil
}

// RecordFailed archives the fills of a failed batch for manual reprocessing.
func (s *FillStore) RecordFailed(ctx context.Context, batchID, reason string, fills []domain.SettlementFill) error {
	const query = `
		INSERT INTO failed_fills (id, batch_id, fill_id, reason, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	for _, f := range fills {
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("postgres: marshal failed fill %s: %w", f.FillID, err)
		}
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := s.pool.Exec(ctx, query, id, batchID, f.FillID, reason, payload); err != nil {
			return fmt.Errorf("postgres: record failed fill %s: %w", f.FillID, err)
		}
	}
	return nil
}

// ListByMarket returns the most recent fills for a market, newest first.
func (s *FillStore) ListByMarket(ctx context.Context, key domain.MarketKey, limit int) ([]domain.Fill, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, market_key, outcome_index, maker_order_id, taker_order_id,
		       price_ticks, amount, maker_fee, taker_fee, sequence, created_at
		FROM fills
		WHERE market_key = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, string(key), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

func scanFills(rows pgx.Rows) ([]domain.Fill, error) {
	var fills []domain.Fill
	for rows.Next() {
		var (
			f         domain.Fill
			marketKey string
			taker     *string
			amountStr string
			makerFee  string
			takerFee  string
			sequence  int64
		)
		err := rows.Scan(
			&f.ID, &marketKey, &f.OutcomeIndex, &f.MakerOrderID, &taker,
			&f.PriceTicks, &amountStr, &makerFee, &takerFee, &sequence, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.MarketKey = domain.MarketKey(marketKey)
		if taker != nil {
			f.TakerOrderID = *taker
		}
		f.Amount, _ = new(big.Int).SetString(amountStr, 10)
		f.MakerFee, _ = new(big.Int).SetString(makerFee, 10)
		f.TakerFee, _ = new(big.Int).SetString(takerFee, 10)
		f.Sequence = uint64(sequence)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}
