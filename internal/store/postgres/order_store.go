package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcomefi/clob/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. The unique index
// on (maker, salt, verifying_contract) makes it the durable replay guard.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Record inserts an admitted order. Re-recording the same id is a no-op.
func (s *OrderStore) Record(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, market_key, outcome_index, maker, is_buy, time_in_force,
			price_ticks, amount, salt, expiry, signature,
			chain_id, verifying_contract, sequence, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		o.ID, string(o.MarketKey), o.OutcomeIndex, o.Maker, o.IsBuy, string(o.TimeInForce),
		o.PriceTicks, o.Amount.String(), o.Salt.String(), o.Expiry, o.Signature,
		o.ChainID, o.VerifyingContract, int64(o.Sequence), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record order %s: %w", o.ID, err)
	}
	return nil
}

// SaltUsed reports whether the (maker, salt) pair was already admitted for
// the given verifying contract.
func (s *OrderStore) SaltUsed(ctx context.Context, maker string, salt *big.Int, verifyingContract string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE LOWER(maker) = LOWER($1)
			  AND salt = $2
			  AND LOWER(verifying_contract) = LOWER($3)
		)`

	var used bool
	if err := s.pool.QueryRow(ctx, query, maker, salt.String(), verifyingContract).Scan(&used); err != nil {
		return false, fmt.Errorf("postgres: salt lookup: %w", err)
	}
	return used, nil
}

// GetByID returns the order with the given id.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	const query = `
		SELECT id, market_key, outcome_index, maker, is_buy, time_in_force,
		       price_ticks, amount, salt, expiry, signature,
		       chain_id, verifying_contract, sequence, created_at
		FROM orders WHERE id = $1`

	var (
		o         domain.Order
		marketKey string
		tif       string
		amountStr string
		saltStr   string
		sequence  int64
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&o.ID, &marketKey, &o.OutcomeIndex, &o.Maker, &o.IsBuy, &tif,
		&o.PriceTicks, &amountStr, &saltStr, &o.Expiry, &o.Signature,
		&o.ChainID, &o.VerifyingContract, &sequence, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}

	o.MarketKey = domain.MarketKey(marketKey)
	o.TimeInForce = domain.TimeInForce(tif)
	o.Sequence = uint64(sequence)
	o.Amount, _ = new(big.Int).SetString(amountStr, 10)
	o.Remaining = new(big.Int).Set(o.Amount)
	o.Salt, _ = new(big.Int).SetString(saltStr, 10)
	return o, nil
}
