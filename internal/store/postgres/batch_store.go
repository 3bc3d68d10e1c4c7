package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcomefi/clob/internal/domain"
)

// BatchStore implements domain.BatchStore using PostgreSQL. Upsert is keyed
// by batch id so re-applying the same transition is a no-op.
type BatchStore struct {
	pool *pgxpool.Pool
}

// NewBatchStore creates a new BatchStore backed by the given connection pool.
func NewBatchStore(pool *pgxpool.Pool) *BatchStore {
	return &BatchStore{pool: pool}
}

// Upsert writes the batch's current state, inserting on first sight and
// updating thereafter.
func (s *BatchStore) Upsert(ctx context.Context, b domain.SettlementBatch) error {
	fills, err := json.Marshal(b.Fills)
	if err != nil {
		return fmt.Errorf("postgres: marshal batch %s fills: %w", b.ID, err)
	}

	const query = `
		INSERT INTO settlement_batches (
			id, chain_id, market_address, status, fill_count, fills,
			tx_hash, block_number, gas_used, retry_count, failure_reason,
			created_at, submitted_at, confirmed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tx_hash = EXCLUDED.tx_hash,
			block_number = EXCLUDED.block_number,
			gas_used = EXCLUDED.gas_used,
			retry_count = EXCLUDED.retry_count,
			failure_reason = EXCLUDED.failure_reason,
			submitted_at = EXCLUDED.submitted_at,
			confirmed_at = EXCLUDED.confirmed_at,
			updated_at = NOW()`

	var txHash, reason *string
	if b.TxHash != "" {
		txHash = &b.TxHash
	}
	if b.FailureReason != "" {
		reason = &b.FailureReason
	}

	_, err = s.pool.Exec(ctx, query,
		b.ID, b.ChainID, b.MarketAddress, string(b.Status), b.FillCount(), fills,
		txHash, int64(b.BlockNumber), int64(b.GasUsed), b.RetryCount, reason,
		b.CreatedAt, b.SubmittedAt, b.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert batch %s: %w", b.ID, err)
	}
	return nil
}

// GetByID returns the batch with the given id.
func (s *BatchStore) GetByID(ctx context.Context, id string) (domain.SettlementBatch, error) {
	const query = batchSelect + ` WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SettlementBatch{}, domain.ErrNotFound
		}
		return domain.SettlementBatch{}, fmt.Errorf("postgres: get batch %s: %w", id, err)
	}
	return b, nil
}

// ListByStatus returns every batch in the given status, oldest first.
func (s *BatchStore) ListByStatus(ctx context.Context, status domain.BatchStatus) ([]domain.SettlementBatch, error) {
	const query = batchSelect + ` WHERE status = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list batches by status %s: %w", status, err)
	}
	defer rows.Close()

	var batches []domain.SettlementBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

const batchSelect = `
	SELECT id, chain_id, market_address, status, fills,
	       tx_hash, block_number, gas_used, retry_count, failure_reason,
	       created_at, submitted_at, confirmed_at
	FROM settlement_batches`

func scanBatch(scanner interface{ Scan(dest ...any) error }) (domain.SettlementBatch, error) {
	var (
		b           domain.SettlementBatch
		status      string
		fillsJSON   []byte
		txHash      *string
		blockNumber int64
		gasUsed     int64
		reason      *string
	)
	err := scanner.Scan(
		&b.ID, &b.ChainID, &b.MarketAddress, &status, &fillsJSON,
		&txHash, &blockNumber, &gasUsed, &b.RetryCount, &reason,
		&b.CreatedAt, &b.SubmittedAt, &b.ConfirmedAt,
	)
	if err != nil {
		return domain.SettlementBatch{}, err
	}

	b.Status = domain.BatchStatus(status)
	b.BlockNumber = uint64(blockNumber)
	b.GasUsed = uint64(gasUsed)
	if txHash != nil {
		b.TxHash = *txHash
	}
	if reason != nil {
		b.FailureReason = *reason
	}
	if err := json.Unmarshal(fillsJSON, &b.Fills); err != nil {
		return domain.SettlementBatch{}, fmt.Errorf("unmarshal fills: %w", err)
	}
	return b, nil
}
