package domain

import (
	"context"
	"math/big"
)

// OrderStore persists admitted orders and backs the (maker, salt,
// verifyingContract) replay guard.
type OrderStore interface {
	// Record inserts an admitted order. Re-recording the same id is a no-op.
	Record(ctx context.Context, order Order) error
	// SaltUsed reports whether the (maker, salt) pair was already admitted
	// for the given verifying contract.
	SaltUsed(ctx context.Context, maker string, salt *big.Int, verifyingContract string) (bool, error)
	GetByID(ctx context.Context, id string) (Order, error)
}

// FillStore persists fills and their settlement metadata. All writes must be
// idempotent: the same fill or settlement event may be recorded more than
// once and duplicate application is a no-op.
type FillStore interface {
	Record(ctx context.Context, fill Fill) error
	// MarkSettled attaches on-chain settlement metadata to a fill.
	MarkSettled(ctx context.Context, fillID, txHash string, blockNumber uint64) error
	// RecordFailed archives the fills of a failed batch for manual
	// reprocessing so no settlement obligation evaporates.
	RecordFailed(ctx context.Context, batchID, reason string, fills []SettlementFill) error
	ListByMarket(ctx context.Context, key MarketKey, limit int) ([]Fill, error)
}

// BatchStore persists settlement batches. Upsert is keyed by batch id and
// idempotent under re-application.
type BatchStore interface {
	Upsert(ctx context.Context, batch SettlementBatch) error
	GetByID(ctx context.Context, id string) (SettlementBatch, error)
	ListByStatus(ctx context.Context, status BatchStatus) ([]SettlementBatch, error)
}

// BatchArchiver writes terminal batches to cold storage.
type BatchArchiver interface {
	ArchiveBatch(ctx context.Context, batch SettlementBatch) error
}
