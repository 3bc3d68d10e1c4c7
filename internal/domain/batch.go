package domain

import "time"

// BatchStatus tracks the settlement batch lifecycle.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusSubmitting BatchStatus = "submitting"
	BatchStatusSubmitted  BatchStatus = "submitted"
	BatchStatusRetrying   BatchStatus = "retrying"
	BatchStatusConfirmed  BatchStatus = "confirmed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusConfirmed || s == BatchStatusFailed
}

// Batch failure reasons recorded on terminal failures. ReasonConfirmTimeout
// is special: the underlying transaction may still land later and the
// reconciliation sweep re-checks it before the fills are released for manual
// resubmission.
const (
	ReasonConfirmTimeout = "Confirmation timeout"
	ReasonReverted       = "Transaction reverted"
)

// SettlementBatch groups settlement fills submitted as one on-chain
// transaction. A batch is created once per settlement cycle and never split
// after submission; the settler owns it until it reaches a terminal state.
type SettlementBatch struct {
	ID            string
	ChainID       int64
	MarketAddress string
	Fills         []SettlementFill
	Status        BatchStatus
	TxHash        string
	BlockNumber   uint64
	GasUsed       uint64
	RetryCount    int
	FailureReason string
	CreatedAt     time.Time
	SubmittedAt   *time.Time
	ConfirmedAt   *time.Time
}

// FillCount returns the number of fills in the batch.
func (b *SettlementBatch) FillCount() int { return len(b.Fills) }

// SettlerStats is the operational snapshot exposed by the settler.
type SettlerStats struct {
	PendingFills            int     `json:"pending_fills"`
	PendingBatches          int     `json:"pending_batches"`
	SubmittedBatches        int     `json:"submitted_batches"`
	ConfirmedBatches        int64   `json:"confirmed_batches"`
	FailedBatches           int64   `json:"failed_batches"`
	TotalFillsSettled       int64   `json:"total_fills_settled"`
	TotalGasUsed            uint64  `json:"total_gas_used"`
	AverageBatchSize        float64 `json:"average_batch_size"`
	AverageConfirmationTime float64 `json:"average_confirmation_time_ms"`
}
