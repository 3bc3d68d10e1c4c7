package domain

// SettlementEvent is a closed sum over every observable settlement
// transition. Consumers switch on the concrete type and the compiler-visible
// marker method keeps the set closed to this package.
type SettlementEvent interface {
	settlementEvent()
	// Kind returns the wire tag used when events are published externally.
	Kind() string
}

// BatchCreated is emitted when pending fills are drained into a new batch.
type BatchCreated struct {
	Batch SettlementBatch
}

// BatchSubmitted is emitted when the batch transaction is accepted by the RPC
// node.
type BatchSubmitted struct {
	Batch  SettlementBatch
	TxHash string
}

// BatchConfirmed is emitted once the batch transaction reaches the configured
// confirmation depth.
type BatchConfirmed struct {
	Batch       SettlementBatch
	BlockNumber uint64
	GasUsed     uint64
}

// BatchFailed is emitted when a batch reaches terminal failure.
type BatchFailed struct {
	Batch  SettlementBatch
	Reason string
}

// FillSettled is emitted once per fill of a confirmed batch.
type FillSettled struct {
	Fill        SettlementFill
	TxHash      string
	BlockNumber uint64
}

func (BatchCreated) settlementEvent()   {}
func (BatchSubmitted) settlementEvent() {}
func (BatchConfirmed) settlementEvent() {}
func (BatchFailed) settlementEvent()    {}
func (FillSettled) settlementEvent()    {}

func (BatchCreated) Kind() string   { return "batch_created" }
func (BatchSubmitted) Kind() string { return "batch_submitted" }
func (BatchConfirmed) Kind() string { return "batch_confirmed" }
func (BatchFailed) Kind() string    { return "batch_failed" }
func (FillSettled) Kind() string    { return "fill_settled" }
