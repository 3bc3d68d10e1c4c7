package settle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/outcomefi/clob/internal/domain"
)

const testMarketAddr = "0x4444444444444444444444444444444444444444"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChain is a scriptable ChainClient.
type fakeChain struct {
	mu sync.Mutex

	gasPrice    *big.Int
	gasPriceErr error
	estimateErr error
	submitErr   error
	receiptErr  error
	receipts    map[string]*Receipt
	block       uint64

	estimateCalls int
	submitCalls   int
	submitted     [][]domain.SettlementFill
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		gasPrice: big.NewInt(30_000_000_000), // 30 gwei
		receipts: make(map[string]*Receipt),
		block:    100,
	}
}

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gasPriceErr != nil {
		return nil, c.gasPriceErr
	}
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeChain) EstimateBatchFill(_ context.Context, _ string, _ []domain.SettlementFill) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimateCalls++
	if c.estimateErr != nil {
		return 0, c.estimateErr
	}
	return 200_000, nil
}

func (c *fakeChain) SubmitBatchFill(_ context.Context, _ string, fills []domain.SettlementFill, _ uint64, _ *big.Int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitCalls++
	if c.submitErr != nil {
		return "", c.submitErr
	}
	c.submitted = append(c.submitted, fills)
	return fmt.Sprintf("0xtx%d", c.submitCalls), nil
}

func (c *fakeChain) TransactionReceipt(_ context.Context, txHash string) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiptErr != nil {
		return nil, c.receiptErr
	}
	return c.receipts[txHash], nil
}

func (c *fakeChain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *fakeChain) counts() (estimates, submits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.estimateCalls, c.submitCalls
}

func (c *fakeChain) mine(txHash string, block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[txHash] = &Receipt{TxHash: txHash, BlockNumber: block, GasUsed: 180_000}
}

// memBatchStore is an in-memory BatchStore.
type memBatchStore struct {
	mu      sync.Mutex
	batches map[string]domain.SettlementBatch
}

func newMemBatchStore() *memBatchStore {
	return &memBatchStore{batches: make(map[string]domain.SettlementBatch)}
}

func (s *memBatchStore) Upsert(_ context.Context, b domain.SettlementBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
	return nil
}

func (s *memBatchStore) GetByID(_ context.Context, id string) (domain.SettlementBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return domain.SettlementBatch{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *memBatchStore) ListByStatus(_ context.Context, status domain.BatchStatus) ([]domain.SettlementBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SettlementBatch
	for _, b := range s.batches {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memBatchStore) get(id string) (domain.SettlementBatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	return b, ok
}

// memFillStore records settlement metadata writes.
type memFillStore struct {
	mu      sync.Mutex
	settled map[string]string // fill id -> tx hash
	failed  map[string][]domain.SettlementFill
}

func newMemFillStore() *memFillStore {
	return &memFillStore{
		settled: make(map[string]string),
		failed:  make(map[string][]domain.SettlementFill),
	}
}

func (s *memFillStore) Record(context.Context, domain.Fill) error { return nil }

func (s *memFillStore) MarkSettled(_ context.Context, fillID, txHash string, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled[fillID] = txHash
	return nil
}

func (s *memFillStore) RecordFailed(_ context.Context, batchID, _ string, fills []domain.SettlementFill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[batchID] = fills
	return nil
}

func (s *memFillStore) ListByMarket(context.Context, domain.MarketKey, int) ([]domain.Fill, error) {
	return nil, nil
}

func (s *memFillStore) settledTx(fillID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.settled[fillID]
	return tx, ok
}

func sfill(i int) domain.SettlementFill {
	return domain.SettlementFill{
		ID:         uuid.NewString(),
		FillID:     fmt.Sprintf("fill-%d", i),
		FillAmount: new(big.Int).Set(domain.AmountScale),
		EnqueuedAt: time.Now().UTC(),
	}
}

func testSettlerConfig() Config {
	return Config{
		ChainID:             137,
		MarketAddress:       testMarketAddr,
		MinBatchSize:        1,
		MaxBatchSize:        2,
		MaxBatchWait:        time.Millisecond,
		BatchInterval:       time.Hour, // loops are driven manually
		ConfirmInterval:     time.Hour,
		Confirmations:       3,
		ConfirmationTimeout: time.Minute,
		MaxRetries:          2,
		RetryDelay:          time.Millisecond,
		RetryBackoff:        2,
		GasMarginPct:        20,
	}
}

func newTestSettler(t *testing.T, chain *fakeChain) (*Settler, *memBatchStore, *memFillStore) {
	t.Helper()
	batches := newMemBatchStore()
	fills := newMemFillStore()
	s := NewSettler(testSettlerConfig(), chain, testLogger())
	s.WithStores(batches, fills)
	return s, batches, fills
}

// submittedBatch plants an in-flight batch as if it had just been submitted.
func submittedBatch(s *Settler, txHash string, fills int) *domain.SettlementBatch {
	now := time.Now().UTC()
	b := &domain.SettlementBatch{
		ID:            uuid.NewString(),
		ChainID:       s.cfg.ChainID,
		MarketAddress: s.cfg.MarketAddress,
		Status:        domain.BatchStatusSubmitted,
		TxHash:        txHash,
		CreatedAt:     now,
		SubmittedAt:   &now,
	}
	for i := 0; i < fills; i++ {
		b.Fills = append(b.Fills, sfill(i))
	}
	s.mu.Lock()
	s.active[b.ID] = b
	s.mu.Unlock()
	return b
}

func drainEventKinds(s *Settler) []string {
	var kinds []string
	for {
		select {
		case ev := <-s.events:
			kinds = append(kinds, ev.Kind())
		default:
			return kinds
		}
	}
}

func TestAddFillTriggersBatchAtMaxSize(t *testing.T) {
	chain := newFakeChain()
	s, batches, _ := newTestSettler(t, chain)

	s.AddFill(sfill(0))
	s.AddFill(sfill(1))

	require.Eventually(t, func() bool {
		_, submits := chain.counts()
		return submits == 1
	}, 2*time.Second, 5*time.Millisecond)

	chain.mu.Lock()
	require.Len(t, chain.submitted[0], 2)
	chain.mu.Unlock()

	// The durable mirror holds the batch as submitted with its tx hash.
	require.Eventually(t, func() bool {
		list, _ := batches.ListByStatus(context.Background(), domain.BatchStatusSubmitted)
		return len(list) == 1 && list[0].TxHash == "0xtx1"
	}, 2*time.Second, 5*time.Millisecond)

	kinds := drainEventKinds(s)
	require.Contains(t, kinds, "batch_created")
	require.Contains(t, kinds, "batch_submitted")
}

func TestDrainPolicy(t *testing.T) {
	chain := newFakeChain()
	s := NewSettler(Config{
		ChainID:       137,
		MarketAddress: testMarketAddr,
		MinBatchSize:  3,
		MaxBatchSize:  5,
		MaxBatchWait:  time.Hour,
	}, chain, testLogger())

	// Below min size and within the wait window: nothing drains.
	s.mu.Lock()
	s.pending = []domain.SettlementFill{sfill(0)}
	require.Nil(t, s.drainLocked(false))

	// Past the wait window a sub-minimum batch drains anyway.
	s.pending[0].EnqueuedAt = time.Now().Add(-2 * time.Hour)
	b := s.drainLocked(false)
	require.NotNil(t, b)
	require.Equal(t, 1, b.FillCount())
	require.Equal(t, domain.BatchStatusPending, b.Status)

	// Force drains regardless of policy.
	s.pending = []domain.SettlementFill{sfill(1)}
	require.NotNil(t, s.drainLocked(true))

	// More than MaxBatchSize pending splits FIFO.
	s.pending = nil
	for i := 0; i < 7; i++ {
		s.pending = append(s.pending, sfill(i))
	}
	first := s.drainLocked(true)
	require.Equal(t, 5, first.FillCount())
	require.Equal(t, "fill-0", first.Fills[0].FillID)
	second := s.drainLocked(true)
	require.Equal(t, 2, second.FillCount())
	require.Equal(t, "fill-5", second.Fills[0].FillID)
	s.mu.Unlock()
}

func TestGasCeilingRequeuesWithoutRetry(t *testing.T) {
	chain := newFakeChain()
	chain.gasPrice = big.NewInt(200_000_000_000) // 200 gwei

	s, _, _ := newTestSettler(t, chain)
	s.cfg.MaxGasPrice = big.NewInt(100_000_000_000) // 100 gwei ceiling

	s.AddFill(sfill(0))
	s.AddFill(sfill(1))

	require.Eventually(t, func() bool {
		return len(s.snapshotByStatus(domain.BatchStatusPending)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Deferral consumed no retry budget and never reached estimation.
	b := s.snapshotByStatus(domain.BatchStatusPending)[0]
	require.Equal(t, 0, b.RetryCount)
	estimates, _ := chain.counts()
	require.Equal(t, 0, estimates)

	// Once gas falls below the ceiling the next tick submits it.
	chain.mu.Lock()
	chain.gasPrice = big.NewInt(30_000_000_000)
	chain.mu.Unlock()
	s.tick(context.Background())

	require.Eventually(t, func() bool {
		_, submits := chain.counts()
		return submits == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubmitRetriesThenFails(t *testing.T) {
	chain := newFakeChain()
	chain.submitErr = errors.New("connection refused")

	s, batches, fills := newTestSettler(t, chain)

	s.AddFill(sfill(0))
	s.AddFill(sfill(1))

	// MaxRetries 2: the initial attempt plus two retries, then terminal.
	require.Eventually(t, func() bool {
		list, _ := batches.ListByStatus(context.Background(), domain.BatchStatusFailed)
		return len(list) == 1
	}, 5*time.Second, 5*time.Millisecond)

	failed, _ := batches.ListByStatus(context.Background(), domain.BatchStatusFailed)
	require.Contains(t, failed[0].FailureReason, "Submission failed after 2 retries")
	_, submits := chain.counts()
	require.Equal(t, 3, submits)

	// Failed fills are archived for manual reprocessing.
	fills.mu.Lock()
	require.Len(t, fills.failed[failed[0].ID], 2)
	fills.mu.Unlock()

	require.Contains(t, drainEventKinds(s), "batch_failed")

	stats := s.Stats()
	require.Equal(t, int64(1), stats.FailedBatches)
	require.Equal(t, 0, stats.PendingBatches)
}

func TestEstimationFailureIsTerminal(t *testing.T) {
	chain := newFakeChain()
	chain.estimateErr = errors.New("execution reverted: order expired")

	s, batches, _ := newTestSettler(t, chain)

	s.AddFill(sfill(0))
	s.AddFill(sfill(1))

	require.Eventually(t, func() bool {
		list, _ := batches.ListByStatus(context.Background(), domain.BatchStatusFailed)
		return len(list) == 1
	}, 2*time.Second, 5*time.Millisecond)

	failed, _ := batches.ListByStatus(context.Background(), domain.BatchStatusFailed)
	require.Contains(t, failed[0].FailureReason, "Gas estimation failed")

	// Estimation failures are never retried.
	estimates, submits := chain.counts()
	require.Equal(t, 1, estimates)
	require.Equal(t, 0, submits)
}

func TestConfirmAtDepth(t *testing.T) {
	chain := newFakeChain()
	s, batches, fills := newTestSettler(t, chain)

	b := submittedBatch(s, "0xabc", 2)
	chain.mine("0xabc", 100)

	// Depth 2 of 3: not confirmed yet.
	chain.mu.Lock()
	chain.block = 102
	chain.mu.Unlock()
	s.pollConfirmations(context.Background())
	require.Equal(t, domain.BatchStatusSubmitted, b.Status)

	// Depth 3: confirmed, fills marked settled, batch dropped from memory.
	chain.mu.Lock()
	chain.block = 103
	chain.mu.Unlock()
	s.pollConfirmations(context.Background())

	require.Equal(t, domain.BatchStatusConfirmed, b.Status)
	require.Equal(t, uint64(100), b.BlockNumber)
	require.NotNil(t, b.ConfirmedAt)
	require.Empty(t, s.snapshotByStatus(domain.BatchStatusSubmitted))

	stored, ok := batches.get(b.ID)
	require.True(t, ok)
	require.Equal(t, domain.BatchStatusConfirmed, stored.Status)

	for _, f := range b.Fills {
		tx, ok := fills.settledTx(f.FillID)
		require.True(t, ok)
		require.Equal(t, "0xabc", tx)
	}

	kinds := drainEventKinds(s)
	require.Contains(t, kinds, "fill_settled")
	require.Contains(t, kinds, "batch_confirmed")

	stats := s.Stats()
	require.Equal(t, int64(1), stats.ConfirmedBatches)
	require.Equal(t, int64(2), stats.TotalFillsSettled)
	require.Equal(t, uint64(180_000), stats.TotalGasUsed)
	require.Equal(t, float64(2), stats.AverageBatchSize)

	// A second poll is a no-op: confirm is exactly-once.
	s.pollConfirmations(context.Background())
	require.Equal(t, int64(1), s.Stats().ConfirmedBatches)
}

func TestRevertedBatchFails(t *testing.T) {
	chain := newFakeChain()
	s, batches, _ := newTestSettler(t, chain)

	b := submittedBatch(s, "0xdead", 1)
	chain.mu.Lock()
	chain.receipts["0xdead"] = &Receipt{TxHash: "0xdead", BlockNumber: 100, Reverted: true}
	chain.mu.Unlock()

	s.pollConfirmations(context.Background())

	require.Equal(t, domain.BatchStatusFailed, b.Status)
	require.Equal(t, domain.ReasonReverted, b.FailureReason)
	stored, _ := batches.get(b.ID)
	require.Equal(t, domain.BatchStatusFailed, stored.Status)
}

func TestConfirmationTimeout(t *testing.T) {
	chain := newFakeChain()
	s, _, _ := newTestSettler(t, chain)

	b := submittedBatch(s, "0xslow", 1)

	// Within the window an unmined transaction is left alone.
	s.pollConfirmations(context.Background())
	require.Equal(t, domain.BatchStatusSubmitted, b.Status)

	past := time.Now().Add(-2 * time.Minute)
	s.mu.Lock()
	b.SubmittedAt = &past
	s.mu.Unlock()

	s.pollConfirmations(context.Background())
	require.Equal(t, domain.BatchStatusFailed, b.Status)
	require.Equal(t, domain.ReasonConfirmTimeout, b.FailureReason)
}

func TestReconcilePromotesLandedBatch(t *testing.T) {
	chain := newFakeChain()
	s, batches, fills := newTestSettler(t, chain)

	// A batch that timed out but whose transaction later landed.
	now := time.Now().UTC()
	b := domain.SettlementBatch{
		ID:            uuid.NewString(),
		ChainID:       137,
		MarketAddress: testMarketAddr,
		Fills:         []domain.SettlementFill{sfill(0)},
		Status:        domain.BatchStatusFailed,
		FailureReason: domain.ReasonConfirmTimeout,
		TxHash:        "0xlate",
		CreatedAt:     now,
		SubmittedAt:   &now,
	}
	require.NoError(t, batches.Upsert(context.Background(), b))
	chain.mine("0xlate", 100)
	chain.mu.Lock()
	chain.block = 110
	chain.mu.Unlock()

	s.reconcile(context.Background())

	stored, _ := batches.get(b.ID)
	require.Equal(t, domain.BatchStatusConfirmed, stored.Status)
	require.Empty(t, stored.FailureReason)
	require.Equal(t, uint64(100), stored.BlockNumber)

	tx, ok := fills.settledTx("fill-0")
	require.True(t, ok)
	require.Equal(t, "0xlate", tx)

	require.Contains(t, drainEventKinds(s), "batch_confirmed")
}

func TestReconcileSkipsGenuineFailures(t *testing.T) {
	chain := newFakeChain()
	s, batches, _ := newTestSettler(t, chain)

	b := domain.SettlementBatch{
		ID:            uuid.NewString(),
		Status:        domain.BatchStatusFailed,
		FailureReason: "Gas estimation failed: order expired",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, batches.Upsert(context.Background(), b))

	s.reconcile(context.Background())

	stored, _ := batches.get(b.ID)
	require.Equal(t, domain.BatchStatusFailed, stored.Status)
}

func TestRestoreResumesSubmittedBatches(t *testing.T) {
	chain := newFakeChain()
	s, batches, _ := newTestSettler(t, chain)

	now := time.Now().UTC()
	b := domain.SettlementBatch{
		ID:          uuid.NewString(),
		Status:      domain.BatchStatusSubmitted,
		TxHash:      "0xresume",
		Fills:       []domain.SettlementFill{sfill(0)},
		CreatedAt:   now,
		SubmittedAt: &now,
	}
	require.NoError(t, batches.Upsert(context.Background(), b))

	require.NoError(t, s.restore(context.Background()))
	require.Len(t, s.snapshotByStatus(domain.BatchStatusSubmitted), 1)

	// Polling picks the restored batch up and confirms it.
	chain.mine("0xresume", 100)
	chain.mu.Lock()
	chain.block = 110
	chain.mu.Unlock()
	s.pollConfirmations(context.Background())

	stored, _ := batches.get(b.ID)
	require.Equal(t, domain.BatchStatusConfirmed, stored.Status)
}

func TestGasPriceErrorSchedulesRetry(t *testing.T) {
	chain := newFakeChain()
	chain.gasPriceErr = errors.New("rpc timeout")

	cfg := testSettlerConfig()
	cfg.MaxRetries = 1000 // keep the budget out of the way
	cfg.RetryBackoff = 1
	s := NewSettler(cfg, chain, testLogger())
	s.WithStores(newMemBatchStore(), newMemFillStore())

	s.AddFill(sfill(0))
	s.AddFill(sfill(1))

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, b := range s.active {
			if b.RetryCount > 0 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	// Recovery: gas price comes back, a retry lands the batch.
	chain.mu.Lock()
	chain.gasPriceErr = nil
	chain.mu.Unlock()

	require.Eventually(t, func() bool {
		_, submits := chain.counts()
		return submits >= 1
	}, 5*time.Second, 5*time.Millisecond)
}
