// Package settle implements the asynchronous batch settlement pipeline:
// fills are grouped into batches under size/time policy, submitted on-chain
// through a single operator-controlled transaction, confirmed by receipt
// polling, and retried with bounded exponential backoff on transport
// failures.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/outcomefi/clob/internal/domain"
)

// Receipt is the settler's view of a mined transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Reverted    bool
}

// ChainClient is the on-chain collaborator. TransactionReceipt returns
// (nil, nil) while the transaction is not yet mined.
type ChainClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateBatchFill(ctx context.Context, market string, fills []domain.SettlementFill) (uint64, error)
	SubmitBatchFill(ctx context.Context, market string, fills []domain.SettlementFill, gasLimit uint64, gasPrice *big.Int) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config holds settlement policy parameters. Zero values fall back to
// defaults in withDefaults.
type Config struct {
	ChainID       int64
	MarketAddress string

	MinBatchSize int
	MaxBatchSize int
	MaxBatchWait time.Duration

	BatchInterval   time.Duration
	ConfirmInterval time.Duration

	Confirmations       uint64
	ConfirmationTimeout time.Duration

	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff float64

	// MaxGasPrice defers submission (requeue, not retry) while the network
	// gas price is above it. Nil disables the ceiling.
	MaxGasPrice *big.Int
	// GasMarginPct is the safety margin applied to the gas estimate.
	GasMarginPct int64

	ReconcileInterval time.Duration
	ShutdownWait      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinBatchSize == 0 {
		c.MinBatchSize = 5
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 50
	}
	if c.MaxBatchWait == 0 {
		c.MaxBatchWait = 30 * time.Second
	}
	if c.BatchInterval == 0 {
		c.BatchInterval = 5 * time.Second
	}
	if c.ConfirmInterval == 0 {
		c.ConfirmInterval = 10 * time.Second
	}
	if c.Confirmations == 0 {
		c.Confirmations = 3
	}
	if c.ConfirmationTimeout == 0 {
		c.ConfirmationTimeout = 5 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 2
	}
	if c.GasMarginPct == 0 {
		c.GasMarginPct = 20
	}
	if c.ShutdownWait == 0 {
		c.ShutdownWait = 30 * time.Second
	}
	return c
}

// Settler owns fills from admission until their batch reaches a terminal
// state. One Settler instance serves one (chainId, marketAddress) pair with
// one operator key; submissions within the instance are serialized by a
// single-slot semaphore to keep nonce order.
type Settler struct {
	cfg      Config
	chain    ChainClient
	batches  domain.BatchStore    // optional durable mirror
	fills    domain.FillStore     // optional settlement metadata + failure records
	archiver domain.BatchArchiver // optional cold storage
	logger   *slog.Logger

	mu       sync.Mutex
	pending  []domain.SettlementFill
	active   map[string]*domain.SettlementBatch
	creating bool

	submitSem chan struct{}
	closed    atomic.Bool

	events chan domain.SettlementEvent

	// cumulative counters, guarded by mu
	confirmedCount int64
	failedCount    int64
	settledFills   int64
	totalGasUsed   uint64
	sumBatchSize   int64
	sumConfirmMs   int64
}

// NewSettler creates a Settler over the given chain client.
func NewSettler(cfg Config, chain ChainClient, logger *slog.Logger) *Settler {
	return &Settler{
		cfg:       cfg.withDefaults(),
		chain:     chain,
		logger:    logger.With(slog.String("component", "settler")),
		active:    make(map[string]*domain.SettlementBatch),
		submitSem: make(chan struct{}, 1),
		events:    make(chan domain.SettlementEvent, 256),
	}
}

// WithStores attaches the durable batch and fill stores.
func (s *Settler) WithStores(batches domain.BatchStore, fills domain.FillStore) *Settler {
	s.batches = batches
	s.fills = fills
	return s
}

// WithArchiver attaches cold storage for terminal batches.
func (s *Settler) WithArchiver(a domain.BatchArchiver) *Settler {
	s.archiver = a
	return s
}

// Events returns the settlement event stream. Events are dropped, with a log
// line, if the consumer falls more than the buffer behind.
func (s *Settler) Events() <-chan domain.SettlementEvent { return s.events }

// AddFill enqueues a settlement fill. Reaching MaxBatchSize pending fills
// triggers immediate batch creation.
func (s *Settler) AddFill(fill domain.SettlementFill) {
	if s.closed.Load() {
		s.logger.Warn("fill enqueued during shutdown", slog.String("fill_id", fill.FillID))
	}
	if fill.EnqueuedAt.IsZero() {
		fill.EnqueuedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.pending = append(s.pending, fill)
	full := len(s.pending) >= s.cfg.MaxBatchSize
	s.mu.Unlock()

	if full {
		go s.createBatches(context.Background(), false)
	}
}

// Run drives the periodic loops until ctx is cancelled, then performs the
// graceful shutdown drain.
func (s *Settler) Run(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		s.logger.Warn("restoring outstanding batches", slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "settler starting",
		slog.Int64("chain_id", s.cfg.ChainID),
		slog.String("market", s.cfg.MarketAddress),
		slog.Int("max_batch_size", s.cfg.MaxBatchSize),
		slog.Duration("batch_interval", s.cfg.BatchInterval),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.BatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.tick(gctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.ConfirmInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.pollConfirmations(gctx)
			}
		}
	})

	if s.cfg.ReconcileInterval > 0 && s.batches != nil {
		g.Go(func() error {
			ticker := time.NewTicker(s.cfg.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.reconcile(gctx)
				}
			}
		})
	}

	err := g.Wait()
	s.shutdown()
	return err
}

// tick is one batch-creation cycle: retry gas-deferred batches first, then
// drain pending fills under the size/time policy.
func (s *Settler) tick(ctx context.Context) {
	for _, b := range s.snapshotByStatus(domain.BatchStatusPending) {
		go s.submit(ctx, b)
	}
	s.createBatches(ctx, false)
}

// createBatches drains pending fills into batches. The drain happens
// synchronously under the mutex, before any I/O, so two concurrent creation
// attempts can never claim the same fill; the creating flag additionally
// collapses overlapping invocations.
func (s *Settler) createBatches(ctx context.Context, force bool) {
	s.mu.Lock()
	if s.creating {
		s.mu.Unlock()
		return
	}
	s.creating = true
	var created []*domain.SettlementBatch
	for {
		b := s.drainLocked(force)
		if b == nil {
			break
		}
		created = append(created, b)
	}
	s.creating = false
	s.mu.Unlock()

	for _, b := range created {
		s.logger.InfoContext(ctx, "batch created",
			slog.String("batch_id", b.ID),
			slog.Int("fills", b.FillCount()),
		)
		s.persist(ctx, b)
		s.emit(domain.BatchCreated{Batch: *b})
		go s.submit(ctx, b)
	}
}

// drainLocked removes up to MaxBatchSize oldest fills (FIFO) when the batch
// policy allows and returns the new batch, or nil.
func (s *Settler) drainLocked(force bool) *domain.SettlementBatch {
	n := len(s.pending)
	if n == 0 {
		return nil
	}
	if !force && n < s.cfg.MaxBatchSize {
		waited := time.Since(s.pending[0].EnqueuedAt)
		if n < s.cfg.MinBatchSize && waited < s.cfg.MaxBatchWait {
			return nil
		}
	}

	take := n
	if take > s.cfg.MaxBatchSize {
		take = s.cfg.MaxBatchSize
	}
	fills := make([]domain.SettlementFill, take)
	copy(fills, s.pending[:take])
	s.pending = append(s.pending[:0], s.pending[take:]...)

	b := &domain.SettlementBatch{
		ID:            uuid.NewString(),
		ChainID:       s.cfg.ChainID,
		MarketAddress: s.cfg.MarketAddress,
		Fills:         fills,
		Status:        domain.BatchStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	s.active[b.ID] = b
	return b
}

// submit pushes one batch through the gas checks and on to the chain. It
// holds the submission semaphore for the whole attempt so only one
// transaction is ever in flight per settler instance.
func (s *Settler) submit(ctx context.Context, b *domain.SettlementBatch) {
	select {
	case s.submitSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.submitSem }()

	if !s.transition(b, domain.BatchStatusSubmitting, domain.BatchStatusPending, domain.BatchStatusRetrying) {
		return
	}

	gasPrice, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		s.scheduleRetry(ctx, b, fmt.Errorf("gas price: %w", err))
		return
	}

	// Gas-ceiling deferral is policy, not an error: the batch goes back to
	// pending with its retry budget untouched and is reconsidered next tick.
	if s.cfg.MaxGasPrice != nil && gasPrice.Cmp(s.cfg.MaxGasPrice) > 0 {
		s.logger.InfoContext(ctx, "gas price above ceiling, batch requeued",
			slog.String("batch_id", b.ID),
			slog.String("gas_price", gasPrice.String()),
			slog.String("ceiling", s.cfg.MaxGasPrice.String()),
		)
		s.transition(b, domain.BatchStatusPending, domain.BatchStatusSubmitting)
		return
	}

	gasLimit, err := s.chain.EstimateBatchFill(ctx, b.MarketAddress, b.Fills)
	if err != nil {
		// Estimation failure signals a structurally invalid fill (stale
		// on-chain order state). Hard failure, never retried.
		s.fail(ctx, b, "Gas estimation failed: "+err.Error())
		return
	}
	gasLimit += gasLimit * uint64(s.cfg.GasMarginPct) / 100

	txHash, err := s.chain.SubmitBatchFill(ctx, b.MarketAddress, b.Fills, gasLimit, gasPrice)
	if err != nil {
		s.scheduleRetry(ctx, b, err)
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	b.Status = domain.BatchStatusSubmitted
	b.TxHash = txHash
	b.SubmittedAt = &now
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "batch submitted",
		slog.String("batch_id", b.ID),
		slog.String("tx_hash", txHash),
		slog.Int("fills", b.FillCount()),
	)
	s.persist(ctx, b)
	s.emit(domain.BatchSubmitted{Batch: *b, TxHash: txHash})
}

// scheduleRetry handles a transport failure: bounded exponential backoff,
// then terminal failure once the retry budget is spent.
func (s *Settler) scheduleRetry(ctx context.Context, b *domain.SettlementBatch, cause error) {
	s.mu.Lock()
	b.RetryCount++
	retries := b.RetryCount
	s.mu.Unlock()

	if retries > s.cfg.MaxRetries {
		s.fail(ctx, b, fmt.Sprintf("Submission failed after %d retries: %v", s.cfg.MaxRetries, cause))
		return
	}

	s.transition(b, domain.BatchStatusRetrying, domain.BatchStatusSubmitting)
	delay := time.Duration(float64(s.cfg.RetryDelay) * math.Pow(s.cfg.RetryBackoff, float64(retries-1)))

	s.logger.WarnContext(ctx, "batch submission failed, retrying",
		slog.String("batch_id", b.ID),
		slog.Int("retry", retries),
		slog.Duration("delay", delay),
		slog.String("error", cause.Error()),
	)

	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		s.submit(ctx, b)
	})
}

// pollConfirmations checks every submitted batch for a receipt and advances
// those that reached the configured confirmation depth.
func (s *Settler) pollConfirmations(ctx context.Context) {
	submitted := s.snapshotByStatus(domain.BatchStatusSubmitted)
	if len(submitted) == 0 {
		return
	}

	current, err := s.chain.BlockNumber(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "block number fetch failed", slog.String("error", err.Error()))
		return
	}

	for _, b := range submitted {
		receipt, err := s.chain.TransactionReceipt(ctx, b.TxHash)
		if err != nil {
			s.logger.WarnContext(ctx, "receipt fetch failed",
				slog.String("batch_id", b.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if receipt == nil {
			// Not mined yet. Past the timeout the batch is abandoned as
			// failed even though the transaction may still land; the
			// reconciliation sweep re-checks it before its fills can be
			// resubmitted elsewhere.
			if b.SubmittedAt != nil && time.Since(*b.SubmittedAt) > s.cfg.ConfirmationTimeout {
				s.fail(ctx, b, domain.ReasonConfirmTimeout)
			}
			continue
		}
		if receipt.Reverted {
			s.fail(ctx, b, domain.ReasonReverted)
			continue
		}
		if current < receipt.BlockNumber || current-receipt.BlockNumber < s.cfg.Confirmations {
			continue
		}
		s.confirm(ctx, b, receipt)
	}
}

// confirm transitions a batch to confirmed exactly once, records settlement
// metadata for each fill, and drops the batch from memory.
func (s *Settler) confirm(ctx context.Context, b *domain.SettlementBatch, receipt *Receipt) {
	now := time.Now().UTC()

	s.mu.Lock()
	if b.Status != domain.BatchStatusSubmitted {
		s.mu.Unlock()
		return
	}
	b.Status = domain.BatchStatusConfirmed
	b.BlockNumber = receipt.BlockNumber
	b.GasUsed = receipt.GasUsed
	b.ConfirmedAt = &now

	s.confirmedCount++
	s.settledFills += int64(b.FillCount())
	s.totalGasUsed += receipt.GasUsed
	s.sumBatchSize += int64(b.FillCount())
	if b.SubmittedAt != nil {
		s.sumConfirmMs += now.Sub(*b.SubmittedAt).Milliseconds()
	}
	delete(s.active, b.ID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "batch confirmed",
		slog.String("batch_id", b.ID),
		slog.String("tx_hash", b.TxHash),
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)

	s.persist(ctx, b)
	if s.fills != nil {
		for _, f := range b.Fills {
			if err := s.fills.MarkSettled(ctx, f.FillID, b.TxHash, receipt.BlockNumber); err != nil {
				s.logger.ErrorContext(ctx, "recording fill settlement",
					slog.String("fill_id", f.FillID),
					slog.String("error", err.Error()),
				)
			}
			s.emit(domain.FillSettled{Fill: f, TxHash: b.TxHash, BlockNumber: receipt.BlockNumber})
		}
	} else {
		for _, f := range b.Fills {
			s.emit(domain.FillSettled{Fill: f, TxHash: b.TxHash, BlockNumber: receipt.BlockNumber})
		}
	}
	s.emit(domain.BatchConfirmed{Batch: *b, BlockNumber: receipt.BlockNumber, GasUsed: receipt.GasUsed})
	s.archive(ctx, b)
}

// fail moves a batch to terminal failure, persists the batch and its fills
// for manual recovery, and drops it from memory. A failed batch is never
// resubmitted by this process.
func (s *Settler) fail(ctx context.Context, b *domain.SettlementBatch, reason string) {
	s.mu.Lock()
	if b.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	b.Status = domain.BatchStatusFailed
	b.FailureReason = reason
	s.failedCount++
	delete(s.active, b.ID)
	s.mu.Unlock()

	s.logger.ErrorContext(ctx, "batch failed",
		slog.String("batch_id", b.ID),
		slog.String("reason", reason),
		slog.Int("fills", b.FillCount()),
	)

	s.persist(ctx, b)
	if s.fills != nil {
		if err := s.fills.RecordFailed(ctx, b.ID, reason, b.Fills); err != nil {
			s.logger.ErrorContext(ctx, "recording failed fills",
				slog.String("batch_id", b.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.emit(domain.BatchFailed{Batch: *b, Reason: reason})
	s.archive(ctx, b)
}

// reconcile re-checks failed batches whose transaction may have landed after
// the confirmation timeout. A landed, sufficiently deep, non-reverted
// transaction promotes the batch to confirmed so its fills are never
// double-settled.
func (s *Settler) reconcile(ctx context.Context) {
	failed, err := s.batches.ListByStatus(ctx, domain.BatchStatusFailed)
	if err != nil {
		s.logger.WarnContext(ctx, "listing failed batches", slog.String("error", err.Error()))
		return
	}

	var current uint64
	for i := range failed {
		b := &failed[i]
		if b.TxHash == "" || b.FailureReason != domain.ReasonConfirmTimeout {
			continue
		}
		receipt, err := s.chain.TransactionReceipt(ctx, b.TxHash)
		if err != nil || receipt == nil || receipt.Reverted {
			continue
		}
		if current == 0 {
			current, err = s.chain.BlockNumber(ctx)
			if err != nil {
				return
			}
		}
		if current < receipt.BlockNumber || current-receipt.BlockNumber < s.cfg.Confirmations {
			continue
		}

		now := time.Now().UTC()
		b.Status = domain.BatchStatusConfirmed
		b.BlockNumber = receipt.BlockNumber
		b.GasUsed = receipt.GasUsed
		b.ConfirmedAt = &now
		b.FailureReason = ""

		s.mu.Lock()
		s.confirmedCount++
		s.failedCount--
		s.settledFills += int64(b.FillCount())
		s.totalGasUsed += receipt.GasUsed
		s.mu.Unlock()

		s.logger.InfoContext(ctx, "timed-out batch landed on-chain, reconciled",
			slog.String("batch_id", b.ID),
			slog.String("tx_hash", b.TxHash),
		)

		s.persist(ctx, b)
		if s.fills != nil {
			for _, f := range b.Fills {
				_ = s.fills.MarkSettled(ctx, f.FillID, b.TxHash, receipt.BlockNumber)
				s.emit(domain.FillSettled{Fill: f, TxHash: b.TxHash, BlockNumber: receipt.BlockNumber})
			}
		}
		s.emit(domain.BatchConfirmed{Batch: *b, BlockNumber: receipt.BlockNumber, GasUsed: receipt.GasUsed})
	}
}

// restore reloads submitted batches from the durable mirror after a restart
// so confirmation polling resumes where it left off.
func (s *Settler) restore(ctx context.Context) error {
	if s.batches == nil {
		return nil
	}
	outstanding, err := s.batches.ListByStatus(ctx, domain.BatchStatusSubmitted)
	if err != nil {
		return fmt.Errorf("settle: list submitted batches: %w", err)
	}
	s.mu.Lock()
	for i := range outstanding {
		b := outstanding[i]
		s.active[b.ID] = &b
	}
	s.mu.Unlock()
	if len(outstanding) > 0 {
		s.logger.Info("resumed confirmation polling for outstanding batches",
			slog.Int("count", len(outstanding)),
		)
	}
	return nil
}

// shutdown force-creates one final batch from remaining pending fills, then
// polls confirmations for a bounded window to minimize in-flight state.
func (s *Settler) shutdown() {
	s.closed.Store(true)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownWait)
	defer cancel()

	s.logger.Info("settler shutting down, flushing pending fills")
	s.createBatchesSync(ctx)

	for ctx.Err() == nil {
		if len(s.snapshotByStatus(domain.BatchStatusSubmitted)) == 0 {
			break
		}
		s.pollConfirmations(ctx)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}

	if n := len(s.snapshotByStatus(domain.BatchStatusSubmitted)); n > 0 {
		s.logger.Warn("shutdown with unconfirmed batches; durable mirror holds them",
			slog.Int("count", n),
		)
	}
}

// createBatchesSync drains and submits synchronously, used on shutdown.
func (s *Settler) createBatchesSync(ctx context.Context) {
	s.mu.Lock()
	var created []*domain.SettlementBatch
	for {
		b := s.drainLocked(true)
		if b == nil {
			break
		}
		created = append(created, b)
	}
	s.mu.Unlock()

	for _, b := range created {
		s.persist(ctx, b)
		s.emit(domain.BatchCreated{Batch: *b})
		s.submit(ctx, b)
	}
}

// Stats returns the operational snapshot.
func (s *Settler) Stats() domain.SettlerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.SettlerStats{
		PendingFills:      len(s.pending),
		ConfirmedBatches:  s.confirmedCount,
		FailedBatches:     s.failedCount,
		TotalFillsSettled: s.settledFills,
		TotalGasUsed:      s.totalGasUsed,
	}
	for _, b := range s.active {
		switch b.Status {
		case domain.BatchStatusSubmitted:
			stats.SubmittedBatches++
		default:
			stats.PendingBatches++
		}
	}
	if s.confirmedCount > 0 {
		stats.AverageBatchSize = float64(s.sumBatchSize) / float64(s.confirmedCount)
		stats.AverageConfirmationTime = float64(s.sumConfirmMs) / float64(s.confirmedCount)
	}
	return stats
}

// transition moves b to next when its current status is one of from,
// returning whether the move happened.
func (s *Settler) transition(b *domain.SettlementBatch, next domain.BatchStatus, from ...domain.BatchStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if b.Status == f {
			b.Status = next
			return true
		}
	}
	return false
}

func (s *Settler) snapshotByStatus(status domain.BatchStatus) []*domain.SettlementBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SettlementBatch
	for _, b := range s.active {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

// persist mirrors the batch to the durable store; failures are logged, never
// fatal, so settlement progress does not depend on store availability.
func (s *Settler) persist(ctx context.Context, b *domain.SettlementBatch) {
	if s.batches == nil {
		return
	}
	s.mu.Lock()
	snapshot := *b
	s.mu.Unlock()
	if err := s.batches.Upsert(ctx, snapshot); err != nil {
		s.logger.ErrorContext(ctx, "persisting batch",
			slog.String("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Settler) archive(ctx context.Context, b *domain.SettlementBatch) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveBatch(ctx, *b); err != nil {
		s.logger.WarnContext(ctx, "archiving batch",
			slog.String("batch_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

// emit delivers an event without ever blocking the settlement path.
func (s *Settler) emit(ev domain.SettlementEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event buffer full, dropping event", slog.String("kind", ev.Kind()))
	}
}
