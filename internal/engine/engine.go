// Package engine implements order admission and matching. It validates
// incoming signed orders, resolves them against the relevant book under
// price-time priority, and hands resulting fills to the settlement sink.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/outcomefi/clob/internal/book"
	"github.com/outcomefi/clob/internal/domain"
)

// FillSink consumes settlement fills produced by matching. Implemented by the
// batch settler.
type FillSink interface {
	AddFill(fill domain.SettlementFill)
}

// Config holds engine admission parameters.
type Config struct {
	MinOrderAmount *big.Int
	MaxOrderAmount *big.Int
	MakerFeeBps    int64
	TakerFeeBps    int64
	// MaxOutcomes is the default outcome count used when a market has no
	// explicit entry in OutcomeCounts. Binary markets use 2.
	MaxOutcomes   int
	OutcomeCounts map[domain.MarketKey]int
}

// Result is the structured response of SubmitOrder. Validation failures set
// Error and leave the book untouched.
type Result struct {
	Success bool       `json:"success"`
	Data    *Submitted `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Submitted reports the admitted order and any fills it produced.
type Submitted struct {
	Order  domain.Order  `json:"order"`
	Fills  []domain.Fill `json:"fills"`
	Status string        `json:"status"` // filled | partially_filled | resting | cancelled
}

// Engine is the gatekeeper and matcher in front of the book registry.
type Engine struct {
	books  *book.Manager
	cfg    Config
	orders domain.OrderStore // optional durable replay guard
	fills  domain.FillStore  // optional fill persistence
	sink   FillSink          // optional settlement sink
	bus    domain.SignalBus  // optional trade/depth broadcast
	logger *slog.Logger

	seq atomic.Uint64

	// Process-local replay guard; the order store enforces the durable one.
	saltMu sync.Mutex
	salts  map[string]struct{}
}

// New creates an Engine over the given book registry. Store, fill store, sink
// and bus may be nil; the engine degrades to a pure in-memory matcher.
func New(books *book.Manager, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxOutcomes == 0 {
		cfg.MaxOutcomes = 2
	}
	return &Engine{
		books:  books,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
		salts:  make(map[string]struct{}),
	}
}

// WithOrderStore attaches the durable order store used for the replay guard.
func (e *Engine) WithOrderStore(s domain.OrderStore) *Engine { e.orders = s; return e }

// WithFillStore attaches the durable fill store.
func (e *Engine) WithFillStore(s domain.FillStore) *Engine { e.fills = s; return e }

// WithSink attaches the settlement sink.
func (e *Engine) WithSink(s FillSink) *Engine { e.sink = s; return e }

// WithSignalBus attaches the trade broadcast bus.
func (e *Engine) WithSignalBus(b domain.SignalBus) *Engine { e.bus = b; return e }

// Books returns the underlying registry, used by the read API.
func (e *Engine) Books() *book.Manager { return e.books }

// SubmitOrder validates input and, on success, matches it against the
// opposite side of its book. Validation failures return success=false with a
// field-identifying message and cause no book mutation. Matching itself
// cannot fail once validation passes; the worst case is zero fills.
func (e *Engine) SubmitOrder(ctx context.Context, input domain.OrderInput) Result {
	if msg := e.validate(ctx, input); msg != "" {
		return Result{Success: false, Error: msg}
	}

	order := e.admit(input)

	if err := e.reserveSalt(ctx, order); err != nil {
		return Result{Success: false, Error: "Salt already used"}
	}

	bk := e.books.GetOrCreate(order.MarketKey, order.OutcomeIndex)
	matches := bk.Execute(order)

	fills := make([]domain.Fill, 0, len(matches))
	for _, m := range matches {
		fill := e.buildFill(order, m)
		fills = append(fills, fill)
		bk.RecordTrade(fill.PriceTicks, fill.Amount)

		if e.fills != nil {
			if err := e.fills.Record(ctx, fill); err != nil {
				e.logger.ErrorContext(ctx, "recording fill",
					slog.String("fill_id", fill.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if e.sink != nil {
			e.sink.AddFill(domain.SettlementFill{
				ID:         uuid.NewString(),
				FillID:     fill.ID,
				Order:      m.Maker,
				Signature:  m.Maker.Signature,
				FillAmount: new(big.Int).Set(m.Amount),
				EnqueuedAt: time.Now().UTC(),
			})
		}
	}

	if e.orders != nil {
		if err := e.orders.Record(ctx, *order); err != nil {
			e.logger.ErrorContext(ctx, "recording order",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	e.broadcast(ctx, bk, order, fills)

	return Result{
		Success: true,
		Data: &Submitted{
			Order:  *order,
			Fills:  fills,
			Status: status(order, fills),
		},
	}
}

// CancelOrder removes a resting order from its book. Returns the removed
// order, or nil if it was already filled or cancelled.
func (e *Engine) CancelOrder(key domain.MarketKey, outcome int, id string) *domain.Order {
	bk := e.books.Get(key, outcome)
	if bk == nil {
		return nil
	}
	return bk.Remove(id)
}

// admit stamps the input into an Order with id and admission sequence.
func (e *Engine) admit(input domain.OrderInput) *domain.Order {
	return &domain.Order{
		ID:                domain.OrderID(input.Maker, input.Salt, input.MarketKey),
		MarketKey:         input.MarketKey,
		OutcomeIndex:      input.OutcomeIndex,
		Maker:             input.Maker,
		IsBuy:             input.IsBuy,
		TimeInForce:       timeInForce(input.TimeInForce),
		PriceTicks:        input.PriceTicks,
		Amount:            new(big.Int).Set(input.Amount),
		Remaining:         new(big.Int).Set(input.Amount),
		Salt:              new(big.Int).Set(input.Salt),
		Expiry:            input.Expiry,
		Signature:         input.Signature,
		ChainID:           input.ChainID,
		VerifyingContract: input.VerifyingContract,
		Sequence:          e.seq.Add(1),
		CreatedAt:         time.Now().UTC(),
	}
}

func (e *Engine) buildFill(taker *domain.Order, m book.Match) domain.Fill {
	notional := domain.Notional(m.PriceTicks, m.Amount)
	return domain.Fill{
		ID:           uuid.NewString(),
		MarketKey:    taker.MarketKey,
		OutcomeIndex: taker.OutcomeIndex,
		MakerOrderID: m.Maker.ID,
		TakerOrderID: taker.ID,
		PriceTicks:   m.PriceTicks,
		Amount:       new(big.Int).Set(m.Amount),
		MakerFee:     domain.FeeFor(notional, e.cfg.MakerFeeBps),
		TakerFee:     domain.FeeFor(notional, e.cfg.TakerFeeBps),
		Sequence:     e.seq.Add(1),
		CreatedAt:    time.Now().UTC(),
	}
}

// reserveSalt performs the final admission step: claim the (maker, salt,
// verifyingContract) triple both process-locally and, when a store is wired,
// durably. Runs after all shape validation so a rejected order leaves no
// trace.
func (e *Engine) reserveSalt(ctx context.Context, o *domain.Order) error {
	key := domain.SaltKey(o.Maker, o.Salt, o.VerifyingContract)

	e.saltMu.Lock()
	if _, used := e.salts[key]; used {
		e.saltMu.Unlock()
		return domain.ErrSaltReplayed
	}
	e.salts[key] = struct{}{}
	e.saltMu.Unlock()

	if e.orders != nil {
		used, err := e.orders.SaltUsed(ctx, o.Maker, o.Salt, o.VerifyingContract)
		if err != nil {
			e.logger.WarnContext(ctx, "salt lookup failed, relying on local guard",
				slog.String("error", err.Error()),
			)
			return nil
		}
		if used {
			return domain.ErrSaltReplayed
		}
	}
	return nil
}

func (e *Engine) broadcast(ctx context.Context, bk *book.Book, order *domain.Order, fills []domain.Fill) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":       "book_update",
		"market_key": order.MarketKey,
		"outcome":    order.OutcomeIndex,
		"fills":      len(fills),
		"stats":      bk.Stats(),
	})
	if err != nil {
		return
	}
	channel := "ch:book:" + string(order.MarketKey)
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.DebugContext(ctx, "book broadcast failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func timeInForce(tif domain.TimeInForce) domain.TimeInForce {
	if tif == "" {
		return domain.TimeInForceGTC
	}
	return tif
}

func status(o *domain.Order, fills []domain.Fill) string {
	switch {
	case o.Remaining.Sign() == 0:
		return "filled"
	case len(fills) > 0:
		return "partially_filled"
	case o.TimeInForce == domain.TimeInForceIOC:
		return "cancelled"
	default:
		return "resting"
	}
}
