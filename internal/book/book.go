// Package book maintains the resting-order state for (market, outcome)
// pairs: price-time priority ladders, depth snapshots, and rolling trade
// statistics. Books are pure in-memory structures; durability lives with the
// fill and batch stores.
package book

import (
	"math/big"
	"sync"
	"time"

	"github.com/outcomefi/clob/internal/domain"
)

// volumeWindow is the trailing window for Volume24h.
const volumeWindow = 24 * time.Hour

type tradePoint struct {
	at     time.Time
	amount *big.Int
}

// Book holds the resting orders for one (market, outcome) pair. All methods
// are safe for concurrent use; mutation is serialized on an internal mutex so
// a match-and-rest cycle is one critical section.
type Book struct {
	mu sync.RWMutex

	key     domain.MarketKey
	outcome int

	bids *ladder
	asks *ladder
	byID map[string]*domain.Order

	lastTrade *int64
	trades    []tradePoint
}

// New creates an empty book for the given pair.
func New(key domain.MarketKey, outcome int) *Book {
	return &Book{
		key:     key,
		outcome: outcome,
		bids:    newLadder(true),
		asks:    newLadder(false),
		byID:    make(map[string]*domain.Order),
	}
}

// Match is a single maker execution produced while resolving a taker order.
type Match struct {
	Maker      domain.Order // maker order snapshot after the fill
	PriceTicks int64
	Amount     *big.Int
}

// Add inserts a resting order on the correct side. Duplicate ids are a no-op
// and return false.
func (b *Book) Add(o *domain.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(o)
}

func (b *Book) addLocked(o *domain.Order) bool {
	if _, dup := b.byID[o.ID]; dup {
		return false
	}
	b.byID[o.ID] = o
	lv := b.side(o.IsBuy).getOrCreate(o.PriceTicks)
	lv.orders = append(lv.orders, o)
	return true
}

// Remove removes and returns the order with the given id, or nil if absent.
// Absence is not an error: the order may have been filled or cancelled
// concurrently and callers must treat nil accordingly.
func (b *Book) Remove(id string) *domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.byID[id]
	if !ok {
		return nil
	}
	delete(b.byID, id)

	ld := b.side(o.IsBuy)
	if i, found := ld.search(o.PriceTicks); found {
		ld.levels[i].remove(id)
		ld.prune(i)
	}
	return o
}

// BestBid returns the highest-priority resting buy order, or nil.
func (b *Book) BestBid() *domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return headOf(b.bids)
}

// BestAsk returns the highest-priority resting sell order, or nil.
func (b *Book) BestAsk() *domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return headOf(b.asks)
}

func headOf(ld *ladder) *domain.Order {
	lv := ld.best()
	if lv == nil {
		return nil
	}
	return lv.head()
}

// Execute resolves taker against the opposite side under price-time priority
// and, when a remainder survives and the taker is not immediate-or-cancel,
// rests it. Matching and resting happen in one critical section so no other
// order can interleave between them.
//
// Each match executes min(makerRemaining, takerRemaining) at the maker's
// price. Makers that reach zero remaining are removed and their empty levels
// pruned.
func (b *Book) Execute(taker *domain.Order) []Match {
	b.mu.Lock()
	defer b.mu.Unlock()

	opposite := b.side(!taker.IsBuy)
	var matches []Match

	for taker.Remaining.Sign() > 0 {
		lv := opposite.best()
		if lv == nil || !crosses(taker, lv.priceTicks) {
			break
		}

		maker := lv.head()
		qty := minBig(maker.Remaining, taker.Remaining)

		maker.Remaining = new(big.Int).Sub(maker.Remaining, qty)
		taker.Remaining = new(big.Int).Sub(taker.Remaining, qty)

		matches = append(matches, Match{
			Maker:      *maker,
			PriceTicks: maker.PriceTicks,
			Amount:     qty,
		})

		if maker.Remaining.Sign() == 0 {
			lv.popHead()
			delete(b.byID, maker.ID)
			opposite.pruneLevel(lv)
		}
	}

	if taker.Remaining.Sign() > 0 && taker.TimeInForce != domain.TimeInForceIOC {
		b.restLocked(taker)
	}
	return matches
}

// restLocked inserts taker as a resting order, skipping duplicates.
func (b *Book) restLocked(o *domain.Order) {
	if _, dup := b.byID[o.ID]; dup {
		return
	}
	b.byID[o.ID] = o
	lv := b.side(o.IsBuy).getOrCreate(o.PriceTicks)
	lv.orders = append(lv.orders, o)
}

// crosses reports whether the taker's limit admits a trade at levelPrice.
func crosses(taker *domain.Order, levelPrice int64) bool {
	if taker.IsBuy {
		return levelPrice <= taker.PriceTicks
	}
	return levelPrice >= taker.PriceTicks
}

// Depth returns up to levels aggregated price levels per side, best first.
// Levels with zero resting orders are never reported.
func (b *Book) Depth(levels int) domain.DepthSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return domain.DepthSnapshot{
		MarketKey:    b.key,
		OutcomeIndex: b.outcome,
		Bids:         depthOf(b.bids, levels),
		Asks:         depthOf(b.asks, levels),
		Timestamp:    time.Now().UTC(),
	}
}

func depthOf(ld *ladder, max int) []domain.DepthLevel {
	out := make([]domain.DepthLevel, 0, max)
	for _, lv := range ld.levels {
		if len(out) >= max {
			break
		}
		out = append(out, domain.DepthLevel{
			PriceTicks:    lv.priceTicks,
			TotalQuantity: lv.totalQuantity(),
			OrderCount:    len(lv.orders),
		})
	}
	return out
}

// Queue returns the resting orders at an exact price on one side, in
// priority order. The returned slice holds copies.
func (b *Book) Queue(priceTicks int64, isBuy bool) []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ld := b.side(isBuy)
	i, ok := ld.search(priceTicks)
	if !ok {
		return nil
	}
	out := make([]domain.Order, 0, len(ld.levels[i].orders))
	for _, o := range ld.levels[i].orders {
		out = append(out, *o)
	}
	return out
}

// RecordTrade updates the last trade price and the rolling 24h volume.
func (b *Book) RecordTrade(priceTicks int64, amount *big.Int) {
	b.recordTradeAt(priceTicks, amount, time.Now())
}

func (b *Book) recordTradeAt(priceTicks int64, amount *big.Int, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := priceTicks
	b.lastTrade = &p
	b.trades = append(b.trades, tradePoint{at: at, amount: new(big.Int).Set(amount)})
	b.pruneTradesLocked(at)
}

// pruneTradesLocked drops trade points older than the trailing window.
func (b *Book) pruneTradesLocked(now time.Time) {
	cutoff := now.Add(-volumeWindow)
	i := 0
	for i < len(b.trades) && b.trades[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.trades = append(b.trades[:0], b.trades[i:]...)
	}
}

// Stats returns the aggregated statistics snapshot. Spread is only present
// when both sides are non-empty; queries never report volume outside the
// trailing window.
func (b *Book) Stats() domain.BookStats {
	return b.statsAt(time.Now())
}

func (b *Book) statsAt(now time.Time) domain.BookStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneTradesLocked(now)

	stats := domain.BookStats{Volume24h: new(big.Int)}
	for _, tp := range b.trades {
		stats.Volume24h.Add(stats.Volume24h, tp.amount)
	}
	if b.lastTrade != nil {
		p := *b.lastTrade
		stats.LastTradeTicks = &p
	}
	if bid := headOf(b.bids); bid != nil {
		p := bid.PriceTicks
		stats.BestBidTicks = &p
	}
	if ask := headOf(b.asks); ask != nil {
		p := ask.PriceTicks
		stats.BestAskTicks = &p
	}
	if stats.BestBidTicks != nil && stats.BestAskTicks != nil {
		spread := *stats.BestAskTicks - *stats.BestBidTicks
		stats.SpreadTicks = &spread
	}
	return stats
}

// OrderCount returns the number of resting orders across both sides.
func (b *Book) OrderCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// Contains reports whether an order with the given id rests in the book.
func (b *Book) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.byID[id]
	return ok
}

// MarketKey returns the market this book serves.
func (b *Book) MarketKey() domain.MarketKey { return b.key }

// OutcomeIndex returns the outcome this book serves.
func (b *Book) OutcomeIndex() int { return b.outcome }

func (b *Book) side(isBuy bool) *ladder {
	if isBuy {
		return b.bids
	}
	return b.asks
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
