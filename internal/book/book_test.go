package book

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outcomefi/clob/internal/domain"
)

const testMarket = domain.MarketKey("137:0xabc")

var orderSeq uint64

func newOrder(t *testing.T, isBuy bool, priceTicks int64, amount int64) *domain.Order {
	t.Helper()
	orderSeq++
	amt := new(big.Int).Mul(big.NewInt(amount), domain.AmountScale)
	return &domain.Order{
		ID:           fmt.Sprintf("ord-%d", orderSeq),
		MarketKey:    testMarket,
		OutcomeIndex: 0,
		Maker:        "0x1111111111111111111111111111111111111111",
		IsBuy:        isBuy,
		TimeInForce:  domain.TimeInForceGTC,
		PriceTicks:   priceTicks,
		Amount:       new(big.Int).Set(amt),
		Remaining:    new(big.Int).Set(amt),
		Salt:         big.NewInt(int64(orderSeq)),
		Sequence:     orderSeq,
		CreatedAt:    time.Now().UTC(),
	}
}

func shares(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.AmountScale)
}

func TestBestBidIsHighestPrice(t *testing.T) {
	b := New(testMarket, 0)

	require.True(t, b.Add(newOrder(t, true, 400_000, 1)))
	require.True(t, b.Add(newOrder(t, true, 500_000, 1)))
	require.True(t, b.Add(newOrder(t, true, 450_000, 1)))

	best := b.BestBid()
	require.NotNil(t, best)
	require.Equal(t, int64(500_000), best.PriceTicks)
}

func TestBestAskIsLowestPrice(t *testing.T) {
	b := New(testMarket, 0)

	require.True(t, b.Add(newOrder(t, false, 600_000, 1)))
	require.True(t, b.Add(newOrder(t, false, 500_000, 1)))
	require.True(t, b.Add(newOrder(t, false, 550_000, 1)))

	best := b.BestAsk()
	require.NotNil(t, best)
	require.Equal(t, int64(500_000), best.PriceTicks)
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	b := New(testMarket, 0)
	o := newOrder(t, true, 500_000, 1)

	require.True(t, b.Add(o))
	require.False(t, b.Add(o))
	require.Equal(t, 1, b.OrderCount())
}

func TestRemove(t *testing.T) {
	b := New(testMarket, 0)
	o := newOrder(t, true, 500_000, 1)
	require.True(t, b.Add(o))

	removed := b.Remove(o.ID)
	require.NotNil(t, removed)
	require.Equal(t, o.ID, removed.ID)
	require.Nil(t, b.BestBid())

	// Second removal reports absence, not an error.
	require.Nil(t, b.Remove(o.ID))
}

func TestTimePriorityWithinLevel(t *testing.T) {
	b := New(testMarket, 0)
	first := newOrder(t, true, 500_000, 1)
	second := newOrder(t, true, 500_000, 1)
	require.True(t, b.Add(first))
	require.True(t, b.Add(second))

	queue := b.Queue(500_000, true)
	require.Len(t, queue, 2)
	require.Equal(t, first.ID, queue[0].ID)
	require.Equal(t, second.ID, queue[1].ID)
}

func TestExecuteFillsAtMakerPrice(t *testing.T) {
	b := New(testMarket, 0)

	maker := newOrder(t, true, 500_000, 2)
	require.True(t, b.Add(maker))

	// Seller willing to take 0.45 crosses the 0.50 bid and fills at 0.50.
	taker := newOrder(t, false, 450_000, 1)
	matches := b.Execute(taker)

	require.Len(t, matches, 1)
	require.Equal(t, int64(500_000), matches[0].PriceTicks)
	require.Equal(t, 0, matches[0].Amount.Cmp(shares(1)))
	require.Equal(t, 0, taker.Remaining.Sign())

	// Maker keeps its remaining 1 share at the same level.
	require.True(t, b.Contains(maker.ID))
	queue := b.Queue(500_000, true)
	require.Len(t, queue, 1)
	require.Equal(t, 0, queue[0].Remaining.Cmp(shares(1)))
}

func TestExecuteWalksLevelsInPriceOrder(t *testing.T) {
	b := New(testMarket, 0)

	require.True(t, b.Add(newOrder(t, false, 500_000, 1)))
	require.True(t, b.Add(newOrder(t, false, 550_000, 1)))
	require.True(t, b.Add(newOrder(t, false, 600_000, 1)))

	taker := newOrder(t, true, 550_000, 3)
	matches := b.Execute(taker)

	// 0.60 is above the taker's limit; only 0.50 then 0.55 trade.
	require.Len(t, matches, 2)
	require.Equal(t, int64(500_000), matches[0].PriceTicks)
	require.Equal(t, int64(550_000), matches[1].PriceTicks)

	// Remainder rests as a bid at the taker's limit.
	require.Equal(t, 0, taker.Remaining.Cmp(shares(1)))
	require.True(t, b.Contains(taker.ID))
	best := b.BestBid()
	require.NotNil(t, best)
	require.Equal(t, taker.ID, best.ID)
}

func TestExecuteIOCDropsRemainder(t *testing.T) {
	b := New(testMarket, 0)
	require.True(t, b.Add(newOrder(t, false, 500_000, 1)))

	taker := newOrder(t, true, 500_000, 3)
	taker.TimeInForce = domain.TimeInForceIOC
	matches := b.Execute(taker)

	require.Len(t, matches, 1)
	require.Equal(t, 0, taker.Remaining.Cmp(shares(2)))
	require.False(t, b.Contains(taker.ID))
	require.Equal(t, 0, b.OrderCount())
}

func TestExecuteNoCrossRestsWholeOrder(t *testing.T) {
	b := New(testMarket, 0)
	require.True(t, b.Add(newOrder(t, false, 600_000, 1)))

	taker := newOrder(t, true, 500_000, 1)
	matches := b.Execute(taker)

	require.Empty(t, matches)
	require.True(t, b.Contains(taker.ID))
	require.Equal(t, 2, b.OrderCount())
}

func TestExecuteExhaustedMakerIsRemoved(t *testing.T) {
	b := New(testMarket, 0)
	maker := newOrder(t, false, 500_000, 1)
	require.True(t, b.Add(maker))

	taker := newOrder(t, true, 500_000, 1)
	matches := b.Execute(taker)

	require.Len(t, matches, 1)
	require.False(t, b.Contains(maker.ID))
	require.Nil(t, b.BestAsk())
	require.Empty(t, b.Depth(10).Asks)
}

func TestDepthAggregatesLevels(t *testing.T) {
	b := New(testMarket, 0)
	require.True(t, b.Add(newOrder(t, true, 500_000, 1)))
	require.True(t, b.Add(newOrder(t, true, 500_000, 2)))
	require.True(t, b.Add(newOrder(t, true, 450_000, 1)))

	snap := b.Depth(10)
	require.Equal(t, testMarket, snap.MarketKey)
	require.Len(t, snap.Bids, 2)

	// Best level first with summed quantity and order count.
	require.Equal(t, int64(500_000), snap.Bids[0].PriceTicks)
	require.Equal(t, 0, snap.Bids[0].TotalQuantity.Cmp(shares(3)))
	require.Equal(t, 2, snap.Bids[0].OrderCount)
	require.Equal(t, int64(450_000), snap.Bids[1].PriceTicks)
}

func TestDepthRespectsLevelLimit(t *testing.T) {
	b := New(testMarket, 0)
	for _, p := range []int64{400_000, 420_000, 440_000, 460_000} {
		require.True(t, b.Add(newOrder(t, true, p, 1)))
	}

	snap := b.Depth(2)
	require.Len(t, snap.Bids, 2)
	require.Equal(t, int64(460_000), snap.Bids[0].PriceTicks)
	require.Equal(t, int64(440_000), snap.Bids[1].PriceTicks)
}

func TestStatsSpread(t *testing.T) {
	b := New(testMarket, 0)

	// One-sided book has no spread.
	require.True(t, b.Add(newOrder(t, true, 450_000, 1)))
	stats := b.Stats()
	require.NotNil(t, stats.BestBidTicks)
	require.Nil(t, stats.BestAskTicks)
	require.Nil(t, stats.SpreadTicks)

	require.True(t, b.Add(newOrder(t, false, 550_000, 1)))
	stats = b.Stats()
	require.NotNil(t, stats.SpreadTicks)
	require.Equal(t, int64(100_000), *stats.SpreadTicks)
}

func TestStatsVolumeWindow(t *testing.T) {
	b := New(testMarket, 0)
	now := time.Now()

	b.recordTradeAt(500_000, shares(5), now.Add(-25*time.Hour))
	b.recordTradeAt(520_000, shares(2), now.Add(-1*time.Hour))
	b.recordTradeAt(510_000, shares(3), now)

	stats := b.statsAt(now)
	require.Equal(t, 0, stats.Volume24h.Cmp(shares(5)))
	require.NotNil(t, stats.LastTradeTicks)
	require.Equal(t, int64(510_000), *stats.LastTradeTicks)
}

func TestQueueUnknownLevel(t *testing.T) {
	b := New(testMarket, 0)
	require.Nil(t, b.Queue(500_000, true))
}
