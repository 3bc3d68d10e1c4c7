package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outcomefi/clob/internal/book"
	"github.com/outcomefi/clob/internal/domain"
)

const (
	testMarket = domain.MarketKey("137:0xevent")
	makerAddr  = "0x1111111111111111111111111111111111111111"
	takerAddr  = "0x2222222222222222222222222222222222222222"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MinOrderAmount: domain.AmountScale, // 1 share
		MaxOrderAmount: new(big.Int).Mul(big.NewInt(1_000_000), domain.AmountScale),
		MakerFeeBps:    0,
		TakerFeeBps:    20,
		MaxOutcomes:    2,
	}
}

func newEngine() *Engine {
	return New(book.NewManager(), testConfig(), testLogger())
}

var saltSeq int64

func input(maker string, isBuy bool, priceTicks int64, amount int64) domain.OrderInput {
	saltSeq++
	return domain.OrderInput{
		MarketKey:         testMarket,
		OutcomeIndex:      0,
		Maker:             maker,
		IsBuy:             isBuy,
		PriceTicks:        priceTicks,
		Amount:            new(big.Int).Mul(big.NewInt(amount), domain.AmountScale),
		Salt:              big.NewInt(saltSeq),
		ChainID:           137,
		VerifyingContract: "0x3333333333333333333333333333333333333333",
	}
}

// captureSink records settlement fills handed over by the engine.
type captureSink struct {
	fills []domain.SettlementFill
}

func (s *captureSink) AddFill(f domain.SettlementFill) { s.fills = append(s.fills, f) }

func TestSubmitOrderValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.OrderInput)
		wantErr string
	}{
		{
			name:    "invalid maker address",
			mutate:  func(in *domain.OrderInput) { in.Maker = "not-an-address" },
			wantErr: "Invalid maker address",
		},
		{
			name:    "zero price",
			mutate:  func(in *domain.OrderInput) { in.PriceTicks = 0 },
			wantErr: "Price must be greater than 0",
		},
		{
			name:    "negative price",
			mutate:  func(in *domain.OrderInput) { in.PriceTicks = -1 },
			wantErr: "Price must be greater than 0",
		},
		{
			name:    "price above ceiling",
			mutate:  func(in *domain.OrderInput) { in.PriceTicks = 1_000_001 },
			wantErr: "Price exceeds maximum of 1000000",
		},
		{
			name: "amount below minimum",
			mutate: func(in *domain.OrderInput) {
				in.Amount = big.NewInt(1) // far below one share
			},
			wantErr: fmt.Sprintf("Amount below minimum order size of %s", domain.AmountScale),
		},
		{
			name:    "outcome index out of range",
			mutate:  func(in *domain.OrderInput) { in.OutcomeIndex = 2 },
			wantErr: "Outcome index 2 out of range",
		},
		{
			name:    "negative outcome index",
			mutate:  func(in *domain.OrderInput) { in.OutcomeIndex = -1 },
			wantErr: "Outcome index -1 out of range",
		},
		{
			name:    "expiry in the past",
			mutate:  func(in *domain.OrderInput) { in.Expiry = time.Now().Add(-time.Hour).Unix() },
			wantErr: "Order expiry is in the past",
		},
		{
			name:    "missing salt",
			mutate:  func(in *domain.OrderInput) { in.Salt = nil },
			wantErr: "Salt is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEngine()
			in := input(makerAddr, true, 500_000, 2)
			tc.mutate(&in)

			res := e.SubmitOrder(context.Background(), in)
			require.False(t, res.Success)
			require.Equal(t, tc.wantErr, res.Error)
			require.Nil(t, res.Data)

			// A rejected order must leave no book behind.
			require.Nil(t, e.Books().Get(testMarket, 0))
		})
	}
}

func TestSubmitOrderRestsWhenNoMatch(t *testing.T) {
	e := newEngine()

	res := e.SubmitOrder(context.Background(), input(makerAddr, true, 500_000, 2))
	require.True(t, res.Success)
	require.Equal(t, "resting", res.Data.Status)
	require.Empty(t, res.Data.Fills)
	require.Equal(t, domain.TimeInForceGTC, res.Data.Order.TimeInForce)

	bk := e.Books().Get(testMarket, 0)
	require.NotNil(t, bk)
	require.True(t, bk.Contains(res.Data.Order.ID))
}

func TestSubmitOrderMatchesAtMakerPrice(t *testing.T) {
	e := newEngine()
	sink := &captureSink{}
	e.WithSink(sink)

	buy := e.SubmitOrder(context.Background(), input(makerAddr, true, 500_000, 2))
	require.True(t, buy.Success)

	// Seller at 0.45 crosses and fills 1 share at the maker's 0.50.
	sell := e.SubmitOrder(context.Background(), input(takerAddr, false, 450_000, 1))
	require.True(t, sell.Success)
	require.Equal(t, "filled", sell.Data.Status)
	require.Len(t, sell.Data.Fills, 1)

	fill := sell.Data.Fills[0]
	require.Equal(t, int64(500_000), fill.PriceTicks)
	require.Equal(t, 0, fill.Amount.Cmp(domain.AmountScale))
	require.Equal(t, buy.Data.Order.ID, fill.MakerOrderID)
	require.Equal(t, sell.Data.Order.ID, fill.TakerOrderID)

	// Taker fee: 20 bps on a 0.5 collateral notional.
	notional := domain.Notional(500_000, domain.AmountScale)
	require.Equal(t, 0, fill.TakerFee.Cmp(domain.FeeFor(notional, 20)))
	require.Equal(t, 0, fill.MakerFee.Sign())

	// The settlement sink received the maker-side payload.
	require.Len(t, sink.fills, 1)
	require.Equal(t, fill.ID, sink.fills[0].FillID)
	require.Equal(t, buy.Data.Order.ID, sink.fills[0].Order.ID)
	require.Equal(t, 0, sink.fills[0].FillAmount.Cmp(domain.AmountScale))

	// Maker still rests with 1 share remaining.
	bk := e.Books().Get(testMarket, 0)
	queue := bk.Queue(500_000, true)
	require.Len(t, queue, 1)
	require.Equal(t, 0, queue[0].Remaining.Cmp(domain.AmountScale))
}

func TestSubmitOrderPartialFillRestsRemainder(t *testing.T) {
	e := newEngine()

	e.SubmitOrder(context.Background(), input(makerAddr, false, 500_000, 1))

	buy := e.SubmitOrder(context.Background(), input(takerAddr, true, 500_000, 3))
	require.True(t, buy.Success)
	require.Equal(t, "partially_filled", buy.Data.Status)
	require.Len(t, buy.Data.Fills, 1)

	two := new(big.Int).Mul(big.NewInt(2), domain.AmountScale)
	require.Equal(t, 0, buy.Data.Order.Remaining.Cmp(two))

	bk := e.Books().Get(testMarket, 0)
	require.True(t, bk.Contains(buy.Data.Order.ID))
}

func TestSubmitOrderIOCDropsRemainder(t *testing.T) {
	e := newEngine()

	e.SubmitOrder(context.Background(), input(makerAddr, false, 500_000, 1))

	in := input(takerAddr, true, 500_000, 3)
	in.TimeInForce = domain.TimeInForceIOC
	res := e.SubmitOrder(context.Background(), in)

	require.True(t, res.Success)
	require.Equal(t, "partially_filled", res.Data.Status)
	require.False(t, e.Books().Get(testMarket, 0).Contains(res.Data.Order.ID))
}

func TestSubmitOrderIOCNoMatchIsCancelled(t *testing.T) {
	e := newEngine()

	in := input(makerAddr, true, 400_000, 1)
	in.TimeInForce = domain.TimeInForceIOC
	res := e.SubmitOrder(context.Background(), in)

	require.True(t, res.Success)
	require.Equal(t, "cancelled", res.Data.Status)
	require.Empty(t, res.Data.Fills)
	require.Equal(t, 0, e.Books().Get(testMarket, 0).OrderCount())
}

func TestSubmitOrderSaltReplayRejected(t *testing.T) {
	e := newEngine()

	in := input(makerAddr, true, 500_000, 1)
	first := e.SubmitOrder(context.Background(), in)
	require.True(t, first.Success)

	// Same maker, same salt, same contract: rejected.
	replay := in
	replay.PriceTicks = 400_000
	res := e.SubmitOrder(context.Background(), replay)
	require.False(t, res.Success)
	require.Equal(t, "Salt already used", res.Error)

	// A different maker may reuse the salt value.
	other := in
	other.Maker = takerAddr
	res = e.SubmitOrder(context.Background(), other)
	require.True(t, res.Success)
}

func TestSubmitOrderSequencesAreMonotonic(t *testing.T) {
	e := newEngine()

	first := e.SubmitOrder(context.Background(), input(makerAddr, true, 400_000, 1))
	second := e.SubmitOrder(context.Background(), input(takerAddr, true, 410_000, 1))
	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Greater(t, second.Data.Order.Sequence, first.Data.Order.Sequence)
}

func TestCancelOrder(t *testing.T) {
	e := newEngine()

	res := e.SubmitOrder(context.Background(), input(makerAddr, true, 500_000, 1))
	require.True(t, res.Success)

	cancelled := e.CancelOrder(testMarket, 0, res.Data.Order.ID)
	require.NotNil(t, cancelled)
	require.Equal(t, res.Data.Order.ID, cancelled.ID)

	// Already gone: nil, and unknown books are nil too.
	require.Nil(t, e.CancelOrder(testMarket, 0, res.Data.Order.ID))
	require.Nil(t, e.CancelOrder(domain.MarketKey("1:0xnone"), 0, "x"))
}

func TestOutcomeCountOverride(t *testing.T) {
	cfg := testConfig()
	cfg.OutcomeCounts = map[domain.MarketKey]int{testMarket: 4}
	e := New(book.NewManager(), cfg, testLogger())

	in := input(makerAddr, true, 500_000, 1)
	in.OutcomeIndex = 3
	res := e.SubmitOrder(context.Background(), in)
	require.True(t, res.Success)

	in2 := input(makerAddr, true, 500_000, 1)
	in2.OutcomeIndex = 4
	res = e.SubmitOrder(context.Background(), in2)
	require.False(t, res.Success)
	require.Equal(t, "Outcome index 4 out of range", res.Error)
}
