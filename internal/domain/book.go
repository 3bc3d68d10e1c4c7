package domain

import (
	"math/big"
	"time"
)

// DepthLevel is one aggregated price level of a depth snapshot. TotalQuantity
// is the sum of Remaining over all orders resting at exactly PriceTicks.
type DepthLevel struct {
	PriceTicks    int64    `json:"price"`
	TotalQuantity *big.Int `json:"total_quantity"`
	OrderCount    int      `json:"order_count"`
}

// DepthSnapshot is a point-in-time aggregated view of one side-pair of a
// book, best levels first.
type DepthSnapshot struct {
	MarketKey    MarketKey    `json:"market_key"`
	OutcomeIndex int          `json:"outcome_index"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	Timestamp    time.Time    `json:"timestamp"`
}

// BookStats bundles the aggregated trade statistics of one book. Spread is
// nil unless both sides are non-empty; LastTradePrice is nil until the first
// trade.
type BookStats struct {
	BestBidTicks   *int64   `json:"best_bid"`
	BestAskTicks   *int64   `json:"best_ask"`
	SpreadTicks    *int64   `json:"spread"`
	LastTradeTicks *int64   `json:"last_trade_price"`
	Volume24h      *big.Int `json:"volume_24h"`
}

// GlobalBookStats aggregates across every registered book. Used for
// operational observability, not correctness.
type GlobalBookStats struct {
	TotalBooks  int `json:"total_books"`
	TotalOrders int `json:"total_orders"`
}
