package domain

import (
	"math/big"
	"time"
)

// Fill is the outcome of matching one taker order against one resting maker
// order. The trade executes at the maker's price; price improvement accrues
// to the taker. Immutable once created.
type Fill struct {
	ID           string
	MarketKey    MarketKey
	OutcomeIndex int
	MakerOrderID string
	TakerOrderID string // empty when the taker side is not an admitted order
	PriceTicks   int64
	Amount       *big.Int // 18 implied decimals
	MakerFee     *big.Int // collateral units, 18 implied decimals
	TakerFee     *big.Int
	Sequence     uint64
	CreatedAt    time.Time
}

// Notional returns price*amount in collateral units (18 implied decimals).
func (f Fill) Notional() *big.Int {
	return Notional(f.PriceTicks, f.Amount)
}

// Notional computes priceTicks*amount/PriceScale without intermediate
// overflow; the product is carried in a big.Int throughout.
func Notional(priceTicks int64, amount *big.Int) *big.Int {
	n := new(big.Int).Mul(big.NewInt(priceTicks), amount)
	return n.Quo(n, big.NewInt(PriceScale))
}

// FeeFor computes a fee in collateral units for the given notional and rate
// in basis points.
func FeeFor(notional *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(notional, big.NewInt(bps))
	return fee.Quo(fee, big.NewInt(10_000))
}

// SettlementFill is a Fill enriched with the full signed maker order payload
// required for on-chain submission. It is owned by the settler until it is
// included in a confirmed batch or moved to a failure record.
type SettlementFill struct {
	ID         string
	FillID     string
	Order      Order // the resting maker order, including its signature
	Signature  string
	FillAmount *big.Int
	EnqueuedAt time.Time
}
