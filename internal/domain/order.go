package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Fixed-point scaling. Prices carry 6 implied decimals (1_000_000 ticks is
// 1.0 collateral unit, the probability ceiling); amounts carry 18 implied
// decimals (outcome-share units).
const (
	PriceScale   int64 = 1_000_000
	PriceCeiling int64 = 1_000_000
)

// AmountScale is 10^18, the implied denominator of Order.Amount.
var AmountScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TimeInForce indicates whether an unfilled remainder may rest in the book.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled: remainder rests
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel: remainder is dropped
)

// MarketKey identifies one on-chain market contract instance as
// "{chainId}:{eventId}".
type MarketKey string

// NewMarketKey builds a MarketKey from its components.
func NewMarketKey(chainID int64, eventID string) MarketKey {
	return MarketKey(fmt.Sprintf("%d:%s", chainID, eventID))
}

// ChainID extracts the chain id component, or 0 if the key is malformed.
func (k MarketKey) ChainID() int64 {
	head, _, ok := strings.Cut(string(k), ":")
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// EventID extracts the event id component.
func (k MarketKey) EventID() string {
	_, tail, _ := strings.Cut(string(k), ":")
	return tail
}

// Order is a signed intent to buy or sell outcome shares at a limit price.
// Once admitted an order is immutable except for Remaining, which decreases
// monotonically as fills occur.
type Order struct {
	ID                string
	MarketKey         MarketKey
	OutcomeIndex      int
	Maker             string // checksummable hex address
	IsBuy             bool
	TimeInForce       TimeInForce
	PriceTicks        int64    // fixed-point, 6 implied decimals
	Amount            *big.Int // fixed-point, 18 implied decimals
	Remaining         *big.Int
	Salt              *big.Int
	Expiry            int64 // unix seconds, 0 = never expires
	Signature         string
	ChainID           int64
	VerifyingContract string
	Sequence          uint64 // assigned at admission, price-time tie-break
	CreatedAt         time.Time
}

// Price returns the float64 display price from fixed-point ticks.
func (o *Order) Price() float64 {
	return float64(o.PriceTicks) / float64(PriceScale)
}

// Expired reports whether the order's expiry, if set, is before now.
func (o *Order) Expired(now time.Time) bool {
	return o.Expiry != 0 && o.Expiry < now.Unix()
}

// OrderInput is the externally supplied signed-order payload. Signature
// verification happens upstream; the engine re-checks all numeric and shape
// invariants before admission.
type OrderInput struct {
	MarketKey         MarketKey
	OutcomeIndex      int
	Maker             string
	IsBuy             bool
	TimeInForce       TimeInForce
	PriceTicks        int64
	Amount            *big.Int
	Salt              *big.Int
	Expiry            int64
	Signature         string
	ChainID           int64
	VerifyingContract string
}

// OrderID derives the canonical order id from the maker address, salt and
// market key, so resubmitting the identical order yields the identical id.
func OrderID(maker string, salt *big.Int, key MarketKey) string {
	h := ethcrypto.Keccak256(
		common.HexToAddress(maker).Bytes(),
		common.LeftPadBytes(salt.Bytes(), 32),
		[]byte(key),
	)
	return "0x" + common.Bytes2Hex(h)
}

// SaltKey is the replay-guard key: one (maker, salt) pair may be admitted at
// most once per verifying contract.
func SaltKey(maker string, salt *big.Int, verifyingContract string) string {
	return strings.ToLower(maker) + ":" + salt.String() + ":" + strings.ToLower(verifyingContract)
}
