package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/outcomefi/clob/internal/domain"
)

// validate runs the admission checks in order and returns the first failing
// message, or "" when the input is admissible. It performs no mutation, so a
// rejected order leaves the engine untouched.
func (e *Engine) validate(_ context.Context, in domain.OrderInput) string {
	// 1. Maker must be a syntactically valid address for the target chain.
	if !common.IsHexAddress(in.Maker) {
		return "Invalid maker address"
	}

	// 2. Price is a positive tick count not exceeding 1.0 collateral unit.
	if in.PriceTicks <= 0 {
		return "Price must be greater than 0"
	}
	if in.PriceTicks > domain.PriceCeiling {
		return fmt.Sprintf("Price exceeds maximum of %d", domain.PriceCeiling)
	}

	// 3. Amount within the configured bounds.
	if in.Amount == nil || in.Amount.Cmp(e.cfg.MinOrderAmount) < 0 {
		return fmt.Sprintf("Amount below minimum order size of %s", e.cfg.MinOrderAmount)
	}
	if in.Amount.Cmp(e.cfg.MaxOrderAmount) > 0 {
		return fmt.Sprintf("Amount exceeds maximum order size of %s", e.cfg.MaxOrderAmount)
	}

	// 4. Outcome index within the market's configured outcome count.
	if in.OutcomeIndex < 0 || in.OutcomeIndex >= e.outcomeCount(in.MarketKey) {
		return fmt.Sprintf("Outcome index %d out of range", in.OutcomeIndex)
	}

	// 5. A non-zero expiry must not already be in the past.
	if in.Expiry != 0 && in.Expiry < time.Now().Unix() {
		return "Order expiry is in the past"
	}

	if in.Salt == nil {
		return "Salt is required"
	}

	// 6. Replay guard: checked and reserved in reserveSalt after shape
	// validation so the two stay one admission step.
	key := domain.SaltKey(in.Maker, in.Salt, in.VerifyingContract)
	e.saltMu.Lock()
	_, used := e.salts[key]
	e.saltMu.Unlock()
	if used {
		return "Salt already used"
	}

	return ""
}

func (e *Engine) outcomeCount(key domain.MarketKey) int {
	if n, ok := e.cfg.OutcomeCounts[key]; ok {
		return n
	}
	return e.cfg.MaxOutcomes
}
