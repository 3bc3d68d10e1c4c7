package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/outcomefi/clob/internal/domain"
	"github.com/outcomefi/clob/internal/engine"
)

// OrderHandler serves order submission and cancellation endpoints in front of
// the matching engine.
type OrderHandler struct {
	engine *engine.Engine
	orders domain.OrderStore // optional, for GET by id
	fills  domain.FillStore  // optional, for fill history
	// verify checks the EIP-712 maker signature before the order reaches the
	// engine. Nil disables verification (test deployments).
	verify func(domain.Order) error
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given engine and logger.
func NewOrderHandler(eng *engine.Engine, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		engine: eng,
		logger: logHandler(logger, "order"),
	}
}

// WithStores attaches the durable stores used by the read endpoints.
func (h *OrderHandler) WithStores(orders domain.OrderStore, fills domain.FillStore) *OrderHandler {
	h.orders = orders
	h.fills = fills
	return h
}

// WithVerifier attaches the maker signature check applied before submission.
func (h *OrderHandler) WithVerifier(verify func(domain.Order) error) *OrderHandler {
	h.verify = verify
	return h
}

// placeOrderRequest is the JSON body of POST /api/orders. Amount and salt are
// decimal strings because both routinely exceed float64 precision.
type placeOrderRequest struct {
	MarketKey         string `json:"market_key"`
	OutcomeIndex      int    `json:"outcome_index"`
	Maker             string `json:"maker"`
	Side              string `json:"side"` // buy | sell
	TimeInForce       string `json:"time_in_force,omitempty"`
	Price             int64  `json:"price"`
	Amount            string `json:"amount"`
	Salt              string `json:"salt"`
	Expiry            int64  `json:"expiry,omitempty"`
	Signature         string `json:"signature"`
	ChainID           int64  `json:"chain_id"`
	VerifyingContract string `json:"verifying_contract"`
}

// toInput converts the request to the engine's input type. Malformed numeric
// strings surface as a descriptive error.
func (req *placeOrderRequest) toInput() (domain.OrderInput, error) {
	if req.Side != "buy" && req.Side != "sell" {
		return domain.OrderInput{}, errors.New("side must be buy or sell")
	}

	amount := new(big.Int)
	if req.Amount != "" {
		if _, ok := amount.SetString(req.Amount, 10); !ok {
			return domain.OrderInput{}, errors.New("amount must be a decimal string")
		}
	}

	var salt *big.Int
	if req.Salt != "" {
		salt = new(big.Int)
		if _, ok := salt.SetString(req.Salt, 10); !ok {
			return domain.OrderInput{}, errors.New("salt must be a decimal string")
		}
	}

	tif := domain.TimeInForceGTC
	if req.TimeInForce != "" {
		switch domain.TimeInForce(req.TimeInForce) {
		case domain.TimeInForceGTC, domain.TimeInForceIOC:
			tif = domain.TimeInForce(req.TimeInForce)
		default:
			return domain.OrderInput{}, errors.New("time_in_force must be GTC or IOC")
		}
	}

	return domain.OrderInput{
		MarketKey:         domain.MarketKey(req.MarketKey),
		OutcomeIndex:      req.OutcomeIndex,
		Maker:             req.Maker,
		IsBuy:             req.Side == "buy",
		TimeInForce:       tif,
		PriceTicks:        req.Price,
		Amount:            amount,
		Salt:              salt,
		Expiry:            req.Expiry,
		Signature:         req.Signature,
		ChainID:           req.ChainID,
		VerifyingContract: req.VerifyingContract,
	}, nil
}

// PlaceOrder admits a signed order into the matching engine.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.MarketKey == "" {
		writeError(w, http.StatusBadRequest, "market_key is required")
		return
	}

	input, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.verify != nil && input.Salt != nil && input.Amount != nil {
		candidate := domain.Order{
			Maker:             input.Maker,
			OutcomeIndex:      input.OutcomeIndex,
			IsBuy:             input.IsBuy,
			PriceTicks:        input.PriceTicks,
			Amount:            input.Amount,
			Salt:              input.Salt,
			Expiry:            input.Expiry,
			Signature:         input.Signature,
			ChainID:           input.ChainID,
			VerifyingContract: input.VerifyingContract,
		}
		if err := h.verify(candidate); err != nil {
			writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
	}

	result := h.engine.SubmitOrder(r.Context(), input)
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// CancelOrder removes a resting order from its book.
// DELETE /api/orders/{id}?market=...&outcome=0
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market query parameter required")
		return
	}
	outcome, err := strconv.Atoi(r.URL.Query().Get("outcome"))
	if err != nil || outcome < 0 {
		writeError(w, http.StatusBadRequest, "outcome query parameter must be a non-negative integer")
		return
	}

	cancelled := h.engine.CancelOrder(domain.MarketKey(market), outcome, id)
	if cancelled == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "cancelled",
		"order_id":  id,
		"remaining": cancelled.Remaining.String(),
	})
}

// GetOrder returns a previously admitted order from the durable store.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeError(w, http.StatusNotImplemented, "order store not configured")
		return
	}

	id := pathParam(r, "id")
	order, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListFills returns recent fills for a market, newest first.
// GET /api/fills?market=...&limit=100
func (h *OrderHandler) ListFills(w http.ResponseWriter, r *http.Request) {
	if h.fills == nil {
		writeError(w, http.StatusNotImplemented, "fill store not configured")
		return
	}

	market := r.URL.Query().Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market query parameter required")
		return
	}
	limit := queryInt(r, "limit", 100)

	fills, err := h.fills.ListByMarket(r.Context(), domain.MarketKey(market), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list fills failed",
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list fills")
		return
	}
	if fills == nil {
		fills = []domain.Fill{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"fills": fills})
}
