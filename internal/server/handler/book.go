package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/outcomefi/clob/internal/book"
	"github.com/outcomefi/clob/internal/domain"
)

// defaultDepthLevels bounds how much of the ladder a depth query returns when
// the client does not ask for a specific number of levels.
const defaultDepthLevels = 20

// BookHandler serves read-only order book endpoints over the in-memory book
// registry, with an optional Redis read-through for depth snapshots.
type BookHandler struct {
	books  *book.Manager
	depth  domain.DepthCache // optional
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler. The depth cache may be nil, in which
// case every depth query reads the live book.
func NewBookHandler(books *book.Manager, depth domain.DepthCache, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		books:  books,
		depth:  depth,
		logger: logHandler(logger, "book"),
	}
}

// bookQuery resolves the market/outcome query parameters shared by the book
// endpoints. It writes the error response itself and returns ok=false when
// the parameters are missing or malformed.
func (h *BookHandler) bookQuery(w http.ResponseWriter, r *http.Request) (domain.MarketKey, int, bool) {
	q := r.URL.Query()
	market := q.Get("market")
	if market == "" {
		writeError(w, http.StatusBadRequest, "market query parameter required")
		return "", 0, false
	}
	outcome, err := strconv.Atoi(q.Get("outcome"))
	if err != nil || outcome < 0 {
		writeError(w, http.StatusBadRequest, "outcome query parameter must be a non-negative integer")
		return "", 0, false
	}
	return domain.MarketKey(market), outcome, true
}

// GetDepth returns the aggregated depth of one book, best levels first.
// GET /api/book/depth?market={chainId}:{eventId}&outcome=0&levels=20
func (h *BookHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	key, outcome, ok := h.bookQuery(w, r)
	if !ok {
		return
	}
	levels := queryInt(r, "levels", defaultDepthLevels)

	// Serve the cached snapshot when the client did not ask for a custom
	// level count; the cache stores the default-depth view.
	if h.depth != nil && levels == defaultDepthLevels {
		snap, err := h.depth.GetDepth(r.Context(), key, outcome)
		if err == nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "depth cache read failed",
				slog.String("market", string(key)),
				slog.String("error", err.Error()),
			)
		}
	}

	bk := h.books.Get(key, outcome)
	if bk == nil {
		// An unknown book is an empty book, not an error.
		writeJSON(w, http.StatusOK, domain.DepthSnapshot{
			MarketKey:    key,
			OutcomeIndex: outcome,
			Bids:         []domain.DepthLevel{},
			Asks:         []domain.DepthLevel{},
			Timestamp:    time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, bk.Depth(levels))
}

// GetQueue returns the resting orders at one price level in priority order.
// GET /api/book/queue?market=...&outcome=0&price=500000&side=buy
func (h *BookHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	key, outcome, ok := h.bookQuery(w, r)
	if !ok {
		return
	}

	price, err := strconv.ParseInt(r.URL.Query().Get("price"), 10, 64)
	if err != nil || price <= 0 {
		writeError(w, http.StatusBadRequest, "price query parameter must be a positive integer")
		return
	}

	side := r.URL.Query().Get("side")
	if side != "buy" && side != "sell" {
		writeError(w, http.StatusBadRequest, "side query parameter must be buy or sell")
		return
	}

	var orders []domain.Order
	if bk := h.books.Get(key, outcome); bk != nil {
		orders = bk.Queue(price, side == "buy")
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_key":    key,
		"outcome_index": outcome,
		"price":         price,
		"side":          side,
		"orders":        orders,
	})
}

// GetStats returns the aggregated statistics of one book.
// GET /api/book/stats?market=...&outcome=0
func (h *BookHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	key, outcome, ok := h.bookQuery(w, r)
	if !ok {
		return
	}

	bk := h.books.Get(key, outcome)
	if bk == nil {
		writeJSON(w, http.StatusOK, domain.BookStats{})
		return
	}
	writeJSON(w, http.StatusOK, bk.Stats())
}

// ListBooks returns global statistics across all registered books.
// GET /api/books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	type bookInfo struct {
		MarketKey    domain.MarketKey `json:"market_key"`
		OutcomeIndex int              `json:"outcome_index"`
		OrderCount   int              `json:"order_count"`
	}

	all := h.books.All()
	books := make([]bookInfo, 0, len(all))
	for _, bk := range all {
		books = append(books, bookInfo{
			MarketKey:    bk.MarketKey(),
			OutcomeIndex: bk.OutcomeIndex(),
			OrderCount:   bk.OrderCount(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": h.books.GlobalStats(),
		"books": books,
	})
}
