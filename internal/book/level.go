package book

import (
	"math/big"

	"github.com/outcomefi/clob/internal/domain"
)

// level is one price level: a FIFO queue of resting orders at the same price.
// Orders are appended on admission, so slice order equals sequence order.
type level struct {
	priceTicks int64
	orders     []*domain.Order
}

func (l *level) empty() bool { return len(l.orders) == 0 }

func (l *level) head() *domain.Order { return l.orders[0] }

func (l *level) popHead() {
	l.orders[0] = nil
	l.orders = l.orders[1:]
}

func (l *level) remove(id string) *domain.Order {
	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return o
		}
	}
	return nil
}

func (l *level) totalQuantity() *big.Int {
	total := new(big.Int)
	for _, o := range l.orders {
		total.Add(total, o.Remaining)
	}
	return total
}

// ladder is one side of the book: price levels kept sorted best-first.
// Bids sort by price descending, asks by price ascending.
type ladder struct {
	bids   bool
	levels []*level
}

func newLadder(bids bool) *ladder { return &ladder{bids: bids} }

// search returns the index at which priceTicks sorts within the ladder and
// whether a level at exactly that price exists there.
func (ld *ladder) search(priceTicks int64) (int, bool) {
	lo, hi := 0, len(ld.levels)
	for lo < hi {
		mid := (lo + hi) / 2
		p := ld.levels[mid].priceTicks
		if p == priceTicks {
			return mid, true
		}
		if ld.before(priceTicks, p) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, false
}

// before reports whether price a has strictly better priority than b on this
// side.
func (ld *ladder) before(a, b int64) bool {
	if ld.bids {
		return a > b
	}
	return a < b
}

func (ld *ladder) getOrCreate(priceTicks int64) *level {
	i, ok := ld.search(priceTicks)
	if ok {
		return ld.levels[i]
	}
	lv := &level{priceTicks: priceTicks}
	ld.levels = append(ld.levels, nil)
	copy(ld.levels[i+1:], ld.levels[i:])
	ld.levels[i] = lv
	return lv
}

// best returns the highest-priority non-empty level, or nil.
func (ld *ladder) best() *level {
	if len(ld.levels) == 0 {
		return nil
	}
	return ld.levels[0]
}

// prune drops the level at index i if it holds no orders.
func (ld *ladder) prune(i int) {
	if i < len(ld.levels) && ld.levels[i].empty() {
		ld.levels = append(ld.levels[:i], ld.levels[i+1:]...)
	}
}

func (ld *ladder) pruneLevel(lv *level) {
	if !lv.empty() {
		return
	}
	if i, ok := ld.search(lv.priceTicks); ok {
		ld.prune(i)
	}
}
