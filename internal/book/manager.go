package book

import (
	"fmt"
	"sync"

	"github.com/outcomefi/clob/internal/domain"
)

// Manager is the registry of books, one per (market, outcome) pair. Books are
// created lazily on first reference and live for the process lifetime.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{books: make(map[string]*Book)}
}

func bookKey(key domain.MarketKey, outcome int) string {
	return fmt.Sprintf("%s#%d", key, outcome)
}

// GetOrCreate returns the book for the pair, creating an empty one on first
// reference. Idempotent: repeated calls return the same instance.
func (m *Manager) GetOrCreate(key domain.MarketKey, outcome int) *Book {
	k := bookKey(key, outcome)

	m.mu.RLock()
	b, ok := m.books[k]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[k]; ok {
		return b
	}
	b = New(key, outcome)
	m.books[k] = b
	return b
}

// Get is a non-creating lookup returning nil if the pair has no book.
func (m *Manager) Get(key domain.MarketKey, outcome int) *Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[bookKey(key, outcome)]
}

// All returns a snapshot of every registered book.
func (m *Manager) All() []*Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	return out
}

// GlobalStats aggregates book and resting-order counts across the registry.
func (m *Manager) GlobalStats() domain.GlobalBookStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := domain.GlobalBookStats{TotalBooks: len(m.books)}
	for _, b := range m.books {
		stats.TotalOrders += b.OrderCount()
	}
	return stats
}
