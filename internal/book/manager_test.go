package book

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outcomefi/clob/internal/domain"
)

func TestManagerGetOrCreateReturnsSameInstance(t *testing.T) {
	m := NewManager()

	b1 := m.GetOrCreate(testMarket, 0)
	b2 := m.GetOrCreate(testMarket, 0)
	require.Same(t, b1, b2)

	// A different outcome index is a different book.
	b3 := m.GetOrCreate(testMarket, 1)
	require.NotSame(t, b1, b3)
}

func TestManagerGetUnknownReturnsNil(t *testing.T) {
	m := NewManager()
	require.Nil(t, m.Get(domain.MarketKey("137:0xmissing"), 0))
}

func TestManagerGlobalStats(t *testing.T) {
	m := NewManager()

	b1 := m.GetOrCreate(testMarket, 0)
	b2 := m.GetOrCreate(testMarket, 1)
	require.True(t, b1.Add(newOrder(t, true, 500_000, 1)))
	require.True(t, b1.Add(newOrder(t, false, 600_000, 1)))
	require.True(t, b2.Add(newOrder(t, true, 300_000, 1)))

	stats := m.GlobalStats()
	require.Equal(t, 2, stats.TotalBooks)
	require.Equal(t, 3, stats.TotalOrders)
	require.Len(t, m.All(), 2)
}
