package domain

import "context"

// DepthCache caches depth snapshots for the read API.
type DepthCache interface {
	SetDepth(ctx context.Context, snap DepthSnapshot) error
	GetDepth(ctx context.Context, key MarketKey, outcomeIndex int) (DepthSnapshot, error)
}

// SignalBus is a lightweight publish/subscribe fabric used to push book and
// settlement events to external consumers (WebSocket hub, other processes).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads; it is closed when ctx is
	// cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
