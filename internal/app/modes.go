package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outcomefi/clob/internal/book"
	"github.com/outcomefi/clob/internal/crypto"
	"github.com/outcomefi/clob/internal/domain"
	"github.com/outcomefi/clob/internal/engine"
	"github.com/outcomefi/clob/internal/server"
	"github.com/outcomefi/clob/internal/server/handler"
	"github.com/outcomefi/clob/internal/server/ws"
	"github.com/outcomefi/clob/internal/settle"
)

// settlementChannel is the signal bus channel carrying settlement lifecycle
// events to the WebSocket hub.
const settlementChannel = "ch:settlement"

// EngineMode runs the matching engine and the settlement pipeline. The HTTP
// API is started when server.enabled is set.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)

	settler := a.buildSettler(deps)
	eng, err := a.buildEngine(deps, settler)
	if err != nil {
		return fmt.Errorf("engine mode: %w", err)
	}

	g.Go(func() error {
		return settler.Run(ctx)
	})
	g.Go(func() error {
		return a.forwardSettlementEvents(ctx, settler, deps.SignalBus)
	})
	g.Go(func() error {
		return a.refreshDepthCache(ctx, eng.Books(), deps.DepthCache)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng, settler)
	}

	return g.Wait()
}

// APIMode runs the HTTP + WebSocket API over the engine without a settlement
// pipeline; fills are recorded durably and settled by a separate engine-mode
// node watching the same database.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngine(deps, nil)
	if err != nil {
		return fmt.Errorf("api mode: %w", err)
	}

	g.Go(func() error {
		return a.refreshDepthCache(ctx, eng.Books(), deps.DepthCache)
	})

	a.startHTTPServer(ctx, g, deps, eng, nil)

	return g.Wait()
}

// FullMode runs everything in one process: matching, settlement, and the
// HTTP + WebSocket API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	settler := a.buildSettler(deps)
	eng, err := a.buildEngine(deps, settler)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g.Go(func() error {
		return settler.Run(ctx)
	})
	g.Go(func() error {
		return a.forwardSettlementEvents(ctx, settler, deps.SignalBus)
	})
	g.Go(func() error {
		return a.refreshDepthCache(ctx, eng.Books(), deps.DepthCache)
	})

	a.startHTTPServer(ctx, g, deps, eng, settler)

	return g.Wait()
}

// buildEngine constructs the matching engine over a fresh book registry.
// A nil settler leaves the engine without a settlement sink.
func (a *App) buildEngine(deps *Dependencies, settler *settle.Settler) (*engine.Engine, error) {
	minAmount, ok := new(big.Int).SetString(a.cfg.Engine.MinOrderAmount, 10)
	if !ok {
		return nil, fmt.Errorf("parse engine.min_order_amount %q", a.cfg.Engine.MinOrderAmount)
	}
	maxAmount, ok := new(big.Int).SetString(a.cfg.Engine.MaxOrderAmount, 10)
	if !ok {
		return nil, fmt.Errorf("parse engine.max_order_amount %q", a.cfg.Engine.MaxOrderAmount)
	}

	outcomeCounts := make(map[domain.MarketKey]int, len(a.cfg.Engine.OutcomeCounts))
	for key, n := range a.cfg.Engine.OutcomeCounts {
		outcomeCounts[domain.MarketKey(key)] = n
	}

	eng := engine.New(book.NewManager(), engine.Config{
		MinOrderAmount: minAmount,
		MaxOrderAmount: maxAmount,
		MakerFeeBps:    a.cfg.Engine.MakerFeeBps,
		TakerFeeBps:    a.cfg.Engine.TakerFeeBps,
		MaxOutcomes:    a.cfg.Engine.MaxOutcomes,
		OutcomeCounts:  outcomeCounts,
	}, a.logger)

	eng.WithOrderStore(deps.OrderStore).
		WithFillStore(deps.FillStore).
		WithSignalBus(deps.SignalBus)
	if settler != nil {
		eng.WithSink(settler)
	}
	return eng, nil
}

// buildSettler constructs the batch settler from the settlement policy
// config and the wired chain client.
func (a *App) buildSettler(deps *Dependencies) *settle.Settler {
	sc := a.cfg.Settlement

	var maxGasPrice *big.Int
	if sc.MaxGasPriceGwei > 0 {
		maxGasPrice = new(big.Int).Mul(big.NewInt(sc.MaxGasPriceGwei), big.NewInt(1_000_000_000))
	}

	settler := settle.NewSettler(settle.Config{
		ChainID:             a.cfg.Chain.ChainID,
		MarketAddress:       a.cfg.Chain.ExchangeAddress,
		MinBatchSize:        sc.MinBatchSize,
		MaxBatchSize:        sc.MaxBatchSize,
		MaxBatchWait:        sc.MaxBatchWait.Duration,
		BatchInterval:       sc.BatchInterval.Duration,
		ConfirmInterval:     sc.ConfirmInterval.Duration,
		Confirmations:       sc.Confirmations,
		ConfirmationTimeout: sc.ConfirmationTimeout.Duration,
		MaxRetries:          sc.MaxRetries,
		RetryDelay:          sc.RetryDelay.Duration,
		RetryBackoff:        sc.RetryBackoff,
		MaxGasPrice:         maxGasPrice,
		GasMarginPct:        sc.GasMarginPct,
		ReconcileInterval:   sc.ReconcileInterval.Duration,
		ShutdownWait:        sc.ShutdownWait.Duration,
	}, deps.Chain, a.logger)

	settler.WithStores(deps.BatchStore, deps.FillStore)
	if deps.Archiver != nil {
		settler.WithArchiver(deps.Archiver)
	}
	return settler
}

// forwardSettlementEvents publishes settler lifecycle events to the signal
// bus so the WebSocket hub and any external consumer can observe them.
func (a *App) forwardSettlementEvents(ctx context.Context, settler *settle.Settler, bus domain.SignalBus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-settler.Events():
			if !ok {
				return nil
			}
			payload, err := json.Marshal(map[string]any{
				"type":    ev.Kind(),
				"payload": ev,
			})
			if err != nil {
				continue
			}
			if err := bus.Publish(ctx, settlementChannel, payload); err != nil {
				a.logger.WarnContext(ctx, "publish settlement event failed",
					slog.String("type", ev.Kind()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refreshDepthCache periodically snapshots every registered book into the
// Redis depth cache, which serves the default depth query.
func (a *App) refreshDepthCache(ctx context.Context, books *book.Manager, cache domain.DepthCache) error {
	interval := a.cfg.Redis.DepthTTL.Duration / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, bk := range books.All() {
				if err := cache.SetDepth(ctx, bk.Depth(20)); err != nil {
					a.logger.WarnContext(ctx, "depth cache refresh failed",
						slog.String("market", string(bk.MarketKey())),
						slog.Int("outcome", bk.OutcomeIndex()),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// startHTTPServer builds the handler set, starts the WebSocket hub and the
// HTTP server on the errgroup, and registers graceful shutdown.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine, settler *settle.Settler) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	orderHandler := handler.NewOrderHandler(eng, a.logger).
		WithStores(deps.OrderStore, deps.FillStore).
		WithVerifier(crypto.VerifyOrderSignature)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Books:      handler.NewBookHandler(eng.Books(), deps.DepthCache, a.logger),
		Orders:     orderHandler,
		Settlement: handler.NewSettlementHandler(settler, deps.BatchStore, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
