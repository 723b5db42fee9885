package infrastructure

import (
	"context"
	"log/slog"

	"cafepoint/internal/config"
	"cafepoint/internal/service"
	"cafepoint/internal/storage/cache"
	"cafepoint/internal/storage/postgres"
	transportHTTP "cafepoint/internal/transport/http"
	transportNATS "cafepoint/internal/transport/nats"
	"cafepoint/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, db.Close)

	rdb, err := connectRedis(ctx, cfg.RedisAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })

	store := postgres.New(db, cfg.LockTimeout)
	catalog := cache.NewMenuCache(store, rdb, cfg.MenuPriceTTL, cfg.PopularMenuTTL)

	var bus service.EventBus
	var servers []Server

	// NATS is optional wiring: without it orders still commit, they just
	// aren't forwarded to the collector.
	if addr := cfg.NatsAddr(); addr != "" {
		nc, err := connectNats(addr)
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		cleanupFns = append(cleanupFns, nc.Close)
		bus = transportNATS.NewBus(nc)
		servers = append(servers, worker.NewCollectorWorker(nc, cfg.CollectorURL))
	} else {
		slog.Info("NATS not configured, order events disabled")
	}

	ledger := service.NewPointLedger(store)
	orders := service.NewOrderService(store, catalog, bus)
	menus := service.NewMenuService(catalog)
	auth := service.NewAuthService(store, []byte(cfg.JWTSecret), cfg.TokenTTL, cfg.BcryptCost)

	handler := transportHTTP.NewHandler(ledger, orders, menus, auth, slog.Default())
	servers = append(servers, transportHTTP.NewServer(cfg.ApiAddr(), handler.Router()))

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
