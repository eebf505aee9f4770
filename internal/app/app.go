package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/domain/feed"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.Catalog.URL),
		zap.String("storage", cfg.Storage.Backend),
	)

	client, err := catalog.New(cfg.Catalog.URL,
		catalog.WithTracerProvider(m.TracerProvider()),
		catalog.WithTimeout(cfg.Catalog.Timeout),
	)
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeStore()

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Fn:      health.GoroutineCountCheck(10000),
	})
	healthSvc.Register(health.Check{
		Name: "catalog",
		Kind: health.Readiness,
		Fn:   health.PingCheck(client),
	})
	if p, ok := store.(storage.Pinger); ok {
		healthSvc.Register(health.Check{
			Name: "storage",
			Kind: health.Readiness,
			Fn:   health.PingCheck(p),
		})
	}
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	sessions := session.NewRegistry(store, client,
		session.WithLogger(lg.Named("session")),
		session.WithIdleTTL(cfg.Session.IdleTTL),
		session.WithFeedOptions(
			feed.WithPageSize(cfg.Feed.PageSize),
			feed.WithThrottle(cfg.Feed.Throttle),
			feed.WithDebounce(cfg.Feed.Debounce),
		),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(handler.Config{
		SiteName:      cfg.SiteName,
		CategoryLimit: cfg.CategoryLimit,
	}, client, sessions).Register(mux)

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Catalog.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recover(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.SessionID(httpmiddleware.SessionConfig{
				Valid: session.ValidID,
				New:   session.NewID,
			}),
			httpmiddleware.Instrument("storefront", routeFinder, m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gCtx)
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// openStorage builds the configured client-state backend. The returned
// func releases its connections.
func openStorage(ctx context.Context, cfg StorageConfig) (storage.Store, func(), error) {
	switch cfg.Backend {
	case BackendFile:
		s, err := storage.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.New(pool), pool.Close, nil
	case BackendRedis:
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redis.New(rdb, redis.WithTTL(cfg.RedisTTL)), func() { _ = rdb.Close() }, nil
	default:
		return storage.NewMemory(), func() {}, nil
	}
}
