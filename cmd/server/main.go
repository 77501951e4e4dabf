package main // Entry point of the lot map API

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	supabase "github.com/nedpals/supabase-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/broadcast"
	"github.com/iliyamo/lot-map/internal/config"
	"github.com/iliyamo/lot-map/internal/database"
	"github.com/iliyamo/lot-map/internal/handler"
	"github.com/iliyamo/lot-map/internal/logging"
	"github.com/iliyamo/lot-map/internal/middleware"
	"github.com/iliyamo/lot-map/internal/override"
	"github.com/iliyamo/lot-map/internal/queue"
	"github.com/iliyamo/lot-map/internal/repository"
	"github.com/iliyamo/lot-map/internal/router"
	"github.com/iliyamo/lot-map/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	format := cfg.LogFormat
	if format == "" && cfg.IsDev() {
		format = "console"
	}
	log, err := logging.New(cfg.LogLevel, format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := config.NewRedisClient() // nil when unreachable
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable: cache, rate limit and overrides run in-process")
	}

	var bus broadcast.Broadcaster = broadcast.NewLocal()
	if rdb != nil {
		bus = broadcast.NewRedis(rdb, broadcast.DefaultChannel, log)
	}

	var events service.EventPublisher
	if cfg.AMQPEnabled {
		events = service.NewAMQPPublisher(cfg.RabbitMQURL, log)
		go func() {
			if err := queue.StartLotConsumer(ctx, cfg.RabbitMQURL, cfg.ChangeLog, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("lot consumer stopped", zap.Error(err))
			}
		}()
	}

	lots := service.NewLotService(store, bus, events, log)
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	lots.OnChange(cache.Purge)

	if cfg.StoreBackend == config.BackendCSV && cfg.CSVWatch {
		fw, err := repository.NewFileWatcher(cfg.CSVPath, 300*time.Millisecond, func() { lots.NotifyExternalChange(ctx) }, log)
		if err != nil {
			log.Warn("csv watcher disabled", zap.Error(err))
		} else {
			defer fw.Close()
			go fw.Run(ctx)
		}
	}

	var session *override.Session
	if cfg.OverridesEnabled {
		if session, err = openSession(ctx, rdb, bus, cache.Purge, log); err != nil {
			return err
		}
	}

	policy, err := config.LoadPricingPolicy(cfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))

	routes := router.Routes{
		Lots:      handler.NewLotHandler(lots, session, cfg.NumberFormat, log),
		Quotes:    handler.NewQuoteHandler(lots, policy, log),
		Events:    handler.NewEventsHandler(bus, log),
		Cache:     cache.Middleware(),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	}
	if session != nil {
		routes.Overrides = handler.NewOverrideHandler(session, lots, cfg.NumberFormat, log)
	}
	router.RegisterRoutes(e, routes)

	addr := ":" + cfg.Port
	log.Info("listening",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.String("backend", cfg.StoreBackend),
		zap.String("number_format", string(cfg.NumberFormat)),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	stop() // the session listener exits with ctx
	if session != nil {
		session.Wait()
	}
	return err
}

// openStore builds the canonical store named by STORE_BACKEND.
func openStore(cfg config.Config, log *zap.Logger) (repository.LotStore, func(), error) {
	clock := repository.LocalClock(cfg.Location)
	switch cfg.StoreBackend {
	case config.BackendSQL:
		db, err := database.Open(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLStore(db, clock), func() { _ = db.Close() }, nil
	case config.BackendSupabase:
		client := supabase.CreateClient(cfg.Supabase.URL, cfg.Supabase.Key)
		return repository.NewSupabaseStore(client, cfg.Supabase.Table, clock), func() {}, nil
	default:
		return repository.NewCSVStore(cfg.CSVPath, cfg.NumberFormat, clock, log), func() {}, nil
	}
}

// openSession hosts this replica's override session, shared through Redis
// when available.
func openSession(ctx context.Context, rdb *redis.Client, bus broadcast.Broadcaster, purge func(context.Context), log *zap.Logger) (*override.Session, error) {
	var (
		store override.Store    = override.NewMemoryStore()
		audit override.AuditLog = override.NewRing(override.AuditCapacity)
	)
	if rdb != nil {
		store = override.NewRedisStore(rdb, override.StorageKey)
		audit = override.NewRedisAudit(rdb, override.AuditKey, override.AuditCapacity)
	}
	session, err := override.NewSession(ctx, store, audit, bus, log)
	if err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	// merged lot views are cached, so override changes purge the cache
	session.OnChange(purge)
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	return session, nil
}
