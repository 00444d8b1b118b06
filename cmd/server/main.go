package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/codox/token-engine/internal/config"
	"github.com/codox/token-engine/internal/engine"
	"github.com/codox/token-engine/internal/logger"
	"github.com/codox/token-engine/internal/metrics"
	"github.com/codox/token-engine/internal/runtime"
	"github.com/codox/token-engine/internal/service"
	"github.com/codox/token-engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stdout, cfg.LogFormat, cfg.Verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// --- Engine and runtime ---
	clock := clockwork.NewRealClock()
	eng, err := engine.New(engine.Config{
		Logger:          log,
		Clock:           clock,
		ProgramID:       cfg.ProgramID,
		MaxParticipants: cfg.MaxParticipants,
	})
	if err != nil {
		return err
	}
	addrs := eng.Addresses()
	log.Info("program addresses",
		"program_id", cfg.ProgramID.String(),
		"config", addrs.Config.String(),
		"lottery", addrs.Lottery.String(),
		"pool_authority", addrs.PoolAuthority.String(),
	)

	// --- WebSocket hub ---
	wsHub := service.NewWSHub(log)
	go wsHub.Run(ctx)

	rt, err := runtime.New(runtime.Config{
		Logger:            log,
		Clock:             clock,
		Store:             st,
		Engine:            eng,
		MaxTransactionAge: cfg.MaxTransactionAge,
		Notifier:          wsHub,
	})
	if err != nil {
		return err
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin API disabled")
	}
	svc := service.New(log, rt, cfg.AdminToken)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for browser clients.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"token-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket stream of committed transactions. Long-lived, so it
		// stays outside the request timeout.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			svc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("token-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("shutting down token-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
	log.Info("token-engine stopped")
	return nil
}

// openStore connects PostgreSQL and Redis when configured and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, log *slog.Logger, cfg *config.Config) (store.Store, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), closeAll, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("connected to PostgreSQL")

	var st store.Store = pg
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		cached := store.NewCachedStore(log, pg, rdb, cfg.CacheTTL)
		if err := cached.Ping(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		st = cached
		log.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}
	return st, closeAll, nil
}
