package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/dashboard/internal/auth"
	"github.com/geocoder89/dashboard/internal/cache"
	"github.com/geocoder89/dashboard/internal/config"
	"github.com/geocoder89/dashboard/internal/db"
	httpx "github.com/geocoder89/dashboard/internal/http"
	"github.com/geocoder89/dashboard/internal/observability"
	"github.com/geocoder89/dashboard/internal/proxy"
	"github.com/geocoder89/dashboard/internal/repo/memory"
	"github.com/geocoder89/dashboard/internal/repo/postgres"
	"github.com/geocoder89/dashboard/internal/repo/sqlite"
	"github.com/geocoder89/dashboard/internal/security"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type store struct {
	users auth.UserStore
	ping  func(ctx context.Context) error
	close func()
}

type proxyCache struct {
	store cache.Store
	// nil unless the cache is shared through redis
	ping  func(ctx context.Context) error
	close func()
}

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	startCtx, startCancel := config.WithTimeout(30 * time.Second)
	defer startCancel()

	shutdownTracer, err := observability.InitTracer(startCtx, "dashboard-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStore(startCtx, cfg, prom, log)
	if err != nil {
		observability.LogError(startCtx, log, "store init failed", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer st.close()

	tokens, err := auth.NewManager(cfg.SecretKey, auth.TokenTTL)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(st.users, security.NewBcryptHasher(security.DefaultCost), tokens, log, prom)
	if err != nil {
		log.Error("auth service init failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureSeedUser(startCtx, authSvc, cfg); err != nil {
		observability.LogError(startCtx, log, "seed user failed", err)
		os.Exit(1)
	}

	pc := openCache(cfg, log)
	defer pc.close()

	proxyClient := proxy.New(proxy.Config{
		WeatherURL:    cfg.WeatherAPIURL,
		WeatherAPIKey: cfg.WeatherAPIKey,
		ClothesURL:    cfg.ClothesAPIURL,
		Timeout:       cfg.UpstreamTimeout,
	}, &http.Client{}, pc.store, prom, log)

	// set up routers with the log
	router := httpx.NewRouter(httpx.Deps{
		Log:       log,
		Config:    cfg,
		Auth:      authSvc,
		Tokens:    tokens,
		Proxy:     proxyClient,
		Prom:      prom,
		Gatherer:  reg,
		Ping:      st.ping,
		CachePing: pc.ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		repo := memory.NewUsersRepo()
		log.Warn("using in-memory user store; users are lost on restart")
		return store{users: repo, ping: repo.Ping, close: func() {}}, nil

	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return store{}, err
		}

		if cfg.DBAutoMigrate {
			if err := db.Migrate(ctx, sqlDB, db.DialectSQLite); err != nil {
				_ = sqlDB.Close()
				return store{}, err
			}
		}

		repo := sqlite.NewUsersRepo(sqlDB)
		return store{users: repo, ping: repo.Ping, close: func() { _ = sqlDB.Close() }}, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			return store{}, err
		}

		if cfg.DBAutoMigrate {
			sqlDB := stdlib.OpenDBFromPool(pool)
			err := db.Migrate(ctx, sqlDB, db.DialectPostgres)
			_ = sqlDB.Close()

			if err != nil {
				pool.Close()
				return store{}, err
			}
		}

		repo := postgres.NewUsersRepo(pool, prom)
		return store{users: repo, ping: repo.Ping, close: pool.Close}, nil
	}
}

func openCache(cfg config.Config, log *slog.Logger) proxyCache {
	if cfg.ProxyCacheTTL <= 0 {
		return proxyCache{close: func() {}}
	}

	if cfg.RedisAddr == "" {
		return proxyCache{store: cache.NewMemory(cfg.ProxyCacheTTL), close: func() {}}
	}

	rc := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.ProxyCacheTTL, log)

	return proxyCache{store: rc, ping: rc.Ping, close: func() { _ = rc.Close() }}
}
