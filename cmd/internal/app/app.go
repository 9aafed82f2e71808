// Package app wires the sidecar runtime: config, logging, stores, HTTP routes
// and the session reaper.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"authsidecar/cmd/identity"
	authapi "authsidecar/cmd/internal/auth/api"
	"authsidecar/cmd/internal/auth/session"
	"authsidecar/cmd/internal/migrations"
	"authsidecar/cmd/security/password"
)

// accountStore is what both the service and the non-joining session stores need.
type accountStore interface {
	session.AccountStore
	session.AccountReader
}

// App is the sidecar runtime. It owns the pool and Redis client lifecycles.
type App struct {
	cfg Config
	log Logger

	pool *pgxpool.Pool
	rdb  *redis.Client

	metrics *Metrics
	service *session.Service
	reaper  *session.Reaper
	handler http.Handler
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (a *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	digester, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}
	hasher, err := password.NewHasher(pwCfg)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	a = &App{cfg: cfg, log: log, metrics: NewMetrics()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	accounts, err := a.openAccounts(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := a.openSessions(ctx, accounts)
	if err != nil {
		return nil, err
	}

	a.service, err = session.NewService(sessCfg, accounts, sessions, hasher,
		session.WithLogger(log),
		session.WithRecorder(a.metrics),
		session.WithTokenDigester(digester),
	)
	if err != nil {
		return nil, err
	}
	a.reaper = session.NewReaper(sessions, sessCfg, log, a.metrics)

	ready := map[string]Pinger{}
	if a.pool != nil {
		ready["db"] = a.pool
	}
	if p, ok := sessions.(Pinger); ok {
		ready["redis"] = p
	}

	a.handler = newRouter(routerDeps{
		log:     log,
		cfg:     cfg,
		metrics: a.metrics,
		auth:    authapi.NewHandler(log, a.service, authapi.LoadConfigFromEnv()),
		ready:   ready,
	})

	log.Info("app.ready",
		"session_store", cfg.SessionStore,
		"db_enabled", a.pool != nil,
		"token_digest_keyed", digester.Keyed(),
		"session_lifetime", sessCfg.Lifetime.String(),
	)
	return a, nil
}

func (a *App) openAccounts(ctx context.Context) (accountStore, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("db.disabled.inmemory_accounts")
		return identity.NewInMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a.pool = pool

	if a.cfg.DBMigrate {
		if err := migrations.Up(ctx, pool, a.log); err != nil {
			return nil, err
		}
	}
	a.log.Info("db.enabled.postgres_store", "schema", a.cfg.DBSchema)
	return identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema))
}

func (a *App) openSessions(ctx context.Context, accounts accountStore) (session.Store, error) {
	switch a.cfg.SessionStore {
	case StorePostgres:
		return session.NewPostgresStore(a.pool, session.WithSchema(a.cfg.DBSchema))
	case StoreRedis:
		rdb, err := NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		return session.NewRedisStore(rdb, accounts, EnvString("SIDECAR_REDIS_PREFIX", session.DefaultRedisPrefix)), nil
	default:
		a.log.Warn("session.store.inmemory")
		return session.NewInMemoryStore(accounts), nil
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the reaper until ctx ends or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error { return a.reaper.Run(gctx) })

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	a.log.Info("server.stopped")
	return err
}

// Close releases the pool and Redis client. It is safe to call more than once.
func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("redis.close.fail", "err", err)
		}
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
