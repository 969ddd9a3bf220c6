package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/friden-zhang/raspi-todo/internal/cache"
	"github.com/friden-zhang/raspi-todo/internal/config"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/migrations"
	"github.com/friden-zhang/raspi-todo/internal/repo"
)

type App struct {
	cfg    config.Config
	logger *log.Logger
	db     *pgxpool.Pool
	redis  *redis.Client
	hub    *hub.Hub
	router *gin.Engine
}

// New connects to Postgres (and Redis when configured), bootstraps the schema and
// builds the router.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	db, err := newPostgres(ctx, cfg.PG)
	if err != nil {
		return nil, err
	}
	a.db = db

	if err := Migrate(ctx, cfg, logger); err != nil {
		a.db.Close()
		return nil, err
	}

	var listCache *cache.ListCache
	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			a.db.Close()
			return nil, err
		}
		a.redis = rdb
		listCache = cache.NewListCache(rdb, cfg.Redis.DefaultTTL.Duration())
		logger.Info("list cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.DefaultTTL.Duration())
	} else {
		logger.Info("list cache disabled, REDIS_ADDR not set")
	}

	a.hub = hub.New(cfg.Hub.Buffer)
	a.router = NewRouter(Deps{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Todos:      repo.NewPGTodoRepo(db),
		Categories: repo.NewPGCategoryRepo(db),
		Cache:      listCache,
		Hub:        a.hub,
	})
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Close ends every websocket connection, then releases Redis and the pool.
// Call it after the HTTP server has shut down.
func (a *App) Close() error {
	if a.hub != nil {
		a.hub.Close()
	}
	var err error
	if a.redis != nil {
		err = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	return err
}

// Migrate applies the embedded migrations, the category column check and the
// default seed. Safe to run on every start.
func Migrate(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	db, err := goose.OpenDBWithDriver("pgx", cfg.PG.DSN)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	if err := migrations.Bootstrap(ctx, db, logger); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}

func newPostgres(ctx context.Context, pg config.PGConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	// The pool size is the only admission control for storage access.
	cfg.MaxConns = pg.MaxConns
	cfg.MinConns = min(1, pg.MaxConns)
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("redis ping: %w", err), rdb.Close())
	}

	return rdb, nil
}
