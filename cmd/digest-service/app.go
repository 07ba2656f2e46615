package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nitesh/news_digest/internal/cache"
	"github.com/nitesh/news_digest/internal/config"
	"github.com/nitesh/news_digest/internal/ingest"
	"github.com/nitesh/news_digest/internal/llm"
	"github.com/nitesh/news_digest/internal/metrics"
	"github.com/nitesh/news_digest/internal/service"
	"github.com/nitesh/news_digest/internal/store"
	"github.com/nitesh/news_digest/pkg/models"
)

const (
	dbPingAttempts = 10
	dbPingBackoff  = 2 * time.Second
)

// app is the wired service plus the resources main has to close.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	svc     *service.Service
	metrics *metrics.Metrics

	db  *sql.DB
	rdb *redis.Client
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	db, err := openDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.db = db

	repo := store.NewSQLStore(db, cfg.Database.Driver)
	if err := repo.RunMigrations(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	var feedCache service.FeedCache = cache.Nop{}
	if !cfg.Redis.Disabled {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed, feed cache will miss until it is reachable",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		feedCache = cache.NewFeedCache(a.rdb, cfg.Redis.FeedTTL)
	}

	llmClient := llm.NewClient(cfg.LLM.URL, cfg.LLM.Model, &http.Client{Timeout: cfg.LLM.Timeout}, logger)
	pipeline := ingest.NewPipeline(llmClient)

	a.svc = service.NewService(cfg.Profile.UserID, repo, feedCache, pipeline, a.metrics, logger)

	var seed *models.Preferences
	if cfg.Profile.SeedDefaults {
		p := cfg.Profile.Defaults
		seed = &p
	}
	if err := a.svc.Load(ctx, seed); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openDB opens the configured driver and waits for it to answer; the
// database may still be starting when the service comes up under compose.
func openDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	for i := 0; i < dbPingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		logger.Info("waiting for db", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(dbPingBackoff):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("could not connect to db: %w", err)
}
