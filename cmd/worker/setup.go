package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/aicmo-cam/internal/config"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

// loadConfig reads configuration, initializes logging and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Env, logger.ParseLevel(cfg.Log.Level)); err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("config warning", "warning", w)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// connections are the shared clients modules are built on.
type connections struct {
	db    *sql.DB
	redis *redis.Client
}

func (c *connections) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

// connect opens the configured database and Redis. Neither is required.
func connect(ctx context.Context, cfg *config.Config) (*connections, error) {
	conns := &connections{}
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxOpenConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		logger.Info("connected to database")
		conns.db = db
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		conns.redis = redis.NewClient(opts)
		logger.Info("redis client configured", "addr", opts.Addr)
	}
	return conns, nil
}
