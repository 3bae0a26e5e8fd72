package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/radiusdt/roas-board/internal/config"
	"github.com/radiusdt/roas-board/internal/database"
	"github.com/radiusdt/roas-board/internal/httpserver"
	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/storage"
)

// backends owns every connection opened for the configured stores.
type backends struct {
	rows   storage.RowStore
	states storage.StateStore
	checks map[string]httpserver.HealthCheck

	postgres   *database.PostgresDB
	redis      *database.RedisDB
	clickhouse *database.ClickHouseDB
	sqlite     *sql.DB
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*backends, error) {
	b := &backends{checks: make(map[string]httpserver.HealthCheck)}

	var rows storage.RowStore
	switch cfg.Storage.Rows {
	case config.BackendPostgres:
		db, err := b.openPostgres(ctx, cfg, logger)
		if err != nil {
			return b, err
		}
		rows = storage.NewPostgresRowStore(db.Pool)
	case config.BackendClickHouse:
		db, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			return b, fmt.Errorf("failed to connect to clickhouse: %w", err)
		}
		b.clickhouse = db
		b.checks["clickhouse"] = db.Health
		rows = storage.NewClickHouseRowStore(db.Conn, db.Table)
	default:
		rows = storage.NewInMemoryRowStore()
	}

	var states storage.StateStore
	switch cfg.Storage.State {
	case config.BackendPostgres:
		db, err := b.openPostgres(ctx, cfg, logger)
		if err != nil {
			return b, err
		}
		states = storage.NewPostgresStateStore(db.Pool)
	case config.BackendRedis:
		db, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			return b, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.redis = db
		b.checks["redis"] = db.Health
		states = storage.NewRedisStateStore(db.Client, cfg.Redis.KeyPrefix)
	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return b, fmt.Errorf("failed to open sqlite: %w", err)
		}
		b.sqlite = db
		b.checks["sqlite"] = db.PingContext
		states = storage.NewSQLiteStateStore(db)
	default:
		states = storage.NewInMemoryStateStore()
	}

	b.rows = storage.NewInstrumentedRowStore(rows, cfg.Storage.Rows, m)
	b.states = storage.NewInstrumentedStateStore(states, cfg.Storage.State, m)

	logger.Info("storage ready",
		zap.String("rows", cfg.Storage.Rows),
		zap.String("state", cfg.Storage.State),
	)
	return b, nil
}

// openPostgres connects and migrates once, even when both stores use it.
func (b *backends) openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.PostgresDB, error) {
	if b.postgres != nil {
		return b.postgres, nil
	}
	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	b.postgres = db
	b.checks["postgres"] = db.Health
	return db, nil
}

// recordPoolStats publishes PostgreSQL pool usage.
func (b *backends) recordPoolStats(m *metrics.Metrics) {
	if b.postgres == nil {
		return
	}
	st := b.postgres.Stats()
	m.UpdateDBStats(int(st.IdleConns()), int(st.AcquiredConns()), int(st.TotalConns()))
}

func (b *backends) Close(logger *zap.Logger) {
	if b.postgres != nil {
		b.postgres.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if b.clickhouse != nil {
		if err := b.clickhouse.Close(); err != nil {
			logger.Warn("failed to close clickhouse", zap.Error(err))
		}
	}
	if b.sqlite != nil {
		if err := b.sqlite.Close(); err != nil {
			logger.Warn("failed to close sqlite", zap.Error(err))
		}
	}
}
