// Package storage provides the PostgreSQL connection pool and the
// transaction plumbing shared by every repository.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// The database may still be starting (docker-compose), so retry the ping.
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Printf("[storage] connected to postgres")
			return pool, nil
		}
		log.Printf("[storage] waiting for database... (%d/30)", i+1)
		time.Sleep(time.Second)
	}

	pool.Close()
	return nil, fmt.Errorf("database not reachable after 30 attempts")
}
