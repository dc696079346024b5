// Package database opens the Postgres connection pool.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"blogapi/internal/config"
)

// DSN builds a postgres:// connection string from discrete parameters.
func DSN(cfg config.DBConfig) (string, error) {
	switch strings.ToLower(cfg.Client) {
	case "pg", "postgres", "postgresql":
	default:
		return "", fmt.Errorf("unsupported database client %q", cfg.Client)
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("database host must not be empty")
	}

	sslmode := "disable"
	if cfg.SSL {
		sslmode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String(), nil
}

// Connect opens a pool sized by cfg and verifies connectivity.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	poolCfg.MinConns = int32(cfg.PoolMin)
	poolCfg.MaxConns = int32(cfg.PoolMax)
	poolCfg.MaxConnLifetime = 1 * time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	if len(cfg.SearchPath) > 0 {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = strings.Join(cfg.SearchPath, ",")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
