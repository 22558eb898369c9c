// Package db opens the Postgres pool used by the outcome store and migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoDatabaseURL is returned when DATABASE_URL is blank.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// Profile selects pool defaults for the kind of process opening the pool.
type Profile string

const (
	ProfileAPI     Profile = "api"
	ProfileWorker  Profile = "worker"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// PoolConfig controls pool sizing and the connectivity check.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	PingTimeout time.Duration
}

var profileDefaults = map[Profile]PoolConfig{
	// Worker concurrency drives pool size; each in-flight job writes one outcome.
	ProfileWorker:  {MaxOpen: 8, MaxIdle: 4, MaxLifetime: time.Hour, MaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileAPI:     {MaxOpen: 10, MaxIdle: 5, MaxLifetime: time.Hour, MaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileLambda:  {MaxOpen: 2, MaxIdle: 1, MaxLifetime: 15 * time.Minute, MaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second},
	ProfileMigrate: {MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Hour, MaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
}

// PoolConfigFor returns the defaults for p with DB_* env overrides applied.
// Unknown profiles fall back to the API defaults.
func PoolConfigFor(p Profile) PoolConfig {
	cfg, ok := profileDefaults[p]
	if !ok {
		cfg = profileDefaults[ProfileAPI]
	}
	cfg.MaxOpen = envInt("DB_MAX_OPEN_CONNS", cfg.MaxOpen)
	cfg.MaxIdle = envInt("DB_MAX_IDLE_CONNS", cfg.MaxIdle)
	cfg.MaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", cfg.MaxIdleTime)
	cfg.PingTimeout = envDuration("DB_PING_TIMEOUT", cfg.PingTimeout)
	return cfg
}

// InLambda reports whether the process runs inside AWS Lambda.
func InLambda() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

var sqlOpen = sql.Open

// Open connects to databaseURL, sizes the pool, and pings it.
func Open(ctx context.Context, databaseURL string, cfg PoolConfig) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoDatabaseURL
	}
	conn, err := sqlOpen("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(conn, cfg)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	st := conn.Stats()
	log.Printf("db pool ready: max_open=%d open=%d idle=%d", st.MaxOpenConnections, st.OpenConnections, st.Idle)
	return conn, nil
}

// shared holds the process-wide pool. A failed open is not cached so a later
// call can retry; concurrent callers serialize on mu.
var shared struct {
	mu   sync.Mutex
	pool *sql.DB
}

// Shared returns the process-wide pool, opening it on first successful call.
// Lambda handlers use it so warm invocations reuse connections.
func Shared(ctx context.Context, databaseURL string, cfg PoolConfig) (*sql.DB, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.pool != nil {
		return shared.pool, nil
	}
	conn, err := Open(ctx, databaseURL, cfg)
	if err != nil {
		return nil, err
	}
	shared.pool = conn
	log.Printf("db shared pool initialized")
	return conn, nil
}

func configurePool(conn *sql.DB, cfg PoolConfig) {
	if cfg.MaxOpen > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	if cfg.MaxIdleTime > 0 {
		conn.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("db env %s=%q ignored", key, raw)
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("db env %s=%q ignored", key, raw)
		return def
	}
	return v
}
