package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver accepts any DSN; only Ping and Close are exercised.
type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return fakeConn{}, nil }

type fakeConn struct{}

func (fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (fakeConn) Close() error                        { return nil }
func (fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }
func (fakeConn) Ping(context.Context) error          { return nil }

var registerFake sync.Once

func useFakeDriver(t *testing.T, open func(string, string) (*sql.DB, error)) {
	t.Helper()
	registerFake.Do(func() { sql.Register("fbfake", fakeDriver{}) })
	prev := sqlOpen
	if open == nil {
		open = func(_, dsn string) (*sql.DB, error) { return sql.Open("fbfake", dsn) }
	}
	sqlOpen = open
	t.Cleanup(func() { sqlOpen = prev })

	shared.mu.Lock()
	shared.pool = nil
	shared.mu.Unlock()
}

func TestOpenRejectsBlankURL(t *testing.T) {
	if _, err := Open(context.Background(), "  ", PoolConfigFor(ProfileAPI)); !errors.Is(err, ErrNoDatabaseURL) {
		t.Fatalf("expected ErrNoDatabaseURL, got %v", err)
	}
}

func TestPoolConfigForAppliesEnvOverrides(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "nope")

	cfg := PoolConfigFor(ProfileWorker)
	if cfg.MaxOpen != 7 {
		t.Fatalf("expected MaxOpen=7, got %d", cfg.MaxOpen)
	}
	if cfg.MaxIdleTime != 45*time.Second {
		t.Fatalf("expected MaxIdleTime=45s, got %s", cfg.MaxIdleTime)
	}
	if cfg.PingTimeout != profileDefaults[ProfileWorker].PingTimeout {
		t.Fatalf("invalid override should keep default, got %s", cfg.PingTimeout)
	}
	if cfg.MaxIdle != profileDefaults[ProfileWorker].MaxIdle {
		t.Fatalf("expected default MaxIdle, got %d", cfg.MaxIdle)
	}
}

func TestPoolConfigForUnknownProfile(t *testing.T) {
	if got, want := PoolConfigFor("batch-job").MaxOpen, profileDefaults[ProfileAPI].MaxOpen; got != want {
		t.Fatalf("expected api defaults, got MaxOpen=%d want %d", got, want)
	}
}

func TestOpenSizesPool(t *testing.T) {
	useFakeDriver(t, nil)
	conn, err := Open(context.Background(), "postgres://x", PoolConfig{MaxOpen: 3, MaxIdle: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if got := conn.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("expected MaxOpenConnections=3, got %d", got)
	}
}

func TestSharedReusesPool(t *testing.T) {
	useFakeDriver(t, nil)
	first, err := Shared(context.Background(), "postgres://x", PoolConfigFor(ProfileLambda))
	if err != nil {
		t.Fatalf("Shared: %v", err)
	}
	second, err := Shared(context.Background(), "postgres://x", PoolConfigFor(ProfileLambda))
	if err != nil {
		t.Fatalf("Shared again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same pool")
	}
}

func TestSharedRetriesAfterFailure(t *testing.T) {
	calls := 0
	useFakeDriver(t, func(_, dsn string) (*sql.DB, error) {
		calls++
		if calls == 1 {
			return nil, driver.ErrBadConn
		}
		return sql.Open("fbfake", dsn)
	})

	if _, err := Shared(context.Background(), "postgres://x", PoolConfigFor(ProfileLambda)); err == nil {
		t.Fatalf("expected first open to fail")
	}
	conn, err := Shared(context.Background(), "postgres://x", PoolConfigFor(ProfileLambda))
	if err != nil || conn == nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}
