package svc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"quotewatch/internal/infrastructure/config"
	"quotewatch/internal/infrastructure/storage/memory"
	sqliterepo "quotewatch/internal/infrastructure/storage/sqlite"
)

func TestNewFallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sc.Close()

	if _, ok := sc.Records.(*memory.Store); !ok {
		t.Fatalf("records = %T, want memory store", sc.Records)
	}
	if any(sc.Prefs) != any(sc.Records) {
		t.Fatalf("prefs and records should share the memory store")
	}
	if sc.Cache != nil {
		t.Fatalf("cache should be nil without redis")
	}
	if sc.Reach != nil {
		t.Fatalf("reachability should be nil when network disabled")
	}
	if _, err := sc.BuildHTTPServer(); !errors.Is(err, ErrHTTPDisabled) {
		t.Fatalf("BuildHTTPServer err = %v", err)
	}

	deps := sc.BuildWatchServiceDeps()
	if deps.Manager == nil || deps.Sink == nil {
		t.Fatalf("watch deps incomplete: %+v", deps)
	}
	if deps.Retry.MaxRetries != cfg.Reconnect.MaxRetries {
		t.Fatalf("retries = %d", deps.Retry.MaxRetries)
	}
}

func TestNewWithSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.SQLite.Enabled = true
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "qw.db")
	cfg.HTTP.Enabled = true
	cfg.HTTP.Addr = "127.0.0.1:0"

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sc.Close()

	if _, ok := sc.Records.(*sqliterepo.Repo); !ok {
		t.Fatalf("records = %T, want sqlite repo", sc.Records)
	}
	if _, ok := sc.Prefs.(*sqliterepo.Repo); !ok {
		t.Fatalf("prefs = %T, want sqlite repo", sc.Prefs)
	}

	on, err := sc.Favorites.Toggle(context.Background(), "2330")
	if err != nil || !on {
		t.Fatalf("toggle = %v, %v", on, err)
	}
	syms, err := sc.Prefs.Read(context.Background())
	if err != nil || len(syms) != 1 || syms[0] != "2330" {
		t.Fatalf("prefs = %v, %v", syms, err)
	}

	if _, err := sc.BuildHTTPServer(); err != nil {
		t.Fatalf("BuildHTTPServer: %v", err)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	if _, err := New(context.Background(), cfg); !errors.Is(err, ErrStorageInitFailed) {
		t.Fatalf("err = %v, want ErrStorageInitFailed", err)
	}
}
