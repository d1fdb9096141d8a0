package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sauerbraten/lyralink"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	c, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	if c.Server.Port != 12032 {
		t.Errorf("server.port = %d, want 12032", c.Server.Port)
	}
	if c.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %q, want sqlite", c.Database.Driver)
	}
	if c.Allocator.StartLength != 3 || c.Allocator.AttemptsPerLength != 4 || c.Allocator.MaxAttempts != 64 {
		t.Errorf("allocator = %+v, want {3 4 64}", c.Allocator)
	}
	if c.Resolver.ValidityWindow != 0 {
		t.Errorf("resolver.validity_window = %v, want 0", c.Resolver.ValidityWindow)
	}
	if c.Cache.Kind != cacheNone || c.Cache.TTL != 15*time.Minute {
		t.Errorf("cache = %q/%v, want none/15m", c.Cache.Kind, c.Cache.TTL)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lyralink.yaml")
	yaml := []byte(`
server:
  port: 8080
  base_url: https://sho.rt
resolver:
  validity_window: 720h
allocator:
  start_length: 5
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LYRALINK_SERVER_PORT", "9090")
	t.Setenv("LYRALINK_CACHE_KIND", "memory")

	c, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if c.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090 from environment", c.Server.Port)
	}
	if c.Server.BaseURL != "https://sho.rt" {
		t.Errorf("server.base_url = %q, want https://sho.rt", c.Server.BaseURL)
	}
	if c.Resolver.ValidityWindow != 30*24*time.Hour {
		t.Errorf("resolver.validity_window = %v, want 720h", c.Resolver.ValidityWindow)
	}
	if c.Allocator.StartLength != 5 || c.Allocator.MaxAttempts != 64 {
		t.Errorf("allocator = %+v, want start length 5 and default cap", c.Allocator)
	}
	if c.Cache.Kind != cacheMemory {
		t.Errorf("cache.kind = %q, want memory", c.Cache.Kind)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestOpenDeps(t *testing.T) {
	var c Config
	c.Allocator = lyralink.DefaultAllocationPolicy
	c.Database.Driver = "sqlite"
	c.Database.DSN = "file:" + filepath.Join(t.TempDir(), "deps.db") + "?_busy_timeout=5000"
	c.Cache.Kind = cacheMemory
	c.Cache.TTL = time.Minute

	d, err := openDeps(context.Background(), c, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	l, err := d.allocator.Allocate(ctx, "https://example.com/deps")
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.resolver.Resolve(ctx, l.ShortCode)
	if err != nil {
		t.Fatal(err)
	}
	if got.OriginalURL != "https://example.com/deps" {
		t.Errorf("resolved %q, want https://example.com/deps", got.OriginalURL)
	}
}

func TestOpenDepsUnknownCache(t *testing.T) {
	var c Config
	c.Database.DSN = "file:" + filepath.Join(t.TempDir(), "deps.db")
	c.Cache.Kind = "memcached"

	if _, err := openDeps(context.Background(), c, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown cache kind")
	}
}
