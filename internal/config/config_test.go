package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Feed.PageSize != 25 {
		t.Fatalf("page size = %d, want 25", cfg.Feed.PageSize)
	}
	if cfg.Feed.CacheTTL != 5*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Feed.CacheTTL)
	}
	if got := cfg.Redis.Addr(); got != "localhost:6379" {
		t.Fatalf("redis addr = %q", got)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `database:
  driver: sqlite
  path: /tmp/blog.db
feed:
  page_size: 10
  max_page_size: 5
  cache_ttl: 30s
kafka:
  brokers:
    - "kafka-1:9092"
    - "kafka-2:9092"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MICROBLOG_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN() != "/tmp/blog.db" {
		t.Fatalf("dsn = %q", cfg.Database.DSN())
	}
	if cfg.Feed.PageSize != 10 || cfg.Feed.MaxPageSize != 10 {
		t.Fatalf("page sizes = %d/%d", cfg.Feed.PageSize, cfg.Feed.MaxPageSize)
	}
	if cfg.Feed.CacheTTL != 30*time.Second {
		t.Fatalf("cache ttl = %v", cfg.Feed.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q, want env override", cfg.Log.Level)
	}
}

func TestPostgresDSN(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5433, User: "u", Password: "p", DBName: "blog", SSLMode: "disable"}
	want := "host=db port=5433 user=u password=p dbname=blog sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}
