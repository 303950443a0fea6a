package main

import (
	"testing"

	"ebookGen/internal/config"
)

func TestLoadDatabaseConfig(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_PORT", "")
	t.Setenv("POSTGRES_DB", "books")
	t.Setenv("POSTGRES_USER", "owner")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := loadDatabaseConfig(databaseFlags{host: "db", port: 6543})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Driver != config.DriverPostgres || cfg.Host != "db" || cfg.Port != 6543 || cfg.Name != "books" || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	cfg, err = loadDatabaseConfig(databaseFlags{driver: "SQLite", sqlitePath: "/tmp/x.db"})
	if err != nil || cfg.Driver != config.DriverSQLite || cfg.SQLitePath != "/tmp/x.db" {
		t.Fatalf("sqlite config = %+v, %v", cfg, err)
	}

	if _, err := loadDatabaseConfig(databaseFlags{driver: "memory"}); err == nil {
		t.Fatal("expected memory driver to be rejected")
	}

	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("DB_PASSWORD", "")
	if _, err := loadDatabaseConfig(databaseFlags{}); err == nil {
		t.Fatal("expected missing password error")
	}
}
