package database

import (
	"strings"
	"testing"
)

func TestConfigDSN(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		cfg := &Config{Driver: DriverPostgres, Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}

		if got := cfg.DSN(); got != "host=db port=5432 user=u password=p dbname=n sslmode=disable" {
			t.Errorf("unexpected DSN %q", got)
		}
		if got := cfg.MigrationURL(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
			t.Errorf("unexpected migration URL %q", got)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &Config{Driver: DriverSQLite, SQLitePath: "/tmp/p.db"}

		if !strings.HasPrefix(cfg.DSN(), "/tmp/p.db") {
			t.Errorf("unexpected DSN %q", cfg.DSN())
		}
		if !strings.HasPrefix(cfg.MigrationURL(), "sqlite3:///tmp/p.db") {
			t.Errorf("unexpected migration URL %q", cfg.MigrationURL())
		}
	})
}

func TestNewConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	if _, err := NewConfig(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateRejectsBadActions(t *testing.T) {
	url := (&Config{Driver: DriverSQLite, SQLitePath: t.TempDir() + "/m.db"}).MigrationURL()

	if _, err := Migrate(url, MigrateAction("sideways"), 0); err == nil || !strings.Contains(err.Error(), "unknown migrate action") {
		t.Errorf("expected unknown action error, got %v", err)
	}
	if _, err := Migrate(url, MigrateDown, 0); err == nil || !strings.Contains(err.Error(), "invalid step count") {
		t.Errorf("expected step count error, got %v", err)
	}
}
