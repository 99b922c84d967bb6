package database

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

// Functional Validation Tests - Config

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Driver != DriverSQLite {
		t.Errorf("Expected driver %s, got %s", DriverSQLite, config.Driver)
	}
	if config.MaxConnections != 10 {
		t.Errorf("Expected MaxConnections 10, got %d", config.MaxConnections)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime 1 hour, got %v", config.ConnMaxLifetime)
	}
	if config.Dialect() != DialectSQLite {
		t.Errorf("Expected sqlite dialect, got %s", config.Dialect())
	}
}

func TestConfig_Validation(t *testing.T) {
	valid := DefaultConfig()

	postgres := DefaultConfig()
	postgres.Driver = DriverPostgres
	postgres.DSN = "postgres://localhost/interviewpad?sslmode=disable"

	noDSN := DefaultConfig()
	noDSN.Driver = DriverPostgres

	noPath := DefaultConfig()
	noPath.DatabasePath = ""

	unknown := DefaultConfig()
	unknown.Driver = "mysql"

	zeroConns := DefaultConfig()
	zeroConns.MaxConnections = 0

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid sqlite", valid, false},
		{"valid postgres", postgres, false},
		{"postgres without dsn", noDSN, true},
		{"sqlite without path", noPath, true},
		{"unknown driver", unknown, true},
		{"zero max connections", zeroConns, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if postgres.Dialect() != DialectPostgres {
		t.Errorf("Expected postgres dialect, got %s", postgres.Dialect())
	}
}

// Functional Validation Tests - Dialect

func TestDialect_Rebind(t *testing.T) {
	query := "UPDATE sessions SET title = ?, code = ? WHERE id = ?"

	if got := DialectSQLite.Rebind(query); got != query {
		t.Errorf("SQLite rebind should be identity, got %s", got)
	}

	want := "UPDATE sessions SET title = $1, code = $2 WHERE id = $3"
	if got := DialectPostgres.Rebind(query); got != want {
		t.Errorf("Postgres rebind = %s, want %s", got, want)
	}
}

// Functional Validation Tests - Migration System

func TestMigrationManager_LoadMigrations(t *testing.T) {
	for _, dialect := range []Dialect{DialectSQLite, DialectPostgres} {
		mgr := &MigrationManager{dialect: dialect, files: migrationFiles}
		migrations, err := mgr.LoadMigrations()
		if err != nil {
			t.Fatalf("%s: LoadMigrations failed: %v", dialect, err)
		}
		if len(migrations) == 0 {
			t.Fatalf("%s: expected embedded migrations", dialect)
		}
		if migrations[0].Version != "001" || migrations[0].Description != "create_sessions" {
			t.Errorf("%s: unexpected first migration %+v", dialect, migrations[0])
		}
	}
}

func TestMigrationManager_ApplyMigrationsIsIdempotent(t *testing.T) {
	db, err := Open(openTestDB(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := NewMigrationManager(db, DialectSQLite)

	applied, err := mgr.ApplyMigrations()
	if err != nil {
		t.Fatalf("First ApplyMigrations failed: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001" {
		t.Errorf("Expected [001] applied, got %v", applied)
	}

	applied, err = mgr.ApplyMigrations()
	if err != nil {
		t.Fatalf("Second ApplyMigrations failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("Expected nothing applied on rerun, got %v", applied)
	}

	if err := mgr.ValidateSchema(); err != nil {
		t.Errorf("ValidateSchema failed after migrations: %v", err)
	}
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = "oracle"
	if _, err := Open(cfg); err == nil {
		t.Error("Open should fail for an unsupported driver")
	}
}
