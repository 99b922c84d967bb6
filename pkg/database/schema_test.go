package database

import (
	"database/sql"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(openTestDB(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := NewMigrationManager(db, DialectSQLite).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	return db
}

func TestSchemaValidator_EmptyDatabase(t *testing.T) {
	db, err := Open(openTestDB(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	v := NewSchemaValidator(db, DialectSQLite)
	if err := v.ValidateTablesExist(); err == nil {
		t.Error("ValidateTablesExist should fail on empty database")
	}
	if err := v.ValidateIndexes(); err == nil {
		t.Error("ValidateIndexes should fail on empty database")
	}
}

func TestSchemaValidator_MigratedDatabase(t *testing.T) {
	v := NewSchemaValidator(migratedDB(t), DialectSQLite)

	if err := v.ValidateTablesExist(); err != nil {
		t.Errorf("ValidateTablesExist failed: %v", err)
	}
	if err := v.ValidateTableStructure(); err != nil {
		t.Errorf("ValidateTableStructure failed: %v", err)
	}
	if err := v.ValidateIndexes(); err != nil {
		t.Errorf("ValidateIndexes failed: %v", err)
	}
	if err := v.ValidateConstraints(); err != nil {
		t.Errorf("ValidateConstraints failed: %v", err)
	}
}

func TestSchemaValidator_DetectsWrongStructure(t *testing.T) {
	db, err := Open(openTestDB(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE sessions (id TEXT PRIMARY KEY, title TEXT, language TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	v := NewSchemaValidator(db, DialectSQLite)
	if err := v.ValidateTableStructure(); err == nil {
		t.Error("ValidateTableStructure should fail when columns are missing")
	}
	if err := v.ValidateConstraints(); err == nil {
		t.Error("ValidateConstraints should fail without the language check")
	}
}
