package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// SchemaValidator checks that a database carries the expected schema
// ARCHITECTURAL DISCOVERY: Separate validation component lets the migrate
// command verify a deployment without touching the migration state
type SchemaValidator struct {
	db      *sql.DB
	dialect Dialect
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB, dialect Dialect) *SchemaValidator {
	return &SchemaValidator{db: db, dialect: dialect}
}

var requiredTables = []string{"sessions", "schema_migrations"}

var requiredIndexes = []string{"idx_sessions_active", "idx_sessions_expires_at"}

// expected declared column types per dialect, compared case-insensitively
var sessionColumns = map[Dialect]map[string]string{
	DialectSQLite: {
		"id":            "TEXT",
		"title":         "TEXT",
		"language":      "TEXT",
		"code":          "TEXT",
		"created_at":    "DATETIME",
		"expires_at":    "DATETIME",
		"password_hash": "TEXT",
		"is_active":     "BOOLEAN",
	},
	DialectPostgres: {
		"id":            "text",
		"title":         "character varying",
		"language":      "text",
		"code":          "text",
		"created_at":    "timestamp with time zone",
		"expires_at":    "timestamp with time zone",
		"password_hash": "text",
		"is_active":     "boolean",
	},
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range requiredTables {
		exists, err := v.exists(v.dialect.tableExistsSQL(), table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies the sessions columns and their types
// TECHNICAL DISCOVERY: Column validation catches a database migrated by an
// older build before a scan fails at request time
func (v *SchemaValidator) ValidateTableStructure() error {
	found, err := v.columns("sessions")
	if err != nil {
		return fmt.Errorf("sessions table structure invalid: %w", err)
	}

	for col, want := range sessionColumns[v.dialect] {
		got, ok := found[col]
		if !ok {
			return fmt.Errorf("sessions table structure invalid: column %s not found", col)
		}
		if !strings.EqualFold(got, want) {
			return fmt.Errorf("sessions table structure invalid: column %s has type %s, expected %s", col, got, want)
		}
	}
	return nil
}

// ValidateIndexes verifies that the lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range requiredIndexes {
		exists, err := v.exists(v.dialect.indexExistsSQL(), index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

// ValidateConstraints verifies that the language check constraint is enforced
func (v *SchemaValidator) ValidateConstraints() error {
	_, err := v.db.Exec(v.dialect.Rebind(
		"INSERT INTO sessions (id, title, language) VALUES (?, ?, ?)"),
		"constraint-check", "check", "cobol",
	)
	if err == nil {
		_, _ = v.db.Exec(v.dialect.Rebind("DELETE FROM sessions WHERE id = ?"), "constraint-check")
		return fmt.Errorf("check constraint not enforced: sessions.language")
	}
	return nil
}

func (v *SchemaValidator) exists(query, name string) (bool, error) {
	var count int
	if err := v.db.QueryRow(query, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) columns(table string) (map[string]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if v.dialect == DialectPostgres {
		rows, err = v.db.Query(
			"SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1",
			table,
		)
	} else {
		rows, err = v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if v.dialect == DialectPostgres {
			err = rows.Scan(&name, &dataType)
		} else {
			var (
				cid          int
				notNull      int
				defaultValue interface{}
				pk           int
			)
			err = rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk)
		}
		if err != nil {
			return nil, err
		}
		found[name] = dataType
	}

	return found, rows.Err()
}
