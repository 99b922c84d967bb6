package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	dbconfig "interviewpad/pkg/database"
	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// Manager implements the DatabaseManager interface on database/sql
type Manager struct {
	db           *sql.DB
	dialect      dbconfig.Dialect
	logger       *slog.Logger
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	loopDone     chan struct{} // closed once writeLoop has answered every op it took
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // TECHNICAL: Protect closed status
	retryDelay   time.Duration
}

// writeOperation represents a queued database write
type writeOperation struct {
	ctx       context.Context
	operation func(context.Context, *sql.DB) error
	result    chan error
}

const (
	writeQueueSize    = 100
	writeQueueTimeout = 30 * time.Second
	busyRetryDelay    = 100 * time.Millisecond
)

// NewManager opens the configured database and starts the writer goroutine
func NewManager(config *dbconfig.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:           db,
		dialect:      config.Dialect(),
		logger:       logger.With("component", "database"),
		writeChannel: make(chan writeOperation, writeQueueSize),
		shutdown:     make(chan struct{}),
		loopDone:     make(chan struct{}),
		retryDelay:   busyRetryDelay,
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write
	// contention; postgres tolerates it the same way at this scale
	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// Migrate applies pending embedded migrations for the configured dialect
func (m *Manager) Migrate() ([]string, error) {
	return dbconfig.NewMigrationManager(m.db, m.dialect).ApplyMigrations()
}

// ValidateSchema checks the migrated schema
func (m *Manager) ValidateSchema() error {
	return dbconfig.NewMigrationManager(m.db, m.dialect).ValidateSchema()
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()
	defer close(m.loopDone)

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(op.ctx, m.db)
			// FUNCTIONAL DISCOVERY: Only a busy or locked database is retried,
			// exactly once; constraint and not-found errors are final
			if isBusy(err) {
				m.logger.Warn("database busy, retrying write", "error", err, "delay", m.retryDelay)
				time.Sleep(m.retryDelay)
				err = op.operation(op.ctx, m.db)
				if err != nil {
					m.logger.Error("database write failed after retry", "error", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.logger.Debug("database write loop shutting down")
			m.drain()
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(ctx context.Context, operation func(context.Context, *sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{ctx: ctx, operation: operation, result: result}:
	case <-time.After(writeQueueTimeout):
		return ErrWriteTimeout
	case <-m.shutdown:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// FUNCTIONAL DISCOVERY: A queued op may never be picked up once Close
	// runs; the caller waits for the loop to finish rather than the result
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.loopDone:
		select {
		case err := <-result:
			return err
		default:
			return ErrManagerClosed
		}
	}
}

// drain answers every still-queued write with ErrManagerClosed
func (m *Manager) drain() {
	for {
		select {
		case op := <-m.writeChannel:
			op.result <- ErrManagerClosed
		default:
			return
		}
	}
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// CreateSession inserts a fully built session record
func (m *Manager) CreateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }() // TECHNICAL: Always rollback unless commit succeeds

		query := m.dialect.Rebind(`
			INSERT INTO sessions (id, title, language, code, created_at, expires_at, password_hash, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		_, err = tx.ExecContext(ctx, query,
			session.ID,
			session.Title,
			string(session.Language),
			session.Code,
			session.CreatedAt,
			nullTime(session.ExpiresAt),
			nullString(session.PasswordHash),
			session.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit session creation: %w", err)
		}
		return nil
	})
}

// GetSession loads a session by ID, including inactive rows
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	// ARCHITECTURAL DISCOVERY: Reads are concurrent and bypass the writer
	query := m.dialect.Rebind(`
		SELECT id, title, language, code, created_at, expires_at, password_hash, is_active
		FROM sessions
		WHERE id = ?
	`)

	var (
		session      types.Session
		language     string
		expiresAt    sql.NullTime
		passwordHash sql.NullString
	)
	err := m.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.Title,
		&language,
		&session.Code,
		&session.CreatedAt,
		&expiresAt,
		&passwordHash,
		&session.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session.Language = types.Language(language)
	session.CreatedAt = session.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		session.ExpiresAt = &t
	}
	if passwordHash.Valid {
		h := passwordHash.String
		session.PasswordHash = &h
	}

	return &session, nil
}

// UpdateSession writes the mutable fields of an active session
func (m *Manager) UpdateSession(ctx context.Context, session *types.Session) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		query := m.dialect.Rebind(`
			UPDATE sessions
			SET title = ?, language = ?, code = ?
			WHERE id = ? AND is_active = ?
		`)
		res, err := tx.ExecContext(ctx, query,
			session.Title,
			string(session.Language),
			session.Code,
			session.ID,
			true,
		)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit session update: %w", err)
		}
		return nil
	})
}

// SoftDeleteSession marks an active session inactive
func (m *Manager) SoftDeleteSession(ctx context.Context, sessionID string) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			m.dialect.Rebind(`UPDATE sessions SET is_active = ? WHERE id = ? AND is_active = ?`),
			false, sessionID, true,
		)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit session delete: %w", err)
		}
		return nil
	})
}

// HardDeleteSession physically removes a session row, active or not
func (m *Manager) HardDeleteSession(ctx context.Context, sessionID string) error {
	return m.executeWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, m.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`), sessionID)
		if err != nil {
			return fmt.Errorf("failed to purge session: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit session purge: %w", err)
		}
		return nil
	})
}

// HealthCheck validates connectivity and a read against the sessions table
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close stops the writer and closes the pool
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return interfaces.ErrSessionNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
