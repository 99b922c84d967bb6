package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"interviewpad/internal/api"
	"interviewpad/internal/config"
	"interviewpad/internal/credentials"
	"interviewpad/internal/database"
	"interviewpad/internal/fanout"
	"interviewpad/internal/hub"
	"interviewpad/internal/livestate"
	"interviewpad/internal/redis"
	"interviewpad/internal/router"
	"interviewpad/internal/session"
	"interviewpad/internal/websocket"
	pkgdatabase "interviewpad/pkg/database"
)

// Version is reported by the root and health endpoints
var Version = "0.1.0"

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	instanceID string

	dbManager *database.Manager
	sessions  *session.Manager
	store     livestate.Store
	redis     *redis.Client
	state     *livestate.State
	fanout    fanout.Fanout
	router    *router.Router
	limiter   *router.RateLimiter
	hub       *hub.Hub
	registry  *websocket.Registry
	apiServer *api.Server

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	started bool
	closed  bool
}

// OpenDatabase opens the record store and applies pending migrations
func OpenDatabase(cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Manager, []string, error) {
	dbConfig := &pkgdatabase.Config{
		Driver:          cfg.Driver,
		DatabasePath:    cfg.Path,
		DSN:             cfg.DSN,
		MaxConnections:  cfg.MaxConnections,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	if dbConfig.Driver == pkgdatabase.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dbConfig.DatabasePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	applied, err := dbManager.Migrate()
	if err != nil {
		dbManager.Close()
		return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := dbManager.ValidateSchema(); err != nil {
		dbManager.Close()
		return nil, nil, fmt.Errorf("database schema invalid: %w", err)
	}
	return dbManager, applied, nil
}

// New creates an application with all components initialized
// Component initialization follows strict dependency order:
// Database → Session → Live state → Fan-out → Router → Hub → Registry → API → HTTP
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		config:     cfg,
		logger:     logger.With("component", "app"),
		instanceID: uuid.NewString(),
	}

	// STEP 1: Record store with migrations applied
	dbManager, applied, err := OpenDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.dbManager = dbManager
	if len(applied) > 0 {
		app.logger.Info("database migrations applied", "migrations", applied)
	}

	// STEP 2: Session lifecycle over the record store
	hasher := credentials.NewHasher(cfg.Security.BcryptCost)
	app.sessions = session.NewManager(dbManager, hasher, logger)

	// STEP 3: Ephemeral live state, Redis or in-process
	store, client, err := livestate.Open(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Redis.AllowFallback, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to open live state store: %w", err)
	}
	app.store, app.redis = store, client
	app.state = livestate.NewState(store, cfg.Redis.KeyTTL)

	// STEP 4: Cross-instance fan-out needs a shared Redis
	app.fanout = fanout.Noop{}
	if cfg.Redis.Fanout && client != nil {
		fan, err := fanout.NewRedis(ctx, client.Client, cfg.Redis.ChannelPrefix, app.instanceID, logger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to subscribe fan-out: %w", err)
		}
		app.fanout = fan
	}

	// STEP 5: Rooms, rate limiting and the event hub
	app.router = router.NewRouter(logger)
	if cfg.Live.RateLimitPerMinute > 0 {
		app.limiter = router.NewRateLimiter(cfg.Live.RateLimitPerMinute, time.Minute)
	}
	hubConfig := hub.DefaultConfig()
	hubConfig.RequireSessionAccess = cfg.Live.RequireSessionAccess
	hubConfig.EventTimeout = cfg.Live.EventTimeout
	app.hub = hub.NewHub(app.sessions, app.state, app.router, app.limiter, app.fanout, hubConfig, logger)

	// STEP 6: Websocket transport feeding the hub
	app.registry = websocket.NewRegistry()
	wsHandler := websocket.NewHandler(app.registry, app.hub, websocket.Options{
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		BufferSize:      cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		AllowedOrigins:  cfg.HTTP.CORSOrigins,
	}, logger)

	// STEP 7: REST surface with /ws mounted on the same engine
	gin.SetMode(gin.ReleaseMode)
	app.apiServer = api.NewServer(app.sessions, dbManager, app.state, app.hub, wsHandler, api.Options{
		Name:           "interviewpad",
		Version:        Version,
		PublicBaseURL:  cfg.HTTP.PublicBaseURL,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.Database.Timeout,
	}, logger)

	app.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      app.apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Start begins application execution
// Hub starts first to relay fan-out, then the listener accepts connections
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.started {
		return errors.New("application already started")
	}

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		app.hub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = ln
	app.started = true

	go func() {
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "error", err)
		}
	}()

	app.logger.Info("interviewpad started", "addr", ln.Addr().String(), "version", Version, "instance", app.instanceID)
	return nil
}

// Run starts the application and blocks until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the application
// Reverse dependency order: HTTP → sockets (drained) → Hub → Fan-out → Live state → Database
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.closed {
		return nil
	}
	app.closed = true

	var errs []error
	if app.started {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Hijacked sockets are not tracked by http.Server
		app.registry.CloseAll()
		// Disconnect cleanup must reach the stores before they close
		if err := app.registry.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("connection drain: %w", err))
		}
		if err := app.hub.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("hub stop: %w", err))
		}
	}
	if err := app.close(); err != nil {
		errs = append(errs, err)
	}

	app.logger.Info("interviewpad shutdown complete")
	return errors.Join(errs...)
}

// close releases the stores in reverse order of acquisition
func (app *Application) close() error {
	var errs []error
	if app.fanout != nil {
		if err := app.fanout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("fanout close: %w", err))
		}
	}
	// The Redis store owns the shared client
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("live state close: %w", err))
		}
	}
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Purge permanently removes a session record together with its live state
func (app *Application) Purge(ctx context.Context, sessionID string) error {
	if err := app.sessions.HardDelete(ctx, sessionID); err != nil {
		return fmt.Errorf("purge session %s: %w", sessionID, err)
	}
	if err := app.state.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear live state for %s: %w", sessionID, err)
	}
	app.logger.Info("session purged", "session_id", sessionID)
	return nil
}

// Addr returns the bound listener address, or the configured one before Start
func (app *Application) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler exposes the HTTP handler for in-process tests
func (app *Application) Handler() http.Handler {
	return app.apiServer
}
