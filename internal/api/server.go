package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"interviewpad/pkg/interfaces"
	"interviewpad/pkg/types"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker reports record store health
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// Presence exposes live participants and local connection counts
type Presence interface {
	ParticipantsOf(ctx context.Context, sessionID string) ([]*types.Participant, error)
	Stats() (rooms, connections int)
}

// Options configures URL building, CORS and per-request timeouts
type Options struct {
	Name           string
	Version        string
	PublicBaseURL  string
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server is the REST surface over the session lifecycle
// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	sessions interfaces.SessionManager
	database DatabaseChecker
	live     Pinger
	presence Presence
	options  Options
	logger   *slog.Logger
	engine   *gin.Engine
}

// NewServer builds the gin engine; a nil ws handler leaves /ws unrouted
func NewServer(
	sessions interfaces.SessionManager,
	database DatabaseChecker,
	live Pinger,
	presence Presence,
	ws http.Handler,
	options Options,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = 30 * time.Second
	}
	if options.Name == "" {
		options.Name = "interviewpad"
	}
	options.PublicBaseURL = strings.TrimRight(options.PublicBaseURL, "/")

	s := &Server{
		sessions: sessions,
		database: database,
		live:     live,
		presence: presence,
		options:  options,
		logger:   logger.With("component", "api"),
	}
	s.engine = s.setupRoutes(ws)
	return s
}

// setupRoutes wires middleware and handlers
func (s *Server) setupRoutes(ws http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	r.GET("/", s.root)
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.PATCH("/sessions/:id", s.updateSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.GET("/sessions/:id/participants", s.listParticipants)
		api.GET("/languages", s.listLanguages)
		api.GET("/health", s.health)
	}

	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Not found"})
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Engine exposes the gin engine for tests and embedding
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      s.options.Name,
		"version":   s.options.Version,
		"health":    "/api/health",
		"websocket": "/ws",
	})
}

// requestLogger logs one line per request through slog
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case c.FullPath() == "/health" || c.FullPath() == "/api/health":
			level = slog.LevelDebug
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"remote", c.ClientIP(),
		)
	}
}

// cors answers preflight requests and echoes allowed origins
// FUNCTIONAL DISCOVERY: Credentials are allowed, so a matching origin is
// echoed back rather than answered with a wildcard
func (s *Server) cors() gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(s.options.CORSOrigins))
	for _, o := range s.options.CORSOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Add("Vary", "Origin")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestContext bounds a handler's store calls
func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.options.RequestTimeout)
}

// baseURL is the configured public URL or the one the request arrived on
func (s *Server) baseURL(c *gin.Context) string {
	if s.options.PublicBaseURL != "" {
		return s.options.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := c.Request.Host
	if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}
