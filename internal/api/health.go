package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// HealthResponse reports backing store reachability and local load
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Rooms       int               `json:"rooms"`
	Connections int               `json:"connections"`
}

// GET /health and /api/health
// FUNCTIONAL DISCOVERY: Any unreachable store degrades the whole instance
// so load balancers stop routing new sockets to it
func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	services := map[string]string{
		"database":   statusHealthy,
		"live_state": statusHealthy,
	}
	if s.database != nil {
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			services["database"] = statusUnhealthy
		}
	}
	if s.live != nil {
		if err := s.live.Ping(ctx); err != nil {
			s.logger.Warn("live state health check failed", "error", err)
			services["live_state"] = statusUnhealthy
		}
	}

	resp := HealthResponse{
		Status:    statusHealthy,
		Version:   s.options.Version,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
	if s.presence != nil {
		resp.Rooms, resp.Connections = s.presence.Stats()
	}

	code := http.StatusOK
	for _, v := range services {
		if v != statusHealthy {
			resp.Status = statusDegraded
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, resp)
}
