package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth reports process liveness and database connectivity. A
// failed ping answers 503 with the driver error.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.healthWait)
	defer cancel()

	resp := healthResponse{
		Status:   "UP",
		DB:       "Connected",
		Backend:  s.backend,
		Identity: s.identity.Mode().String(),
		Env:      s.env,
		Uptime:   time.Since(s.started).Round(time.Millisecond).Seconds(),
	}
	status := http.StatusOK
	if err := s.health.Ping(ctx); err != nil {
		resp.DB = "Disconnected"
		resp.DBError = err.Error()
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
