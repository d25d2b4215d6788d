package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			s.log.Warn("database ping failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unavailable"})
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) JobsHealth(c *gin.Context) {
	records, err := s.jobHealth.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"data": records}
	if backlog, err := s.deadLetters.Size(c.Request.Context()); err == nil {
		resp["retry_backlog"] = backlog
	}
	c.JSON(http.StatusOK, resp)
}
