package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/audit"
	"geoattend/internal/auth"
)

func (s *Server) handleOverview(c *gin.Context) {
	ov, err := s.records.BuildOverview(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (s *Server) handleListLogs(c *gin.Context) {
	entries, err := s.audit.ListLogs(c.Request.Context(), c.Query("event_type"), queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	unresolvedOnly := c.Query("unresolved") == "true"
	alerts, err := s.audit.ListAlerts(c.Request.Context(), unresolvedOnly, queryLimit(c, 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alertID := c.Param("id")
	err := s.audit.Resolve(c.Request.Context(), alertID, claims.Subject, req.Notes)
	switch {
	case errors.Is(err, audit.ErrAlertResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		s.logEvent(c, "alert_resolved", audit.SeverityInfo, &claims.Subject, "alert="+alertID)
		c.JSON(http.StatusOK, gin.H{"resolved": true})
	}
}

func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
