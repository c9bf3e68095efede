package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/geo"
	"geoattend/internal/session"
)

func (s *Server) handleCreateSession(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req struct {
		SubjectID   string    `json:"subject_id" binding:"required"`
		SubjectName string    `json:"subject_name" binding:"required"`
		StartTime   time.Time `json:"start_time" binding:"required"`
		EndTime     time.Time `json:"end_time" binding:"required"`
		Latitude    *float64  `json:"latitude" binding:"required"`
		Longitude   *float64  `json:"longitude" binding:"required"`
		Radius      float64   `json:"radius" binding:"required,gt=0"`
		Notes       *string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := s.sessions.Create(c.Request.Context(), claims.Subject, session.CreateInput{
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Center:      geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude},
		Radius:      req.Radius,
		Notes:       req.Notes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.metrics.SessionsCreated.Inc()
	s.logEvent(c, "session_created", audit.SeverityInfo, &claims.Subject, "session="+sess.ID+" subject="+sess.SubjectID)
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleEndSession(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	id := c.Param("id")

	err := s.sessions.End(c.Request.Context(), id, claims.Subject)
	switch {
	case err == nil:
		s.logEvent(c, "session_ended", audit.SeverityInfo, &claims.Subject, "session="+id)
		c.JSON(http.StatusOK, gin.H{"ended": true})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAlreadyEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "end session failed"})
	}
}

func (s *Server) handleSessionCode(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	id := c.Param("id")

	code, err := s.sessions.IssueCode(c.Request.Context(), id, claims.Subject)
	switch {
	case err == nil:
		s.metrics.CodesIssued.Inc()
		c.JSON(http.StatusOK, code)
	case errors.Is(err, session.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_code": "session_not_active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "code issue failed"})
	}
}

func (s *Server) handleListSessions(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	sessions, err := s.sessions.ListForRole(c.Request.Context(), claims.Role, claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleActiveSessions(c *gin.Context) {
	sessions, err := s.sessions.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleSessionAttendance(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	id := c.Param("id")

	sess, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if claims.Role != auth.RoleOwner && sess.CreatedBy != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another instructor"})
		return
	}

	records, err := s.records.ListBySession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "attendee_count": sess.AttendeeCount})
}
