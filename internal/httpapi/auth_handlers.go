package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/audit"
	"geoattend/internal/auth"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email     string  `json:"email" binding:"required,email"`
		Password  string  `json:"password" binding:"required,min=8"`
		Name      string  `json:"name" binding:"required"`
		StudentID *string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.auth.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.StudentID)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.logEvent(c, "user_registered", audit.SeverityInfo, &u.ID, "email="+u.Email)

	tokens, err := auth.Issue(u, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":          u,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.metrics.LoginFailures.Inc()
			s.logEvent(c, "login_failure", audit.SeverityWarning, nil, "email="+req.Email)
			// One generic message for every credential failure.
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	tokens, err := auth.Issue(u, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          u,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	u, err := s.auth.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req struct {
		Name      *string `json:"name"`
		StudentID *string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.auth.UpdateProfile(c.Request.Context(), claims.Subject, req.Name, req.StudentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// logEvent writes an audit entry; audit failures never fail the request.
func (s *Server) logEvent(c *gin.Context, eventType, severity string, actorID *string, detail string) {
	if err := s.audit.Log(c.Request.Context(), eventType, severity, actorID, detail); err != nil {
		log.Printf("audit log failed for %s: %v", eventType, err)
	}
}
