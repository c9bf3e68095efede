// Package httpapi exposes the service over REST: auth, session registry,
// attendance submission and the admin views.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/session"
	"geoattend/internal/store"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	cfg       config.App
	auth      *auth.Service
	sessions  *session.Service
	validator *attendance.Validator
	records   *attendance.Repository
	audit     *audit.Repository
	queue     queue.Queue
	metrics   *metrics.Metrics
	db        *store.DB
	redis     *store.Redis
}

// New creates a server.
func New(cfg config.App, authSvc *auth.Service, sessions *session.Service,
	validator *attendance.Validator, records *attendance.Repository,
	auditRepo *audit.Repository, q queue.Queue, m *metrics.Metrics,
	db *store.DB, redis *store.Redis) *Server {
	return &Server{
		cfg:       cfg,
		auth:      authSvc,
		sessions:  sessions,
		validator: validator,
		records:   records,
		audit:     auditRepo,
		queue:     q,
		metrics:   m,
		db:        db,
		redis:     redis,
	}
}

// Router builds the gin engine with the full middleware stack and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(s.cfg.RateLimitPerMin, s.cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.handleHealthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", auth.UserAuth(s.cfg.JWTSigningKey, s.cfg.JWTIssuer))
	authed.GET("/me", s.handleProfile)
	authed.PATCH("/me", s.handleUpdateProfile)
	authed.GET("/sessions", s.handleListSessions)
	authed.GET("/sessions/active", s.handleActiveSessions)

	instructor := authed.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleOwner))
	instructor.POST("/sessions", s.handleCreateSession)
	instructor.POST("/sessions/:id/end", s.handleEndSession)
	instructor.GET("/sessions/:id/code", s.handleSessionCode)
	instructor.GET("/sessions/:id/attendance", s.handleSessionAttendance)

	student := authed.Group("", auth.RequireRole(auth.RoleStudent))
	student.POST("/attendance", s.handleSubmitAttendance)
	student.GET("/attendance/history", s.handleHistory)

	admin := authed.Group("/admin", auth.RequireRole(auth.RoleOwner))
	admin.GET("/overview", s.handleOverview)
	admin.GET("/logs", s.handleListLogs)
	admin.GET("/alerts", s.handleListAlerts)
	admin.POST("/alerts/:id/resolve", s.handleResolveAlert)

	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	redisHealthy := s.redis.Healthy(c.Request.Context())
	dbHealthy := s.db != nil && s.db.Client.PingContext(c.Request.Context()) == nil
	status := http.StatusOK
	if !redisHealthy || !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
