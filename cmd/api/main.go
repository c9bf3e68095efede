package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/httpapi"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/session"
	"geoattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()
	if err := store.Migrate(migrateCtx, db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:checkins")
	}

	users := auth.NewUserRepository(db.Client)
	authSvc := auth.NewService(users, cfg.LockoutAttempts, cfg.LockoutDuration)

	sessions := session.NewService(session.NewRepository(db.Client), cfg.SessionEndGrace)
	records := attendance.NewRepository(db.Client)
	validator := attendance.NewValidator(sessions, records, attendance.Config{
		SkewWindows: cfg.CodeSkewWindows,
		EndGrace:    cfg.SessionEndGrace,
		LateAfter:   cfg.LateAfter,
	})

	auditRepo := audit.NewRepository(db.Client)
	m := metrics.New()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.New(cfg, authSvc, sessions, validator, records, auditRepo, q, m, db, redisClient).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
