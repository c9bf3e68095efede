package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/config"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Worker consumes accepted check-ins and raises alerts when the same device
// fingerprint shows up under more than one student in a session. Device
// sharing never blocks a submission at the gate; it surfaces here for an
// administrator to review.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "geoattend:checkins")
	}

	records := attendance.NewRepository(db.Client)
	auditRepo := audit.NewRepository(db.Client)
	m := metrics.New()

	// The worker serves its own /metrics; the api process has its own port.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("worker metrics on :%s", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil {
			log.Printf("metrics listener failed: %v", err)
		}
	}()

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-ins...")
	for evt := range events {
		log.Printf("analyzing check-in %s", evt.AttendanceID)

		users, err := records.DistinctUsersForDevice(ctx, evt.SessionID, evt.DeviceHash)
		if err != nil {
			log.Printf("device lookup failed for %s: %v", evt.AttendanceID, err)
			continue
		}
		if users <= 1 {
			continue
		}

		msg := fmt.Sprintf("device %s used by %d students in session %s",
			shortHash(evt.DeviceHash), users, evt.SessionID)
		sessionID := evt.SessionID
		if _, err := auditRepo.Raise(ctx, "device_reuse", audit.SeverityWarning, msg, &sessionID); err != nil {
			log.Printf("alert raise failed for %s: %v", evt.AttendanceID, err)
			continue
		}
		m.AlertsRaised.Inc()
		_ = auditRepo.Log(ctx, "device_reuse_detected", audit.SeverityWarning, nil, msg)
		log.Printf("alert raised: %s", msg)
	}

	log.Println("worker stopped")
}

// shortHash keeps alert messages readable; the full hash stays on the record.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
