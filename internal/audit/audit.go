// Package audit records append-only system log events and operator alerts.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Severities used across logs and alerts.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ErrAlertResolved is returned when resolving an alert twice.
var ErrAlertResolved = errors.New("alert already resolved")

// LogEntry is one append-only audit event.
type LogEntry struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is a raised fraud/abuse signal with a resolved/unresolved state.
type Alert struct {
	ID              string     `json:"id"`
	AlertType       string     `json:"alert_type"`
	Severity        string     `json:"severity"`
	Message         string     `json:"message"`
	SessionID       *string    `json:"session_id,omitempty"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Repository persists logs and alerts in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Log appends a system log entry. Logging failures are the caller's call to
// ignore; audit writes never block the operation they describe.
func (r *Repository) Log(ctx context.Context, eventType, severity string, actorID *string, detail string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_logs (event_type, severity, actor_id, detail)
		VALUES ($1,$2,$3,$4)
	`, eventType, severity, actorID, detail)
	return err
}

// ListLogs returns recent entries, optionally filtered by event type.
func (r *Repository) ListLogs(ctx context.Context, eventType string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, event_type, severity, actor_id, detail, created_at FROM system_logs`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = $1`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.Severity, &e.ActorID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// Raise creates an unresolved alert.
func (r *Repository) Raise(ctx context.Context, alertType, severity, message string, sessionID *string) (Alert, error) {
	a := Alert{
		ID:        uuid.NewString(),
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, alert_type, severity, message, session_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.AlertType, a.Severity, a.Message, a.SessionID, a.CreatedAt)
	if err != nil {
		return Alert{}, err
	}
	return a, nil
}

// ListAlerts returns alerts, optionally only unresolved ones.
func (r *Repository) ListAlerts(ctx context.Context, unresolvedOnly bool, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, alert_type, severity, message, session_id, resolved,
		resolved_by, resolution_notes, created_at, resolved_at FROM alerts`
	if unresolvedOnly {
		query += ` WHERE NOT resolved`
	}
	query += ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.AlertType, &a.Severity, &a.Message, &a.SessionID,
			&a.Resolved, &a.ResolvedBy, &a.ResolutionNotes, &a.CreatedAt, &a.ResolvedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// Resolve marks an alert resolved with the resolver's identity and notes.
// Resolution is one-way.
func (r *Repository) Resolve(ctx context.Context, alertID, resolverID, notes string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET resolved = TRUE, resolved_by = $2, resolution_notes = $3, resolved_at = NOW()
		WHERE id = $1 AND NOT resolved
	`, alertID, resolverID, notes)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlertResolved
	}
	return nil
}
