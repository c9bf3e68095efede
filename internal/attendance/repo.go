package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const recordColumns = `id, session_id, user_id, latitude, longitude, distance_m,
	device_hash, user_agent, ip_address, status, verified, recorded_at`

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Exists reports whether an accepted record exists for (session, user).
func (r *Repository) Exists(ctx context.Context, sessionID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance WHERE session_id = $1 AND user_id = $2)
	`, sessionID, userID).Scan(&exists)
	return exists, err
}

// CreateVerified inserts an accepted record and bumps the session's attendee
// count in a single transaction. The UNIQUE (session_id, user_id) constraint
// turns a lost race between two submissions into ErrAlreadyMarked, and the
// counter update is a single atomic UPDATE, so the count never double-reads.
func (r *Repository) CreateVerified(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attendance (id, session_id, user_id, latitude, longitude, distance_m,
			device_hash, user_agent, ip_address, status, verified, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rec.ID, rec.SessionID, rec.UserID, rec.Latitude, rec.Longitude, rec.DistanceM,
		rec.DeviceHash, rec.UserAgent, rec.IPAddress, rec.Status, rec.Verified, rec.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET attendee_count = attendee_count + 1 WHERE id = $1
	`, rec.SessionID); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE id = $1`, id)
	return scanRecord(row)
}

// ListBySession returns a session's records in submission order.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE session_id = $1 ORDER BY recorded_at`,
		sessionID)
}

// ListByUser returns a student's most recent records.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE user_id = $1 ORDER BY recorded_at DESC LIMIT $2`,
		userID, limit)
}

// DistinctUsersForDevice counts how many different students share one device
// hash within a session. Input to the fraud-signal worker, not a gate.
func (r *Repository) DistinctUsersForDevice(ctx context.Context, sessionID, deviceHash string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_id) FROM attendance
		WHERE session_id = $1 AND device_hash = $2
	`, sessionID, deviceHash).Scan(&n)
	return n, err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.Latitude, &rec.Longitude,
		&rec.DistanceM, &rec.DeviceHash, &rec.UserAgent, &rec.IPAddress,
		&rec.Status, &rec.Verified, &rec.RecordedAt)
	return rec, err
}
