package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sessionColumns = `id, subject_id, subject_name, created_by, start_time, end_time,
	location_lat, location_lng, radius, secret, is_active, attendee_count, notes, created_at, ended_at`

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new session.
func (r *Repository) Insert(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, subject_id, subject_name, created_by, start_time, end_time,
			location_lat, location_lng, radius, secret, is_active, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE,$11,$12)
	`, s.ID, s.SubjectID, s.SubjectName, s.CreatedBy, s.StartTime, s.EndTime,
		s.Center.Latitude, s.Center.Longitude, s.Radius, s.Secret, s.Notes, s.CreatedAt)
	return err
}

// Get returns a session by id, secret included.
func (r *Repository) Get(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// End flips is_active off and fixes ended_at, once. A second call finds no
// active row and reports ErrAlreadyEnded.
func (r *Repository) End(ctx context.Context, id string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, ended_at = $2
		WHERE id = $1 AND is_active = TRUE
	`, id, endedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing session from an already-ended one.
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ErrAlreadyEnded
	}
	return nil
}

// ListAll returns every session, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
}

// ListByCreator returns sessions owned by one instructor, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID string) ([]Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE created_by = $1 ORDER BY created_at DESC`,
		creatorID)
}

// ListActive returns sessions still open for submissions at instant now.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active = TRUE AND end_time >= $1 ORDER BY start_time`,
		now)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SubjectID, &s.SubjectName, &s.CreatedBy, &s.StartTime, &s.EndTime,
		&s.Center.Latitude, &s.Center.Longitude, &s.Radius, &s.Secret, &s.IsActive,
		&s.AttendeeCount, &s.Notes, &s.CreatedAt, &s.EndedAt)
	return s, err
}
