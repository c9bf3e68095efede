// Package attendance implements the attendance validator: the ordered set of
// gates that decide whether a submission counts, and the reporting reads over
// accepted records.
package attendance

import (
	"context"
	"errors"
	"time"

	"geoattend/internal/geo"
	"geoattend/internal/rotcode"
	"geoattend/internal/session"
)

// Statuses an accepted record can carry.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// Record is one accepted or rejected verification outcome persisted for a
// (session, user) pair. Only the validator creates records.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DistanceM  float64   `json:"distance_m"`
	DeviceHash string    `json:"device_hash"`
	UserAgent  *string   `json:"user_agent,omitempty"`
	IPAddress  *string   `json:"ip_address,omitempty"`
	Status     string    `json:"status"`
	Verified   bool      `json:"verified"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Submission is one student check-in attempt.
type Submission struct {
	SessionID  string
	UserID     string
	Code       string
	Location   geo.Point
	DeviceHash string
	UserAgent  string
	IPAddress  string
}

// Result is returned for an accepted submission.
type Result struct {
	AttendanceID string    `json:"attendance_id"`
	RecordedAt   time.Time `json:"recorded_at"`
	Status       string    `json:"status"`
}

// SessionStore is the slice of the session registry the validator reads.
type SessionStore interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

// RecordStore persists accepted records. CreateVerified must be atomic:
// insert the record and increment the session's attendee count together, and
// surface ErrAlreadyMarked when the (session, user) uniqueness constraint
// rejects the insert.
type RecordStore interface {
	Exists(ctx context.Context, sessionID, userID string) (bool, error)
	CreateVerified(ctx context.Context, rec Record) (Record, error)
}

// Config carries the validation knobs.
type Config struct {
	SkewWindows int           // past code windows still accepted
	EndGrace    time.Duration // slack after end_time before the session gate closes
	LateAfter   time.Duration // lateness threshold relative to start_time
}

// Validator evaluates the submission gates in a fixed order.
type Validator struct {
	sessions SessionStore
	records  RecordStore
	cfg      Config
	now      func() time.Time
}

// NewValidator creates a validator.
func NewValidator(sessions SessionStore, records RecordStore, cfg Config) *Validator {
	return &Validator{sessions: sessions, records: records, cfg: cfg, now: time.Now}
}

// Submit runs the gates in order: session, code, geofence, duplicate. The
// first failing gate aborts with its error and nothing is written. On accept
// a record is inserted and the session counter incremented in one
// transaction; the storage uniqueness constraint closes the race between two
// near-simultaneous submissions for the same pair.
func (v *Validator) Submit(ctx context.Context, sub Submission) (Result, error) {
	now := v.now()

	// Gate 1: session exists, is active, now within [start, end+grace].
	sess, err := v.sessions.Get(ctx, sub.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Result{}, ErrSessionNotActive
		}
		return Result{}, err
	}
	if !sess.Live(now, v.cfg.EndGrace) {
		return Result{}, ErrSessionNotActive
	}

	// Gate 2: submitted code matches the current window or a tolerated
	// earlier one.
	if !rotcode.Verify(sess.Secret, sub.Code, now, v.cfg.SkewWindows) {
		return Result{}, ErrInvalidCode
	}

	// Gate 3: inside the geofence.
	inside, distance := geo.WithinRadius(sub.Location, sess.Center, sess.Radius)
	if !inside {
		return Result{}, &OutOfRangeError{DistanceMeters: distance, RadiusMeters: sess.Radius}
	}

	// Gate 4: no accepted record yet. The pre-check gives a clean error in
	// the common case; the unique constraint inside CreateVerified is the
	// authoritative check.
	exists, err := v.records.Exists(ctx, sub.SessionID, sub.UserID)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{}, ErrAlreadyMarked
	}

	status := StatusPresent
	if now.After(sess.StartTime.Add(v.cfg.LateAfter)) {
		status = StatusLate
	}

	rec := Record{
		SessionID:  sub.SessionID,
		UserID:     sub.UserID,
		Latitude:   sub.Location.Latitude,
		Longitude:  sub.Location.Longitude,
		DistanceM:  distance,
		DeviceHash: sub.DeviceHash,
		Status:     status,
		Verified:   true,
		RecordedAt: now.UTC(),
	}
	if sub.UserAgent != "" {
		rec.UserAgent = &sub.UserAgent
	}
	if sub.IPAddress != "" {
		rec.IPAddress = &sub.IPAddress
	}

	created, err := v.records.CreateVerified(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	return Result{
		AttendanceID: created.ID,
		RecordedAt:   created.RecordedAt,
		Status:       created.Status,
	}, nil
}
