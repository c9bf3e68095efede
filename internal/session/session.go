// Package session implements the attendance session registry: creation,
// role-scoped listing, the one-way active->ended transition, and rotating
// code issuance for the instructor's session view.
package session

import (
	"errors"
	"time"

	"geoattend/internal/geo"
)

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrNotActive is returned when an operation requires a live session:
	// the session must be active and now must fall inside its time window.
	ErrNotActive = errors.New("session is not active")

	// ErrNotOwner is returned when a caller tries to mutate a session they
	// did not create.
	ErrNotOwner = errors.New("session belongs to another instructor")

	// ErrAlreadyEnded is returned on a second end attempt. Ending is a
	// one-way transition; the first end time sticks.
	ErrAlreadyEnded = errors.New("session already ended")
)

// Session is an attendance session with its geofence and time window.
// Secret is the rotating-code derivation key and never leaves the server.
type Session struct {
	ID            string     `json:"id"`
	SubjectID     string     `json:"subject_id"`
	SubjectName   string     `json:"subject_name"`
	CreatedBy     string     `json:"created_by"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Center        geo.Point  `json:"center"`
	Radius        float64    `json:"radius"`
	Secret        []byte     `json:"-"`
	IsActive      bool       `json:"is_active"`
	AttendeeCount int        `json:"attendee_count"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// Live reports whether the session accepts code issuance and submissions at
// instant now, allowing endGrace past the scheduled end.
func (s Session) Live(now time.Time, endGrace time.Duration) bool {
	if !s.IsActive {
		return false
	}
	if now.Before(s.StartTime) {
		return false
	}
	return !now.After(s.EndTime.Add(endGrace))
}
