package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotActive covers unknown sessions, ended sessions and
	// submissions outside the session's time window.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrInvalidCode means the submitted code matches no tolerated window.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrAlreadyMarked means an accepted record already exists for this
	// (session, user) pair.
	ErrAlreadyMarked = errors.New("attendance already marked for this session")
)

// OutOfRangeError is returned by the geofence gate. It carries the computed
// distance so the client can show how far off the submission was.
type OutOfRangeError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("out of range: %.0fm from session location (allowed %.0fm)",
		e.DistanceMeters, e.RadiusMeters)
}
