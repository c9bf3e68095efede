package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/geo"
	"geoattend/internal/rotcode"
)

// Store is the persistence surface the service needs. *Repository implements
// it; tests substitute an in-memory fake.
type Store interface {
	Insert(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	End(ctx context.Context, id string, endedAt time.Time) error
	ListAll(ctx context.Context) ([]Session, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Session, error)
	ListActive(ctx context.Context, now time.Time) ([]Session, error)
}

// CreateInput carries the instructor-supplied fields for a new session.
type CreateInput struct {
	SubjectID   string
	SubjectName string
	StartTime   time.Time
	EndTime     time.Time
	Center      geo.Point
	Radius      float64
	Notes       *string
}

// Service coordinates session lifecycle and rotating code issuance.
type Service struct {
	store    Store
	endGrace time.Duration
	now      func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, endGrace time.Duration) *Service {
	return &Service{store: store, endGrace: endGrace, now: time.Now}
}

// Create validates the geofence and time window, generates the session's
// code-derivation secret and persists the session.
func (s *Service) Create(ctx context.Context, creatorID string, in CreateInput) (Session, error) {
	if in.SubjectID == "" || in.SubjectName == "" {
		return Session{}, errors.New("subject id and name required")
	}
	if !in.StartTime.Before(in.EndTime) {
		return Session{}, errors.New("start time must be before end time")
	}
	if in.Radius <= 0 {
		return Session{}, errors.New("radius must be positive")
	}
	if !geo.Valid(in.Center) {
		return Session{}, errors.New("invalid geofence center")
	}

	secret, err := rotcode.NewSecret()
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:          uuid.NewString(),
		SubjectID:   in.SubjectID,
		SubjectName: in.SubjectName,
		CreatedBy:   creatorID,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Center:      in.Center,
		Radius:      in.Radius,
		Secret:      secret,
		IsActive:    true,
		Notes:       in.Notes,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// End closes a session. Only the creating instructor may end it, and only
// once; the end time is fixed at the first transition.
func (s *Service) End(ctx context.Context, sessionID, requesterID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.CreatedBy != requesterID {
		return ErrNotOwner
	}
	if !sess.IsActive {
		return ErrAlreadyEnded
	}
	return s.store.End(ctx, sessionID, s.now().UTC())
}

// IssueCode returns the rotating code for the current window. Only the
// creating instructor may request it, and only while the session is live.
func (s *Service) IssueCode(ctx context.Context, sessionID, requesterID string) (rotcode.Code, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rotcode.Code{}, ErrNotActive
		}
		return rotcode.Code{}, err
	}
	if sess.CreatedBy != requesterID {
		return rotcode.Code{}, ErrNotOwner
	}
	now := s.now()
	if !sess.Live(now, 0) {
		return rotcode.Code{}, ErrNotActive
	}
	return rotcode.Issue(sess.Secret, now), nil
}

// Get returns a single session.
func (s *Service) Get(ctx context.Context, sessionID string) (Session, error) {
	return s.store.Get(ctx, sessionID)
}

// ListForRole returns the sessions a caller may see: owners see everything,
// instructors their own, students the currently active set.
func (s *Service) ListForRole(ctx context.Context, role, userID string) ([]Session, error) {
	switch role {
	case "owner":
		return s.store.ListAll(ctx)
	case "doctor":
		return s.store.ListByCreator(ctx, userID)
	default:
		return s.store.ListActive(ctx, s.now())
	}
}

// ListActive returns sessions open for submissions right now.
func (s *Service) ListActive(ctx context.Context) ([]Session, error) {
	return s.store.ListActive(ctx, s.now())
}
