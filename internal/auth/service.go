package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is the single error returned for every credential
// failure: wrong email, wrong password, or locked account. One message for
// all cases keeps account enumeration off the table.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	Insert(ctx context.Context, u UserProfile) error
	GetByEmail(ctx context.Context, email string) (UserProfile, error)
	GetByID(ctx context.Context, id string) (UserProfile, error)
	UpdateProfile(ctx context.Context, id string, name *string, studentID *string) error
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) error
	ResetLoginFailures(ctx context.Context, id string) error
}

// Service handles registration, login throttling and profile updates.
type Service struct {
	users           UserStore
	lockoutAttempts int
	lockoutFor      time.Duration
	now             func() time.Time
}

// NewService creates an auth service.
func NewService(users UserStore, lockoutAttempts int, lockoutFor time.Duration) *Service {
	return &Service{
		users:           users,
		lockoutAttempts: lockoutAttempts,
		lockoutFor:      lockoutFor,
		now:             time.Now,
	}
}

// Register creates a student account. Owner and instructor roles are assigned
// administratively, never self-service.
func (s *Service) Register(ctx context.Context, email, password, name string, studentID *string) (UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return UserProfile{}, errors.New("valid email required")
	}
	if len(password) < 8 {
		return UserProfile{}, errors.New("password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		return UserProfile{}, errors.New("name required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return UserProfile{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return UserProfile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return UserProfile{}, err
	}

	u := UserProfile{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Role:         RoleStudent,
		StudentID:    studentID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Insert(ctx, u); err != nil {
		return UserProfile{}, err
	}
	return u, nil
}

// Login checks credentials and throttling state. Failures and lockouts all
// come back as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserProfile{}, ErrInvalidCredentials
		}
		return UserProfile{}, err
	}

	if u.LockedUntil != nil && u.LockedUntil.After(s.now()) {
		return UserProfile{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		_ = s.users.RecordLoginFailure(ctx, u.ID, s.lockoutAttempts, s.lockoutFor)
		return UserProfile{}, ErrInvalidCredentials
	}

	if u.FailedLogins > 0 || u.LockedUntil != nil {
		_ = s.users.ResetLoginFailures(ctx, u.ID)
	}
	return u, nil
}

// Profile returns the caller's profile.
func (s *Service) Profile(ctx context.Context, userID string) (UserProfile, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the subject-owned fields only. Role and throttling
// state stay system-owned.
func (s *Service) UpdateProfile(ctx context.Context, userID string, name *string, studentID *string) (UserProfile, error) {
	if err := s.users.UpdateProfile(ctx, userID, name, studentID); err != nil {
		return UserProfile{}, err
	}
	return s.users.GetByID(ctx, userID)
}
