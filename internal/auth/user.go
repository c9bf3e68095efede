package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Roles are mutually exclusive and fixed.
const (
	RoleOwner   = "owner"
	RoleDoctor  = "doctor"
	RoleStudent = "student"
)

var (
	// ErrUserNotFound is returned for unknown user ids or emails.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// UserProfile is a registered account. PasswordHash never serializes.
type UserProfile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	StudentID    *string    `json:"student_id,omitempty"`
	FailedLogins int        `json:"-"`
	LockedUntil  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const userColumns = `id, email, password_hash, name, role, student_id,
	failed_login_attempts, locked_until, created_at, updated_at`

// UserRepository persists user profiles in Postgres.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a repo.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Insert writes a new profile. Two registrations racing on the same email
// both pass the service's pre-check; the email uniqueness constraint decides
// the loser here.
func (r *UserRepository) Insert(ctx context.Context, u UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, student_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.StudentID, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
	}
	return err
}

// GetByEmail returns a profile by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetByID returns a profile by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateProfile changes the subject-owned fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name *string, studentID *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			name = COALESCE($2, name),
			student_id = COALESCE($3, student_id),
			updated_at = NOW()
		WHERE id = $1
	`, id, name, studentID)
	return err
}

// RecordLoginFailure bumps the failure counter and, past the threshold, sets
// the lockout timestamp. Both happen in one statement so concurrent failures
// never lose an increment.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
			updated_at = NOW()
		WHERE id = $1
	`, id, threshold, time.Now().UTC().Add(lockFor))
	return err
}

// ResetLoginFailures clears throttling state after a successful login.
func (r *UserRepository) ResetLoginFailures(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (UserProfile, error) {
	var u UserProfile
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.StudentID,
		&u.FailedLogins, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, ErrUserNotFound
	}
	return u, err
}
