package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memUsers struct {
	byID      map[string]UserProfile
	insertErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]UserProfile)}
}

func (m *memUsers) Insert(_ context.Context, u UserProfile) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (UserProfile, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return UserProfile{}, ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (UserProfile, error) {
	u, ok := m.byID[id]
	if !ok {
		return UserProfile{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, name *string, studentID *string) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if studentID != nil {
		u.StudentID = studentID
	}
	m.byID[id] = u
	return nil
}

func (m *memUsers) RecordLoginFailure(_ context.Context, id string, threshold int, lockFor time.Duration) error {
	u := m.byID[id]
	u.FailedLogins++
	if u.FailedLogins >= threshold {
		until := time.Now().UTC().Add(lockFor)
		u.LockedUntil = &until
	}
	m.byID[id] = u
	return nil
}

func (m *memUsers) ResetLoginFailures(_ context.Context, id string) error {
	u := m.byID[id]
	u.FailedLogins = 0
	u.LockedUntil = nil
	m.byID[id] = u
	return nil
}

func testAuth(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	users := newMemUsers()
	return NewService(users, 5, 15*time.Minute), users
}

func TestRegisterDefaultsToStudent(t *testing.T) {
	svc, _ := testAuth(t)
	u, err := svc.Register(context.Background(), "Amira@Example.edu", "correct-horse", "Amira", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != RoleStudent {
		t.Errorf("role = %s, want student", u.Role)
	}
	if u.Email != "amira@example.edu" {
		t.Errorf("email not normalized: %s", u.Email)
	}
	if u.PasswordHash == "correct-horse" || u.PasswordHash == "" {
		t.Error("password stored unhashed")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := testAuth(t)
	if _, err := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@b.edu", "password2", "B", nil); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

// A registration can pass the email pre-check and still lose the insert race
// to a concurrent registration; the store reports that as ErrEmailTaken and
// the service must surface it unchanged.
func TestRegisterInsertRaceReportsEmailTaken(t *testing.T) {
	svc, users := testAuth(t)
	users.insertErr = ErrEmailTaken

	if _, err := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := testAuth(t)
	cases := []struct {
		name, email, password, display string
	}{
		{"bad email", "not-an-email", "password1", "A"},
		{"short password", "a@b.edu", "short", "A"},
		{"empty name", "a@b.edu", "password1", "  "},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c.email, c.password, c.display, nil); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := testAuth(t)
	reg, _ := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil)

	u, err := svc.Login(context.Background(), "a@b.edu", "password1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != reg.ID {
		t.Error("login returned wrong user")
	}
}

func TestLoginGenericErrors(t *testing.T) {
	svc, _ := testAuth(t)
	_, _ = svc.Register(context.Background(), "a@b.edu", "password1", "A", nil)

	// Unknown email and wrong password must be indistinguishable.
	_, errUnknown := svc.Login(context.Background(), "nobody@b.edu", "password1")
	_, errWrong := svc.Login(context.Background(), "a@b.edu", "wrong-password")
	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("got %v / %v, want ErrInvalidCredentials for both", errUnknown, errWrong)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	svc, users := testAuth(t)
	reg, _ := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil)

	for i := 0; i < 5; i++ {
		_, _ = svc.Login(context.Background(), "a@b.edu", "wrong")
	}
	locked := users.byID[reg.ID]
	if locked.LockedUntil == nil {
		t.Fatal("account not locked after 5 failures")
	}

	// Correct password while locked still gets the generic error.
	if _, err := svc.Login(context.Background(), "a@b.edu", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("locked login: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginResetsCountersOnSuccess(t *testing.T) {
	svc, users := testAuth(t)
	reg, _ := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil)

	_, _ = svc.Login(context.Background(), "a@b.edu", "wrong")
	_, _ = svc.Login(context.Background(), "a@b.edu", "wrong")
	if users.byID[reg.ID].FailedLogins != 2 {
		t.Fatalf("failed logins = %d, want 2", users.byID[reg.ID].FailedLogins)
	}

	if _, err := svc.Login(context.Background(), "a@b.edu", "password1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if users.byID[reg.ID].FailedLogins != 0 {
		t.Error("failure counter not reset after successful login")
	}
}

func TestUpdateProfileKeepsSystemFields(t *testing.T) {
	svc, users := testAuth(t)
	reg, _ := svc.Register(context.Background(), "a@b.edu", "password1", "A", nil)

	name := "Amira H."
	sid := "2026-0042"
	u, err := svc.UpdateProfile(context.Background(), reg.ID, &name, &sid)
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Name != name || u.StudentID == nil || *u.StudentID != sid {
		t.Error("profile fields not updated")
	}
	if users.byID[reg.ID].Role != RoleStudent {
		t.Error("role changed through profile update")
	}
}
