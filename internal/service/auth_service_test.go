package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastemon/api/internal/apperr"
	"wastemon/api/internal/config"
	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
)

type fakeUserStore struct {
	user    *models.User
	history []string

	recordedAttempts int
	lockedUntil      *time.Time
	loginCommitted   bool
	rotated          bool
	rotatedNewHash   string
	sessionCreated   bool
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if f.user == nil || f.user.Username != username {
		return nil, repository.ErrUserNotFound
	}
	copied := *f.user
	return &copied, nil
}

func (f *fakeUserStore) RecordFailedAttempt(_ context.Context, _, attempts int) error {
	f.recordedAttempts = attempts
	return nil
}

func (f *fakeUserStore) LockAccount(_ context.Context, _ int, until time.Time) error {
	f.lockedUntil = &until
	return nil
}

func (f *fakeUserStore) PasswordHistory(_ context.Context, _, limit int) ([]string, error) {
	if len(f.history) > limit {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeUserStore) CommitLoginSuccess(_ context.Context, _ int, _ string, _ time.Duration, _ bool) error {
	f.loginCommitted = true
	return nil
}

func (f *fakeUserStore) RotatePassword(_ context.Context, _ int, _, newHash, _ string, _ time.Duration, _ bool) error {
	f.rotated = true
	f.rotatedNewHash = newHash
	return nil
}

func (f *fakeUserStore) CreateSession(_ context.Context, _ int, _ string, _ time.Duration) error {
	f.sessionCreated = true
	return nil
}

type fakeSessionStore struct {
	deactivated []string
	found       bool
}

func (f *fakeSessionStore) DeactivateByToken(_ context.Context, token string) (bool, error) {
	f.deactivated = append(f.deactivated, token)
	return f.found, nil
}

func testPolicy() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:            "test-secret",
		SessionInactivity:    30 * time.Minute,
		MaxLoginAttempts:     3,
		LockoutDuration:      time.Minute,
		PasswordMaxAgeDays:   30,
		PasswordHistoryDepth: 5,
		SingleSessionPerUser: true,
	}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	recent := time.Now().Add(-time.Hour)
	return &models.User{
		ID:                 7,
		Username:           "jperez",
		FullName:           "Juan Pérez",
		PasswordHash:       hash,
		RoleID:             2,
		RoleName:           "operador",
		StatusID:           models.UserStatusActive,
		LastPasswordChange: &recent,
	}
}

func newAuthService(users *fakeUserStore, sessions *fakeSessionStore) *AuthService {
	return NewAuthService(users, sessions, testPolicy(), zerolog.Nop())
}

func TestLoginSuccess(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	result, err := svc.Login(context.Background(), "jperez", "hunter22")
	require.NoError(t, err)
	assert.False(t, result.RequiresChange)
	assert.True(t, users.loginCommitted)

	claims, err := security.ParseSessionToken(result.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Empty(t, claims.ChangeKind)
}

func TestLoginUnknownUserSameAnswerAsWrongPassword(t *testing.T) {
	svc := newAuthService(&fakeUserStore{}, &fakeSessionStore{})

	_, err := svc.Login(context.Background(), "nobody", "whatever")
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
}

func TestLoginWrongPasswordBumpsCounter(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	users.user.FailedAttempts = 1
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.Login(context.Background(), "jperez", "wrong")
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.Equal(t, 2, users.recordedAttempts)
	assert.Nil(t, users.lockedUntil)
}

func TestLoginThirdFailureLocksAccount(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	users.user.FailedAttempts = 2
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.Login(context.Background(), "jperez", "wrong")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	require.NotNil(t, users.lockedUntil)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *users.lockedUntil, 5*time.Second)
}

func TestLoginLockedUserRejectedEvenWithRightPassword(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	until := time.Now().Add(time.Minute)
	users.user.LockedUntil = &until
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.Login(context.Background(), "jperez", "hunter22")
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	assert.False(t, users.loginCommitted)
}

func TestLoginExpiredLockIsIgnored(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	past := time.Now().Add(-time.Minute)
	users.user.LockedUntil = &past
	svc := newAuthService(users, &fakeSessionStore{})

	result, err := svc.Login(context.Background(), "jperez", "hunter22")
	require.NoError(t, err)
	assert.False(t, result.RequiresChange)
}

func TestLoginMustChangeIssuesForcedChangeToken(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	users.user.MustChangePassword = true
	svc := newAuthService(users, &fakeSessionStore{})

	result, err := svc.Login(context.Background(), "jperez", "hunter22")
	require.NoError(t, err)
	assert.True(t, result.RequiresChange)
	assert.Equal(t, security.ChangeKindForced, result.ChangeKind)
	assert.True(t, users.sessionCreated)
	assert.False(t, users.loginCommitted)

	claims, err := security.ParseSessionToken(result.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, security.ChangeKindForced, claims.ChangeKind)
}

func TestLoginStalePasswordRequiresReconfirmation(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	old := time.Now().Add(-31 * 24 * time.Hour)
	users.user.LastPasswordChange = &old
	svc := newAuthService(users, &fakeSessionStore{})

	result, err := svc.Login(context.Background(), "jperez", "hunter22")
	require.NoError(t, err)
	assert.True(t, result.RequiresChange)
	assert.Equal(t, security.ChangeKindReconfirm, result.ChangeKind)
}

func pendingChangeUser(t *testing.T, password string) *models.User {
	t.Helper()
	user := activeUser(t, password)
	user.MustChangePassword = true
	return user
}

func TestForcedChangeRejectsReusedPassword(t *testing.T) {
	users := &fakeUserStore{user: pendingChangeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.ChangePasswordForced(context.Background(), "jperez", "hunter22")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.False(t, users.rotated)
}

func TestForcedChangeRejectsHistoricalPassword(t *testing.T) {
	users := &fakeUserStore{user: pendingChangeUser(t, "hunter22")}
	oldHash, err := security.HashPassword("oldpass99")
	require.NoError(t, err)
	users.history = []string{oldHash}
	svc := newAuthService(users, &fakeSessionStore{})

	_, err = svc.ChangePasswordForced(context.Background(), "jperez", "oldpass99")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

// A forced change only applies to an account actually flagged for one; an
// account in good standing cannot have its password rotated through this path.
func TestForcedChangeWithoutPendingStateRejected(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.ChangePasswordForced(context.Background(), "jperez", "AttackerChosen1")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.False(t, users.rotated)
}

func TestForcedChangeSuccessIssuesFullSession(t *testing.T) {
	users := &fakeUserStore{user: pendingChangeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	token, err := svc.ChangePasswordForced(context.Background(), "jperez", "brandnew77")
	require.NoError(t, err)
	assert.True(t, users.rotated)
	assert.True(t, security.VerifyPassword("brandnew77", users.rotatedNewHash))

	claims, err := security.ParseSessionToken(token, "test-secret")
	require.NoError(t, err)
	assert.Empty(t, claims.ChangeKind)
}

func TestReconfirmRequiresCurrentPassword(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.ReconfirmPassword(context.Background(), "jperez", "wrong", "brandnew77")
	assert.True(t, apperr.IsKind(err, apperr.KindAuth))
	assert.False(t, users.rotated)
}

func TestReconfirmSuccess(t *testing.T) {
	users := &fakeUserStore{user: activeUser(t, "hunter22")}
	svc := newAuthService(users, &fakeSessionStore{})

	_, err := svc.ReconfirmPassword(context.Background(), "jperez", "hunter22", "brandnew77")
	require.NoError(t, err)
	assert.True(t, users.rotated)
}

func TestLogoutIsIdempotent(t *testing.T) {
	sessions := &fakeSessionStore{found: false}
	svc := newAuthService(&fakeUserStore{}, sessions)

	err := svc.Logout(context.Background(), "some-token")
	require.NoError(t, err)
	assert.Equal(t, []string{"some-token"}, sessions.deactivated)
}
