package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wastemon/api/internal/apperr"
	"wastemon/api/internal/config"
	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
	"wastemon/api/internal/security"
)

// UserStore is the slice of the user repository the auth service needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	RecordFailedAttempt(ctx context.Context, userID, attempts int) error
	LockAccount(ctx context.Context, userID int, until time.Time) error
	PasswordHistory(ctx context.Context, userID, limit int) ([]string, error)
	CommitLoginSuccess(ctx context.Context, userID int, token string, inactivity time.Duration, singleSession bool) error
	RotatePassword(ctx context.Context, userID int, oldHash, newHash, token string, inactivity time.Duration, singleSession bool) error
	CreateSession(ctx context.Context, userID int, token string, inactivity time.Duration) error
}

type SessionStore interface {
	DeactivateByToken(ctx context.Context, token string) (bool, error)
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	policy   config.SecurityConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users UserStore, sessions SessionStore, policy config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

// LoginResult is either a full session (Token set, RequiresChange false) or a
// password-change detour carrying a short-lived change token.
type LoginResult struct {
	Token          string
	RequiresChange bool
	ChangeKind     string
	User           *models.User
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.Validation("usuario y contraseña requeridos")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Same answer as a wrong password: no user-existence leak.
			return nil, apperr.Auth("credenciales inválidas")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "login", err)
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, lockedError(*user.LockedUntil)
	}

	if user.StatusID != models.UserStatusActive {
		return nil, apperr.Forbidden("usuario inactivo o bloqueado")
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, s.recordFailure(ctx, user, now)
	}

	if user.MustChangePassword {
		return s.issueChangeToken(ctx, user, security.ChangeKindForced)
	}

	if s.passwordExpired(user, now) {
		return s.issueChangeToken(ctx, user, security.ChangeKindReconfirm)
	}

	token, err := s.sessionToken(user, "")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "issue token", err)
	}

	if err := s.users.CommitLoginSuccess(ctx, user.ID, token, s.policy.SessionInactivity, s.policy.SingleSessionPerUser); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create session", err)
	}

	return &LoginResult{Token: token, User: user}, nil
}

// recordFailure bumps the attempt counter and locks the account once the
// threshold is hit. The counter resets to zero as part of the lock.
func (s *AuthService) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	attempts := user.FailedAttempts + 1
	if attempts >= s.policy.MaxLoginAttempts {
		until := now.Add(s.policy.LockoutDuration)
		if err := s.users.LockAccount(ctx, user.ID, until); err != nil {
			return apperr.Wrap(apperr.KindInternal, "lock account", err)
		}
		s.log.Warn().Str("username", user.Username).Time("until", until).Msg("account locked")
		return lockedError(until)
	}

	if err := s.users.RecordFailedAttempt(ctx, user.ID, attempts); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record attempt", err)
	}
	return apperr.Auth("credenciales inválidas")
}

func (s *AuthService) passwordExpired(user *models.User, now time.Time) bool {
	ref := user.LastPasswordChange
	if ref == nil {
		ref = user.LastLogin
	}
	if ref == nil {
		return false
	}

	age := now.Sub(*ref)
	if s.policy.PasswordMaxAgeMinutes > 0 && age >= time.Duration(s.policy.PasswordMaxAgeMinutes)*time.Minute {
		return true
	}
	return s.policy.PasswordMaxAgeDays > 0 && age >= time.Duration(s.policy.PasswordMaxAgeDays)*24*time.Hour
}

func (s *AuthService) issueChangeToken(ctx context.Context, user *models.User, kind string) (*LoginResult, error) {
	token, err := s.sessionToken(user, kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "issue change token", err)
	}

	if err := s.users.CreateSession(ctx, user.ID, token, s.policy.SessionInactivity); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "create change session", err)
	}

	return &LoginResult{
		Token:          token,
		RequiresChange: true,
		ChangeKind:     kind,
		User:           user,
	}, nil
}

func (s *AuthService) sessionToken(user *models.User, changeKind string) (string, error) {
	return security.GenerateSessionToken(s.policy.JWTSecret, security.SessionClaims{
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		RoleID:     user.RoleID,
		RoleName:   user.RoleName,
		ChangeKind: changeKind,
	}, s.policy.SessionInactivity)
}

// Logout tombstones the session row for the token. Idempotent: a token whose
// session is already gone is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	found, err := s.sessions.DeactivateByToken(ctx, token)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "logout", err)
	}
	if !found {
		s.log.Debug().Msg("logout for unknown or already closed session")
	}
	return nil
}

// ChangePasswordForced handles the mandatory first-login/admin-forced change:
// no current password required, reuse policy enforced. Callers reach this only
// with the change token issued at login, and the account must actually be in
// the forced-change state.
func (s *AuthService) ChangePasswordForced(ctx context.Context, username, newPassword string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return "", apperr.Validation("usuario y nueva contraseña requeridos")
	}

	user, err := s.loadActiveUser(ctx, username)
	if err != nil {
		return "", err
	}

	if !user.MustChangePassword {
		return "", apperr.Conflict("no hay un cambio de contraseña pendiente para el usuario")
	}

	return s.rotate(ctx, user, newPassword)
}

// ReconfirmPassword handles the periodic-expiry change: the current password
// must verify before anything mutates.
func (s *AuthService) ReconfirmPassword(ctx context.Context, username, currentPassword, newPassword string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || currentPassword == "" || newPassword == "" {
		return "", apperr.Validation("usuario, contraseña actual y nueva son requeridos")
	}

	user, err := s.loadActiveUser(ctx, username)
	if err != nil {
		return "", err
	}

	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return "", apperr.Auth("la contraseña actual es incorrecta")
	}

	return s.rotate(ctx, user, newPassword)
}

func (s *AuthService) loadActiveUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.NotFound("usuario no encontrado")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	if user.StatusID != models.UserStatusActive {
		return nil, apperr.Forbidden("usuario inactivo o bloqueado")
	}
	return user, nil
}

func (s *AuthService) rotate(ctx context.Context, user *models.User, newPassword string) (string, error) {
	history, err := s.users.PasswordHistory(ctx, user.ID, s.policy.PasswordHistoryDepth)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "load password history", err)
	}

	for _, hash := range append([]string{user.PasswordHash}, history...) {
		if security.VerifyPassword(newPassword, hash) {
			return "", apperr.Validation(fmt.Sprintf(
				"la nueva contraseña no puede coincidir con las últimas %d contraseñas",
				s.policy.PasswordHistoryDepth))
		}
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	token, err := s.sessionToken(user, "")
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "issue token", err)
	}

	if err := s.users.RotatePassword(ctx, user.ID, user.PasswordHash, newHash, token,
		s.policy.SessionInactivity, s.policy.SingleSessionPerUser); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "rotate password", err)
	}

	s.log.Info().Str("username", user.Username).Msg("password rotated")
	return token, nil
}

func lockedError(until time.Time) error {
	return apperr.Typed(apperr.KindForbidden,
		fmt.Sprintf("usuario bloqueado temporalmente hasta %s", until.UTC().Format(time.RFC3339)),
		"locked")
}
