package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/database"
	"wastemon/api/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT u.id, u.username, u.full_name, u.password_hash, u.role_id, r.name,
		       u.status_id, u.failed_attempts, u.locked_until,
		       u.must_change_password, u.last_password_change, u.last_login
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.username = $1
	`

	row := r.pool.QueryRow(ctx, query, username)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.PasswordHash,
		&user.RoleID,
		&user.RoleName,
		&user.StatusID,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.MustChangePassword,
		&user.LastPasswordChange,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) RecordFailedAttempt(ctx context.Context, userID, attempts int) error {
	const query = `UPDATE users SET failed_attempts = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID, attempts)
	return err
}

// LockAccount sets the lockout window and resets the attempt counter, which
// is part of the lock itself: the next cycle starts from zero.
func (r *UserRepository) LockAccount(ctx context.Context, userID int, until time.Time) error {
	const query = `
		UPDATE users SET locked_until = $2, failed_attempts = 0 WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, userID, until)
	return err
}

// PasswordHistory returns the most recent prior hashes, newest first.
func (r *UserRepository) PasswordHistory(ctx context.Context, userID, limit int) ([]string, error) {
	const query = `
		SELECT password_hash
		FROM password_history
		WHERE user_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// CommitLoginSuccess performs the whole successful-login bookkeeping in one
// transaction: counters reset, optional purge of other sessions, new session.
func (r *UserRepository) CommitLoginSuccess(ctx context.Context, userID int, token string, inactivity time.Duration, singleSession bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const resetQuery = `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, last_login = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, resetQuery, userID); err != nil {
		return err
	}

	if singleSession {
		const purgeQuery = `UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active`
		if _, err := tx.Exec(ctx, purgeQuery, userID); err != nil {
			return err
		}
	}

	if err := insertSession(ctx, tx, userID, token, inactivity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RotatePassword applies a password change atomically: old hash archived,
// new hash set, lockout cleared, optional purge of other sessions, and a
// fresh session for the returned token.
func (r *UserRepository) RotatePassword(ctx context.Context, userID int, oldHash, newHash, token string, inactivity time.Duration, singleSession bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const historyQuery = `
		INSERT INTO password_history (user_id, password_hash, changed_at)
		VALUES ($1, $2, NOW())
	`
	if _, err := tx.Exec(ctx, historyQuery, userID, oldHash); err != nil {
		return err
	}

	const updateQuery = `
		UPDATE users
		SET password_hash = $2,
		    last_password_change = NOW(),
		    must_change_password = FALSE,
		    failed_attempts = 0,
		    locked_until = NULL
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, userID, newHash); err != nil {
		return err
	}

	if singleSession {
		const purgeQuery = `UPDATE sessions SET active = FALSE WHERE user_id = $1 AND active`
		if _, err := tx.Exec(ctx, purgeQuery, userID); err != nil {
			return err
		}
	}

	if err := insertSession(ctx, tx, userID, token, inactivity); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateSession inserts a session row outside any wider transaction. Used for
// short-lived password-change tokens.
func (r *UserRepository) CreateSession(ctx context.Context, userID int, token string, inactivity time.Duration) error {
	return insertSession(ctx, r.pool, userID, token, inactivity)
}

func insertSession(ctx context.Context, db database.Querier, userID int, token string, inactivity time.Duration) error {
	const query = `
		INSERT INTO sessions (user_id, token, started_at, expires_at, active)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3), TRUE)
	`
	_, err := db.Exec(ctx, query, userID, token, inactivity.Seconds())
	return err
}
