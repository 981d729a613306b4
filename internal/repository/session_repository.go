package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	const query = `
		SELECT id, user_id, token, started_at, expires_at, active
		FROM sessions
		WHERE token = $1
	`

	row := r.pool.QueryRow(ctx, query, token)
	var session models.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.StartedAt,
		&session.ExpiresAt,
		&session.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Renew slides the inactivity window forward from the database clock.
func (r *SessionRepository) Renew(ctx context.Context, sessionID int, inactivity time.Duration) error {
	const query = `
		UPDATE sessions
		SET expires_at = NOW() + make_interval(secs => $2)
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, sessionID, inactivity.Seconds())
	return err
}

// Deactivate tombstones a session. Rows are never deleted inline; the sweep
// job purges old tombstones.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID int) error {
	const query = `UPDATE sessions SET active = FALSE WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}

// DeactivateByToken implements logout. Reports whether a live session was
// found so the caller can stay idempotent.
func (r *SessionRepository) DeactivateByToken(ctx context.Context, token string) (bool, error) {
	const query = `UPDATE sessions SET active = FALSE WHERE token = $1 AND active`
	cmd, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *SessionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	const query = `UPDATE sessions SET active = FALSE WHERE active AND expires_at < NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) PurgeInactive(ctx context.Context, retention time.Duration) (int64, error) {
	const query = `
		DELETE FROM sessions
		WHERE NOT active AND expires_at < NOW() - make_interval(secs => $1)
	`
	cmd, err := r.pool.Exec(ctx, query, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
