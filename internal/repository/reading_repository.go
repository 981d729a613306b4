package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

var ErrNoReading = errors.New("no usable sensor reading")

type ReadingRepository struct {
	pool *pgxpool.Pool
}

func NewReadingRepository(pool *pgxpool.Pool) *ReadingRepository {
	return &ReadingRepository{pool: pool}
}

// LatestNormal returns the most recent reading acceptable to the workflow:
// sensor-sourced with normal quality.
func (r *ReadingRepository) LatestNormal(ctx context.Context, containerID int) (*models.SensorReading, error) {
	const query = `
		SELECT id, container_id, value, recorded_at, source, quality
		FROM readings
		WHERE container_id = $1 AND source = $2 AND quality = $3
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, containerID, models.ReadingSourceSensor, models.ReadingQualityNormal)
	var reading models.SensorReading
	if err := row.Scan(
		&reading.ID,
		&reading.ContainerID,
		&reading.Value,
		&reading.RecordedAt,
		&reading.Source,
		&reading.Quality,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoReading
		}
		return nil, err
	}
	return &reading, nil
}

// BelongsTo reports whether a reading still exists and still references the
// given container. Commit uses it to reject tokens whose reading was deleted
// or reassigned after compute.
func (r *ReadingRepository) BelongsTo(ctx context.Context, readingID, containerID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM readings WHERE id = $1 AND container_id = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, readingID, containerID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
