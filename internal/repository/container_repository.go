package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

var ErrContainerNotFound = errors.New("container not found")

type ContainerRepository struct {
	pool *pgxpool.Pool
}

func NewContainerRepository(pool *pgxpool.Pool) *ContainerRepository {
	return &ContainerRepository{pool: pool}
}

const containerColumns = `
	c.id, c.code, c.waste_type_id, c.state_id, cs.name,
	c.current_liters, c.capacity_liters, c.current_lb, c.capacity_lb
`

func scanContainer(row pgx.Row) (*models.Container, error) {
	var container models.Container
	if err := row.Scan(
		&container.ID,
		&container.Code,
		&container.WasteTypeID,
		&container.StateID,
		&container.StateName,
		&container.CurrentLiters,
		&container.CapacityLiters,
		&container.CurrentLb,
		&container.CapacityLb,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}
	return &container, nil
}

// GetByWasteType resolves the single container configured for a waste type.
func (r *ContainerRepository) GetByWasteType(ctx context.Context, wasteTypeID int) (*models.Container, error) {
	const query = `
		SELECT ` + containerColumns + `
		FROM containers c
		JOIN container_states cs ON cs.id = c.state_id
		WHERE c.waste_type_id = $1
		LIMIT 1
	`
	return scanContainer(r.pool.QueryRow(ctx, query, wasteTypeID))
}

func (r *ContainerRepository) GetByID(ctx context.Context, id int) (*models.Container, error) {
	const query = `
		SELECT ` + containerColumns + `
		FROM containers c
		JOIN container_states cs ON cs.id = c.state_id
		WHERE c.id = $1
	`
	return scanContainer(r.pool.QueryRow(ctx, query, id))
}

// Governed returns the containers belonging to the cost-governed waste types,
// ordered by type then id so the fan-out is deterministic.
func (r *ContainerRepository) Governed(ctx context.Context, wasteTypes []int) ([]models.Container, error) {
	const query = `
		SELECT ` + containerColumns + `
		FROM containers c
		JOIN container_states cs ON cs.id = c.state_id
		WHERE c.waste_type_id = ANY($1::int[])
		ORDER BY c.waste_type_id ASC, c.id ASC
	`

	rows, err := r.pool.Query(ctx, query, wasteTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var containers []models.Container
	for rows.Next() {
		container, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		containers = append(containers, *container)
	}
	return containers, rows.Err()
}
