package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

var ErrNoActiveCost = errors.New("no active cost record")

// GlobalCost is the currently-effective price shared by the governed
// containers, with the record it came from.
type GlobalCost struct {
	CostRecordID int
	ContainerID  int
	CostPerLb    float64
	ValidFrom    time.Time
}

type CostRepository struct {
	pool *pgxpool.Pool
}

func NewCostRepository(pool *pgxpool.Pool) *CostRepository {
	return &CostRepository{pool: pool}
}

func (r *CostRepository) ActiveForContainer(ctx context.Context, containerID int) (*models.CostRecord, error) {
	const query = `
		SELECT id, container_id, cost_per_lb, active, valid_from, valid_until
		FROM container_costs
		WHERE container_id = $1 AND active
	`

	row := r.pool.QueryRow(ctx, query, containerID)
	var record models.CostRecord
	if err := row.Scan(
		&record.ID,
		&record.ContainerID,
		&record.CostPerLb,
		&record.Active,
		&record.ValidFrom,
		&record.ValidUntil,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCost
		}
		return nil, err
	}
	return &record, nil
}

// ActiveGlobal returns the newest active cost across the governed waste
// types. The fan-out keeps all governed containers on the same price, so any
// of their active records represents the global value.
func (r *CostRepository) ActiveGlobal(ctx context.Context, wasteTypes []int) (*GlobalCost, error) {
	const query = `
		SELECT cc.id, cc.container_id, cc.cost_per_lb, cc.valid_from
		FROM container_costs cc
		JOIN containers c ON c.id = cc.container_id
		WHERE cc.active AND c.waste_type_id = ANY($1::int[])
		ORDER BY cc.valid_from DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, wasteTypes)
	var cost GlobalCost
	if err := row.Scan(&cost.CostRecordID, &cost.ContainerID, &cost.CostPerLb, &cost.ValidFrom); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCost
		}
		return nil, err
	}
	return &cost, nil
}

// ApplyGlobalCost closes each container's active record, opens a new one at
// the given price, and appends one cost-change history row per container, all
// in a single transaction so a crash can never leave the governed containers
// on different prices.
func (r *CostRepository) ApplyGlobalCost(ctx context.Context, containerIDs []int, newCost float64, previousCost *float64, userID int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const closeQuery = `
		UPDATE container_costs
		SET active = FALSE, valid_until = NOW(), updated_by = $1, updated_at = NOW()
		WHERE container_id = $2 AND active
	`
	const insertQuery = `
		INSERT INTO container_costs (container_id, cost_per_lb, active, valid_from, valid_until, updated_by, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NULL, $3, NOW())
	`
	const historyQuery = `
		INSERT INTO container_cost_history (container_id, previous_cost, new_cost, changed_by, source, reason, changed_at)
		VALUES ($1, $2, $3, $4, 'manual', 'global price change', NOW())
	`

	for _, containerID := range containerIDs {
		if _, err := tx.Exec(ctx, closeQuery, userID, containerID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertQuery, containerID, newCost, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, historyQuery, containerID, previousCost, newCost, userID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
