package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

var (
	ErrOpenProcessExists = errors.New("user already has an open process")
	ErrNoOpenProcess     = errors.New("no open process for user")
	ErrLedgerNotFound    = errors.New("ledger entry not found")
	ErrDuplicateReceipt  = errors.New("receipt number already exists")
)

const uniqueViolation = "23505"

type ProcessRepository struct {
	pool *pgxpool.Pool
}

func NewProcessRepository(pool *pgxpool.Pool) *ProcessRepository {
	return &ProcessRepository{pool: pool}
}

// OpenForUser returns the caller's EN_PROCESO ledger row, or nil.
func (r *ProcessRepository) OpenForUser(ctx context.Context, userID int) (*models.LedgerEntry, error) {
	const query = `
		SELECT id, container_id, waste_type_id, calculated_by, total_lb, process_status
		FROM cost_calc_history
		WHERE calculated_by = $1 AND process_status = $2
		ORDER BY id DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, userID, models.ProcessStatusOpen)
	var entry models.LedgerEntry
	if err := row.Scan(
		&entry.ID,
		&entry.ContainerID,
		&entry.WasteTypeID,
		&entry.CalculatedBy,
		&entry.TotalLb,
		&entry.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// CreateOpen inserts the EN_PROCESO row that anchors one-process-per-user.
// A concurrent start from the same user loses on the partial unique index
// and gets ErrOpenProcessExists.
func (r *ProcessRepository) CreateOpen(ctx context.Context, containerID, wasteTypeID, userID int, totalLb, fillPercent float64) (int, error) {
	const query = `
		INSERT INTO cost_calc_history
			(container_id, waste_type_id, calculated_by, total_lb, fill_percent, calculated_at, process_status)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		RETURNING id
	`

	var id int
	err := r.pool.QueryRow(ctx, query,
		containerID, wasteTypeID, userID, totalLb, fillPercent, models.ProcessStatusOpen,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrOpenProcessExists
		}
		return 0, err
	}
	return id, nil
}

// GetOwned loads a ledger row only if the caller owns it.
func (r *ProcessRepository) GetOwned(ctx context.Context, entryID, userID int) (*models.LedgerEntry, error) {
	const query = `
		SELECT id, container_id, waste_type_id, calculated_by, total_lb, process_status
		FROM cost_calc_history
		WHERE id = $1 AND calculated_by = $2
	`

	row := r.pool.QueryRow(ctx, query, entryID, userID)
	var entry models.LedgerEntry
	if err := row.Scan(
		&entry.ID,
		&entry.ContainerID,
		&entry.WasteTypeID,
		&entry.CalculatedBy,
		&entry.TotalLb,
		&entry.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// CancelOpen flips the caller's own EN_PROCESO row to CANCELADO. Reports
// false when there is nothing to cancel (wrong owner, wrong state, gone).
func (r *ProcessRepository) CancelOpen(ctx context.Context, entryID, userID int) (bool, error) {
	const query = `
		UPDATE cost_calc_history
		SET process_status = $1
		WHERE id = $2 AND calculated_by = $3 AND process_status = $4
	`
	cmd, err := r.pool.Exec(ctx, query,
		models.ProcessStatusCancelled, entryID, userID, models.ProcessStatusOpen)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ProcessRepository) ReceiptExists(ctx context.Context, receiptNumber string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM collections WHERE receipt_number = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, receiptNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// FinalizeInput carries every value frozen in the process token plus the
// commit-time inputs. Nothing here is recomputed from live state.
type FinalizeInput struct {
	UserID           int
	ContainerID      int
	WasteTypeID      int
	CompanyID        int
	DistrictID       int
	ReceiptNumber    string
	Responsible      string
	PendingLb        float64
	PendingPercent   float64
	PercentCollected float64
	Notes            string

	TotalLb      float64
	FillPercent  float64
	CostPerLb    float64
	TotalCost    float64
	CostSource   string
	CostRecordID int
	ReadingID    int
}

// Finalize commits the process atomically: insert the collection record and
// turn the caller's open ledger row into the FINALIZADO entry carrying the
// frozen snapshot. Rolls back fully on any failure, including a duplicate
// receipt that slipped past the pre-check.
func (r *ProcessRepository) Finalize(ctx context.Context, input FinalizeInput) (collectionID, ledgerID int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	const collectionQuery = `
		INSERT INTO collections
			(container_id, user_id, company_id, district_id, collected_at,
			 receipt_number, responsible, pending_percent, pending_lb, notes)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = tx.QueryRow(ctx, collectionQuery,
		input.ContainerID,
		input.UserID,
		input.CompanyID,
		input.DistrictID,
		input.ReceiptNumber,
		input.Responsible,
		input.PendingPercent,
		input.PendingLb,
		input.Notes,
	).Scan(&collectionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, 0, ErrDuplicateReceipt
		}
		return 0, 0, err
	}

	const ledgerQuery = `
		UPDATE cost_calc_history
		SET container_id = $1,
		    waste_type_id = $2,
		    collection_id = $3,
		    total_lb = $4,
		    percent_collected = $5,
		    fill_percent = $6,
		    cost_per_lb = $7,
		    total_cost = $8,
		    cost_source = $9,
		    cost_record_id = $10,
		    reading_id = $11,
		    calculated_at = NOW(),
		    notes = $12,
		    process_status = $13
		WHERE calculated_by = $14 AND process_status = $15
		RETURNING id
	`
	err = tx.QueryRow(ctx, ledgerQuery,
		input.ContainerID,
		input.WasteTypeID,
		collectionID,
		input.TotalLb,
		input.PercentCollected,
		input.FillPercent,
		input.CostPerLb,
		input.TotalCost,
		input.CostSource,
		input.CostRecordID,
		input.ReadingID,
		input.Notes,
		models.ProcessStatusFinalized,
		input.UserID,
		models.ProcessStatusOpen,
	).Scan(&ledgerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNoOpenProcess
		}
		return 0, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return collectionID, ledgerID, nil
}
