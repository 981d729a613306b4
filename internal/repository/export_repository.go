package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

type ExportAuditRepository struct {
	pool *pgxpool.Pool
}

func NewExportAuditRepository(pool *pgxpool.Pool) *ExportAuditRepository {
	return &ExportAuditRepository{pool: pool}
}

// Record appends one immutable audit row per export attempt. Rows are never
// updated or deleted.
func (r *ExportAuditRepository) Record(ctx context.Context, audit models.ExportAudit) error {
	filters, err := json.Marshal(audit.Filters)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO export_audit
			(user_id, username, role_name, module, report, format, export_id,
			 filters, row_count, status, error_message, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''))
	`
	_, err = r.pool.Exec(ctx, query,
		audit.UserID,
		audit.Username,
		audit.RoleName,
		audit.Module,
		audit.Report,
		audit.Format,
		audit.ExportID,
		filters,
		audit.RowCount,
		audit.Status,
		audit.ErrorMessage,
		audit.IPAddress,
		audit.UserAgent,
	)
	return err
}
