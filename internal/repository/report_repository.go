package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"wastemon/api/internal/models"
)

// HistoryFilter is the search criteria for the collection history. SearchBy
// is "codigo" (container code) or "tipo" (waste type name); dates are
// inclusive YYYY-MM-DD bounds.
type HistoryFilter struct {
	SearchBy    string
	SearchValue string
	DateFrom    string
	DateTo      string
	Order       string
}

func (f HistoryFilter) orderClause() string {
	if f.Order == "asc" {
		return "ASC"
	}
	return "DESC"
}

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SearchCollections runs the two-table history query: a paginated detail
// table and a weighing table synchronized row-for-row by collection id.
// limit <= 0 disables pagination (export path).
func (r *ReportRepository) SearchCollections(ctx context.Context, filter HistoryFilter, limit, offset int) (int, []models.CollectionDetail, []models.WeighingRow, error) {
	where := `WHERE col.collected_at::date BETWEEN $1::date AND $2::date`
	if filter.SearchBy == "codigo" {
		where += ` AND c.code ILIKE '%' || $3 || '%'`
	} else {
		where += ` AND wt.name ILIKE '%' || $3 || '%'`
	}
	args := []any{filter.DateFrom, filter.DateTo, filter.SearchValue}

	countQuery := `
		SELECT COUNT(*)::int
		FROM collections col
		JOIN containers c ON c.id = col.container_id
		LEFT JOIN waste_types wt ON wt.id = c.waste_type_id
		` + where

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, nil, err
	}
	if total == 0 {
		return 0, nil, nil, nil
	}

	detailQuery := `
		SELECT col.id, c.code,
		       to_char(col.collected_at AT TIME ZONE 'America/Guatemala', 'DD/MM/YY HH24:MI'),
		       COALESCE(d.name, ''), COALESCE(wt.name, ''),
		       col.receipt_number, col.responsible, COALESCE(e.name, ''),
		       col.pending_percent, col.pending_lb, col.notes
		FROM collections col
		JOIN containers c ON c.id = col.container_id
		LEFT JOIN waste_types wt ON wt.id = c.waste_type_id
		LEFT JOIN districts d ON d.id = col.district_id
		LEFT JOIN collecting_companies e ON e.id = col.company_id
		` + where + `
		ORDER BY col.collected_at ` + filter.orderClause() + `, col.id ` + filter.orderClause()

	if limit > 0 {
		detailQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, detailQuery, args...)
	if err != nil {
		return 0, nil, nil, err
	}
	defer rows.Close()

	var details []models.CollectionDetail
	var ids []int
	for rows.Next() {
		var d models.CollectionDetail
		if err := rows.Scan(
			&d.CollectionID,
			&d.ContainerCode,
			&d.CollectedAt,
			&d.District,
			&d.WasteType,
			&d.ReceiptNumber,
			&d.Responsible,
			&d.Company,
			&d.PendingPercent,
			&d.PendingLb,
			&d.Notes,
		); err != nil {
			return 0, nil, nil, err
		}
		details = append(details, d)
		ids = append(ids, d.CollectionID)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, nil, err
	}

	weighingByID := make(map[int]models.WeighingRow, len(ids))
	if len(ids) > 0 {
		const weighingQuery = `
			SELECT h.collection_id, h.total_lb, h.percent_collected, h.fill_percent,
			       h.cost_per_lb, h.total_cost
			FROM cost_calc_history h
			WHERE h.collection_id = ANY($1::int[])
		`
		wrows, err := r.pool.Query(ctx, weighingQuery, ids)
		if err != nil {
			return 0, nil, nil, err
		}
		defer wrows.Close()

		for wrows.Next() {
			var w models.WeighingRow
			var totalLb float64
			if err := wrows.Scan(&w.CollectionID, &totalLb, &w.PercentCollected, &w.FillPercent, &w.CostPerLb, &w.TotalCost); err != nil {
				return 0, nil, nil, err
			}
			w.TotalLb = &totalLb
			weighingByID[w.CollectionID] = w
		}
		if err := wrows.Err(); err != nil {
			return 0, nil, nil, err
		}
	}

	// Weighing rows come out in the detail table's order, with empty slots
	// for collections whose ledger row is missing.
	weighing := make([]models.WeighingRow, 0, len(details))
	for _, d := range details {
		if w, ok := weighingByID[d.CollectionID]; ok {
			weighing = append(weighing, w)
			continue
		}
		weighing = append(weighing, models.WeighingRow{CollectionID: d.CollectionID})
	}

	return total, details, weighing, nil
}
