package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wastemon/api/internal/apperr"
	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
)

const ModuleCollections = "recoleccion"

type HistoryStore interface {
	SearchCollections(ctx context.Context, filter repository.HistoryFilter, limit, offset int) (int, []models.CollectionDetail, []models.WeighingRow, error)
}

type SnapshotStore interface {
	Create(ctx context.Context, userID int, module string, filters map[string]string) (string, error)
	Fetch(ctx context.Context, exportID string, userID int, module string) (*models.ExportSnapshot, error)
}

type ExportAuditor interface {
	Record(ctx context.Context, audit models.ExportAudit) error
}

type ExportArchiver interface {
	ArchiveExport(ctx context.Context, module, exportID, format, contentType string, data []byte) error
}

type ReportService struct {
	history   HistoryStore
	snapshots SnapshotStore
	audits    ExportAuditor
	archive   ExportArchiver
	log       zerolog.Logger
}

func NewReportService(history HistoryStore, snapshots SnapshotStore, audits ExportAuditor, archive ExportArchiver, log zerolog.Logger) *ReportService {
	return &ReportService{
		history:   history,
		snapshots: snapshots,
		audits:    audits,
		archive:   archive,
		log:       log,
	}
}

type SearchParams struct {
	SearchBy    string
	SearchValue string
	DateFrom    string
	DateTo      string
	Order       string
	Page        int
	PageSize    int
}

type SearchResult struct {
	Total    int                       `json:"total"`
	Page     int                       `json:"pagina"`
	PageSize int                       `json:"por_pagina"`
	ExportID string                    `json:"export_id,omitempty"`
	Details  []models.CollectionDetail `json:"detalle"`
	Weighing []models.WeighingRow      `json:"pesaje"`
}

// Search runs the paginated history query and mints an export id for the
// exact filters used, so a later download reproduces this result set.
func (s *ReportService) Search(ctx context.Context, userID int, params SearchParams) (*SearchResult, error) {
	filter, page, pageSize, err := normalizeSearch(params)
	if err != nil {
		return nil, err
	}

	total, details, weighing, err := s.history.SearchCollections(ctx, filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "search collections", err)
	}

	result := &SearchResult{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Details:  details,
		Weighing: weighing,
	}
	if result.Details == nil {
		result.Details = []models.CollectionDetail{}
		result.Weighing = []models.WeighingRow{}
	}

	// Snapshot creation is best effort: a Redis hiccup costs the export id,
	// not the search.
	exportID, err := s.snapshots.Create(ctx, userID, ModuleCollections, filterMap(filter))
	if err != nil {
		s.log.Warn().Err(err).Msg("export snapshot not created")
	} else {
		result.ExportID = exportID
	}

	return result, nil
}

// Identity is who is exporting, for the audit trail.
type Identity struct {
	UserID    int
	Username  string
	RoleName  string
	IPAddress string
	UserAgent string
}

type ExportArtifact struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Export renders the full (unpaginated) result set behind an export id. Every
// attempt lands in the audit trail, including the failed ones.
func (s *ReportService) Export(ctx context.Context, who Identity, exportID, format string) (*ExportArtifact, error) {
	audit := models.ExportAudit{
		UserID:    who.UserID,
		Username:  who.Username,
		RoleName:  who.RoleName,
		Module:    ModuleCollections,
		Report:    "historial",
		Format:    format,
		ExportID:  exportID,
		IPAddress: who.IPAddress,
		UserAgent: who.UserAgent,
	}

	artifact, rowCount, filters, err := s.export(ctx, who.UserID, exportID, format)
	audit.Filters = filters
	audit.RowCount = rowCount
	if err != nil {
		audit.Status = "fallido"
		msg, _ := apperr.Public(err)
		audit.ErrorMessage = msg
	} else {
		audit.Status = "exitoso"
	}

	if auditErr := s.audits.Record(ctx, audit); auditErr != nil {
		s.log.Error().Err(auditErr).Str("export_id", exportID).Msg("export audit not recorded")
	}

	return artifact, err
}

func (s *ReportService) export(ctx context.Context, userID int, exportID, format string) (*ExportArtifact, int, map[string]string, error) {
	if exportID == "" {
		return nil, 0, nil, apperr.Validation("export_id requerido")
	}
	if format != "pdf" && format != "excel" {
		return nil, 0, nil, apperr.Validation("formato de exportación no soportado")
	}

	snapshot, err := s.snapshots.Fetch(ctx, exportID, userID, ModuleCollections)
	if err != nil {
		return nil, 0, nil, apperr.Wrap(apperr.KindInternal, "fetch snapshot", err)
	}
	if snapshot == nil {
		return nil, 0, nil, apperr.Validation("el identificador de exportación es inválido o ha expirado")
	}

	filter := repository.HistoryFilter{
		SearchBy:    snapshot.Filters["search_by"],
		SearchValue: snapshot.Filters["search_value"],
		DateFrom:    snapshot.Filters["date_from"],
		DateTo:      snapshot.Filters["date_to"],
		Order:       snapshot.Filters["order"],
	}

	total, details, weighing, err := s.history.SearchCollections(ctx, filter, 0, 0)
	if err != nil {
		return nil, 0, snapshot.Filters, apperr.Wrap(apperr.KindInternal, "search collections", err)
	}

	var data []byte
	var contentType, ext string
	switch format {
	case "pdf":
		data, err = renderHistoryPDF(details, weighing)
		contentType, ext = "application/pdf", "pdf"
	case "excel":
		data, err = renderHistoryExcel(details, weighing)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	}
	if err != nil {
		return nil, total, snapshot.Filters, apperr.Wrap(apperr.KindInternal, "render export", err)
	}

	// Archival is best effort; the download must not depend on object
	// storage being up.
	if err := s.archive.ArchiveExport(ctx, ModuleCollections, exportID, ext, contentType, data); err != nil {
		s.log.Warn().Err(err).Str("export_id", exportID).Msg("export not archived")
	}

	artifact := &ExportArtifact{
		FileName:    fmt.Sprintf("historial_recoleccion_%s.%s", time.Now().Format("20060102_150405"), ext),
		ContentType: contentType,
		Data:        data,
	}
	return artifact, total, snapshot.Filters, nil
}

func normalizeSearch(params SearchParams) (repository.HistoryFilter, int, int, error) {
	if params.DateFrom == "" || params.DateTo == "" {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("fecha de inicio y fecha de fin son requeridas")
	}
	from, err := time.Parse("2006-01-02", params.DateFrom)
	if err != nil {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("fecha de inicio inválida (YYYY-MM-DD)")
	}
	to, err := time.Parse("2006-01-02", params.DateTo)
	if err != nil {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("fecha de fin inválida (YYYY-MM-DD)")
	}
	if to.Before(from) {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("la fecha de fin no puede ser anterior a la de inicio")
	}

	if params.SearchBy == "" {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("criterio de búsqueda requerido")
	}
	if params.SearchBy != "codigo" && params.SearchBy != "tipo" {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("criterio de búsqueda no válido")
	}
	searchValue := strings.TrimSpace(params.SearchValue)
	if len(searchValue) < 2 {
		return repository.HistoryFilter{}, 0, 0, apperr.Validation("el valor de búsqueda debe tener al menos 2 caracteres")
	}

	order := params.Order
	if order != "asc" {
		order = "desc"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	filter := repository.HistoryFilter{
		SearchBy:    params.SearchBy,
		SearchValue: searchValue,
		DateFrom:    params.DateFrom,
		DateTo:      params.DateTo,
		Order:       order,
	}
	return filter, page, pageSize, nil
}

func filterMap(f repository.HistoryFilter) map[string]string {
	return map[string]string{
		"search_by":    f.SearchBy,
		"search_value": f.SearchValue,
		"date_from":    f.DateFrom,
		"date_to":      f.DateTo,
		"order":        f.Order,
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
