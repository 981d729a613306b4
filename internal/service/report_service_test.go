package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastemon/api/internal/apperr"
	"wastemon/api/internal/models"
	"wastemon/api/internal/repository"
)

type fakeHistoryStore struct {
	total     int
	details   []models.CollectionDetail
	weighing  []models.WeighingRow
	lastLimit int
}

func (f *fakeHistoryStore) SearchCollections(_ context.Context, _ repository.HistoryFilter, limit, _ int) (int, []models.CollectionDetail, []models.WeighingRow, error) {
	f.lastLimit = limit
	return f.total, f.details, f.weighing, nil
}

type fakeSnapshotStore struct {
	created  map[string]map[string]string
	snapshot *models.ExportSnapshot
}

func (f *fakeSnapshotStore) Create(_ context.Context, _ int, _ string, filters map[string]string) (string, error) {
	if f.created == nil {
		f.created = map[string]map[string]string{}
	}
	f.created["exp-1"] = filters
	return "exp-1", nil
}

func (f *fakeSnapshotStore) Fetch(_ context.Context, _ string, _ int, _ string) (*models.ExportSnapshot, error) {
	return f.snapshot, nil
}

type fakeAuditor struct {
	records []models.ExportAudit
}

func (f *fakeAuditor) Record(_ context.Context, audit models.ExportAudit) error {
	f.records = append(f.records, audit)
	return nil
}

type fakeArchiver struct {
	archived bool
	format   string
}

func (f *fakeArchiver) ArchiveExport(_ context.Context, _, _, format, _ string, _ []byte) error {
	f.archived = true
	f.format = format
	return nil
}

func historyRows() ([]models.CollectionDetail, []models.WeighingRow) {
	total := 40.0
	details := []models.CollectionDetail{{
		CollectionID:   77,
		ContainerCode:  "CT-001",
		CollectedAt:    "01/09/26 10:30",
		ReceiptNumber:  "R-0001",
		Responsible:    "María García",
		PendingPercent: 25,
		PendingLb:      10,
	}}
	weighing := []models.WeighingRow{{CollectionID: 77, TotalLb: &total}}
	return details, weighing
}

type reportFixture struct {
	history   *fakeHistoryStore
	snapshots *fakeSnapshotStore
	audits    *fakeAuditor
	archive   *fakeArchiver
	svc       *ReportService
}

func newReportFixture() *reportFixture {
	details, weighing := historyRows()
	f := &reportFixture{
		history:   &fakeHistoryStore{total: 1, details: details, weighing: weighing},
		snapshots: &fakeSnapshotStore{},
		audits:    &fakeAuditor{},
		archive:   &fakeArchiver{},
	}
	f.svc = NewReportService(f.history, f.snapshots, f.audits, f.archive, zerolog.Nop())
	return f
}

func validParams() SearchParams {
	return SearchParams{
		SearchBy:    "codigo",
		SearchValue: "CT",
		DateFrom:    "2026-08-01",
		DateTo:      "2026-08-31",
	}
}

func TestSearchRequiresDates(t *testing.T) {
	f := newReportFixture()

	_, err := f.svc.Search(context.Background(), 5, SearchParams{SearchBy: "codigo"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSearchRejectsInvertedRange(t *testing.T) {
	f := newReportFixture()

	params := validParams()
	params.DateFrom, params.DateTo = params.DateTo, params.DateFrom
	_, err := f.svc.Search(context.Background(), 5, params)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSearchRejectsUnknownCriterion(t *testing.T) {
	f := newReportFixture()

	params := validParams()
	params.SearchBy = "recibo"
	_, err := f.svc.Search(context.Background(), 5, params)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSearchRequiresCriterion(t *testing.T) {
	f := newReportFixture()

	params := validParams()
	params.SearchBy = ""
	_, err := f.svc.Search(context.Background(), 5, params)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSearchRejectsShortSearchValue(t *testing.T) {
	f := newReportFixture()

	params := validParams()
	params.SearchValue = "C"
	_, err := f.svc.Search(context.Background(), 5, params)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	params.SearchValue = "  C  "
	_, err = f.svc.Search(context.Background(), 5, params)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSearchMintsExportID(t *testing.T) {
	f := newReportFixture()

	result, err := f.svc.Search(context.Background(), 5, validParams())
	require.NoError(t, err)
	assert.Equal(t, "exp-1", result.ExportID)
	assert.Equal(t, 1, result.Total)
	assert.Len(t, result.Details, 1)

	filters := f.snapshots.created["exp-1"]
	require.NotNil(t, filters)
	assert.Equal(t, "codigo", filters["search_by"])
	assert.Equal(t, "2026-08-01", filters["date_from"])
	assert.Equal(t, "desc", filters["order"])
}

func TestSearchDefaultsPageSize(t *testing.T) {
	f := newReportFixture()

	_, err := f.svc.Search(context.Background(), 5, validParams())
	require.NoError(t, err)
	assert.Equal(t, 10, f.history.lastLimit)
}

func TestExportUnknownIDIsAuditedAsFailed(t *testing.T) {
	f := newReportFixture()
	f.snapshots.snapshot = nil

	_, err := f.svc.Export(context.Background(), Identity{UserID: 5}, "gone", "excel")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	require.Len(t, f.audits.records, 1)
	assert.Equal(t, "fallido", f.audits.records[0].Status)
	assert.NotEmpty(t, f.audits.records[0].ErrorMessage)
	assert.False(t, f.archive.archived)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	f := newReportFixture()

	_, err := f.svc.Export(context.Background(), Identity{UserID: 5}, "exp-1", "csv")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func exportSnapshot() *models.ExportSnapshot {
	return &models.ExportSnapshot{
		ExportID: "exp-1",
		UserID:   5,
		Module:   ModuleCollections,
		Filters: map[string]string{
			"search_by": "codigo", "search_value": "CT",
			"date_from": "2026-08-01", "date_to": "2026-08-31", "order": "desc",
		},
	}
}

func TestExportExcelRunsUnpaginatedAndAudits(t *testing.T) {
	f := newReportFixture()
	f.snapshots.snapshot = exportSnapshot()

	artifact, err := f.svc.Export(context.Background(),
		Identity{UserID: 5, Username: "jperez", RoleName: "operador"}, "exp-1", "excel")
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.Data)
	assert.Contains(t, artifact.FileName, ".xlsx")
	assert.Equal(t, 0, f.history.lastLimit)

	require.Len(t, f.audits.records, 1)
	audit := f.audits.records[0]
	assert.Equal(t, "exitoso", audit.Status)
	assert.Equal(t, 1, audit.RowCount)
	assert.Equal(t, "jperez", audit.Username)
	assert.True(t, f.archive.archived)
	assert.Equal(t, "xlsx", f.archive.format)
}

func TestExportPDF(t *testing.T) {
	f := newReportFixture()
	f.snapshots.snapshot = exportSnapshot()

	artifact, err := f.svc.Export(context.Background(), Identity{UserID: 5}, "exp-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.NotEmpty(t, artifact.Data)
}
