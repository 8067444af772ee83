package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"datafit/internal/calculations"
	"datafit/internal/config"
	apperrors "datafit/internal/errors"
	"datafit/internal/files"
	"datafit/internal/infrastructure"
	"datafit/internal/repository"
	"datafit/pkg/contracts/domain"
	"datafit/pkg/contracts/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ReportStageEvent
}

func (p *recordingPublisher) PublishReportStage(_ int64, e events.ReportStageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) stages() []events.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Stage, len(p.events))
	for i, e := range p.events {
		out[i] = e.Stage
	}
	return out
}

type fixture struct {
	store      *repository.Store
	files      *files.LocalStore
	uploadDir  string
	publisher  *recordingPublisher
	reports    *ReportService
	indicators *IndicatorService
	owners     *OwnerService
	owner      *domain.Owner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := infrastructure.NopLogger()

	store, err := repository.Open(ctx, config.DatabaseConfig{
		Driver:       repository.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "datafit.db"),
		QueryTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))
	_, err = store.Indicators.Seed(ctx, calculations.CatalogNames())
	require.NoError(t, err)

	uploadDir := t.TempDir()
	fileStore, err := files.NewLocalStore(uploadDir, logger)
	require.NoError(t, err)

	repos := RepositoriesFromStore(store)
	publisher := &recordingPublisher{}
	indicators := NewIndicatorService(repos, nil, nil, logger)
	f := &fixture{
		store:      store,
		files:      fileStore,
		uploadDir:  uploadDir,
		publisher:  publisher,
		indicators: indicators,
		reports:    NewReportService(repos, fileStore, indicators, logger, ReportServiceOptions{Events: publisher}),
		owners:     NewOwnerService(store.Owners, logger),
	}

	f.owner, err = f.owners.CreateOwner(ctx, "Customer", "customer@example.com", domain.RoleCustomer)
	require.NoError(t, err)
	return f
}

// workbook builds an .xlsx with the given header and rows; nil cells are left empty.
func workbook(t *testing.T, header []string, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for c, h := range header {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func abSheet(t *testing.T) *bytes.Buffer {
	return workbook(t, []string{"A", "B"},
		[]interface{}{1, 4},
		[]interface{}{2, 5},
		[]interface{}{3, 6},
		[]interface{}{4, 7},
		[]interface{}{7, 7},
		[]interface{}{7, 7},
	)
}

func (f *fixture) upload(t *testing.T, name string, content io.Reader) (int64, error) {
	t.Helper()
	return f.reports.CreateReport(context.Background(), UploadRequest{
		OwnerID:  f.owner.ID,
		Filename: name,
		Content:  content,
	})
}

func TestCreateReportEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.upload(t, "ab.xlsx", abSheet(t))
	require.NoError(t, err)

	report, err := f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)
	assert.Regexp(t, `^1/report_files/[0-9a-f-]{36}/ab\.xlsx$`, report.StorageLink)
	assert.False(t, report.FitsCorrelationAnalysis, "pearson 0.875 does not beat spearman")
	assert.False(t, report.FitsDiscriminantAnalysis, "values far from N(0,1)")
	require.Len(t, report.Columns, 2)
	assert.Equal(t, "A", report.Columns[0].Name)
	assert.Equal(t, "B", report.Columns[1].Name)

	catalog := calculations.CatalogNames()
	for _, c := range report.Columns {
		assert.Len(t, c.IndicatorValues, len(catalog))
	}

	readings, err := f.indicators.GetIndicatorValues(ctx, IndicatorValuesQuery{
		OwnerID: f.owner.ID, ReportID: id, ColumnID: report.Columns[0].ID,
	})
	require.NoError(t, err)
	got := make(map[string]float64, len(readings))
	for _, r := range readings {
		require.True(t, r.Value.Valid, r.Name)
		got[r.Name] = r.Value.Float64
	}
	assert.InDelta(t, 3.5, got["Median"], 1e-12)
	assert.InDelta(t, 4.0, got["Mean"], 1e-12)
	assert.InDelta(t, 7.0, got["Mode"], 1e-12)
	assert.InDelta(t, 2.25, got["Quartile Q1"], 1e-12)
	assert.InDelta(t, 6.25, got["Quartile Q3"], 1e-12)
	assert.InDelta(t, 0.0, got["Outliers Number"], 1e-12)
	assert.InDelta(t, 6.0, got["Variation Range"], 1e-12)

	assert.Equal(t, []events.Stage{
		events.StageUploading,
		events.StageValidating,
		events.StageComputingIndicators,
		events.StageClassifying,
		events.StagePersisted,
	}, f.publisher.stages())

	path, err := f.reports.GetReportFilePath(ctx, id, f.owner.ID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestCreateReportRejectsExtension(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"data.csv", "data", "data.xlsx.txt"} {
		_, err := f.upload(t, name, strings.NewReader("x"))
		assert.True(t, apperrors.IsBadRequest(err), name)
	}

	_, err := f.upload(t, "DATA.XLSX", abSheet(t))
	assert.NoError(t, err, "extension check is case-insensitive")
}

func TestCreateReportUnknownOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.reports.CreateReport(context.Background(), UploadRequest{
		OwnerID: 999, Filename: "ab.xlsx", Content: abSheet(t),
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateReportRejectionDeletesFile(t *testing.T) {
	tests := []struct {
		name    string
		sheet   func(t *testing.T) io.Reader
		message string
	}{
		{
			name: "duplicate header",
			sheet: func(t *testing.T) io.Reader {
				return workbook(t, []string{"A", "A"}, []interface{}{1, 2}, []interface{}{3, 4}, []interface{}{5, 6})
			},
			message: "duplicate",
		},
		{
			name: "every column too short",
			sheet: func(t *testing.T) io.Reader {
				return workbook(t, []string{"A", "B"}, []interface{}{1, 2}, []interface{}{3, nil})
			},
			message: "no valid columns in dataset",
		},
		{
			name: "not a workbook",
			sheet: func(t *testing.T) io.Reader {
				return strings.NewReader("plain text")
			},
			message: "could not read spreadsheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.upload(t, "bad.xlsx", tt.sheet(t))
			require.Error(t, err)
			assert.True(t, apperrors.IsBadRequest(err))
			assert.Contains(t, err.Error(), tt.message)

			assert.Empty(t, storedFiles(t, f.uploadDir), "rejected file must be removed")

			stages := f.publisher.stages()
			assert.Equal(t, events.StageRejected, stages[len(stages)-1])

			reports, err := f.reports.ListReports(context.Background(), f.owner.ID)
			require.NoError(t, err)
			assert.Empty(t, reports)
		})
	}
}

// storedFiles lists the regular files under dir, relative to it.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(dir, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRejectedUploadKeepsEarlierFileOfSameName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := abSheet(t).Bytes()
	id, err := f.upload(t, "data.xlsx", bytes.NewReader(first))
	require.NoError(t, err)

	_, err = f.upload(t, "data.xlsx", workbook(t, []string{"A", "A"},
		[]interface{}{1, 2}, []interface{}{3, 4}, []interface{}{5, 6}))
	require.True(t, apperrors.IsBadRequest(err))

	path, err := f.reports.GetReportFilePath(ctx, id, f.owner.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, raw)
	assert.Len(t, storedFiles(t, f.uploadDir), 1)
}

func TestSameFileNameUploadsKeepSeparateFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.upload(t, "data.xlsx", abSheet(t))
	require.NoError(t, err)
	second, err := f.upload(t, "data.xlsx", workbook(t, []string{"C"},
		[]interface{}{10}, []interface{}{20}, []interface{}{30}))
	require.NoError(t, err)

	r1, err := f.reports.GetReport(ctx, first, f.owner.ID)
	require.NoError(t, err)
	r2, err := f.reports.GetReport(ctx, second, f.owner.ID)
	require.NoError(t, err)
	assert.NotEqual(t, r1.StorageLink, r2.StorageLink)

	rc, name, err := f.reports.OpenReportFile(ctx, first, f.owner.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "data.xlsx", name)
	assert.Len(t, storedFiles(t, f.uploadDir), 2)
}

func TestCreateReportDropsBadColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.upload(t, "mixed.xlsx", workbook(t,
		[]string{"Good", "Text", "Short", "ThisHeaderIsWayTooLongToKeep"},
		[]interface{}{1, 1, 1, 1},
		[]interface{}{2, "n/a", nil, 2},
		[]interface{}{3, 3, nil, 3},
	))
	require.NoError(t, err)

	report, err := f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, report.Columns, 1)
	assert.Equal(t, "Good", report.Columns[0].Name)
	assert.False(t, report.FitsCorrelationAnalysis, "a single column has no pairs")
}

func TestComputeStoresNullForEmptyColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	column := &domain.Column{Name: "Empty", Values: []domain.OptionalFloat{domain.None(), domain.None()}}
	_, err := f.store.Columns.Create(ctx, column)
	require.NoError(t, err)

	catalog, err := f.indicators.Catalog(ctx)
	require.NoError(t, err)

	id, err := f.indicators.Compute(ctx, column.ID, catalog[0].ID)
	require.NoError(t, err)

	value, err := f.store.Values.GetActive(ctx, id)
	require.NoError(t, err)
	assert.False(t, value.Value.Valid)
	assert.True(t, value.IsActive)
}

func TestComputeErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	column := &domain.Column{Name: "A", Values: []domain.OptionalFloat{domain.Some(1)}}
	_, err := f.store.Columns.Create(ctx, column)
	require.NoError(t, err)

	_, err = f.indicators.Compute(ctx, 999, 1)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.indicators.Compute(ctx, column.ID, 999)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.store.Indicators.Seed(ctx, []string{"Geometric Mean"})
	require.NoError(t, err)
	catalog, err := f.indicators.Catalog(ctx)
	require.NoError(t, err)
	unregistered := catalog[len(catalog)-1]

	_, err = f.indicators.Compute(ctx, column.ID, unregistered.ID)
	assert.True(t, apperrors.IsBadRequest(err))
}

func TestComputeAllStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Indicators.Seed(ctx, []string{"Geometric Mean"})
	require.NoError(t, err)

	var ids []int64
	for _, name := range []string{"A", "B"} {
		c := &domain.Column{Name: name, Values: []domain.OptionalFloat{domain.Some(1), domain.Some(2), domain.Some(3)}}
		_, err := f.store.Columns.Create(ctx, c)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	created, err := f.indicators.ComputeAll(ctx, ids)
	assert.True(t, apperrors.IsBadRequest(err))
	assert.Len(t, created, len(calculations.CatalogNames())*2, "values before the failure are kept")

	values, err := f.store.Values.ListActiveByColumn(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, values, len(calculations.CatalogNames()))

	// the report was never created, so the upload ends in failed
	id, err := f.upload(t, "ab.xlsx", abSheet(t))
	assert.Zero(t, id)
	assert.True(t, apperrors.IsBadRequest(err))
	stages := f.publisher.stages()
	assert.Equal(t, events.StageFailed, stages[len(stages)-1])
}

func TestIndicatorValueAccessChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.upload(t, "ab.xlsx", abSheet(t))
	require.NoError(t, err)
	report, err := f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)
	colA, colB := report.Columns[0], report.Columns[1]

	other, err := f.owners.CreateOwner(ctx, "Other", "other@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	otherID, err := f.reports.CreateReport(ctx, UploadRequest{OwnerID: other.ID, Filename: "ab.xlsx", Content: abSheet(t)})
	require.NoError(t, err)
	otherReport, err := f.reports.GetReport(ctx, otherID, other.ID)
	require.NoError(t, err)

	q := IndicatorValuesQuery{OwnerID: f.owner.ID, ReportID: id, ColumnID: colA.ID}

	_, err = f.indicators.GetIndicatorValues(ctx, IndicatorValuesQuery{OwnerID: 999, ReportID: id, ColumnID: colA.ID})
	assert.True(t, apperrors.IsNotFound(err), "unknown owner")

	_, err = f.indicators.GetIndicatorValues(ctx, IndicatorValuesQuery{OwnerID: f.owner.ID, ReportID: 999, ColumnID: colA.ID})
	assert.True(t, apperrors.IsNotFound(err), "unknown report")

	_, err = f.indicators.GetIndicatorValues(ctx, IndicatorValuesQuery{OwnerID: f.owner.ID, ReportID: otherID, ColumnID: otherReport.Columns[0].ID})
	assert.True(t, apperrors.IsForbidden(err), "report of another owner")

	_, err = f.indicators.GetIndicatorValues(ctx, IndicatorValuesQuery{OwnerID: f.owner.ID, ReportID: id, ColumnID: otherReport.Columns[0].ID})
	assert.True(t, apperrors.IsNotFound(err), "column of another report")

	byName, err := f.indicators.GetIndicatorValueByName(ctx, q, "median")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, byName.Value.Float64, 1e-12)

	byID, err := f.indicators.GetIndicatorValue(ctx, q, byName.ID)
	require.NoError(t, err)
	assert.Equal(t, byName.ID, byID.ID)

	_, err = f.indicators.GetIndicatorValue(ctx, IndicatorValuesQuery{OwnerID: f.owner.ID, ReportID: id, ColumnID: colB.ID}, byName.ID)
	assert.True(t, apperrors.IsNotFound(err), "value of another column")

	require.NoError(t, f.indicators.DeleteIndicatorValue(ctx, q, byName.ID))
	_, err = f.indicators.GetIndicatorValueByName(ctx, q, "Median")
	assert.True(t, apperrors.IsNotFound(err))

	readings, err := f.indicators.GetIndicatorValues(ctx, q)
	require.NoError(t, err)
	assert.Len(t, readings, len(calculations.CatalogNames())-1)
}

func TestDeleteReportCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.upload(t, "ab.xlsx", abSheet(t))
	require.NoError(t, err)
	report, err := f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)

	other, err := f.owners.CreateOwner(ctx, "Other", "other@example.com", domain.RoleCustomer)
	require.NoError(t, err)
	assert.True(t, apperrors.IsNotFound(f.reports.DeleteReport(ctx, id, other.ID)), "only the owner may delete")

	require.NoError(t, f.reports.DeleteReport(ctx, id, f.owner.ID))

	_, err = f.reports.GetReport(ctx, id, f.owner.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.reports.GetReportFilePath(ctx, id, f.owner.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(f.reports.DeleteReport(ctx, id, f.owner.ID)))

	for _, c := range report.Columns {
		_, err := f.store.Columns.GetActive(ctx, c.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		for _, v := range c.IndicatorValues {
			_, err := f.store.Values.GetActive(ctx, v.ID)
			assert.ErrorIs(t, err, repository.ErrNotFound)
		}
	}

	catalog, err := f.indicators.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, len(calculations.CatalogNames()))

	_, err = os.Stat(filepath.Join(f.uploadDir, filepath.FromSlash(report.StorageLink)))
	assert.NoError(t, err, "stored file is kept")
}

func TestDeleteColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.upload(t, "ab.xlsx", abSheet(t))
	require.NoError(t, err)
	report, err := f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)

	require.NoError(t, f.reports.DeleteColumn(ctx, id, report.Columns[0].ID, f.owner.ID))
	assert.True(t, apperrors.IsNotFound(f.reports.DeleteColumn(ctx, id, report.Columns[0].ID, f.owner.ID)))
	assert.True(t, apperrors.IsNotFound(f.reports.DeleteColumn(ctx, id, 999, f.owner.ID)))

	report, err = f.reports.GetReport(ctx, id, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, report.Columns, 1)
	assert.Equal(t, "B", report.Columns[0].Name)
}

func TestListReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.upload(t, "one.xlsx", abSheet(t))
	require.NoError(t, err)
	second, err := f.upload(t, "two.xlsx", abSheet(t))
	require.NoError(t, err)

	reports, err := f.reports.ListReports(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, second, reports[0].ID)
	assert.Equal(t, first, reports[1].ID)

	_, err = f.reports.ListOwnerReports(ctx, f.owner, f.owner.ID)
	assert.True(t, apperrors.IsForbidden(err))

	admin, err := f.owners.CreateOwner(ctx, "Admin", "admin@example.com", domain.RoleAdmin)
	require.NoError(t, err)
	reports, err = f.reports.ListOwnerReports(ctx, admin, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestOpenReportFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sheet := abSheet(t)
	want := append([]byte(nil), sheet.Bytes()...)
	id, err := f.upload(t, "ab.xlsx", sheet)
	require.NoError(t, err)

	rc, name, err := f.reports.OpenReportFile(ctx, id, f.owner.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "ab.xlsx", name)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, want, body)
}

func TestCreateOwnerValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.owners.CreateOwner(context.Background(), "", "x@example.com", domain.RoleCustomer)
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = f.owners.CreateOwner(context.Background(), "Name", "not-an-email", domain.RoleCustomer)
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = f.owners.CreateOwner(context.Background(), "Name", "x@example.com", domain.Role("root"))
	assert.True(t, apperrors.IsBadRequest(err))

	_, err = f.owners.GetOwner(context.Background(), 999)
	assert.True(t, apperrors.IsNotFound(err))
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeClients int

func (c fakeClients) ClientCount() int { return int(c) }

func TestHealthService(t *testing.T) {
	ctx := context.Background()

	healthy := NewHealthService(fakePinger{}, fakeClients(3), infrastructure.NopLogger())
	status := healthy.ReadinessCheck(ctx)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Services["database"].Status)
	assert.Equal(t, 3, status.Runtime["websocket_clients"])
	assert.Equal(t, "ok", healthy.LivenessCheck(ctx).Status)

	broken := NewHealthService(fakePinger{err: errors.New("connection refused")}, nil, infrastructure.NopLogger())
	status = broken.ReadinessCheck(ctx)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unavailable", status.Services["database"].Status)
	assert.NotContains(t, status.Services, "websocket")
}
