package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"datafit/internal/analysis"
	"datafit/internal/dataprocessing"
	apperrors "datafit/internal/errors"
	"datafit/internal/files"
	"datafit/internal/infrastructure"
	"datafit/pkg/contracts/domain"
	"datafit/pkg/contracts/events"
)

// AcceptedExtensions lists the spreadsheet extensions an upload may have.
var AcceptedExtensions = []string{"xls", "xlsx"}

// UploadRequest is one spreadsheet upload.
type UploadRequest struct {
	OwnerID  int64
	Filename string
	Content  io.Reader
}

// ReportServiceOptions carries the optional collaborators of a ReportService.
type ReportServiceOptions struct {
	SignificanceLevel float64
	Events            EventPublisher
	Metrics           *infrastructure.PipelineMetrics
	Tracer            trace.Tracer
}

// ReportService runs uploads through the pipeline and manages report lifecycles.
type ReportService struct {
	repos      Repositories
	files      FileStore
	indicators *IndicatorService
	validator  *dataprocessing.Validator
	validate   *validator.Validate
	events     EventPublisher
	metrics    *infrastructure.PipelineMetrics
	tracer     trace.Tracer
	alpha      float64
	logger     *slog.Logger
}

// NewReportService creates a report service.
func NewReportService(repos Repositories, store FileStore, indicators *IndicatorService, logger *slog.Logger, opts ReportServiceOptions) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SignificanceLevel <= 0 || opts.SignificanceLevel >= 1 {
		opts.SignificanceLevel = analysis.DefaultSignificanceLevel
	}
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}
	if opts.Metrics == nil {
		opts.Metrics = infrastructure.NoopPipelineMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName)
	}

	return &ReportService{
		repos:      repos,
		files:      store,
		indicators: indicators,
		validator:  dataprocessing.NewValidator(logger),
		validate:   validator.New(),
		events:     opts.Events,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		alpha:      opts.SignificanceLevel,
		logger:     logger.With(slog.String("component", "report_service")),
	}
}

// CreateReport stores the file, validates it, computes every catalog indicator for
// the accepted columns, classifies the dataset and persists the report.
func (s *ReportService) CreateReport(ctx context.Context, req UploadRequest) (int64, error) {
	uploadID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "ReportService.CreateReport", trace.WithAttributes(
		attribute.String("upload.id", uploadID),
		attribute.Int64("owner.id", req.OwnerID),
		attribute.String("file.name", req.Filename),
	))
	defer span.End()

	logger := s.logger.With(
		slog.String("upload_id", uploadID),
		slog.Int64("owner_id", req.OwnerID),
		slog.String("filename", req.Filename))

	progress := newUploadProgress(ctx, uploadID, req, s.events, s.metrics, logger)
	report, err := s.runUpload(ctx, progress, uploadID, req, logger)
	if err != nil {
		terminal := progress.fail(ctx, err)
		s.metrics.RecordUpload(ctx, string(terminal))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		level := slog.LevelWarn
		if terminal == events.StageFailed {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "upload did not produce a report",
			slog.String("stage", string(terminal)),
			slog.String("error", err.Error()))
		return 0, err
	}

	progress.done(ctx, report.ID, len(report.Columns))
	s.metrics.RecordUpload(ctx, string(events.StagePersisted))
	span.SetAttributes(attribute.Int64("report.id", report.ID))

	logger.InfoContext(ctx, "report created",
		slog.Int64("report_id", report.ID),
		slog.Int("columns", len(report.Columns)),
		slog.Bool("fits_correlation_analysis", report.FitsCorrelationAnalysis),
		slog.Bool("fits_discriminant_analysis", report.FitsDiscriminantAnalysis))
	return report.ID, nil
}

func (s *ReportService) runUpload(ctx context.Context, progress *uploadProgress, uploadID string, req UploadRequest, logger *slog.Logger) (*domain.Report, error) {
	owner, err := s.repos.Owners.GetActive(ctx, req.OwnerID)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("owner %d", req.OwnerID), "failed to load owner")
	}
	if err := checkExtension(req.Filename); err != nil {
		return nil, err
	}
	if req.Content == nil {
		return nil, apperrors.NewBadRequestError("file content is required")
	}

	link, err := s.files.Save(ctx, files.ReportKey(owner.ID, uploadID, req.Filename), req.Content)
	if err != nil {
		if errors.Is(err, files.ErrInvalidKey) {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid file name %q", req.Filename))
		}
		return nil, apperrors.NewStorageError("failed to store uploaded file", err)
	}

	progress.enter(ctx, events.StageValidating, events.ReportStageEvent{})
	candidates, err := s.validateFile(ctx, link)
	if err != nil {
		if delErr := s.files.Delete(ctx, link); delErr != nil {
			logger.ErrorContext(ctx, "failed to discard rejected file",
				slog.String("link", link),
				slog.String("error", delErr.Error()))
		}
		return nil, err
	}

	progress.enter(ctx, events.StageComputingIndicators, events.ReportStageEvent{Columns: len(candidates)})
	columns, err := s.persistColumns(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if _, err := s.indicators.ComputeAll(ctx, columnIDs(columns)); err != nil {
		return nil, err
	}

	progress.enter(ctx, events.StageClassifying, events.ReportStageEvent{Columns: len(columns)})
	fitsCorrelation, fitsDiscriminant, err := s.classify(ctx, columns, logger)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		OwnerID:                  owner.ID,
		StorageLink:              link,
		UploadedAt:               time.Now().UTC(),
		Columns:                  columns,
		FitsCorrelationAnalysis:  fitsCorrelation,
		FitsDiscriminantAnalysis: fitsDiscriminant,
	}
	if _, err := s.repos.Reports.Create(ctx, report); err != nil {
		return nil, apperrors.NewStorageError("failed to store report", err)
	}
	return report, nil
}

func (s *ReportService) validateFile(ctx context.Context, link string) ([]dataprocessing.CandidateColumn, error) {
	ctx, span := s.tracer.Start(ctx, "ReportService.validateFile")
	defer span.End()

	rc, err := s.files.Open(ctx, link)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open uploaded file", err)
	}
	defer rc.Close()

	sheet, err := dataprocessing.ParseSheet(rc)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, sheet)
}

// persistColumns stores each accepted column so it has an id before indicators are computed.
func (s *ReportService) persistColumns(ctx context.Context, candidates []dataprocessing.CandidateColumn) ([]domain.Column, error) {
	columns := make([]domain.Column, 0, len(candidates))
	for _, c := range candidates {
		column := domain.Column{Name: c.Name, Values: c.Values}
		if err := s.validate.StructCtx(ctx, column); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("column %q failed validation", c.Name), err)
		}
		if _, err := s.repos.Columns.Create(ctx, &column); err != nil {
			return nil, apperrors.NewStorageError("failed to store column", err)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// classify runs both fit classifiers concurrently.
func (s *ReportService) classify(ctx context.Context, columns []domain.Column, logger *slog.Logger) (correlation, discriminant bool, err error) {
	series := make([]analysis.Series, len(columns))
	for i, c := range columns {
		series[i] = analysis.Series{Name: c.Name, Values: c.Values}
	}

	var (
		corr analysis.CorrelationResult
		disc analysis.DiscriminantResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, span := s.tracer.Start(gctx, "analysis.CorrelationFit")
		defer span.End()
		corr = analysis.CorrelationFit(series)
		span.SetAttributes(
			attribute.Int("pairs.strengthened", corr.Strengthened),
			attribute.Int("pairs.weakened", corr.Weakened))
		return gctx.Err()
	})
	g.Go(func() error {
		_, span := s.tracer.Start(gctx, "analysis.DiscriminantFit")
		defer span.End()
		disc = analysis.DiscriminantFit(series, s.alpha)
		span.SetAttributes(attribute.Int("columns.tested", disc.Tested))
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return false, false, apperrors.NewInternalError("classification interrupted", err)
	}

	s.metrics.RecordClassification(ctx, "correlation", corr.Fits)
	s.metrics.RecordClassification(ctx, "discriminant", disc.Fits)

	attrs := []any{
		slog.Bool("correlation", corr.Fits),
		slog.Int("strengthened", corr.Strengthened),
		slog.Int("weakened", corr.Weakened),
		slog.Bool("discriminant", disc.Fits),
	}
	if !disc.Fits {
		attrs = append(attrs,
			slog.String("failing_column", disc.FailingColumn),
			slog.Float64("p_value", disc.PValue))
	}
	logger.DebugContext(ctx, "dataset classified", attrs...)

	return corr.Fits, disc.Fits, nil
}

// GetReportFilePath returns a filesystem path to the report's original file.
func (s *ReportService) GetReportFilePath(ctx context.Context, reportID, ownerID int64) (string, error) {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return "", err
	}

	p, err := s.files.LocalPath(ctx, report.StorageLink)
	if errors.Is(err, files.ErrNotExist) {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("file of report %d", reportID))
	}
	if err != nil {
		return "", apperrors.NewStorageError("failed to resolve report file", err)
	}
	return p, nil
}

// OpenReportFile streams the report's original file.
func (s *ReportService) OpenReportFile(ctx context.Context, reportID, ownerID int64) (io.ReadCloser, string, error) {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.files.Open(ctx, report.StorageLink)
	if errors.Is(err, files.ErrNotExist) {
		return nil, "", apperrors.NewNotFoundError(fmt.Sprintf("file of report %d", reportID))
	}
	if err != nil {
		return nil, "", apperrors.NewStorageError("failed to open report file", err)
	}
	return rc, path.Base(report.StorageLink), nil
}

// DeleteReport soft-deletes the report, its columns and their indicator values.
// The stored file and the indicator catalog are left untouched.
func (s *ReportService) DeleteReport(ctx context.Context, reportID, ownerID int64) error {
	if _, err := s.ownedReport(ctx, reportID, ownerID); err != nil {
		return err
	}
	if err := s.repos.Reports.Deactivate(ctx, reportID); err != nil {
		return fromRepo(err, fmt.Sprintf("report %d", reportID), "failed to delete report")
	}

	s.logger.InfoContext(ctx, "report deleted",
		slog.Int64("report_id", reportID),
		slog.Int64("owner_id", ownerID))
	return nil
}

// DeleteColumn soft-deletes one column of an owned report and its indicator values.
func (s *ReportService) DeleteColumn(ctx context.Context, reportID, columnID, ownerID int64) error {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return err
	}

	linked, err := s.repos.Columns.BelongsToReport(ctx, report.ID, columnID)
	if err != nil {
		return apperrors.NewStorageError("failed to check column", err)
	}
	if !linked {
		return apperrors.NewNotFoundError(fmt.Sprintf("column %d in report %d", columnID, reportID))
	}
	if err := s.repos.Columns.Deactivate(ctx, columnID); err != nil {
		return fromRepo(err, fmt.Sprintf("column %d", columnID), "failed to delete column")
	}

	s.logger.InfoContext(ctx, "column deleted",
		slog.Int64("report_id", reportID),
		slog.Int64("column_id", columnID))
	return nil
}

// ListReports returns the owner's active reports, newest first, without columns.
func (s *ReportService) ListReports(ctx context.Context, ownerID int64) ([]domain.Report, error) {
	if _, err := s.repos.Owners.GetActive(ctx, ownerID); err != nil {
		return nil, fromRepo(err, fmt.Sprintf("owner %d", ownerID), "failed to load owner")
	}
	reports, err := s.repos.Reports.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list reports", err)
	}
	return reports, nil
}

// ListOwnerReports is ListReports on behalf of an admin.
func (s *ReportService) ListOwnerReports(ctx context.Context, admin *domain.Owner, ownerID int64) ([]domain.Report, error) {
	if admin == nil || admin.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbiddenError("admin access required")
	}
	return s.ListReports(ctx, ownerID)
}

// GetReport returns an owned report with its active columns and their active indicator values.
func (s *ReportService) GetReport(ctx context.Context, reportID, ownerID int64) (*domain.Report, error) {
	report, err := s.ownedReport(ctx, reportID, ownerID)
	if err != nil {
		return nil, err
	}

	columns, err := s.repos.Columns.ListActiveByReport(ctx, report.ID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list report columns", err)
	}
	for i := range columns {
		values, err := s.repos.Values.ListActiveByColumn(ctx, columns[i].ID)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to list indicator values", err)
		}
		columns[i].IndicatorValues = values
	}
	report.Columns = columns
	return report, nil
}

// ownedReport resolves an active owner and an active report of that owner.
// A report of another owner is reported as missing.
func (s *ReportService) ownedReport(ctx context.Context, reportID, ownerID int64) (*domain.Report, error) {
	if _, err := s.repos.Owners.GetActive(ctx, ownerID); err != nil {
		return nil, fromRepo(err, fmt.Sprintf("owner %d", ownerID), "failed to load owner")
	}
	report, err := s.repos.Reports.GetActive(ctx, reportID)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("report %d", reportID), "failed to load report")
	}
	if report.OwnerID != ownerID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report %d", reportID))
	}
	return report, nil
}

func checkExtension(filename string) error {
	name := strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/")
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(name)), "."))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return nil
		}
	}
	return apperrors.NewBadRequestError(
		fmt.Sprintf("unsupported file extension %q, expected one of %s", ext, strings.Join(AcceptedExtensions, ", ")))
}

func columnIDs(columns []domain.Column) []int64 {
	ids := make([]int64, len(columns))
	for i, c := range columns {
		ids[i] = c.ID
	}
	return ids
}
