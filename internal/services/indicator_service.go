package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"datafit/internal/calculations"
	apperrors "datafit/internal/errors"
	"datafit/internal/infrastructure"
	"datafit/pkg/contracts/domain"
)

// IndicatorService computes indicator values for columns and serves them back.
type IndicatorService struct {
	repos   Repositories
	metrics *infrastructure.PipelineMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewIndicatorService creates an indicator service. Nil metrics or tracer fall back to no-ops.
func NewIndicatorService(repos Repositories, metrics *infrastructure.PipelineMetrics, tracer trace.Tracer, logger *slog.Logger) *IndicatorService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NoopPipelineMetrics()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName)
	}
	return &IndicatorService{
		repos:   repos,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger.With(slog.String("component", "indicator_service")),
	}
}

// IndicatorValuesQuery addresses one column of one report on behalf of an owner.
type IndicatorValuesQuery struct {
	OwnerID  int64
	ReportID int64
	ColumnID int64
}

// Catalog returns every report indicator in ascending id order.
func (s *IndicatorService) Catalog(ctx context.Context) ([]domain.ReportIndicator, error) {
	catalog, err := s.repos.Indicators.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list report indicators", err)
	}
	return catalog, nil
}

// Compute applies the indicator to the column's present values and stores the result.
// A column without present values gets a null result. Both create an active value.
func (s *IndicatorService) Compute(ctx context.Context, columnID, indicatorID int64) (int64, error) {
	column, err := s.repos.Columns.GetActive(ctx, columnID)
	if err != nil {
		return 0, fromRepo(err, fmt.Sprintf("column %d", columnID), "failed to load column")
	}
	indicator, err := s.repos.Indicators.Get(ctx, indicatorID)
	if err != nil {
		return 0, fromRepo(err, fmt.Sprintf("report indicator %d", indicatorID), "failed to load report indicator")
	}
	return s.compute(ctx, column, indicator)
}

func (s *IndicatorService) compute(ctx context.Context, column *domain.Column, indicator *domain.ReportIndicator) (int64, error) {
	fn, ok := calculations.Lookup(indicator.Name)
	if !ok {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("no calculation registered for %s", indicator.Name)).
			WithContext("report_indicator_id", indicator.ID)
	}

	value := domain.None()
	if present := domain.Present(column.Values); len(present) > 0 {
		if v := fn(present); !math.IsNaN(v) && !math.IsInf(v, 0) {
			value = domain.Some(v)
		}
	}

	id, err := s.repos.Values.Create(ctx, column.ID, indicator.ID, value)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to store indicator value", err)
	}

	s.metrics.RecordIndicatorValue(ctx, indicator.Name, !value.Valid)
	column.IndicatorValues = append(column.IndicatorValues, domain.IndicatorValue{
		ID:                id,
		ColumnID:          column.ID,
		ReportIndicatorID: indicator.ID,
		IndicatorName:     indicator.Name,
		Value:             value,
		IsActive:          true,
	})
	return id, nil
}

// ComputeAll computes every catalog indicator for every column, indicator-major.
// The first failure stops the batch; values created before it are kept.
func (s *IndicatorService) ComputeAll(ctx context.Context, columnIDs []int64) ([]int64, error) {
	ctx, span := s.tracer.Start(ctx, "IndicatorService.ComputeAll",
		trace.WithAttributes(attribute.Int("columns", len(columnIDs))))
	defer span.End()

	catalog, err := s.repos.Indicators.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list report indicators", err)
	}

	columns := make([]*domain.Column, len(columnIDs))
	for i, id := range columnIDs {
		if columns[i], err = s.repos.Columns.GetActive(ctx, id); err != nil {
			return nil, fromRepo(err, fmt.Sprintf("column %d", id), "failed to load column")
		}
	}

	ids := make([]int64, 0, len(catalog)*len(columns))
	for i := range catalog {
		for _, column := range columns {
			id, err := s.compute(ctx, column, &catalog[i])
			if err != nil {
				s.logger.ErrorContext(ctx, "indicator batch aborted",
					slog.Int64("column_id", column.ID),
					slog.String("indicator", catalog[i].Name),
					slog.Int("computed", len(ids)),
					slog.String("error", err.Error()))
				return ids, err
			}
			ids = append(ids, id)
		}
	}

	span.SetAttributes(attribute.Int("indicator_values", len(ids)))
	s.logger.DebugContext(ctx, "indicators computed",
		slog.Int("columns", len(columns)),
		slog.Int("indicators", len(catalog)),
		slog.Int("values", len(ids)))
	return ids, nil
}

// GetIndicatorValues returns [value, name] for every active value of the column.
func (s *IndicatorService) GetIndicatorValues(ctx context.Context, q IndicatorValuesQuery) ([]domain.IndicatorReading, error) {
	column, err := s.resolveColumn(ctx, q)
	if err != nil {
		return nil, err
	}

	values, err := s.repos.Values.ListActiveByColumn(ctx, column.ID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list indicator values", err)
	}

	readings := make([]domain.IndicatorReading, len(values))
	for i, v := range values {
		readings[i] = domain.IndicatorReading{Value: v.Value, Name: v.IndicatorName}
	}
	return readings, nil
}

// GetIndicatorValue returns one active value of the column.
func (s *IndicatorService) GetIndicatorValue(ctx context.Context, q IndicatorValuesQuery, valueID int64) (*domain.IndicatorValue, error) {
	column, err := s.resolveColumn(ctx, q)
	if err != nil {
		return nil, err
	}

	value, err := s.repos.Values.GetActive(ctx, valueID)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("indicator value %d", valueID), "failed to load indicator value")
	}
	if value.ColumnID != column.ID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("indicator value %d in column %d", valueID, column.ID))
	}
	return value, nil
}

// GetIndicatorValueByName returns the column's active value of the named indicator.
func (s *IndicatorService) GetIndicatorValueByName(ctx context.Context, q IndicatorValuesQuery, name string) (*domain.IndicatorValue, error) {
	column, err := s.resolveColumn(ctx, q)
	if err != nil {
		return nil, err
	}

	value, err := s.repos.Values.GetActiveByName(ctx, column.ID, name)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("indicator value %q in column %d", name, column.ID), "failed to load indicator value")
	}
	return value, nil
}

// DeleteIndicatorValue soft-deletes one value of a column the owner can see.
func (s *IndicatorService) DeleteIndicatorValue(ctx context.Context, q IndicatorValuesQuery, valueID int64) error {
	if _, err := s.GetIndicatorValue(ctx, q, valueID); err != nil {
		return err
	}
	if err := s.repos.Values.Deactivate(ctx, valueID); err != nil {
		return fromRepo(err, fmt.Sprintf("indicator value %d", valueID), "failed to delete indicator value")
	}

	s.logger.InfoContext(ctx, "indicator value deleted",
		slog.Int64("value_id", valueID),
		slog.Int64("column_id", q.ColumnID))
	return nil
}

// resolveColumn checks owner, report and column in that order: a missing
// entity is NotFound, a report of another owner is Forbidden.
func (s *IndicatorService) resolveColumn(ctx context.Context, q IndicatorValuesQuery) (*domain.Column, error) {
	if _, err := s.repos.Owners.GetActive(ctx, q.OwnerID); err != nil {
		return nil, fromRepo(err, fmt.Sprintf("owner %d", q.OwnerID), "failed to load owner")
	}

	report, err := s.repos.Reports.GetActive(ctx, q.ReportID)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("report %d", q.ReportID), "failed to load report")
	}
	if report.OwnerID != q.OwnerID {
		return nil, apperrors.NewForbiddenError(
			fmt.Sprintf("report %d does not belong to owner %d", q.ReportID, q.OwnerID))
	}

	column, err := s.repos.Columns.GetActive(ctx, q.ColumnID)
	if err != nil {
		return nil, fromRepo(err, fmt.Sprintf("column %d", q.ColumnID), "failed to load column")
	}

	linked, err := s.repos.Columns.BelongsToReport(ctx, report.ID, column.ID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to check column", err)
	}
	if !linked {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("column %d in report %d", q.ColumnID, q.ReportID))
	}
	return column, nil
}
