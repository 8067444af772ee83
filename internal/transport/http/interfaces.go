package http

import (
	"context"
	"io"

	"datafit/internal/services"
	"datafit/pkg/contracts"
	"datafit/pkg/contracts/domain"
)

// ReportService is what the report handler needs from services.ReportService.
type ReportService interface {
	CreateReport(ctx context.Context, req services.UploadRequest) (int64, error)
	ListReports(ctx context.Context, ownerID int64) ([]domain.Report, error)
	ListOwnerReports(ctx context.Context, admin *domain.Owner, ownerID int64) ([]domain.Report, error)
	GetReport(ctx context.Context, reportID, ownerID int64) (*domain.Report, error)
	OpenReportFile(ctx context.Context, reportID, ownerID int64) (io.ReadCloser, string, error)
	DeleteReport(ctx context.Context, reportID, ownerID int64) error
	DeleteColumn(ctx context.Context, reportID, columnID, ownerID int64) error
}

// IndicatorService is what the indicator routes need from services.IndicatorService.
type IndicatorService interface {
	Catalog(ctx context.Context) ([]domain.ReportIndicator, error)
	GetIndicatorValues(ctx context.Context, q services.IndicatorValuesQuery) ([]domain.IndicatorReading, error)
	GetIndicatorValue(ctx context.Context, q services.IndicatorValuesQuery, valueID int64) (*domain.IndicatorValue, error)
	GetIndicatorValueByName(ctx context.Context, q services.IndicatorValuesQuery, name string) (*domain.IndicatorValue, error)
	DeleteIndicatorValue(ctx context.Context, q services.IndicatorValuesQuery, valueID int64) error
}

// OwnerService resolves the calling owner.
type OwnerService interface {
	GetOwner(ctx context.Context, id int64) (*domain.Owner, error)
}

// HealthService reports process and dependency health.
type HealthService interface {
	LivenessCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	Version() contracts.VersionInfo
}
