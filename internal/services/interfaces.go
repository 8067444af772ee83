package services

import (
	"context"
	"io"

	"datafit/internal/repository"
	"datafit/pkg/contracts/domain"
	"datafit/pkg/contracts/events"
)

// OwnerRepository resolves owner accounts.
type OwnerRepository interface {
	Create(ctx context.Context, owner *domain.Owner) (int64, error)
	GetActive(ctx context.Context, id int64) (*domain.Owner, error)
}

// IndicatorCatalog reads the report indicator catalog.
type IndicatorCatalog interface {
	List(ctx context.Context) ([]domain.ReportIndicator, error)
	Get(ctx context.Context, id int64) (*domain.ReportIndicator, error)
}

// ColumnRepository stores validated columns.
type ColumnRepository interface {
	Create(ctx context.Context, column *domain.Column) (int64, error)
	GetActive(ctx context.Context, id int64) (*domain.Column, error)
	ListActiveByReport(ctx context.Context, reportID int64) ([]domain.Column, error)
	BelongsToReport(ctx context.Context, reportID, columnID int64) (bool, error)
	Deactivate(ctx context.Context, id int64) error
}

// IndicatorValueRepository stores computed indicator values.
type IndicatorValueRepository interface {
	Create(ctx context.Context, columnID, indicatorID int64, value domain.OptionalFloat) (int64, error)
	ListActiveByColumn(ctx context.Context, columnID int64) ([]domain.IndicatorValue, error)
	GetActive(ctx context.Context, id int64) (*domain.IndicatorValue, error)
	GetActiveByName(ctx context.Context, columnID int64, name string) (*domain.IndicatorValue, error)
	Deactivate(ctx context.Context, id int64) error
}

// ReportRepository stores reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) (int64, error)
	GetActive(ctx context.Context, id int64) (*domain.Report, error)
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]domain.Report, error)
	Deactivate(ctx context.Context, id int64) error
}

// Repositories groups the persistence dependencies of the services.
type Repositories struct {
	Owners     OwnerRepository
	Indicators IndicatorCatalog
	Columns    ColumnRepository
	Values     IndicatorValueRepository
	Reports    ReportRepository
}

// RepositoriesFromStore exposes a repository.Store through the service interfaces.
func RepositoriesFromStore(s *repository.Store) Repositories {
	return Repositories{
		Owners:     s.Owners,
		Indicators: s.Indicators,
		Columns:    s.Columns,
		Values:     s.Values,
		Reports:    s.Reports,
	}
}

// FileStore keeps uploaded files. Implemented by files.LocalStore and files.S3Store.
// Save never replaces an existing file.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	LocalPath(ctx context.Context, key string) (string, error)
}

// EventPublisher delivers upload stage events to an owner's subscribers.
type EventPublisher interface {
	PublishReportStage(ownerID int64, event events.ReportStageEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishReportStage(int64, events.ReportStageEvent) {}
