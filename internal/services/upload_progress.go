package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"datafit/internal/infrastructure"
	"datafit/pkg/contracts/events"
)

// uploadProgress tracks the stage of one upload. Entering a stage records how
// long the previous one took and publishes the transition to the owner.
type uploadProgress struct {
	mu        sync.Mutex
	uploadID  string
	ownerID   int64
	filename  string
	stage     events.Stage
	enteredAt time.Time

	publisher EventPublisher
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
}

func newUploadProgress(ctx context.Context, uploadID string, req UploadRequest, publisher EventPublisher,
	metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *uploadProgress {
	p := &uploadProgress{
		uploadID:  uploadID,
		ownerID:   req.OwnerID,
		filename:  req.Filename,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	p.enter(ctx, events.StageUploading, events.ReportStageEvent{})
	return p
}

// Stage returns the current stage.
func (p *uploadProgress) Stage() events.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

func (p *uploadProgress) enter(ctx context.Context, stage events.Stage, detail events.ReportStageEvent) {
	p.mu.Lock()
	now := time.Now()
	prev, since := p.stage, p.enteredAt
	p.stage, p.enteredAt = stage, now
	p.mu.Unlock()

	if prev != "" {
		p.metrics.RecordStage(ctx, string(prev), now.Sub(since))
	}

	detail.UploadID = p.uploadID
	detail.OwnerID = p.ownerID
	detail.Filename = p.filename
	detail.Stage = stage
	p.publisher.PublishReportStage(p.ownerID, detail)

	p.logger.DebugContext(ctx, "upload stage",
		slog.String("stage", string(stage)),
		slog.String("previous", string(prev)))
}

// fail moves the upload to rejected or failed depending on how far it got
// and returns the terminal stage.
func (p *uploadProgress) fail(ctx context.Context, err error) events.Stage {
	terminal := events.StageFailed
	switch p.Stage() {
	case events.StageUploading, events.StageValidating:
		terminal = events.StageRejected
	}
	p.enter(ctx, terminal, events.ReportStageEvent{Error: err.Error()})
	return terminal
}

func (p *uploadProgress) done(ctx context.Context, reportID int64, columns int) {
	p.enter(ctx, events.StagePersisted, events.ReportStageEvent{ReportID: reportID, Columns: columns})
}
