package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/librarium/librarium/internal/backup"
	jobmetrics "github.com/librarium/librarium/internal/jobs"
)

// BackupJob runs scheduled backups.
type BackupJob struct {
	service *backup.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewBackupJob constructs the job. Metrics may be nil.
func NewBackupJob(service *backup.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupJob {
	return &BackupJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskBackupRun tasks.
func (j *BackupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BackupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track("backup_run")
	b, err := j.service.Create(ctx, backup.CreateInput{
		IncludeDB:    payload.IncludeDB,
		IncludeMedia: payload.IncludeMedia,
	})
	if err != nil {
		j.logger.Error("scheduled backup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("scheduled backup finished", slog.String("name", b.Name))
	return tracker.End(nil)
}
