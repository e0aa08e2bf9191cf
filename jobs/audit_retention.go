package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborline/gatehouse/internal/audit"
	jobmetrics "github.com/harborline/gatehouse/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditRetentionJob deletes audit entries older than the retention window.
type AuditRetentionJob struct {
	Repo      audit.Repository
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAuditRetentionJob wires dependencies for the retention handler. The
// retention duration is the default cutoff when a task carries no override.
func NewAuditRetentionJob(repo audit.Repository, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Repo:      repo,
		Retention: retention,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	retention := j.Retention
	if payload.OlderThanHours > 0 {
		retention = time.Duration(payload.OlderThanHours) * time.Hour
	}
	if retention <= 0 {
		// Never interpret a zero window as "delete everything".
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuditRetention)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-retention)
	logger := j.logger().With(slog.Time("cutoff", cutoff))
	logger.Info("starting audit retention sweep")

	purged, err := j.Repo.Purge(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("purge audit entries", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPurged(purged)

	logger.Info("completed audit retention sweep", slog.Int64("purged", purged))
	return resultErr
}

func (j *AuditRetentionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
