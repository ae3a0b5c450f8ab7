package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/shopdesk/backoffice/internal/jobs"
	"github.com/shopdesk/backoffice/internal/platform/storage"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeOrphans deletes uploaded objects that nothing references.
	TaskPurgeOrphans = "storage:purge_orphans"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

	// orphanGrace delays the purge so a client retry reading the upload
	// response is not racing the delete.
	orphanGrace = 5 * time.Minute
)

// PurgeOrphansPayload names the objects to delete.
type PurgeOrphansPayload struct {
	Bucket string   `json:"bucket"`
	Keys   []string `json:"keys"`
}

// NewPurgeOrphansTask builds a purge task.
func NewPurgeOrphansTask(bucket string, keys []string) (*asynq.Task, error) {
	if bucket == "" || len(keys) == 0 {
		return nil, fmt.Errorf("jobs: purge task needs a bucket and keys")
	}
	body, err := json.Marshal(PurgeOrphansPayload{Bucket: bucket, Keys: keys})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeOrphans, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// PurgeOrphans processes TaskPurgeOrphans.
type PurgeOrphans struct {
	store   storage.Store
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewPurgeOrphans constructs the handler.
func NewPurgeOrphans(store storage.Store, metrics *jobmetrics.Metrics, logger *slog.Logger) *PurgeOrphans {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeOrphans{store: store, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (p *PurgeOrphans) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PurgeOrphansPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode purge payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Bucket == "" || len(payload.Keys) == 0 {
		return nil
	}
	tracker := p.metrics.Track(TaskPurgeOrphans)
	err := p.store.Delete(ctx, payload.Bucket, payload.Keys...)
	if err == nil {
		p.metrics.AddPurged(payload.Bucket, len(payload.Keys))
		p.logger.InfoContext(ctx, "purged orphaned objects", slog.String("bucket", payload.Bucket), slog.Int("count", len(payload.Keys)))
	}
	return tracker.End(err)
}

// Cleaner removes stale idempotency keys.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanup processes TaskIdempotencyCleanup.
type IdempotencyCleanup struct {
	cleaner   Cleaner
	retention time.Duration
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewIdempotencyCleanup constructs the handler.
func NewIdempotencyCleanup(cleaner Cleaner, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *IdempotencyCleanup {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanup{cleaner: cleaner, retention: retention, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (c *IdempotencyCleanup) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	tracker := c.metrics.Track(TaskIdempotencyCleanup)
	removed, err := c.cleaner.Cleanup(ctx, c.retention)
	if err == nil && removed > 0 {
		c.logger.InfoContext(ctx, "removed idempotency keys", slog.Int64("count", removed))
	}
	return tracker.End(err)
}
