package app

import (
	"context"
	"log/slog"

	"github.com/shopdesk/backoffice/internal/platform/storage"
)

// NewStore returns the object store selected by STORAGE_DRIVER.
func NewStore(ctx context.Context, cfg *Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("using in-memory object storage; uploads are lost on restart")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
	})
}
