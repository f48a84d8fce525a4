package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// Config selects the archive backend
type Config struct {
	Backend string // local, s3, none
	Dir     string
	S3      S3Config
}

// New builds the configured archive
func New(ctx context.Context, cfg Config, logger *zap.Logger) (integration.Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = "current_files"
		}
		return NewLocalArchive(dir), nil
	case "s3":
		a, err := NewS3Archive(ctx, cfg.S3, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := a.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return a, nil
	case "none":
		return Discard{}, nil
	}
	return nil, fmt.Errorf("archive: unsupported backend %q", cfg.Backend)
}
