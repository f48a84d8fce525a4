package statestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/labelsync/internal/domain/integration"
)

// ErrUnsupportedBackend is returned for DSN schemes with no backend
var ErrUnsupportedBackend = errors.New("statestore: unsupported backend")

// Config selects and configures the state backend
type Config struct {
	// DSN picks the backend by scheme: "" or file:// (flat files), memory://,
	// sqlite:<path>, postgres://..., redis://...
	DSN string
	// LedgerDir and PendingDir root the flat-file backend
	LedgerDir  string
	PendingDir string
	// KeyPrefix namespaces Redis keys
	KeyPrefix string
	Database  DatabaseConfig
}

// Backend bundles the ledger and pending queue built from one DSN
type Backend struct {
	Kind    string
	Ledger  integration.Ledger
	Pending integration.PendingQueue
	closer  func() error
}

// Close releases the backend's connections
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open builds the backend named by cfg.DSN
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := strings.TrimSpace(cfg.DSN)
	scheme := ""
	if dsn != "" {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid state dsn: %w", err)
		}
		scheme = strings.ToLower(parsed.Scheme)
	}

	switch scheme {
	case "", "file":
		ledgerDir, pendingDir := cfg.LedgerDir, cfg.PendingDir
		if ledgerDir == "" {
			ledgerDir = "historical_files"
		}
		if pendingDir == "" {
			pendingDir = "current_files"
		}
		logger.Info("Using file state backend",
			zap.String("ledger_dir", ledgerDir),
			zap.String("pending_dir", pendingDir),
		)
		return &Backend{Kind: "file", Ledger: NewFileLedger(ledgerDir), Pending: NewFilePendingQueue(pendingDir)}, nil

	case "memory", "mem":
		logger.Warn("Using in-memory state backend; ledger and pending queue are lost on restart")
		return &Backend{Kind: "memory", Ledger: NewMemoryLedger(), Pending: NewMemoryPendingQueue()}, nil

	case "sqlite", "postgres", "postgresql":
		db, err := OpenDatabase(dsn, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQL state backend", zap.String("dialect", db.DB.Dialector.Name()))
		return &Backend{
			Kind:    "sql",
			Ledger:  NewGormLedger(db.DB),
			Pending: NewGormPendingQueue(db.DB),
			closer:  db.Close,
		}, nil

	case "redis", "rediss":
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid redis dsn: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("Using Redis state backend", zap.String("addr", opts.Addr))
		return &Backend{
			Kind:    "redis",
			Ledger:  NewRedisLedger(client, cfg.KeyPrefix),
			Pending: NewRedisPendingQueue(client, cfg.KeyPrefix),
			closer:  client.Close,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, scheme)
}
