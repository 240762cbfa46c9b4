package config

import (
	"context"
	"fmt"

	"github.com/marmos91/formflow/internal/logger"
	"github.com/marmos91/formflow/pkg/store"
	badgerstore "github.com/marmos91/formflow/pkg/store/badger"
	memorystore "github.com/marmos91/formflow/pkg/store/memory"
	s3store "github.com/marmos91/formflow/pkg/store/s3"
)

// BuildStore constructs the configured storage backend.
//
// The metrics parameter may be nil to disable store instrumentation.
// The caller owns the returned store and must Close it.
func BuildStore(ctx context.Context, cfg StoreConfig, metrics store.Metrics) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		logger.Debug("using in-memory store")
		return memorystore.New(), nil

	case "badger":
		logger.Debug("using badger store", logger.KeyStore, cfg.Badger.Path)
		st, err := badgerstore.New(badgerstore.Config{
			Path:    cfg.Badger.Path,
			Metrics: metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return st, nil

	case "s3":
		logger.Debug("using s3 store", logger.KeyStore, cfg.S3.Bucket)
		client, err := s3store.NewClient(ctx,
			cfg.S3.Endpoint,
			cfg.S3.Region,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.ForcePathStyle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build S3 client: %w", err)
		}
		st, err := s3store.New(ctx, s3store.Config{
			Client:    client,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
			PartSize:  cfg.S3.PartSize.Int(),
			Metrics:   metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open S3 store: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
