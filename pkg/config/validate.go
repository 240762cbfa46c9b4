package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration using struct-level validate tags plus
// cross-field rules that tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		return err
	}

	// Backend-specific requirements
	switch cfg.Store.Backend {
	case "badger":
		if cfg.Store.Badger.Path == "" {
			return fmt.Errorf("store.badger.path is required for the badger backend")
		}
	case "s3":
		if cfg.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket is required for the s3 backend")
		}
		if cfg.Store.S3.PartSize > 0 && cfg.Store.S3.PartSize < 5*1024*1024 {
			return fmt.Errorf("store.s3.part_size must be at least 5MB, got %s", cfg.Store.S3.PartSize)
		}
	}

	return nil
}
