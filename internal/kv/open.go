package kv

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hanzhi-dmd/companion/internal/config"
)

// Open selects the backend named by cfg.KVBackend. db is only used by the
// gorm backend and may be nil otherwise.
func Open(ctx context.Context, cfg config.Config, db *gorm.DB) (Store, error) {
	switch cfg.KVBackend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
	case "gorm", "sql":
		if db == nil {
			return nil, fmt.Errorf("kv: gorm backend needs a database")
		}
		g := NewGorm(db)
		if err := g.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("kv: migrate: %w", err)
		}
		return g, nil
	case "s3":
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.KVBackend)
	}
}
