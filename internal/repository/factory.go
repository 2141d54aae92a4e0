package repository

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/config"
	"github.com/navikt/zagenda/internal/repository/memory"
	"github.com/navikt/zagenda/internal/repository/redis"
)

// NewRepository returns a Redis repository when enabled, otherwise an in-memory one
func NewRepository(cfg config.RedisConfig, logger *zap.Logger) (Repository, error) {
	if !cfg.Enabled {
		logger.Info("using in-memory snapshot repository")
		return memory.NewRepository(), nil
	}

	repo, err := redis.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis repository: %w", err)
	}
	logger.Info("using redis snapshot repository", zap.String("key_prefix", cfg.KeyPrefix))
	return repo, nil
}
