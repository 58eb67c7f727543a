package storage

import (
	"fmt"

	"github.com/impresso/impresso-essentials-go/internal/config"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

// NewRetrier builds the retrier described by the retry configuration
func NewRetrier(cfg config.RetryConfig) *utils.Retrier {
	return utils.NewRetrier(utils.RetrierOptions{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
	})
}

// NewStore creates the object store selected by the configuration
func NewStore(cfg *config.Config, logger *utils.Logger) (domain.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendS3, "":
		return NewS3Store(S3Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			Secure:    cfg.Storage.Secure,
			Timeout:   cfg.Concurrency.Timeout,
			Retrier:   NewRetrier(cfg.Retry),
			Logger:    logger,
		})
	default:
		return nil, domain.NewConfigurationError("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend))
	}
}
