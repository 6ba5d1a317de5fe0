package service

import (
	"context"
	"fmt"
	"strings"

	"interestbatch/models"

	log "github.com/sirupsen/logrus"
)

// GetConfigs returns every job configuration
func (e *Engine) GetConfigs(ctx context.Context) ([]*models.JobConfig, error) {
	var configs []*models.JobConfig
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		configs, err = uow.JobConfigRepository().GetAll(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job configs: %w", err)
	}
	if configs == nil {
		configs = []*models.JobConfig{}
	}

	return configs, nil
}

// GetConfig returns the configuration of one job type
func (e *Engine) GetConfig(ctx context.Context, jobType models.JobType) (*models.JobConfig, error) {
	var cfg *models.JobConfig
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		cfg, err = uow.JobConfigRepository().GetByJobType(ctx, jobType)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("job config %s: %w", jobType, ErrNotFound)
	}

	return cfg, nil
}

// CreateConfig stores a new job configuration
func (e *Engine) CreateConfig(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	if err := ValidateJobConfig(cfg); err != nil {
		return nil, err
	}

	var created *models.JobConfig
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		existing, err := uow.JobConfigRepository().GetByJobType(ctx, cfg.JobType)
		if err != nil {
			return err
		}
		if existing != nil {
			return NewConflictError("job config %s already exists", cfg.JobType)
		}

		created, err = uow.JobConfigRepository().Create(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job config: %w", err)
	}

	log.WithField("jobType", created.JobType).Info("Job config created")
	return created, nil
}

// UpdateConfig applies a partial update; fields absent from the patch keep their value
func (e *Engine) UpdateConfig(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error) {
	var updated *models.JobConfig
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		repo := uow.JobConfigRepository()

		existing, err := repo.GetByJobType(ctx, jobType)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("job config %s: %w", jobType, ErrNotFound)
		}
		if patch == nil || patch.IsEmpty() {
			updated = existing
			return nil
		}

		if err := ValidateJobConfig(patch.Apply(existing)); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, jobType, patch)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("job config %s: %w", jobType, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update job config: %w", err)
	}

	log.WithField("jobType", jobType).Info("Job config updated")
	return updated, nil
}

// ImportConfigs validates every config and then creates or replaces them together
func (e *Engine) ImportConfigs(ctx context.Context, configs []*models.JobConfig) ([]*models.JobConfig, error) {
	for _, cfg := range configs {
		if err := ValidateJobConfig(cfg); err != nil {
			return nil, err
		}
	}

	saved := make([]*models.JobConfig, 0, len(configs))
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		for _, cfg := range configs {
			result, err := uow.JobConfigRepository().Upsert(ctx, cfg)
			if err != nil {
				return err
			}
			saved = append(saved, result)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import job configs: %w", err)
	}

	log.WithField("count", len(saved)).Info("Job configs imported")
	return saved, nil
}

// ValidateJobConfig checks the field constraints of a job configuration
func ValidateJobConfig(cfg *models.JobConfig) error {
	if cfg == nil {
		return NewValidationError("", "job config is required")
	}
	if !cfg.JobType.IsSupported() {
		return NewValidationError("jobType", "unsupported job type %q", cfg.JobType)
	}
	if cfg.BatchSize <= 0 {
		return NewValidationError("batchSize", "must be greater than 0")
	}
	if cfg.MaxRetries < 0 {
		return NewValidationError("maxRetries", "must not be negative")
	}
	if cfg.RetryIntervalMinutes < 0 {
		return NewValidationError("retryIntervalMinutes", "must not be negative")
	}
	if cfg.TimeoutSeconds < 0 {
		return NewValidationError("timeoutSeconds", "must not be negative")
	}
	if cfg.ParallelThreads < 1 {
		return NewValidationError("parallelThreads", "must be at least 1")
	}
	if len(cfg.AccountTypes) == 0 {
		return NewValidationError("accountTypes", "must not be empty")
	}
	for _, accountType := range cfg.AccountTypes {
		if strings.TrimSpace(accountType) == "" {
			return NewValidationError("accountTypes", "must not contain blank entries")
		}
	}
	return nil
}
