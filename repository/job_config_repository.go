package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"interestbatch/database"
	"interestbatch/models"
	"interestbatch/service"

	"github.com/jackc/pgx/v5"
)

const jobConfigColumns = `
	job_type, batch_size, max_retries, retry_interval_minutes, timeout_seconds,
	parallel_threads, enabled, account_types, parameters, created_at, updated_at`

// JobConfigRepository implements the JobConfigRepository interface
type JobConfigRepository struct {
	q queryable
}

// NewJobConfigRepository creates a new job config repository
func NewJobConfigRepository(db *database.DB) *JobConfigRepository {
	return &JobConfigRepository{q: db.Pool}
}

// newJobConfigRepositoryWithTx creates a new job config repository with a transaction
func newJobConfigRepositoryWithTx(tx queryable) *JobConfigRepository {
	return &JobConfigRepository{q: tx}
}

// GetByJobType retrieves the config for a job type
func (r *JobConfigRepository) GetByJobType(ctx context.Context, jobType models.JobType) (*models.JobConfig, error) {
	query := `SELECT ` + jobConfigColumns + `
		FROM interest_batch_job_configs
		WHERE job_type = $1
	`

	cfg, err := scanJobConfig(r.q.QueryRow(ctx, query, jobType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job config %s: %w", jobType, err)
	}

	return cfg, nil
}

// GetAll returns every stored config
func (r *JobConfigRepository) GetAll(ctx context.Context) ([]*models.JobConfig, error) {
	query := `SELECT ` + jobConfigColumns + `
		FROM interest_batch_job_configs
		ORDER BY job_type
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query job configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.JobConfig
	for rows.Next() {
		cfg, err := scanJobConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job configs: %w", err)
	}

	return configs, nil
}

// Create inserts a new config
func (r *JobConfigRepository) Create(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	paramsJSON, err := marshalParameters(cfg.Parameters)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO interest_batch_job_configs
		(job_type, batch_size, max_retries, retry_interval_minutes, timeout_seconds,
		 parallel_threads, enabled, account_types, parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + jobConfigColumns

	created, err := scanJobConfig(r.q.QueryRow(ctx, query,
		cfg.JobType,
		cfg.BatchSize,
		cfg.MaxRetries,
		cfg.RetryIntervalMinutes,
		cfg.TimeoutSeconds,
		cfg.ParallelThreads,
		cfg.Enabled,
		cfg.AccountTypes,
		paramsJSON,
	))
	if isUniqueViolation(err) {
		return nil, service.NewConflictError("job config %s already exists", cfg.JobType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create job config %s: %w", cfg.JobType, err)
	}

	return created, nil
}

// Update merges the non-nil patch fields into the stored config
func (r *JobConfigRepository) Update(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error) {
	var paramsJSON []byte
	if patch.Parameters != nil {
		var err error
		if paramsJSON, err = marshalParameters(patch.Parameters); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE interest_batch_job_configs
		SET batch_size = COALESCE($2, batch_size),
		    max_retries = COALESCE($3, max_retries),
		    retry_interval_minutes = COALESCE($4, retry_interval_minutes),
		    timeout_seconds = COALESCE($5, timeout_seconds),
		    parallel_threads = COALESCE($6, parallel_threads),
		    enabled = COALESCE($7, enabled),
		    account_types = COALESCE($8, account_types),
		    parameters = COALESCE($9::jsonb, parameters),
		    updated_at = NOW()
		WHERE job_type = $1
		RETURNING ` + jobConfigColumns

	updated, err := scanJobConfig(r.q.QueryRow(ctx, query,
		jobType,
		patch.BatchSize,
		patch.MaxRetries,
		patch.RetryIntervalMinutes,
		patch.TimeoutSeconds,
		patch.ParallelThreads,
		patch.Enabled,
		patch.AccountTypes,
		paramsJSON,
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update job config %s: %w", jobType, err)
	}

	return updated, nil
}

// Upsert inserts or fully replaces a config
func (r *JobConfigRepository) Upsert(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	paramsJSON, err := marshalParameters(cfg.Parameters)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO interest_batch_job_configs
		(job_type, batch_size, max_retries, retry_interval_minutes, timeout_seconds,
		 parallel_threads, enabled, account_types, parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_type) DO UPDATE SET
			batch_size = EXCLUDED.batch_size,
			max_retries = EXCLUDED.max_retries,
			retry_interval_minutes = EXCLUDED.retry_interval_minutes,
			timeout_seconds = EXCLUDED.timeout_seconds,
			parallel_threads = EXCLUDED.parallel_threads,
			enabled = EXCLUDED.enabled,
			account_types = EXCLUDED.account_types,
			parameters = EXCLUDED.parameters,
			updated_at = NOW()
		RETURNING ` + jobConfigColumns

	saved, err := scanJobConfig(r.q.QueryRow(ctx, query,
		cfg.JobType,
		cfg.BatchSize,
		cfg.MaxRetries,
		cfg.RetryIntervalMinutes,
		cfg.TimeoutSeconds,
		cfg.ParallelThreads,
		cfg.Enabled,
		cfg.AccountTypes,
		paramsJSON,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job config %s: %w", cfg.JobType, err)
	}

	return saved, nil
}

func scanJobConfig(row pgx.Row) (*models.JobConfig, error) {
	var cfg models.JobConfig
	var paramsJSON []byte

	err := row.Scan(
		&cfg.JobType,
		&cfg.BatchSize,
		&cfg.MaxRetries,
		&cfg.RetryIntervalMinutes,
		&cfg.TimeoutSeconds,
		&cfg.ParallelThreads,
		&cfg.Enabled,
		&cfg.AccountTypes,
		&paramsJSON,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &cfg.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job parameters: %w", err)
		}
	}

	return &cfg, nil
}

func marshalParameters(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	return data, nil
}
