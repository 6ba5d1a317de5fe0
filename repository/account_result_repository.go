package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"interestbatch/database"
	"interestbatch/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountResultColumns = `
	id, execution_id, account_id, account_number, account_type, interest_calculated,
	interest_posted, tax_amount, processing_time_ms, status, error_message, error_details, created_at`

// AccountResultRepository implements the AccountResultRepository interface
type AccountResultRepository struct {
	q queryable
}

// NewAccountResultRepository creates a new account result repository
func NewAccountResultRepository(db *database.DB) *AccountResultRepository {
	return &AccountResultRepository{q: db.Pool}
}

// newAccountResultRepositoryWithTx creates a new account result repository with a transaction
func newAccountResultRepositoryWithTx(tx queryable) *AccountResultRepository {
	return &AccountResultRepository{q: tx}
}

// CreatePlaceholder inserts a SKIPPED row ahead of the calculation call
func (r *AccountResultRepository) CreatePlaceholder(ctx context.Context, result *models.AccountResult) error {
	query := `
		INSERT INTO interest_batch_account_results
		(execution_id, account_id, account_number, account_type, status)
		VALUES ($1, $2, $3, $4, 'SKIPPED')
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		result.ExecutionID,
		result.AccountID,
		result.AccountNumber,
		result.AccountType,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create placeholder result for account %s: %w", result.AccountID, err)
	}

	result.Status = models.AccountResultStatusSkipped
	return nil
}

// Finalize writes the outcome of a processed account
func (r *AccountResultRepository) Finalize(ctx context.Context, result *models.AccountResult) error {
	var detailsJSON []byte
	if result.ErrorDetails != nil {
		var err error
		if detailsJSON, err = json.Marshal(result.ErrorDetails); err != nil {
			return fmt.Errorf("failed to marshal result error details: %w", err)
		}
	}

	query := `
		UPDATE interest_batch_account_results
		SET interest_calculated = $2,
		    interest_posted = $3,
		    tax_amount = $4,
		    processing_time_ms = $5,
		    status = $6,
		    error_message = $7,
		    error_details = $8
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		result.ID,
		result.InterestCalculated,
		result.InterestPosted,
		result.TaxAmount,
		result.ProcessingTimeMs,
		result.Status,
		result.ErrorMessage,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize result %d: %w", result.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account result %d not found", result.ID)
	}

	return nil
}

// SkipUnresolved marks every unresolved row of an execution as SKIPPED
func (r *AccountResultRepository) SkipUnresolved(ctx context.Context, executionID uuid.UUID, message string) (int64, error) {
	query := `
		UPDATE interest_batch_account_results
		SET status = 'SKIPPED',
		    error_message = $2
		WHERE execution_id = $1
		  AND status NOT IN ('SUCCESS', 'FAILED')
	`

	tag, err := r.q.Exec(ctx, query, executionID, message)
	if err != nil {
		return 0, fmt.Errorf("failed to skip unresolved results for execution %s: %w", executionID, err)
	}

	return tag.RowsAffected(), nil
}

// List returns one page of results for an execution
func (r *AccountResultRepository) List(ctx context.Context, filter models.AccountResultFilter, page models.Page) ([]*models.AccountResult, int, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM interest_batch_account_results
		WHERE execution_id = $1
		  AND ($2::text IS NULL OR status = $2)
	`
	if err := r.q.QueryRow(ctx, countQuery, filter.ExecutionID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count account results: %w", err)
	}

	query := `SELECT ` + accountResultColumns + `
		FROM interest_batch_account_results
		WHERE execution_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.q.Query(ctx, query, filter.ExecutionID, status, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query account results: %w", err)
	}
	defer rows.Close()

	results := make([]*models.AccountResult, 0)
	for rows.Next() {
		result, err := scanAccountResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan account result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating account results: %w", err)
	}

	return results, total, nil
}

// GetDailyStats aggregates results created at or after since
func (r *AccountResultRepository) GetDailyStats(ctx context.Context, since time.Time) (*models.DailyResultStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('SUCCESS', 'FAILED')),
			COALESCE(SUM(interest_posted) FILTER (WHERE status = 'SUCCESS'), 0)::BIGINT,
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COALESCE(AVG(processing_time_ms) FILTER (WHERE status IN ('SUCCESS', 'FAILED')), 0)::float8
		FROM interest_batch_account_results
		WHERE created_at >= $1
	`

	var stats models.DailyResultStats
	err := r.q.QueryRow(ctx, query, since).Scan(
		&stats.AccountsProcessed,
		&stats.InterestPosted,
		&stats.FailedAccounts,
		&stats.AvgProcessingTimeMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily result stats: %w", err)
	}

	return &stats, nil
}

func scanAccountResult(row pgx.Row) (*models.AccountResult, error) {
	var result models.AccountResult
	var detailsJSON []byte

	err := row.Scan(
		&result.ID,
		&result.ExecutionID,
		&result.AccountID,
		&result.AccountNumber,
		&result.AccountType,
		&result.InterestCalculated,
		&result.InterestPosted,
		&result.TaxAmount,
		&result.ProcessingTimeMs,
		&result.Status,
		&result.ErrorMessage,
		&detailsJSON,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &result.ErrorDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result error details: %w", err)
		}
	}

	return &result, nil
}
