package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"interestbatch/database"
	"interestbatch/models"
	"interestbatch/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const executionColumns = `
	id, job_type, started_at, completed_at, status, total_accounts, processed_accounts,
	successful_accounts, failed_accounts, execution_time_ms, batch_parameters, error_details`

// elapsedMsExpr computes execution_time_ms from the completion time bound to $2
const elapsedMsExpr = `(EXTRACT(EPOCH FROM ($2::timestamptz - started_at)) * 1000)::BIGINT`

// ExecutionRepository implements the ExecutionRepository interface
type ExecutionRepository struct {
	q queryable
}

// NewExecutionRepository creates a new execution repository
func NewExecutionRepository(db *database.DB) *ExecutionRepository {
	return &ExecutionRepository{q: db.Pool}
}

// newExecutionRepositoryWithTx creates a new execution repository with a transaction
func newExecutionRepositoryWithTx(tx queryable) *ExecutionRepository {
	return &ExecutionRepository{q: tx}
}

// Create inserts a new execution
func (r *ExecutionRepository) Create(ctx context.Context, exec *models.Execution) error {
	paramsJSON, err := marshalParameters(exec.BatchParameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO interest_batch_executions
		(id, job_type, started_at, status, total_accounts, processed_accounts,
		 successful_accounts, failed_accounts, batch_parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.q.Exec(ctx, query,
		exec.ID,
		exec.JobType,
		exec.StartedAt,
		exec.Status,
		exec.TotalAccounts,
		exec.ProcessedAccounts,
		exec.SuccessfulAccounts,
		exec.FailedAccounts,
		paramsJSON,
	)
	if isUniqueViolation(err) {
		return service.NewConflictError("an execution of %s is already running", exec.JobType)
	}
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// GetByID retrieves an execution by its ID
func (r *ExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM interest_batch_executions
		WHERE id = $1
	`

	exec, err := scanExecution(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}

	return exec, nil
}

// GetRunningByJobType returns the RUNNING execution for a job type
func (r *ExecutionRepository) GetRunningByJobType(ctx context.Context, jobType models.JobType) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM interest_batch_executions
		WHERE job_type = $1 AND status = 'RUNNING'
	`

	exec, err := scanExecution(r.q.QueryRow(ctx, query, jobType))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get running execution for %s: %w", jobType, err)
	}

	return exec, nil
}

// GetRunning returns all RUNNING executions
func (r *ExecutionRepository) GetRunning(ctx context.Context) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM interest_batch_executions
		WHERE status = 'RUNNING'
		ORDER BY started_at DESC
	`

	return r.queryExecutions(ctx, query)
}

// GetLatestCompleted returns the most recently completed execution
func (r *ExecutionRepository) GetLatestCompleted(ctx context.Context) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM interest_batch_executions
		WHERE status = 'COMPLETED'
		ORDER BY completed_at DESC
		LIMIT 1
	`

	exec, err := scanExecution(r.q.QueryRow(ctx, query))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest completed execution: %w", err)
	}

	return exec, nil
}

// List returns one page of executions matching the filter
func (r *ExecutionRepository) List(ctx context.Context, filter models.ExecutionFilter, page models.Page) ([]*models.Execution, int, error) {
	var conditions []string
	var args []any

	if filter.JobType != nil {
		args = append(args, *filter.JobType)
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("started_at <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM interest_batch_executions ` + where
	if err := r.q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count executions: %w", err)
	}

	args = append(args, page.PageSize, page.Offset())
	query := fmt.Sprintf(`SELECT %s
		FROM interest_batch_executions
		%s
		ORDER BY started_at DESC
		LIMIT $%d OFFSET $%d
	`, executionColumns, where, len(args)-1, len(args))

	executions, err := r.queryExecutions(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return executions, total, nil
}

// SetTotalAccounts records the selection size
func (r *ExecutionRepository) SetTotalAccounts(ctx context.Context, id uuid.UUID, total int) error {
	query := `
		UPDATE interest_batch_executions
		SET total_accounts = $2
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("failed to set total accounts for execution %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("execution %s not found", id)
	}

	return nil
}

// IncrementCounters bumps processed and one outcome counter in a single statement,
// only while the execution is RUNNING
func (r *ExecutionRepository) IncrementCounters(ctx context.Context, id uuid.UUID, success bool) (bool, error) {
	successful, failed := 0, 1
	if success {
		successful, failed = 1, 0
	}

	query := `
		UPDATE interest_batch_executions
		SET processed_accounts = processed_accounts + 1,
		    successful_accounts = successful_accounts + $2,
		    failed_accounts = failed_accounts + $3
		WHERE id = $1 AND status = 'RUNNING'
	`

	result, err := r.q.Exec(ctx, query, id, successful, failed)
	if err != nil {
		return false, fmt.Errorf("failed to increment counters for execution %s: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// Complete moves a RUNNING execution to COMPLETED
func (r *ExecutionRepository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `
		UPDATE interest_batch_executions
		SET status = 'COMPLETED',
		    completed_at = $2,
		    execution_time_ms = ` + elapsedMsExpr + `
		WHERE id = $1 AND status = 'RUNNING'
	`

	result, err := r.q.Exec(ctx, query, id, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to complete execution %s: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// Fail moves a RUNNING execution to FAILED
func (r *ExecutionRepository) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return false, fmt.Errorf("failed to marshal error details: %w", err)
	}

	query := `
		UPDATE interest_batch_executions
		SET status = 'FAILED',
		    completed_at = $2,
		    execution_time_ms = ` + elapsedMsExpr + `,
		    error_details = $3
		WHERE id = $1 AND status = 'RUNNING'
	`

	result, err := r.q.Exec(ctx, query, id, completedAt, detailsJSON)
	if err != nil {
		return false, fmt.Errorf("failed to mark execution %s failed: %w", id, err)
	}

	return result.RowsAffected() == 1, nil
}

// Cancel moves a RUNNING execution to CANCELLED and returns the updated row
func (r *ExecutionRepository) Cancel(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (*models.Execution, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error details: %w", err)
	}

	query := `
		UPDATE interest_batch_executions
		SET status = 'CANCELLED',
		    completed_at = $2,
		    execution_time_ms = ` + elapsedMsExpr + `,
		    error_details = $3
		WHERE id = $1 AND status = 'RUNNING'
		RETURNING ` + executionColumns

	exec, err := scanExecution(r.q.QueryRow(ctx, query, id, completedAt, detailsJSON))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel execution %s: %w", id, err)
	}

	return exec, nil
}

// FailOrphaned marks every RUNNING execution FAILED
func (r *ExecutionRepository) FailOrphaned(ctx context.Context, completedAt time.Time, details *models.ErrorDetails) (int64, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal error details: %w", err)
	}

	query := `
		UPDATE interest_batch_executions
		SET status = 'FAILED',
		    completed_at = $1,
		    execution_time_ms = (EXTRACT(EPOCH FROM ($1::timestamptz - started_at)) * 1000)::BIGINT,
		    error_details = $2
		WHERE status = 'RUNNING'
	`

	result, err := r.q.Exec(ctx, query, completedAt, detailsJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to fail orphaned executions: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.Execution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row pgx.Row) (*models.Execution, error) {
	var exec models.Execution
	var paramsJSON, detailsJSON []byte

	err := row.Scan(
		&exec.ID,
		&exec.JobType,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.Status,
		&exec.TotalAccounts,
		&exec.ProcessedAccounts,
		&exec.SuccessfulAccounts,
		&exec.FailedAccounts,
		&exec.ExecutionTimeMs,
		&paramsJSON,
		&detailsJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &exec.BatchParameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch parameters: %w", err)
		}
	}
	if len(detailsJSON) > 0 {
		var details models.ErrorDetails
		if err := json.Unmarshal(detailsJSON, &details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error details: %w", err)
		}
		exec.ErrorDetails = &details
	}

	return &exec, nil
}
