package service

import (
	"context"
	"time"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
)

// JobConfigRepository defines the interface for job configuration data access
type JobConfigRepository interface {
	// GetByJobType retrieves the config for a job type, nil if absent
	GetByJobType(ctx context.Context, jobType models.JobType) (*models.JobConfig, error)

	// GetAll returns every stored config ordered by job type
	GetAll(ctx context.Context) ([]*models.JobConfig, error)

	// Create inserts a new config; a duplicate job type yields a *ConflictError
	Create(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error)

	// Update merges the non-nil patch fields into the stored config, nil if absent
	Update(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error)

	// Upsert inserts or fully replaces a config
	Upsert(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error)
}

// ExecutionRepository defines the interface for execution data access
type ExecutionRepository interface {
	// Create inserts a RUNNING execution; losing the one-running-per-job race yields a *ConflictError
	Create(ctx context.Context, exec *models.Execution) error

	// GetByID retrieves an execution, nil if absent
	GetByID(ctx context.Context, id uuid.UUID) (*models.Execution, error)

	// GetRunningByJobType returns the RUNNING execution for a job type, nil if none
	GetRunningByJobType(ctx context.Context, jobType models.JobType) (*models.Execution, error)

	// GetRunning returns all RUNNING executions
	GetRunning(ctx context.Context) ([]*models.Execution, error)

	// GetLatestCompleted returns the most recently completed execution, nil if none
	GetLatestCompleted(ctx context.Context) (*models.Execution, error)

	// List returns one page of executions matching the filter plus the total match count
	List(ctx context.Context, filter models.ExecutionFilter, page models.Page) ([]*models.Execution, int, error)

	// SetTotalAccounts records the selection size
	SetTotalAccounts(ctx context.Context, id uuid.UUID, total int) error

	// IncrementCounters bumps processed and one outcome counter while the execution is RUNNING.
	// Returns false when the execution is no longer RUNNING.
	IncrementCounters(ctx context.Context, id uuid.UUID, success bool) (bool, error)

	// Complete moves a RUNNING execution to COMPLETED; false if it was not RUNNING
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)

	// Fail moves a RUNNING execution to FAILED; false if it was not RUNNING
	Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (bool, error)

	// Cancel moves a RUNNING execution to CANCELLED and returns it, nil if it was not RUNNING
	Cancel(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (*models.Execution, error)

	// FailOrphaned marks every RUNNING execution FAILED and returns how many changed
	FailOrphaned(ctx context.Context, completedAt time.Time, details *models.ErrorDetails) (int64, error)
}

// AccountResultRepository defines the interface for per-account result data access
type AccountResultRepository interface {
	// CreatePlaceholder inserts a SKIPPED row and fills in its ID and CreatedAt
	CreatePlaceholder(ctx context.Context, result *models.AccountResult) error

	// Finalize writes the outcome fields of an existing row
	Finalize(ctx context.Context, result *models.AccountResult) error

	// SkipUnresolved marks every row of an execution that is not SUCCESS or FAILED as SKIPPED
	SkipUnresolved(ctx context.Context, executionID uuid.UUID, message string) (int64, error)

	// List returns one page of results for an execution plus the total match count
	List(ctx context.Context, filter models.AccountResultFilter, page models.Page) ([]*models.AccountResult, int, error)

	// GetDailyStats aggregates results created at or after since
	GetDailyStats(ctx context.Context, since time.Time) (*models.DailyResultStats, error)
}

// AccountStatusRepository defines the interface for the account scheduling ledger
type AccountStatusRepository interface {
	// GetByAccountID retrieves the ledger row for an account, nil if absent
	GetByAccountID(ctx context.Context, accountID string) (*models.AccountStatus, error)

	// RecordSuccess upserts the row, advancing dates and clearing the error count
	RecordSuccess(ctx context.Context, success *models.AccountStatusSuccess) error

	// RecordFailure upserts the row, incrementing the error count
	RecordFailure(ctx context.Context, failure *models.AccountStatusFailure) error
}

// AccountRepository defines read access to the deposit accounts
type AccountRepository interface {
	// GetActiveByTypes returns ACTIVE accounts of the given types ordered by id
	GetActiveByTypes(ctx context.Context, accountTypes []string) ([]*models.Account, error)

	// GetActiveByIDs returns the ACTIVE accounts among ids ordered by id
	GetActiveByIDs(ctx context.Context, ids []string) ([]*models.Account, error)

	// GetDueForPosting returns ACTIVE accounts of the given types whose next posting date
	// is unset or on or before referenceDate, ordered by id
	GetDueForPosting(ctx context.Context, accountTypes []string, referenceDate time.Time) ([]*models.Account, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// AccrualOutcome is the calculation engine's answer to a daily accrual request
type AccrualOutcome struct {
	Success            bool
	InterestCalculated int64
	CalculationDate    time.Time
	ErrorMessage       string
}

// PostingOutcome is the calculation engine's answer to a posting request
type PostingOutcome struct {
	Success        bool
	InterestPosted int64
	TaxAmount      int64
	PostingDate    time.Time
	ErrorMessage   string
}

// CalculationEngine computes and posts interest for a single account
type CalculationEngine interface {
	CalculateDailyInterest(ctx context.Context, accountID string) (*AccrualOutcome, error)
	PostInterest(ctx context.Context, accountID string) (*PostingOutcome, error)
}

// MetricsRecorder receives per-account progress observations.
// Execution-level metrics are derived from bus events.
type MetricsRecorder interface {
	AccountStarted(jobType models.JobType)
	AccountFinished(jobType models.JobType, status models.AccountResultStatus, duration time.Duration)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	JobConfigRepository() JobConfigRepository
	ExecutionRepository() ExecutionRepository
	AccountResultRepository() AccountResultRepository
	AccountStatusRepository() AccountStatusRepository
	AccountRepository() AccountRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
