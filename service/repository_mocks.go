package service

import (
	"context"
	"time"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockJobConfigRepository is a mock implementation of JobConfigRepository
type MockJobConfigRepository struct {
	mock.Mock
}

func (m *MockJobConfigRepository) GetByJobType(ctx context.Context, jobType models.JobType) (*models.JobConfig, error) {
	args := m.Called(ctx, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobConfig), args.Error(1)
}

func (m *MockJobConfigRepository) GetAll(ctx context.Context) ([]*models.JobConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.JobConfig), args.Error(1)
}

func (m *MockJobConfigRepository) Create(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobConfig), args.Error(1)
}

func (m *MockJobConfigRepository) Update(ctx context.Context, jobType models.JobType, patch *models.JobConfigPatch) (*models.JobConfig, error) {
	args := m.Called(ctx, jobType, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobConfig), args.Error(1)
}

func (m *MockJobConfigRepository) Upsert(ctx context.Context, cfg *models.JobConfig) (*models.JobConfig, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobConfig), args.Error(1)
}

// MockExecutionRepository is a mock implementation of ExecutionRepository
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, exec *models.Execution) error {
	args := m.Called(ctx, exec)
	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) GetRunningByJobType(ctx context.Context, jobType models.JobType) (*models.Execution, error) {
	args := m.Called(ctx, jobType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) GetRunning(ctx context.Context) ([]*models.Execution, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) GetLatestCompleted(ctx context.Context) (*models.Execution, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) List(ctx context.Context, filter models.ExecutionFilter, page models.Page) ([]*models.Execution, int, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Execution), args.Int(1), args.Error(2)
}

func (m *MockExecutionRepository) SetTotalAccounts(ctx context.Context, id uuid.UUID, total int) error {
	args := m.Called(ctx, id, total)
	return args.Error(0)
}

func (m *MockExecutionRepository) IncrementCounters(ctx context.Context, id uuid.UUID, success bool) (bool, error) {
	args := m.Called(ctx, id, success)
	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) Fail(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (bool, error) {
	args := m.Called(ctx, id, completedAt, details)
	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) Cancel(ctx context.Context, id uuid.UUID, completedAt time.Time, details *models.ErrorDetails) (*models.Execution, error) {
	args := m.Called(ctx, id, completedAt, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) FailOrphaned(ctx context.Context, completedAt time.Time, details *models.ErrorDetails) (int64, error) {
	args := m.Called(ctx, completedAt, details)
	return args.Get(0).(int64), args.Error(1)
}

// MockAccountResultRepository is a mock implementation of AccountResultRepository
type MockAccountResultRepository struct {
	mock.Mock
}

func (m *MockAccountResultRepository) CreatePlaceholder(ctx context.Context, result *models.AccountResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockAccountResultRepository) Finalize(ctx context.Context, result *models.AccountResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockAccountResultRepository) SkipUnresolved(ctx context.Context, executionID uuid.UUID, message string) (int64, error) {
	args := m.Called(ctx, executionID, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountResultRepository) List(ctx context.Context, filter models.AccountResultFilter, page models.Page) ([]*models.AccountResult, int, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.AccountResult), args.Int(1), args.Error(2)
}

func (m *MockAccountResultRepository) GetDailyStats(ctx context.Context, since time.Time) (*models.DailyResultStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyResultStats), args.Error(1)
}

// MockAccountStatusRepository is a mock implementation of AccountStatusRepository
type MockAccountStatusRepository struct {
	mock.Mock
}

func (m *MockAccountStatusRepository) GetByAccountID(ctx context.Context, accountID string) (*models.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountStatus), args.Error(1)
}

func (m *MockAccountStatusRepository) RecordSuccess(ctx context.Context, success *models.AccountStatusSuccess) error {
	args := m.Called(ctx, success)
	return args.Error(0)
}

func (m *MockAccountStatusRepository) RecordFailure(ctx context.Context, failure *models.AccountStatusFailure) error {
	args := m.Called(ctx, failure)
	return args.Error(0)
}

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetActiveByTypes(ctx context.Context, accountTypes []string) ([]*models.Account, error) {
	args := m.Called(ctx, accountTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetActiveByIDs(ctx context.Context, ids []string) ([]*models.Account, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetDueForPosting(ctx context.Context, accountTypes []string, referenceDate time.Time) ([]*models.Account, error) {
	args := m.Called(ctx, accountTypes, referenceDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockCalculationEngine is a mock implementation of CalculationEngine
type MockCalculationEngine struct {
	mock.Mock
}

func (m *MockCalculationEngine) CalculateDailyInterest(ctx context.Context, accountID string) (*AccrualOutcome, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AccrualOutcome), args.Error(1)
}

func (m *MockCalculationEngine) PostInterest(ctx context.Context, accountID string) (*PostingOutcome, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PostingOutcome), args.Error(1)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	jobConfigRepo     JobConfigRepository
	executionRepo     ExecutionRepository
	accountResultRepo AccountResultRepository
	accountStatusRepo AccountStatusRepository
	accountRepo       AccountRepository
	eventBus          EventPublisher
}

// SetRepositories wires the repositories handed out by the unit of work
func (m *MockUnitOfWork) SetRepositories(jobConfigRepo JobConfigRepository, executionRepo ExecutionRepository, accountResultRepo AccountResultRepository, accountStatusRepo AccountStatusRepository, accountRepo AccountRepository, eventBus EventPublisher) {
	m.jobConfigRepo = jobConfigRepo
	m.executionRepo = executionRepo
	m.accountResultRepo = accountResultRepo
	m.accountStatusRepo = accountStatusRepo
	m.accountRepo = accountRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) JobConfigRepository() JobConfigRepository {
	return m.jobConfigRepo
}

func (m *MockUnitOfWork) ExecutionRepository() ExecutionRepository {
	return m.executionRepo
}

func (m *MockUnitOfWork) AccountResultRepository() AccountResultRepository {
	return m.accountResultRepo
}

func (m *MockUnitOfWork) AccountStatusRepository() AccountStatusRepository {
	return m.accountStatusRepo
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accountRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
