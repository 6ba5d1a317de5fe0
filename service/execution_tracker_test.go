package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"interestbatch/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTrackerMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockJobConfigRepository, *MockExecutionRepository) {
	mockFactory := new(MockUnitOfWorkFactory)
	mockUoW := new(MockUnitOfWork)
	mockConfigRepo := new(MockJobConfigRepository)
	mockExecRepo := new(MockExecutionRepository)
	mockUoW.SetRepositories(mockConfigRepo, mockExecRepo, nil, nil, nil, new(MockEventPublisher))
	return mockFactory, mockUoW, mockConfigRepo, mockExecRepo
}

func TestTriggerJob_UnsupportedJobType(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, _ := newTrackerMocks()
	engine := NewEngine(mockFactory, new(MockCalculationEngine), nil)

	exec, err := engine.TriggerJob(ctx, TriggerRequest{JobType: "MONTHLY_FEES"})

	assert.Nil(t, exec)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	mockFactory.AssertNotCalled(t, "Create")
}

func TestTriggerJob_ConfigChecks(t *testing.T) {
	tests := []struct {
		name   string
		config *models.JobConfig
	}{
		{"missing config", nil},
		{"disabled config", &models.JobConfig{JobType: models.JobTypeDailyInterestAccrual, Enabled: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mockFactory, mockUoW, mockConfigRepo, mockExecRepo := newTrackerMocks()
			engine := NewEngine(mockFactory, new(MockCalculationEngine), nil)

			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			if tt.config == nil {
				mockConfigRepo.On("GetByJobType", ctx, models.JobTypeDailyInterestAccrual).Return(nil, nil)
			} else {
				mockConfigRepo.On("GetByJobType", ctx, models.JobTypeDailyInterestAccrual).Return(tt.config, nil)
			}

			exec, err := engine.TriggerJob(ctx, TriggerRequest{JobType: models.JobTypeDailyInterestAccrual})

			assert.Nil(t, exec)
			assert.True(t, IsValidationError(err))
			mockExecRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			mockUoW.AssertNotCalled(t, "Commit")
			mockUoW.AssertExpectations(t)
		})
	}
}

func TestTriggerJob_AlreadyRunning(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockConfigRepo, mockExecRepo := newTrackerMocks()
	engine := NewEngine(mockFactory, new(MockCalculationEngine), nil)

	cfg := testConfig(models.JobTypeInterestPosting, 10, 2)
	running := &models.Execution{ID: uuid.New(), JobType: models.JobTypeInterestPosting, Status: models.ExecutionStatusRunning}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockConfigRepo.On("GetByJobType", ctx, models.JobTypeInterestPosting).Return(cfg, nil)
	mockExecRepo.On("GetRunningByJobType", ctx, models.JobTypeInterestPosting).Return(running, nil)

	exec, err := engine.TriggerJob(ctx, TriggerRequest{JobType: models.JobTypeInterestPosting})

	assert.Nil(t, exec)
	assert.True(t, IsConflictError(err))
	mockExecRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestTriggerJob_LosesInsertRace(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockConfigRepo, mockExecRepo := newTrackerMocks()
	engine := NewEngine(mockFactory, new(MockCalculationEngine), nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockConfigRepo.On("GetByJobType", ctx, models.JobTypeInterestPosting).Return(testConfig(models.JobTypeInterestPosting, 10, 2), nil)
	mockExecRepo.On("GetRunningByJobType", ctx, models.JobTypeInterestPosting).Return(nil, nil)
	mockExecRepo.On("Create", ctx, mock.AnythingOfType("*models.Execution")).
		Return(NewConflictError("an execution of INTEREST_POSTING is already running"))

	exec, err := engine.TriggerJob(ctx, TriggerRequest{JobType: models.JobTypeInterestPosting})

	assert.Nil(t, exec)
	assert.True(t, IsConflictError(err))
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestTriggerJob_RepositoryError(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, mockConfigRepo, _ := newTrackerMocks()
	engine := NewEngine(mockFactory, new(MockCalculationEngine), nil)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockConfigRepo.On("GetByJobType", ctx, models.JobTypeInterestPosting).Return(nil, errors.New("connection refused"))

	_, err := engine.TriggerJob(ctx, TriggerRequest{JobType: models.JobTypeInterestPosting})

	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.False(t, IsConflictError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTriggerJob_MergesParameters(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig(models.JobTypeDailyInterestAccrual, 10, 2)
	cfg.Parameters = map[string]any{"rateTable": "standard", "dryRun": false, ParamAccountIDs: []string{"from-config"}}
	store.addConfig(cfg)
	store.addAccounts(testAccount("x1"), testAccount("x2"))
	calc := &fakeCalculator{}
	engine := newTestEngine(store, calc, testNow)

	exec, err := engine.TriggerJob(context.Background(), TriggerRequest{
		JobType:    models.JobTypeDailyInterestAccrual,
		Parameters: map[string]any{"dryRun": true, ParamReferenceDate: "2024-01-10", ParamAccountIDs: []string{"from-request"}},
		AccountIDs: []string{"x2"},
	})
	require.NoError(t, err)
	engine.Wait()

	assert.Equal(t, "standard", exec.BatchParameters["rateTable"])
	assert.Equal(t, true, exec.BatchParameters["dryRun"])
	assert.Equal(t, "2024-01-10", exec.BatchParameters[ParamReferenceDate])
	assert.Equal(t, []string{"x2"}, exec.BatchParameters[ParamAccountIDs])

	// Only the explicit account was processed
	calls, _, _ := calc.snapshot()
	assert.Equal(t, []string{"x2"}, calls)
	assert.Equal(t, date(2024, 1, 10), *store.status("x2").LastAccrualDate)
}

func TestTriggerJob_ReturnsRunningExecution(t *testing.T) {
	store := newFakeStore()
	store.addConfig(testConfig(models.JobTypeDailyInterestAccrual, 10, 2))
	engine := newTestEngine(store, &fakeCalculator{}, testNow)

	exec, err := engine.TriggerJob(context.Background(), TriggerRequest{JobType: models.JobTypeDailyInterestAccrual})
	require.NoError(t, err)
	engine.Wait()

	assert.NotEqual(t, uuid.Nil, exec.ID)
	assert.Equal(t, models.ExecutionStatusRunning, exec.Status)
	assert.Equal(t, testNow, exec.StartedAt)
	assert.Equal(t, 0, exec.ProcessedAccounts)
}

func TestMergeParameters_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		field  string
	}{
		{"malformed reference date", map[string]any{ParamReferenceDate: "31-01-2024"}, ParamReferenceDate},
		{"non string reference date", map[string]any{ParamReferenceDate: 20240131}, ParamReferenceDate},
		{"account ids not a list", map[string]any{ParamAccountIDs: "a1"}, ParamAccountIDs},
		{"account ids with numbers", map[string]any{ParamAccountIDs: []any{"a1", 2.0}}, ParamAccountIDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mergeParameters(nil, tt.params, nil)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	t.Run("generic account id list is accepted", func(t *testing.T) {
		merged, err := mergeParameters(nil, map[string]any{ParamAccountIDs: []any{"a1", "a2"}}, nil)
		require.NoError(t, err)
		ids, err := accountIDsFromParameters(merged)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "a2"}, ids)
	})
}

func TestGetExecution_NotFound(t *testing.T) {
	engine := newTestEngine(newFakeStore(), &fakeCalculator{}, testNow)

	_, err := engine.GetExecution(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExecutions(t *testing.T) {
	store := newFakeStore()
	repo := &fakeExecutionRepo{s: store}
	ctx := context.Background()
	engine := newTestEngine(store, &fakeCalculator{}, testNow)

	for i := 0; i < 3; i++ {
		exec := &models.Execution{
			ID:        uuid.New(),
			JobType:   models.JobTypeDailyInterestAccrual,
			StartedAt: testNow.AddDate(0, 0, -i),
			Status:    models.ExecutionStatusRunning,
		}
		require.NoError(t, repo.Create(ctx, exec))
		_, err := repo.Complete(ctx, exec.ID, exec.StartedAt.Add(time.Minute))
		require.NoError(t, err)
	}

	t.Run("defaults and ordering", func(t *testing.T) {
		list, err := engine.ListExecutions(ctx, models.ExecutionFilter{}, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, list.TotalCount)
		assert.Equal(t, 1, list.Page)
		assert.Equal(t, DefaultPageSize, list.PageSize)
		require.Len(t, list.Data, 3)
		assert.Equal(t, testNow, list.Data[0].StartedAt)
	})

	t.Run("page size is capped", func(t *testing.T) {
		list, err := engine.ListExecutions(ctx, models.ExecutionFilter{}, models.Page{Page: 1, PageSize: 10000})
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, list.PageSize)
	})

	t.Run("date range", func(t *testing.T) {
		from := testNow.AddDate(0, 0, -1)
		list, err := engine.ListExecutions(ctx, models.ExecutionFilter{DateFrom: &from}, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, 2, list.TotalCount)
	})

	t.Run("invalid filters", func(t *testing.T) {
		badType := models.JobType("NOPE")
		_, err := engine.ListExecutions(ctx, models.ExecutionFilter{JobType: &badType}, models.Page{})
		assert.True(t, IsValidationError(err))

		badStatus := models.ExecutionStatus("PAUSED")
		_, err = engine.ListExecutions(ctx, models.ExecutionFilter{Status: &badStatus}, models.Page{})
		assert.True(t, IsValidationError(err))

		from, to := testNow, testNow.AddDate(0, 0, -1)
		_, err = engine.ListExecutions(ctx, models.ExecutionFilter{DateFrom: &from, DateTo: &to}, models.Page{})
		assert.True(t, IsValidationError(err))
	})
}
