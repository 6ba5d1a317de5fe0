package service

import (
	"context"
	"testing"
	"time"

	"interestbatch/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitAccountResult_GatedOnRunning(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	engine := newTestEngine(store, &fakeCalculator{}, testNow)
	repo := &fakeExecutionRepo{s: store}

	exec := &models.Execution{ID: uuid.New(), JobType: models.JobTypeDailyInterestAccrual, StartedAt: testNow, Status: models.ExecutionStatusRunning}
	require.NoError(t, repo.Create(ctx, exec))
	require.NoError(t, repo.SetTotalAccounts(ctx, exec.ID, 2))

	first := newPlaceholder(exec.ID, testAccount("a1"))
	second := newPlaceholder(exec.ID, testAccount("a2"))
	require.NoError(t, engine.createPlaceholder(ctx, first))
	require.NoError(t, engine.createPlaceholder(ctx, second))

	accrued := int64(5)
	(&accountOutcome{success: true, interestCalculated: &accrued}).applyTo(first, time.Millisecond)
	committed, err := engine.commitAccountResult(ctx, first)
	require.NoError(t, err)
	assert.True(t, committed)

	_, err = repo.Cancel(ctx, exec.ID, testNow, &models.ErrorDetails{Message: "cancelled by user"})
	require.NoError(t, err)

	(&accountOutcome{success: true, interestCalculated: &accrued}).applyTo(second, time.Millisecond)
	committed, err = engine.commitAccountResult(ctx, second)
	require.NoError(t, err)
	assert.False(t, committed)

	results := store.resultsFor(exec.ID)
	assert.Equal(t, models.AccountResultStatusSuccess, results[0].Status)
	assert.Equal(t, models.AccountResultStatusSkipped, results[1].Status)

	final := store.execution(exec.ID)
	assert.Equal(t, 1, final.ProcessedAccounts)
	assert.Equal(t, 1, final.SuccessfulAccounts)
}

func TestGetAccountResults(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addConfig(testConfig(models.JobTypeDailyInterestAccrual, 10, 2))
	store.addAccounts(testAccount("a1"), testAccount("a2"), testAccount("a3"))
	calc := &fakeCalculator{
		accrue: func(accountID string) (*AccrualOutcome, error) {
			if accountID == "a2" {
				return &AccrualOutcome{Success: false, ErrorMessage: "no rate"}, nil
			}
			return &AccrualOutcome{Success: true, InterestCalculated: 1}, nil
		},
	}
	engine := newTestEngine(store, calc, testNow)
	exec := triggerAndWait(t, engine, TriggerRequest{JobType: models.JobTypeDailyInterestAccrual})

	t.Run("all results", func(t *testing.T) {
		list, err := engine.GetAccountResults(ctx, models.AccountResultFilter{ExecutionID: exec.ID}, models.Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, list.TotalCount)
		assert.Len(t, list.Data, 3)
	})

	t.Run("by status", func(t *testing.T) {
		failed := models.AccountResultStatusFailed
		list, err := engine.GetAccountResults(ctx, models.AccountResultFilter{ExecutionID: exec.ID, Status: &failed}, models.Page{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Equal(t, 1, list.TotalCount)
		assert.Equal(t, "a2", list.Data[0].AccountID)
	})

	t.Run("execution id required", func(t *testing.T) {
		_, err := engine.GetAccountResults(ctx, models.AccountResultFilter{}, models.Page{})
		assert.True(t, IsValidationError(err))
	})

	t.Run("unknown status", func(t *testing.T) {
		bad := models.AccountResultStatus("PENDING")
		_, err := engine.GetAccountResults(ctx, models.AccountResultFilter{ExecutionID: exec.ID, Status: &bad}, models.Page{})
		assert.True(t, IsValidationError(err))
	})

	t.Run("unknown execution", func(t *testing.T) {
		_, err := engine.GetAccountResults(ctx, models.AccountResultFilter{ExecutionID: uuid.New()}, models.Page{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
