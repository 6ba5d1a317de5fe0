package service

import (
	"context"
	"fmt"

	"interestbatch/models"
)

// GetSummary returns today's totals together with the current state of every job type
func (e *Engine) GetSummary(ctx context.Context) (*models.Summary, error) {
	since := StartOfDay(e.now())
	summary := &models.Summary{}

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		stats, err := uow.AccountResultRepository().GetDailyStats(ctx, since)
		if err != nil {
			return err
		}
		summary.AccountsProcessedToday = stats.AccountsProcessed
		summary.InterestPostedToday = stats.InterestPosted
		summary.FailedAccountsToday = stats.FailedAccounts
		summary.AvgProcessingTimeMs = stats.AvgProcessingTimeMs

		if summary.LastCompletedRun, err = uow.ExecutionRepository().GetLatestCompleted(ctx); err != nil {
			return err
		}
		if summary.CurrentRunningJobs, err = uow.ExecutionRepository().GetRunning(ctx); err != nil {
			return err
		}
		if summary.JobConfigurations, err = uow.JobConfigRepository().GetAll(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}

	if summary.CurrentRunningJobs == nil {
		summary.CurrentRunningJobs = []*models.Execution{}
	}
	if summary.JobConfigurations == nil {
		summary.JobConfigurations = []*models.JobConfig{}
	}

	return summary, nil
}
