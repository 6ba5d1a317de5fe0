package service

import (
	"context"
	"fmt"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const cancelledMessage = "cancelled by user"

// CancelExecution stops a RUNNING execution. Accounts already in flight finish their
// calculation but their results are not counted. An execution that is already terminal
// is returned unchanged.
func (e *Engine) CancelExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	var exec *models.Execution
	var cancelled bool
	var skipped int64

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		repo := uow.ExecutionRepository()

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("execution %s: %w", id, ErrNotFound)
		}
		if current.Status != models.ExecutionStatusRunning {
			exec = current
			return nil
		}

		now := e.now()
		updated, err := repo.Cancel(ctx, id, now, &models.ErrorDetails{
			Message:   cancelledMessage,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
		if updated == nil {
			// Lost the race with completion
			exec, err = repo.GetByID(ctx, id)
			return err
		}

		skipped, err = uow.AccountResultRepository().SkipUnresolved(ctx, id, cancelledMessage)
		if err != nil {
			return err
		}

		uow.EventBus().Publish(events.NewExecutionFinishedEvent(updated))
		exec = updated
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	if cancelled {
		log.WithFields(log.Fields{
			"executionId":    exec.ID,
			"jobType":        exec.JobType,
			"processed":      exec.ProcessedAccounts,
			"skippedResults": skipped,
		}).Info("Execution cancelled")
	}

	return exec, nil
}
