package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// chunkAccounts splits accounts into consecutive chunks of at most size accounts
func chunkAccounts(accounts []*models.Account, size int) [][]*models.Account {
	if size < 1 {
		size = 1
	}

	chunks := make([][]*models.Account, 0, (len(accounts)+size-1)/size)
	for start := 0; start < len(accounts); start += size {
		end := min(start+size, len(accounts))
		chunks = append(chunks, accounts[start:end])
	}
	return chunks
}

// runExecution selects the accounts and processes them chunk by chunk. Chunks run in
// order; the next chunk starts only after every account of the previous one is done.
// Errors never escape: they mark the execution FAILED.
func (e *Engine) runExecution(ctx context.Context, exec *models.Execution, cfg *models.JobConfig) {
	// Persistence outlives shutdown so the final status is always written
	persistCtx := context.WithoutCancel(ctx)

	logger := log.WithFields(log.Fields{
		"executionId": exec.ID,
		"jobType":     exec.JobType,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Execution panicked")
			e.failExecution(persistCtx, exec.ID, fmt.Sprintf("panic: %v", r), string(debug.Stack()))
		}
	}()

	referenceDate, err := referenceDateFromParameters(exec.BatchParameters, e.now())
	if err != nil {
		e.failExecution(persistCtx, exec.ID, err.Error(), "")
		return
	}

	var accounts []*models.Account
	err = e.withUnitOfWork(persistCtx, func(uow UnitOfWork) error {
		var err error
		accounts, err = selectAccounts(persistCtx, uow.AccountRepository(), cfg, exec.BatchParameters, referenceDate)
		if err != nil {
			return err
		}
		return uow.ExecutionRepository().SetTotalAccounts(persistCtx, exec.ID, len(accounts))
	})
	if err != nil {
		logger.WithError(err).Error("Failed to prepare execution")
		e.failExecution(persistCtx, exec.ID, err.Error(), "")
		return
	}

	chunks := chunkAccounts(accounts, cfg.BatchSize)
	logger.WithFields(log.Fields{
		"totalAccounts": len(accounts),
		"chunks":        len(chunks),
		"referenceDate": referenceDate.Format(referenceDateLayout),
	}).Info("Accounts selected")

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		running, err := e.isRunning(persistCtx, exec.ID)
		if err != nil {
			e.failExecution(persistCtx, exec.ID, err.Error(), "")
			return
		}
		if !running {
			logger.WithField("chunk", i).Info("Execution no longer running, stopping dispatch")
			return
		}

		e.processChunk(ctx, exec, cfg, chunk, referenceDate)

		logger.WithFields(log.Fields{
			"chunk":    i + 1,
			"of":       len(chunks),
			"accounts": len(chunk),
		}).Debug("Chunk finished")
	}

	// Shutdown may have dropped accounts that never started
	if ctx.Err() != nil {
		logger.Warn("Engine shutting down, abandoning execution")
		e.failExecution(persistCtx, exec.ID, shutdownMessage, "")
		return
	}

	e.completeExecution(persistCtx, exec.ID)
}

// processChunk runs the chunk with at most parallelThreads accounts in flight
func (e *Engine) processChunk(ctx context.Context, exec *models.Execution, cfg *models.JobConfig, chunk []*models.Account, referenceDate time.Time) {
	var g errgroup.Group
	g.SetLimit(max(1, min(cfg.ParallelThreads, len(chunk))))

	for _, acct := range chunk {
		g.Go(func() error {
			e.processAccount(ctx, exec, acct, referenceDate)
			return nil
		})
	}

	_ = g.Wait()
}

// processAccount handles one account end to end. Nothing escapes: calculation and
// persistence failures alike end up on the account's result row and ledger.
func (e *Engine) processAccount(ctx context.Context, exec *models.Execution, acct *models.Account, referenceDate time.Time) {
	persistCtx := context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{
		"executionId": exec.ID,
		"accountId":   acct.ID,
	})

	// Accounts still queued when the execution stops are dropped before any side effect
	if ctx.Err() != nil {
		return
	}
	running, err := e.isRunning(persistCtx, exec.ID)
	if err != nil {
		logger.WithError(err).Warn("Failed to check execution status, processing account anyway")
	} else if !running {
		logger.Debug("Execution no longer running, account not started")
		return
	}

	start := time.Now()
	e.metrics.AccountStarted(exec.JobType)

	result := newPlaceholder(exec.ID, acct)
	var outcome *accountOutcome
	if err := e.createPlaceholder(persistCtx, result); err != nil {
		logger.WithError(err).Warn("Failed to record placeholder, account not calculated")
		outcome = failedOutcome(fmt.Sprintf("failed to record placeholder: %v", err), nil)
	} else {
		outcome = e.callCalculator(ctx, exec.JobType, acct, referenceDate)
	}
	if !outcome.success {
		logger.WithField("error", outcome.errorMessage).Warn("Account processing failed")
	}

	// The calculation side effect has happened, so the ledger follows it even if
	// the execution was cancelled meanwhile
	if err := e.updateLedger(persistCtx, exec.JobType, acct, outcome); err != nil {
		logger.WithError(err).Warn("Failed to update account ledger")
		if outcome.success {
			outcome = outcome.asFailure(fmt.Sprintf("failed to update ledger: %v", err))
			e.recordLedgerFailure(persistCtx, exec.JobType, acct, outcome, logger)
		}
	}

	outcome.applyTo(result, time.Since(start))

	committed, err := e.commitAccountResult(persistCtx, result)
	if err != nil {
		logger.WithError(err).Warn("Failed to commit account result, recording failure")
		if outcome.success {
			outcome = outcome.asFailure(fmt.Sprintf("failed to record result: %v", err))
			e.recordLedgerFailure(persistCtx, exec.JobType, acct, outcome, logger)
			outcome.applyTo(result, time.Since(start))
		}
		committed, err = e.commitAccountResult(persistCtx, result)
		if err != nil {
			logger.WithError(err).Warn("Failed to record account failure")
			e.metrics.AccountFinished(exec.JobType, models.AccountResultStatusFailed, time.Since(start))
			return
		}
	}
	if !committed {
		logger.Debug("Execution no longer running, result left skipped")
		e.skipResult(persistCtx, result, logger)
		e.metrics.AccountFinished(exec.JobType, models.AccountResultStatusSkipped, time.Since(start))
		return
	}

	e.metrics.AccountFinished(exec.JobType, result.Status, time.Since(start))
}

// recordLedgerFailure bumps the error count after a late persistence failure
func (e *Engine) recordLedgerFailure(ctx context.Context, jobType models.JobType, acct *models.Account, outcome *accountOutcome, logger *log.Entry) {
	if err := e.updateLedger(ctx, jobType, acct, outcome); err != nil {
		logger.WithError(err).Warn("Failed to record ledger failure")
	}
}

// callCalculator invokes the calculation engine, turning errors, rejections and panics
// into a failed outcome
func (e *Engine) callCalculator(ctx context.Context, jobType models.JobType, acct *models.Account, referenceDate time.Time) (outcome *accountOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = failedOutcome(fmt.Sprintf("panic: %v", r), map[string]any{
				"stack": string(debug.Stack()),
			})
		}
	}()

	if jobType.IsPosting() {
		res, err := e.calculator.PostInterest(ctx, acct.ID)
		if err != nil {
			return failedOutcome(err.Error(), nil)
		}
		if res == nil {
			return failedOutcome("calculation engine returned no posting result", nil)
		}
		if !res.Success {
			return failedOutcome(messageOrDefault(res.ErrorMessage, "interest posting rejected"), nil)
		}
		posted, tax := res.InterestPosted, res.TaxAmount
		return &accountOutcome{
			success:        true,
			interestPosted: &posted,
			taxAmount:      &tax,
			effectiveDate:  dateOrDefault(res.PostingDate, referenceDate),
		}
	}

	res, err := e.calculator.CalculateDailyInterest(ctx, acct.ID)
	if err != nil {
		return failedOutcome(err.Error(), nil)
	}
	if res == nil {
		return failedOutcome("calculation engine returned no accrual result", nil)
	}
	if !res.Success {
		return failedOutcome(messageOrDefault(res.ErrorMessage, "interest accrual rejected"), nil)
	}
	calculated := res.InterestCalculated
	return &accountOutcome{
		success:            true,
		interestCalculated: &calculated,
		effectiveDate:      dateOrDefault(res.CalculationDate, referenceDate),
	}
}

// isRunning re-reads the execution status
func (e *Engine) isRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	var exec *models.Execution
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		exec, err = uow.ExecutionRepository().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to reload execution: %w", err)
	}
	return exec != nil && exec.Status == models.ExecutionStatusRunning, nil
}

// completeExecution moves the execution to COMPLETED unless it was cancelled meanwhile
func (e *Engine) completeExecution(ctx context.Context, id uuid.UUID) {
	e.finishExecution(ctx, id, func(repo ExecutionRepository, now time.Time) (bool, error) {
		return repo.Complete(ctx, id, now)
	})
}

// failExecution moves the execution to FAILED with the given error details
func (e *Engine) failExecution(ctx context.Context, id uuid.UUID, message, stack string) {
	e.finishExecution(ctx, id, func(repo ExecutionRepository, now time.Time) (bool, error) {
		return repo.Fail(ctx, id, now, &models.ErrorDetails{
			Message:   message,
			Stack:     stack,
			Timestamp: now,
		})
	})
}

func (e *Engine) finishExecution(ctx context.Context, id uuid.UUID, transition func(repo ExecutionRepository, now time.Time) (bool, error)) {
	var finished *models.Execution

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		repo := uow.ExecutionRepository()

		ok, err := transition(repo, e.now())
		if err != nil || !ok {
			return err
		}

		finished, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if finished != nil {
			uow.EventBus().Publish(events.NewExecutionFinishedEvent(finished))
		}
		return nil
	})

	logger := log.WithField("executionId", id)
	if err != nil {
		logger.WithError(err).Error("Failed to finish execution")
		return
	}
	if finished == nil {
		logger.Debug("Execution already terminal, leaving status unchanged")
		return
	}

	logger.WithFields(log.Fields{
		"jobType":    finished.JobType,
		"status":     finished.Status,
		"total":      finished.TotalAccounts,
		"processed":  finished.ProcessedAccounts,
		"successful": finished.SuccessfulAccounts,
		"failed":     finished.FailedAccounts,
	}).Info("Execution finished")
}

func messageOrDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

func dateOrDefault(date, fallback time.Time) time.Time {
	if date.IsZero() {
		return fallback
	}
	return StartOfDay(date)
}
