package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var errExecutionNotRunning = errors.New("execution is no longer running")

// accountOutcome is what the calculation engine made of one account
type accountOutcome struct {
	success            bool
	interestCalculated *int64
	interestPosted     *int64
	taxAmount          *int64
	effectiveDate      time.Time
	errorMessage       string
	errorDetails       map[string]any
}

func failedOutcome(message string, details map[string]any) *accountOutcome {
	if details == nil {
		details = map[string]any{}
	}
	details["message"] = message
	return &accountOutcome{
		success:      false,
		errorMessage: message,
		errorDetails: details,
	}
}

// asFailure turns a successful calculation into a failure that happened afterwards,
// keeping the computed amounts in the details
func (o *accountOutcome) asFailure(message string) *accountOutcome {
	details := map[string]any{}
	if o.interestCalculated != nil {
		details["interestCalculated"] = *o.interestCalculated
	}
	if o.interestPosted != nil {
		details["interestPosted"] = *o.interestPosted
	}
	if o.taxAmount != nil {
		details["taxAmount"] = *o.taxAmount
	}
	return failedOutcome(message, details)
}

// newPlaceholder builds the SKIPPED row written before the calculation call
func newPlaceholder(executionID uuid.UUID, acct *models.Account) *models.AccountResult {
	return &models.AccountResult{
		ExecutionID:   executionID,
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		AccountType:   acct.AccountType,
		Status:        models.AccountResultStatusSkipped,
	}
}

// applyTo copies the outcome onto the placeholder row
func (o *accountOutcome) applyTo(result *models.AccountResult, elapsed time.Duration) {
	result.ProcessingTimeMs = elapsed.Milliseconds()
	if o.success {
		result.Status = models.AccountResultStatusSuccess
		result.InterestCalculated = o.interestCalculated
		result.InterestPosted = o.interestPosted
		result.TaxAmount = o.taxAmount
		result.ErrorMessage = nil
		result.ErrorDetails = nil
		return
	}

	msg := o.errorMessage
	result.Status = models.AccountResultStatusFailed
	result.ErrorMessage = &msg
	result.ErrorDetails = o.errorDetails
}

// createPlaceholder persists the SKIPPED row for an account
func (e *Engine) createPlaceholder(ctx context.Context, result *models.AccountResult) error {
	return e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		return uow.AccountResultRepository().CreatePlaceholder(ctx, result)
	})
}

// commitAccountResult bumps the execution counters and finalizes the result row in one
// transaction. The increment runs first and is conditional on the execution still being
// RUNNING; when it is not, nothing is written, the row stays SKIPPED and false is returned.
// A result whose placeholder was never written gets its row inserted here.
func (e *Engine) commitAccountResult(ctx context.Context, result *models.AccountResult) (bool, error) {
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		ok, err := uow.ExecutionRepository().IncrementCounters(ctx, result.ExecutionID, result.Status == models.AccountResultStatusSuccess)
		if err != nil {
			return err
		}
		if !ok {
			return errExecutionNotRunning
		}

		repo := uow.AccountResultRepository()
		if result.ID == 0 {
			row := *result
			if err := repo.CreatePlaceholder(ctx, &row); err != nil {
				return err
			}
			result.ID, result.CreatedAt = row.ID, row.CreatedAt
		}
		return repo.Finalize(ctx, result)
	})
	if errors.Is(err, errExecutionNotRunning) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to commit result for account %s: %w", result.AccountID, err)
	}

	return true, nil
}

// skipResult marks the row of an account whose execution stopped while it was in
// flight, naming the reason the execution stopped
func (e *Engine) skipResult(ctx context.Context, result *models.AccountResult, logger *log.Entry) {
	if result.ID == 0 {
		return
	}

	message := "execution no longer running"
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		exec, err := uow.ExecutionRepository().GetByID(ctx, result.ExecutionID)
		if err != nil {
			return err
		}
		if exec != nil && exec.Status == models.ExecutionStatusCancelled {
			message = cancelledMessage
		}

		result.Status = models.AccountResultStatusSkipped
		result.ErrorMessage = &message
		return uow.AccountResultRepository().Finalize(ctx, result)
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to mark account result skipped")
	}
}

// GetAccountResults returns one page of results for an execution
func (e *Engine) GetAccountResults(ctx context.Context, filter models.AccountResultFilter, page models.Page) (*models.AccountResultList, error) {
	if filter.ExecutionID == uuid.Nil {
		return nil, NewValidationError("executionId", "is required")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, NewValidationError("status", "unknown result status %q", *filter.Status)
	}

	page = normalizePage(page)
	list := &models.AccountResultList{Page: page.Page, PageSize: page.PageSize}

	var exec *models.Execution
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		exec, err = uow.ExecutionRepository().GetByID(ctx, filter.ExecutionID)
		if err != nil || exec == nil {
			return err
		}
		list.Data, list.TotalCount, err = uow.AccountResultRepository().List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list account results: %w", err)
	}
	if exec == nil {
		return nil, fmt.Errorf("execution %s: %w", filter.ExecutionID, ErrNotFound)
	}

	return list, nil
}
