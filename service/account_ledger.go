package service

import (
	"context"
	"fmt"
	"time"

	"interestbatch/models"
)

// updateLedger applies an account outcome to its scheduling state. Failures only bump
// the error count so the account is picked up again by the next run.
func (e *Engine) updateLedger(ctx context.Context, jobType models.JobType, acct *models.Account, outcome *accountOutcome) error {
	now := e.now()

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		repo := uow.AccountStatusRepository()

		if !outcome.success {
			return repo.RecordFailure(ctx, &models.AccountStatusFailure{
				Account:      acct,
				ErrorMessage: outcome.errorMessage,
				At:           now,
			})
		}

		return repo.RecordSuccess(ctx, ledgerSuccess(jobType, acct, outcome.effectiveDate, now))
	})
	if err != nil {
		return fmt.Errorf("failed to update ledger for account %s: %w", acct.ID, err)
	}

	return nil
}

// ledgerSuccess builds the date changes for a successful attempt
func ledgerSuccess(jobType models.JobType, acct *models.Account, effectiveDate, now time.Time) *models.AccountStatusSuccess {
	success := &models.AccountStatusSuccess{Account: acct, At: now}

	if jobType.IsPosting() {
		next := NextPostingDate(effectiveDate, acct.PostingFrequency)
		success.LastPostingDate = &effectiveDate
		success.NextPostingDate = &next
	} else {
		success.LastAccrualDate = &effectiveDate
	}

	return success
}
