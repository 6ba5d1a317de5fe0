package repository

import (
	"context"
	"fmt"

	"interestbatch/database"
	"interestbatch/models"

	"github.com/jackc/pgx/v5"
)

// AccountStatusRepository implements the AccountStatusRepository interface
type AccountStatusRepository struct {
	q queryable
}

// NewAccountStatusRepository creates a new account status repository
func NewAccountStatusRepository(db *database.DB) *AccountStatusRepository {
	return &AccountStatusRepository{q: db.Pool}
}

// newAccountStatusRepositoryWithTx creates a new account status repository with a transaction
func newAccountStatusRepositoryWithTx(tx queryable) *AccountStatusRepository {
	return &AccountStatusRepository{q: tx}
}

// GetByAccountID retrieves the ledger row for an account
func (r *AccountStatusRepository) GetByAccountID(ctx context.Context, accountID string) (*models.AccountStatus, error) {
	query := `
		SELECT account_id, account_type, account_number, last_accrual_date, last_posting_date,
		       next_posting_date, accrual_frequency, posting_frequency, status, error_count,
		       last_error_message, last_successful_run, created_at, updated_at
		FROM interest_batch_account_status
		WHERE account_id = $1
	`

	var status models.AccountStatus
	err := r.q.QueryRow(ctx, query, accountID).Scan(
		&status.AccountID,
		&status.AccountType,
		&status.AccountNumber,
		&status.LastAccrualDate,
		&status.LastPostingDate,
		&status.NextPostingDate,
		&status.AccrualFrequency,
		&status.PostingFrequency,
		&status.Status,
		&status.ErrorCount,
		&status.LastErrorMessage,
		&status.LastSuccessfulRun,
		&status.CreatedAt,
		&status.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account status for %s: %w", accountID, err)
	}

	return &status, nil
}

// RecordSuccess upserts the ledger row after a successful attempt.
// Nil dates keep whatever is stored.
func (r *AccountStatusRepository) RecordSuccess(ctx context.Context, success *models.AccountStatusSuccess) error {
	acct := success.Account

	query := `
		INSERT INTO interest_batch_account_status
		(account_id, account_type, account_number, last_accrual_date, last_posting_date,
		 next_posting_date, accrual_frequency, posting_frequency, status, error_count,
		 last_error_message, last_successful_run, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NULL, $10, $10)
		ON CONFLICT (account_id) DO UPDATE SET
			account_type = EXCLUDED.account_type,
			account_number = EXCLUDED.account_number,
			last_accrual_date = COALESCE(EXCLUDED.last_accrual_date, interest_batch_account_status.last_accrual_date),
			last_posting_date = COALESCE(EXCLUDED.last_posting_date, interest_batch_account_status.last_posting_date),
			next_posting_date = COALESCE(EXCLUDED.next_posting_date, interest_batch_account_status.next_posting_date),
			accrual_frequency = EXCLUDED.accrual_frequency,
			posting_frequency = EXCLUDED.posting_frequency,
			status = EXCLUDED.status,
			error_count = 0,
			last_error_message = NULL,
			last_successful_run = EXCLUDED.last_successful_run,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		acct.ID,
		acct.AccountType,
		acct.AccountNumber,
		dateOnly(success.LastAccrualDate),
		dateOnly(success.LastPostingDate),
		dateOnly(success.NextPostingDate),
		acct.AccrualFrequency,
		acct.PostingFrequency,
		acct.Status,
		success.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record success for account %s: %w", acct.ID, err)
	}

	return nil
}

// RecordFailure upserts the ledger row after a failed attempt; dates are untouched
func (r *AccountStatusRepository) RecordFailure(ctx context.Context, failure *models.AccountStatusFailure) error {
	acct := failure.Account

	query := `
		INSERT INTO interest_batch_account_status
		(account_id, account_type, account_number, accrual_frequency, posting_frequency,
		 status, error_count, last_error_message, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			error_count = interest_batch_account_status.error_count + 1,
			last_error_message = EXCLUDED.last_error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		acct.ID,
		acct.AccountType,
		acct.AccountNumber,
		acct.AccrualFrequency,
		acct.PostingFrequency,
		acct.Status,
		failure.ErrorMessage,
		failure.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record failure for account %s: %w", acct.ID, err)
	}

	return nil
}
