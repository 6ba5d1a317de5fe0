package repository

import (
	"context"
	"fmt"
	"time"

	"interestbatch/database"
	"interestbatch/models"
)

const accountColumns = `a.id, a.account_number, a.account_type, a.status, a.accrual_frequency, a.posting_frequency`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// GetActiveByTypes returns ACTIVE accounts of the given types
func (r *AccountRepository) GetActiveByTypes(ctx context.Context, accountTypes []string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.status = $1
		  AND a.account_type = ANY($2)
		ORDER BY a.id
	`

	return r.queryAccounts(ctx, query, models.AccountStateActive, accountTypes)
}

// GetActiveByIDs returns the ACTIVE accounts among ids
func (r *AccountRepository) GetActiveByIDs(ctx context.Context, ids []string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.status = $1
		  AND a.id = ANY($2)
		ORDER BY a.id
	`

	return r.queryAccounts(ctx, query, models.AccountStateActive, ids)
}

// GetDueForPosting returns ACTIVE accounts whose next posting date has arrived.
// Accounts with no ledger row yet are always due.
func (r *AccountRepository) GetDueForPosting(ctx context.Context, accountTypes []string, referenceDate time.Time) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts a
		LEFT JOIN interest_batch_account_status s ON s.account_id = a.id
		WHERE a.status = $1
		  AND a.account_type = ANY($2)
		  AND (s.next_posting_date IS NULL OR s.next_posting_date <= $3)
		ORDER BY a.id
	`

	return r.queryAccounts(ctx, query, models.AccountStateActive, accountTypes, dateOnly(&referenceDate))
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		var acct models.Account
		if err := rows.Scan(
			&acct.ID,
			&acct.AccountNumber,
			&acct.AccountType,
			&acct.Status,
			&acct.AccrualFrequency,
			&acct.PostingFrequency,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}
