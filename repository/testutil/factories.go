package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"interestbatch/database"
	"interestbatch/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CreateTestJobConfig creates a job config with sensible defaults
func CreateTestJobConfig(jobType models.JobType) *models.JobConfig {
	return &models.JobConfig{
		JobType:              jobType,
		BatchSize:            100,
		MaxRetries:           3,
		RetryIntervalMinutes: 5,
		TimeoutSeconds:       300,
		ParallelThreads:      4,
		Enabled:              true,
		AccountTypes:         []string{"SAVINGS"},
		Parameters:           map[string]any{},
	}
}

// CreateTestExecution creates a RUNNING execution for a job type
func CreateTestExecution(jobType models.JobType) *models.Execution {
	return &models.Execution{
		ID:              uuid.New(),
		JobType:         jobType,
		StartedAt:       time.Now().UTC().Truncate(time.Microsecond),
		Status:          models.ExecutionStatusRunning,
		BatchParameters: map[string]any{},
	}
}

// CreateTestAccount creates an ACTIVE account
func CreateTestAccount(id, accountType string) *models.Account {
	return &models.Account{
		ID:               id,
		AccountNumber:    "ACC-" + id,
		AccountType:      accountType,
		Status:           models.AccountStateActive,
		AccrualFrequency: models.FrequencyDaily,
		PostingFrequency: models.FrequencyMonthly,
	}
}

// InsertAccounts writes accounts straight into the accounts table
func InsertAccounts(t *testing.T, db *database.DB, accounts ...*models.Account) {
	t.Helper()
	ctx := context.Background()

	for _, acct := range accounts {
		_, err := db.Exec(ctx, `
			INSERT INTO accounts (id, account_number, account_type, status, accrual_frequency, posting_frequency)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, acct.ID, acct.AccountNumber, acct.AccountType, acct.Status, acct.AccrualFrequency, acct.PostingFrequency)
		require.NoError(t, err, fmt.Sprintf("insert account %s", acct.ID))
	}
}

// Date returns midnight UTC on the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
