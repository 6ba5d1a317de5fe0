package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountResultStatus represents the outcome of processing one account
type AccountResultStatus string

const (
	AccountResultStatusSuccess AccountResultStatus = "SUCCESS"
	AccountResultStatusFailed  AccountResultStatus = "FAILED"
	AccountResultStatusSkipped AccountResultStatus = "SKIPPED"
)

// IsValid reports whether the status is a known account result status
func (s AccountResultStatus) IsValid() bool {
	switch s {
	case AccountResultStatusSuccess, AccountResultStatusFailed, AccountResultStatusSkipped:
		return true
	}
	return false
}

// AccountResult records one processing attempt of one account within an execution.
// Monetary amounts are in minor currency units.
type AccountResult struct {
	ID                 int64               `db:"id" json:"id"`
	ExecutionID        uuid.UUID           `db:"execution_id" json:"executionId"`
	AccountID          string              `db:"account_id" json:"accountId"`
	AccountNumber      string              `db:"account_number" json:"accountNumber"`
	AccountType        string              `db:"account_type" json:"accountType"`
	InterestCalculated *int64              `db:"interest_calculated" json:"interestCalculated,omitempty"`
	InterestPosted     *int64              `db:"interest_posted" json:"interestPosted,omitempty"`
	TaxAmount          *int64              `db:"tax_amount" json:"taxAmount,omitempty"`
	ProcessingTimeMs   int64               `db:"processing_time_ms" json:"processingTimeMs"`
	Status             AccountResultStatus `db:"status" json:"status"`
	ErrorMessage       *string             `db:"error_message" json:"errorMessage,omitempty"`
	ErrorDetails       map[string]any      `db:"error_details" json:"errorDetails,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"createdAt"`
}

// AccountResultFilter narrows an account result listing
type AccountResultFilter struct {
	ExecutionID uuid.UUID
	Status      *AccountResultStatus
}

// DailyResultStats aggregates account results recorded since a point in time
type DailyResultStats struct {
	AccountsProcessed   int     `json:"accountsProcessed"`
	InterestPosted      int64   `json:"interestPosted"`
	FailedAccounts      int     `json:"failedAccounts"`
	AvgProcessingTimeMs float64 `json:"avgProcessingTimeMs"`
}
