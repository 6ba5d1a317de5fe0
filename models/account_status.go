package models

import (
	"time"
)

// Frequency names how often an account accrues or posts interest
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyBiweekly  Frequency = "BIWEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyBiannual  Frequency = "BIANNUAL"
	FrequencyAnnual    Frequency = "ANNUAL"
)

// AccountStatus is the long-lived scheduling state of one account
type AccountStatus struct {
	AccountID         string     `db:"account_id" json:"accountId"`
	AccountType       string     `db:"account_type" json:"accountType"`
	AccountNumber     string     `db:"account_number" json:"accountNumber"`
	LastAccrualDate   *time.Time `db:"last_accrual_date" json:"lastAccrualDate,omitempty"`
	LastPostingDate   *time.Time `db:"last_posting_date" json:"lastPostingDate,omitempty"`
	NextPostingDate   *time.Time `db:"next_posting_date" json:"nextPostingDate,omitempty"`
	AccrualFrequency  Frequency  `db:"accrual_frequency" json:"accrualFrequency"`
	PostingFrequency  Frequency  `db:"posting_frequency" json:"postingFrequency"`
	Status            string     `db:"status" json:"status"`
	ErrorCount        int        `db:"error_count" json:"errorCount"`
	LastErrorMessage  *string    `db:"last_error_message" json:"lastErrorMessage,omitempty"`
	LastSuccessfulRun *time.Time `db:"last_successful_run" json:"lastSuccessfulRun,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// AccountStatusSuccess describes the ledger change after a successful attempt.
// Nil dates leave the stored value untouched.
type AccountStatusSuccess struct {
	Account         *Account
	LastAccrualDate *time.Time
	LastPostingDate *time.Time
	NextPostingDate *time.Time
	At              time.Time
}

// AccountStatusFailure describes the ledger change after a failed attempt
type AccountStatusFailure struct {
	Account      *Account
	ErrorMessage string
	At           time.Time
}
