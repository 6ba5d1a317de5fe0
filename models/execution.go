package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the lifecycle state of an execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsValid reports whether the status is a known execution status
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusRunning, ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the execution can no longer change
func (s ExecutionStatus) IsTerminal() bool {
	return s != ExecutionStatusRunning
}

// ErrorDetails captures why an execution stopped abnormally
type ErrorDetails struct {
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Execution represents one run of one job type
type Execution struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	JobType            JobType         `db:"job_type" json:"jobType"`
	StartedAt          time.Time       `db:"started_at" json:"startedAt"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	Status             ExecutionStatus `db:"status" json:"status"`
	TotalAccounts      int             `db:"total_accounts" json:"totalAccounts"`
	ProcessedAccounts  int             `db:"processed_accounts" json:"processedAccounts"`
	SuccessfulAccounts int             `db:"successful_accounts" json:"successfulAccounts"`
	FailedAccounts     int             `db:"failed_accounts" json:"failedAccounts"`
	ExecutionTimeMs    *int64          `db:"execution_time_ms" json:"executionTimeMs,omitempty"`
	BatchParameters    map[string]any  `db:"batch_parameters" json:"batchParameters,omitempty"`
	ErrorDetails       *ErrorDetails   `db:"error_details" json:"errorDetails,omitempty"`
}

// ExecutionFilter narrows an execution listing; zero values mean "any"
type ExecutionFilter struct {
	JobType  *JobType
	Status   *ExecutionStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// ElapsedMs returns the milliseconds between start and the given end time
func (e *Execution) ElapsedMs(end time.Time) int64 {
	return end.Sub(e.StartedAt).Milliseconds()
}
