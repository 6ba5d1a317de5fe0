package models

import (
	"time"
)

// JobType identifies one of the fixed batch kinds
type JobType string

const (
	JobTypeDailyInterestAccrual JobType = "DAILY_INTEREST_ACCRUAL"
	JobTypeInterestPosting      JobType = "INTEREST_POSTING"
)

// SupportedJobTypes lists every job type the engine knows how to run
var SupportedJobTypes = []JobType{
	JobTypeDailyInterestAccrual,
	JobTypeInterestPosting,
}

// IsSupported reports whether the job type is one the engine can run
func (t JobType) IsSupported() bool {
	for _, supported := range SupportedJobTypes {
		if t == supported {
			return true
		}
	}
	return false
}

// IsPosting reports whether the job type credits interest rather than accruing it
func (t JobType) IsPosting() bool {
	return t == JobTypeInterestPosting
}

// JobConfig holds operator-managed settings for one job type
type JobConfig struct {
	JobType              JobType        `db:"job_type" json:"jobType" yaml:"jobType"`
	BatchSize            int            `db:"batch_size" json:"batchSize" yaml:"batchSize"`
	MaxRetries           int            `db:"max_retries" json:"maxRetries" yaml:"maxRetries"`
	RetryIntervalMinutes int            `db:"retry_interval_minutes" json:"retryIntervalMinutes" yaml:"retryIntervalMinutes"`
	TimeoutSeconds       int            `db:"timeout_seconds" json:"timeoutSeconds" yaml:"timeoutSeconds"`
	ParallelThreads      int            `db:"parallel_threads" json:"parallelThreads" yaml:"parallelThreads"`
	Enabled              bool           `db:"enabled" json:"enabled" yaml:"enabled"`
	AccountTypes         []string       `db:"account_types" json:"accountTypes" yaml:"accountTypes"`
	Parameters           map[string]any `db:"parameters" json:"parameters,omitempty" yaml:"parameters"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updatedAt" yaml:"-"`
}

// JobConfigPatch carries a partial update; nil fields keep their stored value
type JobConfigPatch struct {
	BatchSize            *int           `json:"batchSize,omitempty"`
	MaxRetries           *int           `json:"maxRetries,omitempty"`
	RetryIntervalMinutes *int           `json:"retryIntervalMinutes,omitempty"`
	TimeoutSeconds       *int           `json:"timeoutSeconds,omitempty"`
	ParallelThreads      *int           `json:"parallelThreads,omitempty"`
	Enabled              *bool          `json:"enabled,omitempty"`
	AccountTypes         []string       `json:"accountTypes,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p *JobConfigPatch) IsEmpty() bool {
	return p.BatchSize == nil &&
		p.MaxRetries == nil &&
		p.RetryIntervalMinutes == nil &&
		p.TimeoutSeconds == nil &&
		p.ParallelThreads == nil &&
		p.Enabled == nil &&
		p.AccountTypes == nil &&
		p.Parameters == nil
}

// Apply returns a copy of cfg with the patch merged over it
func (p *JobConfigPatch) Apply(cfg *JobConfig) *JobConfig {
	merged := *cfg
	if p.BatchSize != nil {
		merged.BatchSize = *p.BatchSize
	}
	if p.MaxRetries != nil {
		merged.MaxRetries = *p.MaxRetries
	}
	if p.RetryIntervalMinutes != nil {
		merged.RetryIntervalMinutes = *p.RetryIntervalMinutes
	}
	if p.TimeoutSeconds != nil {
		merged.TimeoutSeconds = *p.TimeoutSeconds
	}
	if p.ParallelThreads != nil {
		merged.ParallelThreads = *p.ParallelThreads
	}
	if p.Enabled != nil {
		merged.Enabled = *p.Enabled
	}
	if p.AccountTypes != nil {
		merged.AccountTypes = p.AccountTypes
	}
	if p.Parameters != nil {
		merged.Parameters = p.Parameters
	}
	return &merged
}
