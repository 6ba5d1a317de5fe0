package models

// Page selects a window of a listing; Page is 1-based
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Summary is the operator dashboard view of the engine
type Summary struct {
	AccountsProcessedToday int          `json:"accountsProcessedToday"`
	InterestPostedToday    int64        `json:"interestPostedToday"`
	FailedAccountsToday    int          `json:"failedAccountsToday"`
	AvgProcessingTimeMs    float64      `json:"avgProcessingTimeMs"`
	LastCompletedRun       *Execution   `json:"lastCompletedRun,omitempty"`
	CurrentRunningJobs     []*Execution `json:"currentRunningJobs"`
	JobConfigurations      []*JobConfig `json:"jobConfigurations"`
}

// ExecutionList is one page of executions with the total number of matches
type ExecutionList struct {
	Data       []*Execution `json:"data"`
	TotalCount int          `json:"totalCount"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
}

// AccountResultList is one page of account results with the total number of matches
type AccountResultList struct {
	Data       []*AccountResult `json:"data"`
	TotalCount int              `json:"totalCount"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
}
