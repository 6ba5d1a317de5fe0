package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// AuditLogger writes one structured line per execution lifecycle event
type AuditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates an audit logger; nil uses the standard logger
func NewAuditLogger(logger *log.Logger) *AuditLogger {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AuditLogger{logger: logger}
}

// Subscribe registers the audit logger for all execution events
func (a *AuditLogger) Subscribe(bus *Bus) {
	bus.Subscribe(EventTypeExecutionStarted, a.Handle)
	bus.Subscribe(EventTypeExecutionCompleted, a.Handle)
	bus.Subscribe(EventTypeExecutionFailed, a.Handle)
	bus.Subscribe(EventTypeExecutionCancelled, a.Handle)
}

// Handle logs a single event
func (a *AuditLogger) Handle(ctx context.Context, event Event) {
	entry := a.logger.WithFields(log.Fields{
		"audit":     true,
		"eventType": event.Type(),
	})

	switch e := event.(type) {
	case ExecutionStartedEvent:
		entry.WithFields(log.Fields{
			"executionId": e.ExecutionID,
			"jobType":     e.JobType,
			"startedAt":   e.StartedAt,
		}).Info("Execution started")
	case ExecutionFinishedEvent:
		entry = entry.WithFields(log.Fields{
			"executionId":        e.ExecutionID,
			"jobType":            e.JobType,
			"status":             e.Status,
			"totalAccounts":      e.TotalAccounts,
			"processedAccounts":  e.ProcessedAccounts,
			"successfulAccounts": e.SuccessfulAccounts,
			"failedAccounts":     e.FailedAccounts,
			"duration":           e.Duration,
		})
		if e.ErrorMessage != "" {
			entry = entry.WithField("error", e.ErrorMessage)
		}
		if e.Type() == EventTypeExecutionFailed {
			entry.Warn("Execution finished")
		} else {
			entry.Info("Execution finished")
		}
	default:
		entry.Debug("Unhandled audit event")
	}
}
