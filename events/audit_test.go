package events

import (
	"context"
	"testing"
	"time"

	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Handle(t *testing.T) {
	logger, hook := test.NewNullLogger()
	audit := NewAuditLogger(logger)
	id := uuid.New()

	audit.Handle(context.Background(), ExecutionStartedEvent{
		ExecutionID: id,
		JobType:     models.JobTypeDailyInterestAccrual,
		StartedAt:   time.Now(),
	})

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "Execution started", entry.Message)
	assert.Equal(t, id, entry.Data["executionId"])
	assert.Equal(t, EventTypeExecutionStarted, entry.Data["eventType"])

	audit.Handle(context.Background(), ExecutionFinishedEvent{
		ExecutionID:       id,
		JobType:           models.JobTypeDailyInterestAccrual,
		Status:            models.ExecutionStatusFailed,
		ProcessedAccounts: 2,
		ErrorMessage:      "database unavailable",
	})

	entry = hook.LastEntry()
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "database unavailable", entry.Data["error"])
	assert.Equal(t, 2, entry.Data["processedAccounts"])
}

func TestAuditLogger_Subscribe(t *testing.T) {
	logger, hook := test.NewNullLogger()
	bus := NewBus()
	NewAuditLogger(logger).Subscribe(bus)

	bus.Emit(context.Background(), ExecutionFinishedEvent{
		ExecutionID: uuid.New(),
		JobType:     models.JobTypeInterestPosting,
		Status:      models.ExecutionStatusCompleted,
	})

	assert.Eventually(t, func() bool {
		entry := hook.LastEntry()
		return entry != nil && entry.Data["eventType"] == EventTypeExecutionCompleted
	}, 2*time.Second, 10*time.Millisecond)
}
