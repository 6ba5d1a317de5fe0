package events

import (
	"context"
	"sync"
	"time"

	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeExecutionStarted   EventType = "execution_started"
	EventTypeExecutionCompleted EventType = "execution_completed"
	EventTypeExecutionFailed    EventType = "execution_failed"
	EventTypeExecutionCancelled EventType = "execution_cancelled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ExecutionStartedEvent is emitted once an execution row exists and processing is dispatched
type ExecutionStartedEvent struct {
	ExecutionID uuid.UUID
	JobType     models.JobType
	StartedAt   time.Time
}

func (e ExecutionStartedEvent) Type() EventType {
	return EventTypeExecutionStarted
}

// ExecutionFinishedEvent is emitted when an execution reaches a terminal status
type ExecutionFinishedEvent struct {
	ExecutionID        uuid.UUID
	JobType            models.JobType
	Status             models.ExecutionStatus
	TotalAccounts      int
	ProcessedAccounts  int
	SuccessfulAccounts int
	FailedAccounts     int
	Duration           time.Duration
	ErrorMessage       string
}

func (e ExecutionFinishedEvent) Type() EventType {
	switch e.Status {
	case models.ExecutionStatusCompleted:
		return EventTypeExecutionCompleted
	case models.ExecutionStatusCancelled:
		return EventTypeExecutionCancelled
	default:
		return EventTypeExecutionFailed
	}
}

// NewExecutionFinishedEvent builds a finished event from a terminal execution
func NewExecutionFinishedEvent(exec *models.Execution) ExecutionFinishedEvent {
	ev := ExecutionFinishedEvent{
		ExecutionID:        exec.ID,
		JobType:            exec.JobType,
		Status:             exec.Status,
		TotalAccounts:      exec.TotalAccounts,
		ProcessedAccounts:  exec.ProcessedAccounts,
		SuccessfulAccounts: exec.SuccessfulAccounts,
		FailedAccounts:     exec.FailedAccounts,
	}
	if exec.ExecutionTimeMs != nil {
		ev.Duration = time.Duration(*exec.ExecutionTimeMs) * time.Millisecond
	}
	if exec.ErrorDetails != nil {
		ev.ErrorMessage = exec.ErrorDetails.Message
	}
	return ev
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Call handlers asynchronously to avoid blocking the batch
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits immediately; it lets the bus stand in where a publisher is expected
func (b *Bus) Publish(event Event) {
	b.Emit(context.Background(), event)
}

// TransactionalBus holds pending events coupled to a unit of work.
// Events reach the underlying bus only after a successful commit.
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	// Handlers outlive the transaction, so they get a fresh context
	eventCtx := context.Background()
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
