package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interestbatch/models"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultPageSize is used when a listing does not ask for a page size
	DefaultPageSize = 50
	// MaxPageSize caps the page size of any listing
	MaxPageSize = 500

	orphanMessage   = "interrupted: engine restarted"
	shutdownMessage = "interrupted: engine shutting down"
)

// Engine runs interest batches. It owns the background goroutines that process
// triggered executions; Shutdown waits for them.
type Engine struct {
	uowFactory UnitOfWorkFactory
	calculator CalculationEngine
	metrics    MetricsRecorder
	now        func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates a new engine. A nil metrics recorder disables per-account metrics.
func NewEngine(uowFactory UnitOfWorkFactory, calculator CalculationEngine, metrics MetricsRecorder) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		uowFactory: uowFactory,
		calculator: calculator,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// RecoverOrphans fails executions left RUNNING by a process that died mid-batch.
// It must run before the engine accepts triggers.
func (e *Engine) RecoverOrphans(ctx context.Context) (int64, error) {
	var recovered int64
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		now := e.now()
		n, err := uow.ExecutionRepository().FailOrphaned(ctx, now, &models.ErrorDetails{
			Message:   orphanMessage,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
		recovered = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned executions: %w", err)
	}

	if recovered > 0 {
		log.WithField("count", recovered).Warn("Marked orphaned executions as failed")
	}

	return recovered, nil
}

// Shutdown stops dispatching new chunks and waits for running batches to wind down
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All running batches stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for running batches: %w", ctx.Err())
	}
}

// Wait blocks until every dispatched batch has finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

// dispatch runs the execution on a goroutine owned by the engine, detached from the caller's context
func (e *Engine) dispatch(exec *models.Execution, cfg *models.JobConfig) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runExecution(e.baseCtx, exec, cfg)
	}()
}

// withUnitOfWork runs fn inside a transaction, committing only when fn succeeds
func (e *Engine) withUnitOfWork(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// normalizePage applies listing defaults and limits
func normalizePage(page models.Page) models.Page {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = DefaultPageSize
	}
	if page.PageSize > MaxPageSize {
		page.PageSize = MaxPageSize
	}
	return page
}

type noopMetrics struct{}

func (noopMetrics) AccountStarted(models.JobType) {}

func (noopMetrics) AccountFinished(models.JobType, models.AccountResultStatus, time.Duration) {}
