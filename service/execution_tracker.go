package service

import (
	"context"
	"fmt"
	"maps"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// ParamAccountIDs restricts an execution to the listed accounts
	ParamAccountIDs = "accountIds"
	// ParamReferenceDate overrides the date used for posting eligibility (YYYY-MM-DD)
	ParamReferenceDate = "referenceDate"
)

// TriggerRequest asks the engine to start an execution
type TriggerRequest struct {
	JobType    models.JobType `json:"jobType"`
	Parameters map[string]any `json:"parameters,omitempty"`
	AccountIDs []string       `json:"accountIds,omitempty"`
}

// TriggerJob validates the request, records a RUNNING execution and starts
// processing it in the background. It returns as soon as the row is committed.
func (e *Engine) TriggerJob(ctx context.Context, req TriggerRequest) (*models.Execution, error) {
	if !req.JobType.IsSupported() {
		return nil, NewValidationError("jobType", "unsupported job type %q", req.JobType)
	}

	var exec *models.Execution
	var cfg *models.JobConfig

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		cfg, err = uow.JobConfigRepository().GetByJobType(ctx, req.JobType)
		if err != nil {
			return fmt.Errorf("failed to load job config: %w", err)
		}
		if cfg == nil {
			return NewValidationError("jobType", "no configuration for job type %s", req.JobType)
		}
		if !cfg.Enabled {
			return NewValidationError("jobType", "job type %s is disabled", req.JobType)
		}

		running, err := uow.ExecutionRepository().GetRunningByJobType(ctx, req.JobType)
		if err != nil {
			return fmt.Errorf("failed to check running executions: %w", err)
		}
		if running != nil {
			return NewConflictError("execution %s of %s is already running", running.ID, req.JobType)
		}

		params, err := mergeParameters(cfg.Parameters, req.Parameters, req.AccountIDs)
		if err != nil {
			return err
		}

		exec = &models.Execution{
			ID:              uuid.New(),
			JobType:         req.JobType,
			StartedAt:       e.now(),
			Status:          models.ExecutionStatusRunning,
			BatchParameters: params,
		}
		if err := uow.ExecutionRepository().Create(ctx, exec); err != nil {
			return err
		}

		uow.EventBus().Publish(events.ExecutionStartedEvent{
			ExecutionID: exec.ID,
			JobType:     exec.JobType,
			StartedAt:   exec.StartedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"executionId": exec.ID,
		"jobType":     exec.JobType,
	}).Info("Execution started")

	e.dispatch(exec, cfg)

	return exec, nil
}

// GetExecution returns an execution by ID
func (e *Engine) GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	var exec *models.Execution
	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		exec, err = uow.ExecutionRepository().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if exec == nil {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}

	return exec, nil
}

// ListExecutions returns executions matching the filter, newest first
func (e *Engine) ListExecutions(ctx context.Context, filter models.ExecutionFilter, page models.Page) (*models.ExecutionList, error) {
	if filter.JobType != nil && !filter.JobType.IsSupported() {
		return nil, NewValidationError("jobType", "unsupported job type %q", *filter.JobType)
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, NewValidationError("status", "unknown execution status %q", *filter.Status)
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, NewValidationError("dateFrom", "must not be after dateTo")
	}

	page = normalizePage(page)
	list := &models.ExecutionList{Page: page.Page, PageSize: page.PageSize}

	err := e.withUnitOfWork(ctx, func(uow UnitOfWork) error {
		var err error
		list.Data, list.TotalCount, err = uow.ExecutionRepository().List(ctx, filter, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return list, nil
}

// mergeParameters layers config defaults, request parameters and explicit account IDs
func mergeParameters(defaults, overrides map[string]any, accountIDs []string) (map[string]any, error) {
	merged := make(map[string]any, len(defaults)+len(overrides)+1)
	maps.Copy(merged, defaults)
	maps.Copy(merged, overrides)

	if len(accountIDs) > 0 {
		merged[ParamAccountIDs] = accountIDs
	}

	if raw, ok := merged[ParamReferenceDate]; ok {
		value, isString := raw.(string)
		if !isString {
			return nil, NewValidationError(ParamReferenceDate, "must be a YYYY-MM-DD string")
		}
		if _, err := ParseReferenceDate(value); err != nil {
			return nil, NewValidationError(ParamReferenceDate, "%s", err.Error())
		}
	}

	if _, err := accountIDsFromParameters(merged); err != nil {
		return nil, err
	}

	return merged, nil
}
