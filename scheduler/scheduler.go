package scheduler

import (
	"context"
	"fmt"
	"time"

	"interestbatch/models"
	"interestbatch/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// JobTrigger starts executions
type JobTrigger interface {
	TriggerJob(ctx context.Context, req service.TriggerRequest) (*models.Execution, error)
}

// Scheduler triggers batch jobs on cron schedules
type Scheduler struct {
	cron    *cron.Cron
	trigger JobTrigger
	timeout time.Duration
}

// New creates a scheduler evaluating schedules in UTC
func New(trigger JobTrigger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		trigger: trigger,
		timeout: 30 * time.Second,
	}
}

// Schedule registers a job type with a standard five-field cron expression
// Schedule examples:
//   - "0 1 * * *"   - Every day at 01:00
//   - "0 2 1 * *"   - First day of every month at 02:00
//   - "@every 1h"   - Every hour
func (s *Scheduler) Schedule(schedule string, jobType models.JobType) error {
	if !jobType.IsSupported() {
		return fmt.Errorf("unsupported job type: %s", jobType)
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.RunNow(jobType)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, jobType, err)
	}

	log.WithFields(log.Fields{
		"schedule": schedule,
		"jobType":  jobType,
	}).Info("Job schedule registered")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running trigger calls
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

// RunNow triggers a job type immediately, outside its schedule.
// A run still in progress or a disabled configuration is not an error here.
func (s *Scheduler) RunNow(jobType models.JobType) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	fields := log.Fields{"jobType": jobType}

	exec, err := s.trigger.TriggerJob(ctx, service.TriggerRequest{JobType: jobType})
	switch {
	case err == nil:
		fields["executionId"] = exec.ID
		log.WithFields(fields).Info("Scheduled execution triggered")
	case service.IsConflictError(err):
		log.WithFields(fields).WithError(err).Info("Skipping scheduled run, previous execution still running")
	case service.IsValidationError(err):
		log.WithFields(fields).WithError(err).Warn("Scheduled run rejected")
	default:
		log.WithFields(fields).WithError(err).Error("Failed to trigger scheduled run")
	}
}
