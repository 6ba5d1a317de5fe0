package cmd

import (
	"context"
	"fmt"

	"interestbatch/api"
	"interestbatch/models"
	"interestbatch/scheduler"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context())
		},
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting interest batch engine...")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Executions left RUNNING by a previous process would block their job type forever
	recovered, err := a.engine.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned executions: %w", err)
	}
	if recovered > 0 {
		log.WithField("count", recovered).Warn("Marked orphaned executions as failed")
	}

	var sched *scheduler.Scheduler
	if a.cfg.SchedulerEnabled {
		sched = scheduler.New(a.engine)
		if err := sched.Schedule(a.cfg.AccrualSchedule, models.JobTypeDailyInterestAccrual); err != nil {
			return err
		}
		if err := sched.Schedule(a.cfg.PostingSchedule, models.JobTypeInterestPosting); err != nil {
			return err
		}
		sched.Start()
	} else {
		log.Info("Scheduler disabled; jobs run only when triggered")
	}

	server := api.NewServer(a.cfg.HTTPAddr, a.engine, a.metrics.Handler())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.WithField("environment", a.cfg.Environment).Info("Interest batch engine is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	log.Info("Shutting down interest batch engine...")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Error shutting down HTTP server")
	}

	return nil
}
