package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"interestbatch/config"
	"interestbatch/models"
	"interestbatch/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildTriggerCommand() *cobra.Command {
	var accountIDs []string
	var params []string

	cmd := &cobra.Command{
		Use:   "trigger <jobType>",
		Short: "Run a batch job in this process and wait for it to finish",
		Example: `  interestbatch trigger DAILY_INTEREST_ACCRUAL
  interestbatch trigger INTEREST_POSTING --param referenceDate=2024-01-31
  interestbatch trigger DAILY_INTEREST_ACCRUAL --account ACC-1 --account ACC-2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			exec, err := a.engine.TriggerJob(ctx, service.TriggerRequest{
				JobType:    models.JobType(args[0]),
				Parameters: parameters,
				AccountIDs: accountIDs,
			})
			if err != nil {
				return err
			}
			log.WithField("executionId", exec.ID).Info("Execution started, waiting for completion")

			done := make(chan struct{})
			go func() {
				a.engine.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				log.Warn("Interrupted, stopping execution")
				return ctx.Err()
			}

			final, err := a.engine.GetExecution(ctx, exec.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), final)
		},
	}

	cmd.Flags().StringArrayVar(&accountIDs, "account", nil, "Restrict the run to an account ID (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Execution parameter as key=value (repeatable)")

	return cmd
}

func buildCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <executionId>",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			exec, err := a.engine.CancelExecution(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), exec)
		},
	}
}

func buildConfigsCommand() *cobra.Command {
	configsCmd := &cobra.Command{
		Use:   "configs",
		Short: "Manage job configurations",
	}

	configsCmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or replace job configurations from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := config.LoadJobConfigFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			imported, err := a.engine.ImportConfigs(ctx, configs)
			if err != nil {
				return err
			}
			log.WithField("count", len(imported)).Info("Imported job configurations")
			return printJSON(cmd.OutOrStdout(), imported)
		},
	})

	return configsCmd
}

// parseParams turns key=value flags into execution parameters
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
