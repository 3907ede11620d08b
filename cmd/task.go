package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Task management commands",
	Long:  `Queue deferred work by hand, e.g. to re-send a tenant notification`,
}

var enqueueTaskCmd = &cobra.Command{
	Use:   "enqueue [task-type]",
	Short: "Queue a task",
	Long: `Queue a task of the given type. With the local driver the task runs in this process
before the command returns; with the kafka driver it is published for the worker.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := enqueueTask(cmd.Context(), tasks.Type(args[0])); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to enqueue task: %v\n", err)
			os.Exit(1)
		}
	},
}

var (
	taskTenantID int64
	taskArgs     []string
)

func enqueueTask(ctx context.Context, taskType tasks.Type) error {
	args, err := parseTaskArgs(taskArgs)
	if err != nil {
		return err
	}

	deps, err := initializeDependencies()
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	if !deps.TaskRouter.Handles(taskType) {
		return fmt.Errorf("unknown task type %q", taskType)
	}

	task := tasks.New(taskType, taskTenantID, args)
	deps.Logger.Info("enqueueing task", "task_id", task.ID, "task_type", task.Type, "tenant_id", task.TenantID)

	if deps.Publisher != nil {
		return deps.Publisher.Enqueue(ctx, task)
	}
	return deps.TaskRouter.Handle(ctx, task)
}

// parseTaskArgs reads key=value pairs. Integer values are stored as int64.
func parseTaskArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid task arg %q, expected key=value", pair)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			args[key] = n
			continue
		}
		args[key] = value
	}
	return args, nil
}

func init() {
	enqueueTaskCmd.Flags().Int64Var(&taskTenantID, "tenant", 0, "Tenant id the task belongs to")
	enqueueTaskCmd.Flags().StringArrayVar(&taskArgs, "arg", nil, "Task argument as key=value, repeatable")

	taskCmd.AddCommand(enqueueTaskCmd)
}
