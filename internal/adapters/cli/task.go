package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/infrastructure/config"
	"github.com/retailcore/noos-go/internal/infrastructure/database"
)

// NewTaskCommand creates the task command with subcommands
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and control tasks",
	}

	cmd.AddCommand(newTaskGetCommand())
	cmd.AddCommand(newTaskCancelCommand())
	cmd.AddCommand(newTaskWatchCommand())
	cmd.AddCommand(newTaskResultCommand())
	cmd.AddCommand(newTaskLogsCommand())

	return cmd
}

func newTaskGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Get a task snapshot",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			t, err := client.GetTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}
			printTask(t)
			return nil
		},
	}
}

func newTaskCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cooperative cancellation",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			t, err := client.CancelTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to cancel task: %w", err)
			}
			fmt.Printf("✓ Cancellation requested: %s\n", t.ID)
			fmt.Printf("  Status: %s\n", t.Status)
			return nil
		},
	}
}

func newTaskWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Poll a task until it finishes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			final, err := watchTask(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			return reportOutcome(final)
		},
	}
}

func newTaskResultCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Download a completed task's artifact",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if output == "" {
				output = taskID + ".tsv"
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer file.Close()

			if err := client.DownloadResult(ctx, taskID, file); err != nil {
				return fmt.Errorf("failed to download result: %w", err)
			}
			fmt.Printf("✓ Saved to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Output file path (default <task-id>.tsv)")

	return cmd
}

// newTaskLogsCommand reads task logs straight from the database
func newTaskLogsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs <task-id>",
		Short: "Get execution logs for a task",
		Long: `Retrieve the persisted execution log of a task from the database.

Examples:
  noos task logs file-upload-sales-1a2b3c4d
  noos task logs algorithm-run-9f8e7d6c --limit 50`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]

			cfg, err := config.LoadConfig("")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			logRepo := persistence.NewTaskLogRepository(db, nil)
			logs, err := logRepo.FindByTask(context.Background(), taskID, limit)
			if err != nil {
				return fmt.Errorf("failed to get logs: %w", err)
			}

			if len(logs) == 0 {
				fmt.Println("No logs found for task:", taskID)
				return nil
			}

			// Stored newest first; display oldest first
			for i := len(logs) - 1; i >= 0; i-- {
				entry := logs[i]
				fmt.Printf("[%s] [%s] %s\n",
					entry.Timestamp.Format("2006-01-02 15:04:05"),
					entry.Level,
					entry.Message,
				)
			}
			fmt.Printf("\nTotal: %d log entries\n", len(logs))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of log entries")

	return cmd
}
