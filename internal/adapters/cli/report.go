package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewReportCommand creates the report command with subcommands
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show operational reports",
	}

	cmd.AddCommand(newReportNoosCommand())
	cmd.AddCommand(newReportHealthCommand())

	return cmd
}

func newReportNoosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "noos",
		Short: "Show classification run history",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			runs, err := client.NoosReport(ctx)
			if err != nil {
				return fmt.Errorf("failed to get report: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No classification runs recorded")
				return nil
			}

			fmt.Printf("%-17s %-20s %-10s %7s %6s %6s %8s %8s\n",
				"DATE", "ALGORITHM", "STATUS", "STYLES", "CORE", "BEST", "FASHION", "MINUTES")
			for i := range runs {
				r := &runs[i]
				fmt.Printf("%-17s %-20s %-10s %7d %6d %6d %8d %8.1f\n",
					r.ExecutionDate.Format("2006-01-02 15:04"),
					truncate(r.AlgorithmLabel, 20),
					r.ExecutionStatus,
					r.TotalStylesProcessed,
					r.CoreStyles,
					r.BestsellerStyles,
					r.FashionStyles,
					r.ExecutionTimeMinutes,
				)
			}
			return nil
		},
	}
}

func newReportHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show per-day task health",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			rows, err := client.HealthReport(ctx)
			if err != nil {
				return fmt.Errorf("failed to get report: %w", err)
			}
			if len(rows) == 0 {
				fmt.Println("No task history recorded")
				return nil
			}

			fmt.Printf("%-12s %-22s %6s %8s %7s %7s %8s %s\n",
				"DATE", "TASK TYPE", "TOTAL", "SUCCESS", "FAILED", "RATE", "AVG MIN", "STATUS")
			for i := range rows {
				r := &rows[i]
				fmt.Printf("%-12s %-22s %6d %8d %7d %6.1f%% %8.1f %s\n",
					r.Date,
					truncate(r.TaskType, 22),
					r.TotalTasks,
					r.SuccessfulTasks,
					r.FailedTasks,
					r.SuccessRate*100,
					r.AverageExecutionTime,
					r.SystemStatus,
				)
			}
			return nil
		},
	}
}

// NewDashboardCommand creates the dashboard command
func NewDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the operational dashboard",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			d, err := client.Dashboard(ctx)
			if err != nil {
				return fmt.Errorf("failed to get dashboard: %w", err)
			}

			fmt.Println("Dashboard")
			fmt.Println("══════════════════════════════════════════════")
			fmt.Printf("  %-26s %d (%s)\n", "Sales records:", d.TotalSalesRecords, d.SalesDataStatus)
			fmt.Printf("  %-26s %d styles, %d stores, %d SKUs (%s)\n",
				"Master data:", d.TotalStyles, d.TotalStores, d.TotalSkus, d.MasterDataStatus)
			fmt.Printf("  %-26s %d, %.1f%% success (%s)\n",
				"Recent uploads:", d.RecentUploads, d.UploadSuccessRate*100, d.RecentActivityStatus)
			fmt.Printf("  %-26s %d running, %d pending (%s)\n",
				"Tasks:", d.ActiveTasks, d.PendingTasks, d.ProcessingStatus)
			return nil
		},
	}
}
