package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// paramFlags holds the per-field flags shared by the parameter commands.
// Only flags the user actually set are applied.
type paramFlags struct {
	liquidationThreshold   float64
	bestsellerMultiplier   float64
	minVolumeThreshold     float64
	consistencyThreshold   float64
	coreDurationMonths     int
	bestsellerDurationDays int
	analysisStart          string
	analysisEnd            string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.liquidationThreshold, "liquidation-threshold", 0, "Discount fraction above which a sale counts as liquidation")
	cmd.Flags().Float64Var(&f.bestsellerMultiplier, "bestseller-multiplier", 0, "Velocity multiple over the category benchmark")
	cmd.Flags().Float64Var(&f.minVolumeThreshold, "min-volume-threshold", 0, "Minimum total quantity for classification")
	cmd.Flags().Float64Var(&f.consistencyThreshold, "consistency-threshold", 0, "Fraction of active months required for CORE")
	cmd.Flags().IntVar(&f.coreDurationMonths, "core-duration-months", 0, "Months of history a CORE style must span")
	cmd.Flags().IntVar(&f.bestsellerDurationDays, "bestseller-duration-days", 0, "Days of history a BESTSELLER style must span")
	cmd.Flags().StringVar(&f.analysisStart, "analysis-start", "", "Analysis window start (YYYY-MM-DD, empty clears the window)")
	cmd.Flags().StringVar(&f.analysisEnd, "analysis-end", "", "Analysis window end (YYYY-MM-DD, empty clears the window)")
}

// apply overlays the flags the user set onto the given set
func (f *paramFlags) apply(cmd *cobra.Command, set *ParameterSetInfo) {
	if cmd.Flags().Changed("liquidation-threshold") {
		set.LiquidationThreshold = f.liquidationThreshold
	}
	if cmd.Flags().Changed("bestseller-multiplier") {
		set.BestsellerMultiplier = f.bestsellerMultiplier
	}
	if cmd.Flags().Changed("min-volume-threshold") {
		set.MinVolumeThreshold = f.minVolumeThreshold
	}
	if cmd.Flags().Changed("consistency-threshold") {
		set.ConsistencyThreshold = f.consistencyThreshold
	}
	if cmd.Flags().Changed("core-duration-months") {
		set.CoreDurationMonths = f.coreDurationMonths
	}
	if cmd.Flags().Changed("bestseller-duration-days") {
		set.BestsellerDurationDays = f.bestsellerDurationDays
	}
	if cmd.Flags().Changed("analysis-start") {
		set.AnalysisStartDate = optionalString(f.analysisStart)
	}
	if cmd.Flags().Changed("analysis-end") {
		set.AnalysisEndDate = optionalString(f.analysisEnd)
	}
}

// overrides builds the per-run override map for a classification submission
func (f *paramFlags) overrides(cmd *cobra.Command) map[string]interface{} {
	out := map[string]interface{}{}
	if cmd.Flags().Changed("liquidation-threshold") {
		out["liquidationThreshold"] = f.liquidationThreshold
	}
	if cmd.Flags().Changed("bestseller-multiplier") {
		out["bestsellerMultiplier"] = f.bestsellerMultiplier
	}
	if cmd.Flags().Changed("min-volume-threshold") {
		out["minVolumeThreshold"] = f.minVolumeThreshold
	}
	if cmd.Flags().Changed("consistency-threshold") {
		out["consistencyThreshold"] = f.consistencyThreshold
	}
	if cmd.Flags().Changed("core-duration-months") {
		out["coreDurationMonths"] = f.coreDurationMonths
	}
	if cmd.Flags().Changed("bestseller-duration-days") {
		out["bestsellerDurationDays"] = f.bestsellerDurationDays
	}
	if cmd.Flags().Changed("analysis-start") {
		out["analysisStartDate"] = nullableDate(f.analysisStart)
	}
	if cmd.Flags().Changed("analysis-end") {
		out["analysisEndDate"] = nullableDate(f.analysisEnd)
	}
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableDate keeps an explicitly empty flag as JSON null, which the
// server treats as "no window"
func nullableDate(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// NewAlgoCommand creates the algo command with subcommands
func NewAlgoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "algo",
		Short: "Manage classification parameter sets",
	}

	cmd.AddCommand(newAlgoCurrentCommand())
	cmd.AddCommand(newAlgoDefaultsCommand())
	cmd.AddCommand(newAlgoUpdateCommand())
	cmd.AddCommand(newAlgoCreateCommand())
	cmd.AddCommand(newAlgoGetCommand())
	cmd.AddCommand(newAlgoSetCommand())
	cmd.AddCommand(newAlgoActivateCommand())
	cmd.AddCommand(newAlgoRecentCommand())

	return cmd
}

func newAlgoCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active parameter set",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p, err := client.ActiveParameters(ctx)
			if err != nil {
				return fmt.Errorf("failed to get active parameters: %w", err)
			}
			printParameterSet(p)
			return nil
		},
	}
}

func newAlgoDefaultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Show the built-in default parameters",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p, err := client.DefaultParameters(ctx)
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}
			printParameterSet(p)
			return nil
		},
	}
}

func newAlgoUpdateCommand() *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of the active parameter set",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			current, err := client.ActiveParameters(ctx)
			if err != nil {
				return fmt.Errorf("failed to get active parameters: %w", err)
			}
			flags.apply(cmd, current)

			updated, err := client.UpdateActiveParameters(ctx, current)
			if err != nil {
				return fmt.Errorf("failed to update parameters: %w", err)
			}
			fmt.Println("✓ Active parameters updated")
			printParameterSet(updated)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newAlgoCreateCommand() *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a named parameter set",
		Long: `Create a new parameter set seeded from the built-in defaults.
Field flags override individual values.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			seed, err := client.DefaultParameters(ctx)
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}
			flags.apply(cmd, seed)

			created, err := client.CreateParameterSet(ctx, args[0], seed)
			if err != nil {
				return fmt.Errorf("failed to create parameter set: %w", err)
			}
			fmt.Printf("✓ Created parameter set: %s\n", created.ParameterSetName)
			printParameterSet(created)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newAlgoGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a named parameter set",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p, err := client.GetParameterSet(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get parameter set: %w", err)
			}
			printParameterSet(p)
			return nil
		},
	}
}

func newAlgoSetCommand() *cobra.Command {
	flags := &paramFlags{}

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Update fields of a named parameter set",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			current, err := client.GetParameterSet(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to get parameter set: %w", err)
			}
			flags.apply(cmd, current)

			updated, err := client.UpdateParameterSet(ctx, name, current)
			if err != nil {
				return fmt.Errorf("failed to update parameter set: %w", err)
			}
			fmt.Printf("✓ Updated parameter set: %s\n", updated.ParameterSetName)
			printParameterSet(updated)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newAlgoActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <name>",
		Short: "Make a named parameter set the active one",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p, err := client.ActivateParameterSet(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to activate parameter set: %w", err)
			}
			fmt.Printf("✓ Activated parameter set: %s\n", p.ParameterSetName)
			return nil
		},
	}
}

func newAlgoRecentCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently updated parameter sets",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sets, err := client.RecentParameterSets(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list parameter sets: %w", err)
			}
			if len(sets) == 0 {
				fmt.Println("No parameter sets found")
				return nil
			}

			fmt.Printf("%-20s %-7s %-24s %-17s %s\n", "NAME", "ACTIVE", "WINDOW", "LAST UPDATED", "THRESHOLDS")
			for i := range sets {
				p := &sets[i]
				active := ""
				if p.IsActive {
					active = "yes"
				}
				thresholds := fmt.Sprintf("liq=%.2f best=%.2f vol=%.1f cons=%.2f",
					p.LiquidationThreshold, p.BestsellerMultiplier, p.MinVolumeThreshold, p.ConsistencyThreshold)
				fmt.Printf("%-20s %-7s %-24s %-17s %s\n",
					truncate(p.ParameterSetName, 20), active, windowLabel(p), formatTimestamp(p.LastUpdated), thresholds)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of sets")

	return cmd
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	flags := &paramFlags{}
	var wait bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a classification run",
		Long: `Submit an asynchronous classification run over the loaded sales data.

Field flags override the active parameter set for this run only; the
stored set is not modified.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			t, err := client.RunNoos(ctx, flags.overrides(cmd))
			if err != nil {
				return fmt.Errorf("failed to start run: %w", err)
			}
			fmt.Printf("✓ Run submitted: %s\n", t.ID)

			if !wait {
				fmt.Printf("  Poll with: noos task get %s\n", t.ID)
				return nil
			}
			final, err := watchTask(cmd.Context(), client, t.ID)
			if err != nil {
				return err
			}
			return reportOutcome(final)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the run finishes")

	return cmd
}

func printParameterSet(p *ParameterSetInfo) {
	fmt.Printf("Parameter set: %s\n", p.ParameterSetName)
	fmt.Println("══════════════════════════════════════════════")
	fmt.Printf("  %-26s %.2f\n", "Liquidation threshold:", p.LiquidationThreshold)
	fmt.Printf("  %-26s %.2f\n", "Bestseller multiplier:", p.BestsellerMultiplier)
	fmt.Printf("  %-26s %.1f\n", "Min volume threshold:", p.MinVolumeThreshold)
	fmt.Printf("  %-26s %.2f\n", "Consistency threshold:", p.ConsistencyThreshold)
	fmt.Printf("  %-26s %d months\n", "Core duration:", p.CoreDurationMonths)
	fmt.Printf("  %-26s %d days\n", "Bestseller duration:", p.BestsellerDurationDays)
	fmt.Printf("  %-26s %s\n", "Analysis window:", windowLabel(p))
	fmt.Printf("  %-26s %v\n", "Active:", p.IsActive)
	if p.LastUpdated != "" {
		fmt.Printf("  %-26s %s\n", "Last updated:", formatTimestamp(p.LastUpdated))
	}
}

func windowLabel(p *ParameterSetInfo) string {
	if p.AnalysisStartDate == nil || p.AnalysisEndDate == nil {
		return "full history"
	}
	return fmt.Sprintf("%s to %s", *p.AnalysisStartDate, *p.AnalysisEndDate)
}

// formatTimestamp shortens an RFC3339 timestamp for table display
func formatTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}
