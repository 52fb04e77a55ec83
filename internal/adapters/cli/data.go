package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewDataCommand creates the data command with subcommands
func NewDataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage stored data",
	}

	cmd.AddCommand(newDataClearAllCommand())

	return cmd
}

func newDataClearAllCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete all master data, sales, results and task history",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("This deletes ALL stored data. Type 'yes' to continue: ")
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.TrimSpace(line) != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			deleted, err := client.ClearAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear data: %w", err)
			}

			fmt.Println("✓ All data cleared")
			names := make([]string, 0, len(deleted))
			for name := range deleted {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-20s %d rows\n", name+":", deleted[name])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}
