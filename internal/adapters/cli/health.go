package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is reachable",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("server is not responding: %w", err)
			}
			fmt.Printf("✓ Server is healthy: %s\n", serverURL)
			return nil
		},
	}
}
