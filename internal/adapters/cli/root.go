package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	verbose   bool
)

// usageError marks argument and flag mistakes so the entrypoint can exit
// with the invalid-arguments code
type usageError struct{ error }

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "noos",
		Short: "NOOS CLI - Interact with the retail classification server",
		Long: `NOOS CLI provides commands to manage retail master data, run the
NOOS classification algorithm and inspect task execution.
The CLI communicates with the server over its HTTP API.

Examples:
  noos upload styles ./styles.tsv --wait
  noos download sales --output ./sales.tsv
  noos task get file-upload-styles-1a2b3c4d
  noos run --bestseller-multiplier 1.5
  noos algo current
  noos report health
  noos dashboard`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getDefaultServerURL(),
		"Base URL of the NOOS server")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	// Add command groups
	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewDownloadCommand())
	rootCmd.AddCommand(NewFilesCommand())
	rootCmd.AddCommand(NewTaskCommand())
	rootCmd.AddCommand(NewAlgoCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewReportCommand())
	rootCmd.AddCommand(NewDashboardCommand())
	rootCmd.AddCommand(NewDataCommand())
	rootCmd.AddCommand(NewHealthCommand())

	return rootCmd
}

// getDefaultServerURL returns the default server base URL
func getDefaultServerURL() string {
	if url := os.Getenv("NOOS_SERVER"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// Execute runs the root command and returns the process exit code:
// 0 success, 2 invalid arguments, 3 any other failure.
func Execute() int {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 3
	}
	return 0
}

// exactArgs wraps the stock validator so arg-count mistakes carry the
// usage-error marker
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
