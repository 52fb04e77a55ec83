package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// NewUploadCommand creates the upload command
func NewUploadCommand() *cobra.Command {
	var (
		userID string
		wait   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <kind> <file>",
		Short: "Upload a TSV file for ingestion",
		Long: `Upload a TSV file for asynchronous ingestion.
Kind is one of: styles, stores, skus, sales.

Examples:
  noos upload styles ./styles.tsv
  noos upload sales ./sales.tsv --wait`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, filePath := args[0], args[1]
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			t, err := client.UploadFile(ctx, kind, filePath, userID)
			if err != nil {
				return fmt.Errorf("failed to submit upload: %w", err)
			}

			fmt.Printf("✓ Upload submitted: %s\n", t.ID)
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

	cmd.Flags().StringVar(&userID, "user", "", "User submitting the upload")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the task finishes")

	return cmd
}

// NewDownloadCommand creates the download command
func NewDownloadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <kind>",
		Short: "Export stored data as TSV",
		Long: `Submit an asynchronous export, wait for it to finish and save the
artifact. Kind is one of: styles, stores, skus, sales, noos.

Examples:
  noos download styles
  noos download noos --output ./classification.tsv`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()

			t, err := client.SubmitDownload(ctx, kind)
			if err != nil {
				return fmt.Errorf("failed to submit download: %w", err)
			}
			fmt.Printf("✓ Download submitted: %s\n", t.ID)

			final, err := watchTask(ctx, client, t.ID)
			if err != nil {
				return err
			}
			if err := reportOutcome(final); err != nil {
				return err
			}

			if output == "" {
				output = kind + ".tsv"
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer file.Close()

			if err := client.DownloadResult(ctx, final.ID, file); err != nil {
				return fmt.Errorf("failed to download result: %w", err)
			}
			fmt.Printf("✓ Saved to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Output file path (default <kind>.tsv)")

	return cmd
}

// NewFilesCommand creates the files status command
func NewFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "Show stored data per file kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			status, err := client.FileStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get file status: %w", err)
			}

			fmt.Printf("%-10s %-10s %-10s %s\n", "KIND", "ROWS", "STATE", "LAST UPLOAD")
			fmt.Println("──────────────────────────────────────────────────────")

			kinds := make([]string, 0, len(status))
			for kind := range status {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)

			for _, kind := range kinds {
				fs := status[kind]
				state := "empty"
				if fs.Exists {
					state = "loaded"
				}
				note := ""
				switch {
				case fs.Processing:
					note = fmt.Sprintf("processing %.0f%% %s", fs.ProgressPercentage, fs.ProgressMessage)
				case fs.Failed:
					note = fmt.Sprintf("failed (%d error files)", len(fs.ErrorFiles))
				}
				fmt.Printf("%-10s %-10d %-10s %s\n", kind, fs.Count, state, note)
			}
			return nil
		},
	}
}
