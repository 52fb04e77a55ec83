package cli

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const watchPollInterval = 2 * time.Second

// printTask renders a full task snapshot
func printTask(t *TaskInfo) {
	fmt.Printf("Task: %s\n", t.ID)
	fmt.Println("══════════════════════════════════════════════")
	fmt.Printf("  Type:       %s\n", t.TaskType)
	fmt.Printf("  Status:     %s\n", t.Status)
	if t.FileName != "" {
		fmt.Printf("  File:       %s\n", t.FileName)
	}
	fmt.Printf("  Progress:   %.1f%% %s\n", t.ProgressPercentage, t.ProgressMessage)
	fmt.Printf("  Records:    %d total, %d processed, %d errors, %d skipped\n",
		t.TotalRecords, t.ProcessedRecords, t.ErrorCount, t.SkippedCount)
	fmt.Printf("  Created:    %s\n", t.CreatedDate.Format("2006-01-02 15:04:05"))
	if t.StartTime != nil {
		fmt.Printf("  Started:    %s\n", t.StartTime.Format("2006-01-02 15:04:05"))
	}
	if t.EndTime != nil {
		fmt.Printf("  Finished:   %s\n", t.EndTime.Format("2006-01-02 15:04:05"))
	}
	if t.ErrorMessage != "" {
		fmt.Printf("  Error:      %s\n", t.ErrorMessage)
	}
	if t.ResultURL != "" {
		fmt.Printf("  Result:     %s\n", t.ResultURL)
	}
	if len(t.ErrorFiles) > 0 {
		fmt.Println("  Error files:")
		for _, name := range sortedKeys(t.ErrorFiles) {
			fmt.Printf("    %-28s %s\n", name, t.ErrorFiles[name])
		}
	}
}

// watchTask polls the task until it reaches a terminal state, printing a
// line whenever the visible progress changes
func watchTask(ctx context.Context, client *APIClient, taskID string) (*TaskInfo, error) {
	var lastPct float64 = -1
	var lastStatus string

	for {
		t, err := client.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if t.Status != lastStatus || t.ProgressPercentage != lastPct {
			fmt.Printf("  [%s] %.1f%% %s\n", t.Status, t.ProgressPercentage, t.ProgressMessage)
			lastStatus = t.Status
			lastPct = t.ProgressPercentage
		}
		if t.IsTerminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(watchPollInterval):
		}
	}
}

// reportOutcome prints the terminal summary and returns an error for
// unsuccessful terminal states so the process exits non-zero
func reportOutcome(t *TaskInfo) error {
	switch t.Status {
	case "COMPLETED":
		fmt.Printf("✓ Task completed: %d records processed, %d skipped\n",
			t.ProcessedRecords, t.SkippedCount)
		return nil
	case "CANCELLED":
		return fmt.Errorf("task %s was cancelled", t.ID)
	default:
		return fmt.Errorf("task %s failed: %s", t.ID, t.ErrorMessage)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
