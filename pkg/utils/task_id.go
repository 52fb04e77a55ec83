package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateTaskID creates a standardized, human-readable task ID.
// Format: {taskTypeSlug}-{8charHexUUID}
//
// Example:
//   - Input: taskType="FILE_UPLOAD_SALES"
//   - Output: "file-upload-sales-a3f8e2b1"
//
// The generated IDs are:
//   - Human-readable with the task type up front
//   - Globally unique via UUID suffix
//   - Safe for use in URLs and file paths
func GenerateTaskID(taskType string) string {
	slug := strings.ToLower(strings.ReplaceAll(taskType, "_", "-"))
	return slug + "-" + generateShortUUID()
}

// generateShortUUID creates an 8-character hex string from a UUID.
// This provides sufficient uniqueness while keeping IDs compact.
func generateShortUUID() string {
	id := uuid.New()
	// Remove hyphens and take first 8 characters
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
