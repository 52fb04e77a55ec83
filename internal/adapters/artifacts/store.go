package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists task artifacts on the local filesystem, one directory per
// task under the configured root. Stored paths are returned to callers and
// recorded on the task row, so Open only ever serves paths under the root.
type Store struct {
	root string
}

// NewStore creates the artifact store, creating the root directory if
// needed
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Save writes data as a named artifact of the task and returns the stored
// path
func (s *Store) Save(ctx context.Context, taskID, name string, data []byte) (string, error) {
	path, err := s.prepare(taskID, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return path, nil
}

// Create opens a named artifact for streaming writes
func (s *Store) Create(ctx context.Context, taskID, name string) (io.WriteCloser, string, error) {
	path, err := s.prepare(taskID, name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create artifact %s: %w", name, err)
	}
	return f, path, nil
}

// Open reads back a previously stored artifact. Paths outside the store
// root are refused.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("artifact path %s is outside the store root", path)
	}

	f, err := os.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, nil
}

// Remove deletes all artifacts belonging to the task
func (s *Store) Remove(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	dir := filepath.Join(s.root, filepath.Base(taskID))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove artifacts for task %s: %w", taskID, err)
	}
	return nil
}

// prepare ensures the task directory exists and returns the target path.
// Artifact names are flattened so a name can never escape the task
// directory.
func (s *Store) prepare(taskID, name string) (string, error) {
	if taskID == "" {
		return "", fmt.Errorf("task id must not be empty")
	}
	if name == "" {
		return "", fmt.Errorf("artifact name must not be empty")
	}
	dir := filepath.Join(s.root, filepath.Base(taskID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}
