// Package partial stores each workspace's in-flight assistant message, the
// current streaming turn that has not yet been committed to durable history.
package partial

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/muxworks/mux/internal/schema"
)

// Store persists at most one partial message per workspace as a JSON file.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partial dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Read returns the workspace's partial message, or nil when none exists.
func (s *Store) Read(workspaceID string) (*schema.Message, error) {
	data, err := os.ReadFile(s.path(workspaceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read partial %s: %w", workspaceID, err)
	}
	var msg schema.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse partial %s: %w", workspaceID, err)
	}
	return &msg, nil
}

// Write replaces the workspace's partial message.
func (s *Store) Write(workspaceID string, msg schema.Message) error {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode partial: %w", err)
	}
	if err := os.WriteFile(s.path(workspaceID), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write partial %s: %w", workspaceID, err)
	}
	return nil
}

// Clear removes the workspace's partial message. Missing files are a no-op.
func (s *Store) Clear(workspaceID string) error {
	if err := os.Remove(s.path(workspaceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear partial %s: %w", workspaceID, err)
	}
	return nil
}

func (s *Store) path(workspaceID string) string {
	return filepath.Join(s.dir, workspaceID+".json")
}
