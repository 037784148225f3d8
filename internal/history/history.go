// Package history stores each workspace's durable message log as a JSONL
// file, one JSON message object per line, append-only except for in-place
// message updates (tool-output injection).
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/muxworks/mux/internal/schema"
)

// Service reads and writes per-workspace history files under dir.
type Service struct {
	dir string
}

// NewService creates a Service rooted at dir, creating it if necessary.
func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Service{dir: dir}, nil
}

// Get returns the full history for a workspace. A missing file yields an
// empty history, not an error.
func (s *Service) Get(workspaceID string) (schema.Messages, error) {
	f, err := os.Open(s.path(workspaceID))
	if err != nil {
		if os.IsNotExist(err) {
			return schema.NewMessages(), nil
		}
		return schema.Messages{}, fmt.Errorf("open history %s: %w", workspaceID, err)
	}
	defer f.Close()

	msgs := schema.NewMessages()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20) // 1 MB per line
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg schema.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Warn("skipping malformed history line", "workspace", workspaceID, "err", err)
			continue
		}
		msgs.Add(msg)
	}
	if err := scanner.Err(); err != nil {
		return schema.Messages{}, fmt.Errorf("read history %s: %w", workspaceID, err)
	}
	return msgs, nil
}

// Append adds a message to the end of the workspace history.
func (s *Service) Append(workspaceID string, msg schema.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	f, err := os.OpenFile(s.path(workspaceID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history %s: %w", workspaceID, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append history %s: %w", workspaceID, err)
	}
	return nil
}

// Update replaces the message with msg.ID in place and rewrites the file.
func (s *Service) Update(workspaceID string, msg schema.Message) error {
	msgs, err := s.Get(workspaceID)
	if err != nil {
		return err
	}

	found := false
	for i := range msgs.Messages {
		if msgs.Messages[i].ID == msg.ID {
			msgs.Messages[i] = msg
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("message %s not found in history %s", msg.ID, workspaceID)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, m := range msgs.Messages {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}
	if err := os.WriteFile(s.path(workspaceID), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rewrite history %s: %w", workspaceID, err)
	}
	return nil
}

// Remove deletes the workspace's history file. Missing files are a no-op.
func (s *Service) Remove(workspaceID string) error {
	if err := os.Remove(s.path(workspaceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove history %s: %w", workspaceID, err)
	}
	return nil
}

func (s *Service) path(workspaceID string) string {
	return filepath.Join(s.dir, workspaceID+".jsonl")
}
