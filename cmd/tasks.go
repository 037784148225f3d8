package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muxworks/mux/internal/config"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List agent task workspaces",
	RunE:  runTasks,
}

func runTasks(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := config.NewStore(
		filepath.Join(cfg.ResolvedDataDir(), "workspaces.json"), cfg.TaskSettings())
	if err != nil {
		return fmt.Errorf("open workspace store: %w", err)
	}

	n := 0
	for _, w := range store.AllWorkspaces() {
		st := w.TaskState
		if st == nil {
			continue
		}
		n++
		fmt.Printf("%-16s %-36s %-12s %s\n", st.AgentType, w.ID, st.Status, w.Title)
	}
	if n == 0 {
		fmt.Println("No agent tasks.")
	}
	return nil
}
