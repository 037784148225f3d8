package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muxworks/mux/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mux status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Println("mux status")
	fmt.Println()

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:     %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	dataDir := cfg.ResolvedDataDir()
	_, dirErr := os.Stat(dataDir)
	dirMark := "✗"
	if dirErr == nil {
		dirMark = "✓"
	}
	fmt.Printf("Data dir:   %s %s\n", dataDir, dirMark)
	fmt.Printf("Providers:  %d configured\n", len(cfg.Providers))
	fmt.Printf("Gateway:    port %d\n", cfg.Gateway.Port)

	settings := cfg.TaskSettings()
	fmt.Printf("Tasks:      max %d parallel, nesting depth %d\n",
		settings.MaxParallelAgentTasks, settings.MaxTaskNestingDepth)

	store, err := config.NewStore(
		filepath.Join(dataDir, "workspaces.json"), settings)
	if err == nil {
		fmt.Printf("Workspaces: %d (%d running tasks)\n",
			len(store.AllWorkspaces()), store.CountRunningAgentTasks())
	}
	return nil
}
