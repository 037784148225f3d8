// Package dependency assembles the daemon's object graph.
package dependency

import (
	"os"
	"path/filepath"

	"go.uber.org/dig"

	"github.com/muxworks/mux/internal/agent"
	"github.com/muxworks/mux/internal/ai"
	"github.com/muxworks/mux/internal/bus"
	"github.com/muxworks/mux/internal/config"
	"github.com/muxworks/mux/internal/gateway"
	"github.com/muxworks/mux/internal/history"
	"github.com/muxworks/mux/internal/maintenance"
	"github.com/muxworks/mux/internal/partial"
	"github.com/muxworks/mux/internal/providers"
	"github.com/muxworks/mux/internal/schema"
	"github.com/muxworks/mux/internal/task"
	"github.com/muxworks/mux/internal/tools"
	"github.com/muxworks/mux/internal/workspace"
)

// App bundles the constructed services a command needs to run the daemon.
type App struct {
	dig.In

	Config     *config.Config
	Store      *config.Store
	Bus        *bus.Bus
	Engine     *ai.Service
	Workspaces *workspace.Service
	Tasks      *task.Service
	Gateway    *gateway.Server
	Sweeper    *maintenance.Sweeper
}

// BuildContainer wires every service. configPath may be empty for the
// default ~/.mux/config.json.
func BuildContainer(configPath string) (*dig.Container, error) {
	c := dig.New()

	constructors := []any{
		func() (*config.Config, error) { return config.Load(configPath) },
		bus.New,

		func(cfg *config.Config) (*config.Store, error) {
			return config.NewStore(
				filepath.Join(cfg.ResolvedDataDir(), "workspaces.json"),
				cfg.TaskSettings(),
			)
		},
		func(cfg *config.Config) (*history.Service, error) {
			return history.NewService(filepath.Join(cfg.ResolvedDataDir(), "history"))
		},
		func(cfg *config.Config) (*partial.Store, error) {
			return partial.NewStore(filepath.Join(cfg.ResolvedDataDir(), "partials"))
		},
		func(cfg *config.Config) (*agent.Library, error) {
			return agent.LoadLibrary(filepath.Join(cfg.ResolvedDataDir(), "agents"))
		},

		func(cfg *config.Config) schema.LLMProvider {
			defaults := cfg.Agents.Defaults
			_, pc := cfg.MatchProvider(defaults.Model)
			return providers.New(providers.Params{
				APIKey:       pc.APIKey,
				APIBase:      pc.APIBase,
				DefaultModel: defaults.Model,
				ExtraHeaders: pc.ExtraHeaders,
			})
		},

		func(lib *agent.Library) *tools.TaskTool {
			return tools.NewTaskTool(lib.Types)
		},
		func(taskTool *tools.TaskTool) *tools.Registry {
			wd, err := os.Getwd()
			if err != nil {
				wd = "."
			}
			return tools.NewRegistryBuilder().
				WithTool(tools.NewExecTool(wd, 0)).
				WithTool(tools.NewReadFileTool(wd)).
				WithTool(tools.NewWriteFileTool(wd)).
				WithTool(taskTool).
				WithTool(tools.NewAgentReportTool()).
				Build()
		},

		func(cfg *config.Config, p schema.LLMProvider, reg *tools.Registry,
			hist *history.Service, parts *partial.Store, b *bus.Bus) *ai.Service {
			d := cfg.Agents.Defaults
			return ai.NewService(p, reg, hist, parts, b, d.MaxTokens, d.Temperature, d.MaxToolIter)
		},
		func(cfg *config.Config, store *config.Store, hist *history.Service,
			parts *partial.Store, engine *ai.Service, b *bus.Bus) *workspace.Service {
			return workspace.NewService(store, hist, parts, engine, b, cfg.ResolvedDataDir())
		},
		func(cfg *config.Config, store *config.Store, wss *workspace.Service,
			hist *history.Service, parts *partial.Store, b *bus.Bus,
			lib *agent.Library) *task.Service {
			d := cfg.Agents.Defaults
			return task.NewService(store, wss, hist, parts, wss, b, lib, d.Model, d.Thinking)
		},

		func(cfg *config.Config, store *config.Store, b *bus.Bus) *gateway.Server {
			return gateway.NewServer(cfg.Gateway.Port, store, b)
		},
		func(tasks *task.Service) *maintenance.Sweeper {
			return maintenance.NewSweeper(tasks)
		},
	}

	for _, ctor := range constructors {
		if err := c.Provide(ctor); err != nil {
			return nil, err
		}
	}

	// The task orchestrator sits on both sides of the stream engine and the
	// task tool, so those edges are bound after construction.
	if err := c.Invoke(func(engine *ai.Service, taskTool *tools.TaskTool, tasks *task.Service) {
		engine.SetTaskSpawner(tasks)
		taskTool.SetSpawner(tasks)
	}); err != nil {
		return nil, err
	}

	return c, nil
}
