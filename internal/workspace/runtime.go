package workspace

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/muxworks/mux/internal/schema"
)

const gitTimeout = 30 * time.Second

// ResolveRuntime decides which runtime a child task workspace inherits. A
// worktree parent hands down a fresh worktree cut from the same trunk; a
// local parent shares its directory, but only if the project is a git repo
// at all, so a broken git setup degrades to local rather than failing task
// creation.
func (s *Service) ResolveRuntime(parent schema.WorkspaceMeta) schema.RuntimeConfig {
	if parent.Runtime.Type == schema.RuntimeWorktree {
		trunk := parent.Runtime.TrunkBranch
		if trunk == "" {
			trunk = DetectTrunkBranch(parent.ProjectPath)
		}
		return schema.RuntimeConfig{Type: schema.RuntimeWorktree, TrunkBranch: trunk}
	}
	return schema.RuntimeConfig{Type: schema.RuntimeLocal}
}

// DetectTrunkBranch finds the project's trunk: the current branch when on
// one, else origin's default branch, else "main".
func DetectTrunkBranch(projectPath string) string {
	if out, err := git(projectPath, "rev-parse", "--abbrev-ref", "HEAD"); err == nil && out != "HEAD" && out != "" {
		return out
	}
	if out, err := git(projectPath, "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil && out != "" {
		return strings.TrimPrefix(out, "origin/")
	}
	return "main"
}

func gitWorktreeAdd(ctx context.Context, projectPath, worktreePath, branch, trunk string) error {
	if trunk == "" {
		trunk = DetectTrunkBranch(projectPath)
	}
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "worktree", "add", "-b", branch, worktreePath, trunk)
	cmd.Dir = projectPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree add: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func gitWorktreeRemove(ctx context.Context, projectPath, worktreePath string) error {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "worktree", "remove", "--force", worktreePath)
	cmd.Dir = projectPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree remove: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func git(dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
