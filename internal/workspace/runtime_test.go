package workspace

import (
	"testing"

	"github.com/muxworks/mux/internal/schema"
)

func TestDetectTrunkBranchFallsBackToMain(t *testing.T) {
	// Not a git repo: detection must degrade, not fail.
	if got := DetectTrunkBranch(t.TempDir()); got != "main" {
		t.Fatalf("DetectTrunkBranch = %q, want main", got)
	}
}

func TestResolveRuntimeInheritsFromParent(t *testing.T) {
	s := &Service{}

	local := s.ResolveRuntime(schema.WorkspaceMeta{
		Runtime: schema.RuntimeConfig{Type: schema.RuntimeLocal},
	})
	if local.Type != schema.RuntimeLocal {
		t.Errorf("local parent -> %+v", local)
	}

	wt := s.ResolveRuntime(schema.WorkspaceMeta{
		ProjectPath: t.TempDir(),
		Runtime:     schema.RuntimeConfig{Type: schema.RuntimeWorktree, TrunkBranch: "develop"},
	})
	if wt.Type != schema.RuntimeWorktree || wt.TrunkBranch != "develop" {
		t.Errorf("worktree parent -> %+v", wt)
	}
}
