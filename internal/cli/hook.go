package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
)

const (
	HookStart = "# >>> atlas sync hook >>>"
	HookEnd   = "# <<< atlas sync hook <<<"
)

func RunInstallHook(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd)
	if err != nil {
		return err
	}

	repoRoot, gitDir, err := ResolveGitPaths(rootPath)
	if err != nil {
		return err
	}

	hookPath := filepath.Join(gitDir, "hooks", "pre-commit")
	if err := os.MkdirAll(filepath.Dir(hookPath), 0755); err != nil {
		return fmt.Errorf("failed to create hook directory: %w", err)
	}

	existing := ""
	if data, err := os.ReadFile(hookPath); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read existing hook: %w", err)
	}

	updated := UpsertSyncHook(existing, repoRoot, args[0])
	if err := os.WriteFile(hookPath, []byte(updated), 0755); err != nil {
		return fmt.Errorf("failed to write hook: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Installed pre-commit hook at %s\n", hookPath)
	return nil
}

func ResolveGitPaths(workingDir string) (repoRoot string, gitDir string, err error) {
	repoRootOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", "", fmt.Errorf("not inside a git repository")
	}

	gitDirOut, err := exec.Command("git", "-C", workingDir, "rev-parse", "--git-dir").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve git directory: %w", err)
	}

	repoRoot = strings.TrimSpace(string(repoRootOut))
	gitDir = strings.TrimSpace(string(gitDirOut))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(repoRoot, gitDir)
	}
	return repoRoot, gitDir, nil
}

func UpsertSyncHook(existingHook, repoRoot, graphRef string) string {
	block := BuildSyncHookBlock(repoRoot, graphRef)

	if existingHook == "" {
		return "#!/bin/sh\n\n" + block + "\n"
	}

	start := strings.Index(existingHook, HookStart)
	end := strings.Index(existingHook, HookEnd)
	if start >= 0 && end >= start {
		end += len(HookEnd)
		updated := existingHook[:start] + block + existingHook[end:]
		return fileutil.EnsureTrailingNewline(updated)
	}

	base := fileutil.EnsureTrailingNewline(existingHook)
	if !strings.HasPrefix(base, "#!") {
		base = "#!/bin/sh\n" + base
	}
	return base + "\n" + block + "\n"
}

// BuildSyncHookBlock syncs the graph before each commit. Drift is reported
// but never blocks the commit.
func BuildSyncHookBlock(repoRoot, graphRef string) string {
	return fmt.Sprintf(
		"%s\nrepo_root=%q\nif command -v atlas >/dev/null 2>&1; then\n  (cd \"$repo_root\" && atlas sync %q) || echo \"atlas sync failed\" >&2\nfi\n%s",
		HookStart,
		repoRoot,
		graphRef,
		HookEnd,
	)
}
