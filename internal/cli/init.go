package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/config"
)

func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	cfgPath := config.DefaultPath(rootPath)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.Dir, err)
	}
	written, err := config.WriteDefault(cfgPath)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(out, "Wrote default config to %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already present at %s\n", cfgPath)
	}

	cfg, err := config.Load(rootPath)
	if err != nil {
		return err
	}
	if !cfg.HasCredential() {
		fmt.Fprintln(out, "No LLM credential found (set OPENAI_API_KEY or ATLAS_LLM_API_KEY); heuristic grouping and flows will be used.")
	}

	build, _ := OptionalBoolFlag(cmd, "build", false)
	if !build {
		return nil
	}
	if !hasSourceFiles(rootPath) {
		fmt.Fprintln(out, "No source files found; skipping build.")
		return nil
	}
	fmt.Fprintln(out, "Running initial build...")
	return RunBuild(cmd, nil)
}

func hasSourceFiles(rootPath string) bool {
	extensions := map[string]bool{".go": true, ".py": true, ".rb": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true}
	found := false
	_ = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || found {
			return filepath.SkipDir
		}
		if info.IsDir() {
			base := info.Name()
			if base == ".git" || base == "node_modules" || base == config.Dir || base == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if extensions[filepath.Ext(path)] {
			found = true
			return filepath.SkipDir
		}
		return nil
	})
	return found
}
