package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// IgnoreFile holds extra ignore rules, one per line.
const IgnoreFile = ".atlasignore"

func resolveWorkingDirectory() (string, error) {
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

// resolveRoot returns --dir when set, else the working directory.
func resolveRoot(cmd *cobra.Command) (string, error) {
	dir := ""
	if cmd != nil && cmd.Flags().Lookup("dir") != nil {
		dir, _ = cmd.Flags().GetString("dir")
	}
	if strings.TrimSpace(dir) == "" {
		return resolveWorkingDirectory()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return abs, nil
}

func LoadIgnoreRules(rootPath string) ([]string, error) {
	ignorePath := filepath.Join(rootPath, IgnoreFile)
	f, err := os.Open(ignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", IgnoreFile, err)
	}
	defer f.Close()

	rules := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IgnoreFile, err)
	}

	return rules, nil
}
