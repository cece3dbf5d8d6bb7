package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/config"
	"github.com/codeatlas-dev/codeatlas/internal/flows"
)

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

func OptionalBoolFlag(cmd *cobra.Command, name string, fallback bool) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return fallback, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return fallback, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

// ParseLanguageFilter returns canonical language names from --lang.
func ParseLanguageFilter(cmd *cobra.Command) ([]string, error) {
	if cmd == nil || cmd.Flags().Lookup("lang") == nil {
		return nil, nil
	}
	langs, err := cmd.Flags().GetStringSlice("lang")
	if err != nil {
		return nil, fmt.Errorf("failed to read --lang flag: %w", err)
	}
	if len(langs) == 0 {
		return nil, nil
	}

	aliases := map[string]string{
		"go":         "go",
		"python":     "python",
		"py":         "python",
		"typescript": "typescript",
		"ts":         "typescript",
		"javascript": "javascript",
		"js":         "javascript",
	}

	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		key := strings.ToLower(strings.TrimSpace(lang))
		canonical, ok := aliases[key]
		if !ok {
			return nil, fmt.Errorf("unsupported language %q (supported: go, python, typescript, javascript)", lang)
		}
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	return out, nil
}

func ParseModeFlag(cmd *cobra.Command, name string) (config.Mode, error) {
	raw, err := OptionalStringFlag(cmd, name)
	if err != nil || raw == "" {
		return "", err
	}
	mode := config.Mode(strings.ToLower(raw))
	if !mode.Valid() {
		return "", fmt.Errorf("unknown --%s %q (expected auto|ai|heuristic)", name, raw)
	}
	return mode, nil
}

func ParseMergeFlag(cmd *cobra.Command) (flows.MergeMode, error) {
	raw, err := OptionalStringFlag(cmd, "mode")
	if err != nil {
		return "", err
	}
	return flows.ParseMergeMode(raw)
}
