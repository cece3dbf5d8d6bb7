package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ATLAS_LLM_API_KEY", "")
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Workspace)
	assert.Equal(t, ModeAuto, cfg.Grouping.Mode)
	assert.Equal(t, 10, cfg.Grouping.BatchSize)
	assert.Equal(t, 8, cfg.Flows.MaxDepth)
	assert.Equal(t, 150, cfg.Flows.MaxPromptFiles)
	assert.Equal(t, 2, cfg.Flows.MaxRetries)
	assert.Equal(t, []string{"@/", "~/"}, cfg.Scan.AliasPrefixes)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.False(t, cfg.HasCredential())
	assert.Equal(t, filepath.Join(root, ".atlas", "atlas.db"), cfg.StorePath())
}

func TestLoadReadsFileAndEnvironment(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, Dir), 0o755))
	require.NoError(t, os.WriteFile(DefaultPath(root), []byte(`
workspace: team
grouping:
  mode: heuristic
  batch_size: 5
flows:
  max_depth: 4
  max_retries: 1
scan:
  ignore:
    - "*.gen.ts"
llm:
  timeout: 30s
`), 0o644))
	t.Setenv("ATLAS_FLOWS_MODE", "ai")
	t.Setenv("ATLAS_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "team", cfg.Workspace)
	assert.Equal(t, ModeHeuristic, cfg.Grouping.Mode)
	assert.Equal(t, 5, cfg.Grouping.BatchSize)
	assert.Equal(t, ModeAI, cfg.Flows.Mode)
	assert.Equal(t, 4, cfg.Flows.MaxDepth)
	assert.Equal(t, 1, cfg.Flows.MaxRetries)
	assert.Equal(t, 2, cfg.Grouping.MaxRetries)
	assert.Equal(t, []string{"*.gen.ts"}, cfg.Scan.Ignore)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)

	t.Setenv("ATLAS_LLM_API_KEY", "sk-atlas")
	cfg, err = Load(root)
	require.NoError(t, err)
	assert.Equal(t, "sk-atlas", cfg.LLM.APIKey)
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, Dir), 0o755))
	require.NoError(t, os.WriteFile(DefaultPath(root), []byte("grouping:\n  mode: magic\nstore:\n  backend: etcd\n"), 0o644))

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grouping.mode")
	assert.Contains(t, err.Error(), "store.backend")
}

func TestValidateRedisNeedsAddress(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "redis"
	assert.Error(t, cfg.Validate())
	cfg.Store.RedisAddr = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), Dir, FileName)
	written, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mode: auto")
	assert.NotContains(t, string(data), "api_key")

	written, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)

	root := filepath.Dir(filepath.Dir(path))
	t.Setenv("ATLAS_LLM_API_KEY", "")
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, Default().Flows, cfg.Flows)
}
