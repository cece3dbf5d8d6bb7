// Package config loads .atlas/config.yaml with ATLAS_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/codeatlas-dev/codeatlas/internal/fileutil"
)

const (
	Dir       = ".atlas"
	FileName  = "config.yaml"
	EnvPrefix = "ATLAS"
)

// Mode selects between model-backed and heuristic generation.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeAI        Mode = "ai"
	ModeHeuristic Mode = "heuristic"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeAI, ModeHeuristic:
		return true
	default:
		return false
	}
}

type LLM struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Grouping struct {
	Mode       Mode `mapstructure:"mode" yaml:"mode"`
	BatchSize  int  `mapstructure:"batch_size" yaml:"batch_size"`
	MaxRetries int  `mapstructure:"max_retries" yaml:"max_retries"`
}

type Flows struct {
	Mode           Mode `mapstructure:"mode" yaml:"mode"`
	MaxDepth       int  `mapstructure:"max_depth" yaml:"max_depth"`
	MaxPromptFiles int  `mapstructure:"max_prompt_files" yaml:"max_prompt_files"`
	MaxRetries     int  `mapstructure:"max_retries" yaml:"max_retries"`
}

type Scan struct {
	Ignore        []string `mapstructure:"ignore" yaml:"ignore"`
	AliasPrefixes []string `mapstructure:"alias_prefixes" yaml:"alias_prefixes"`
	Languages     []string `mapstructure:"languages" yaml:"languages"`
}

type Store struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	Path       string `mapstructure:"path" yaml:"path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type Config struct {
	Workspace string   `mapstructure:"workspace" yaml:"workspace"`
	LLM       LLM      `mapstructure:"llm" yaml:"llm"`
	Grouping  Grouping `mapstructure:"grouping" yaml:"grouping"`
	Flows     Flows    `mapstructure:"flows" yaml:"flows"`
	Scan      Scan     `mapstructure:"scan" yaml:"scan"`
	Store     Store    `mapstructure:"store" yaml:"store"`
	Log       Log      `mapstructure:"log" yaml:"log"`

	// Root is the repository the config was loaded for.
	Root string `mapstructure:"-" yaml:"-"`
}

func Default() *Config {
	return &Config{
		Workspace: "default",
		LLM: LLM{
			Model:             "gpt-4o-mini",
			Temperature:       0.2,
			MaxTokens:         4096,
			RequestsPerMinute: 30,
			Timeout:           2 * time.Minute,
		},
		Grouping: Grouping{Mode: ModeAuto, BatchSize: 10, MaxRetries: 2},
		Flows:    Flows{Mode: ModeAuto, MaxDepth: 8, MaxPromptFiles: 150, MaxRetries: 2},
		Scan:     Scan{AliasPrefixes: []string{"@/", "~/"}},
		Store:    Store{Backend: "sqlite", Path: filepath.Join(Dir, "atlas.db")},
		Log:      Log{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("workspace", d.Workspace)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.requests_per_minute", d.LLM.RequestsPerMinute)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("grouping.mode", string(d.Grouping.Mode))
	v.SetDefault("grouping.batch_size", d.Grouping.BatchSize)
	v.SetDefault("grouping.max_retries", d.Grouping.MaxRetries)
	v.SetDefault("flows.mode", string(d.Flows.Mode))
	v.SetDefault("flows.max_depth", d.Flows.MaxDepth)
	v.SetDefault("flows.max_prompt_files", d.Flows.MaxPromptFiles)
	v.SetDefault("flows.max_retries", d.Flows.MaxRetries)
	v.SetDefault("scan.ignore", []string{})
	v.SetDefault("scan.alias_prefixes", d.Scan.AliasPrefixes)
	v.SetDefault("scan.languages", []string{})
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.passphrase", "")
	v.SetDefault("log.level", d.Log.Level)
}

// Load reads repoRoot/.atlas/config.yaml. A missing file yields defaults.
// ATLAS_* variables override file values and OPENAI_API_KEY fills an empty
// llm.api_key.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(repoRoot, Dir))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Root = repoRoot
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown enumerations and non-positive limits.
func (c *Config) Validate() error {
	var errs []error
	if !c.Grouping.Mode.Valid() {
		errs = append(errs, fmt.Errorf("grouping.mode: unknown mode %q", c.Grouping.Mode))
	}
	if !c.Flows.Mode.Valid() {
		errs = append(errs, fmt.Errorf("flows.mode: unknown mode %q", c.Flows.Mode))
	}
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, errors.New("store.redis_addr: required for the redis backend"))
	}
	if c.Grouping.BatchSize <= 0 {
		errs = append(errs, errors.New("grouping.batch_size: must be positive"))
	}
	if c.Flows.MaxDepth <= 0 {
		errs = append(errs, errors.New("flows.max_depth: must be positive"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HasCredential reports whether a model key is configured.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// StorePath resolves the SQLite path against the repository root.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Root, c.Store.Path)
}

// Marshal renders c as YAML without secrets.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	out.LLM.APIKey = ""
	out.Store.Passphrase = ""
	return yaml.Marshal(&out)
}

// DefaultPath returns repoRoot/.atlas/config.yaml.
func DefaultPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}

// WriteDefault writes the default config to path unless a file is already
// there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := Default().Marshal()
	if err != nil {
		return false, err
	}
	header := "# codeatlas configuration. ATLAS_* environment variables override these values.\n"
	if err := fileutil.WriteIfMissing(path, append([]byte(header), data...), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
