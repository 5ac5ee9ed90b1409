// Package config handles configuration loading for devcrew.
// It supports XDG config paths, a project-level file, and environment
// variables, and threads an explicit Config through every constructor.
// There is no package-level mutable state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for devcrew.
type Config struct {
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	Params   ParamsConfig   `mapstructure:"params"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	History  HistoryConfig  `mapstructure:"history"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// OllamaConfig holds completion-service settings.
type OllamaConfig struct {
	// BaseURL is the service root.
	BaseURL string `mapstructure:"base_url"`
	// Model is the default model for all agents.
	Model string `mapstructure:"model"`
	// Timeout bounds a single completion call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries caps transport-level retry attempts.
	MaxRetries int `mapstructure:"max_retries"`
}

// ParamsConfig holds generation parameters.
type ParamsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// AgentsConfig holds the identity of each agent.
type AgentsConfig struct {
	Coordinator AgentConfig `mapstructure:"coordinator"`
	Frontend    AgentConfig `mapstructure:"frontend"`
	Backend     AgentConfig `mapstructure:"backend"`
}

// AgentConfig is one agent's identity.
type AgentConfig struct {
	// Name is the display name used in prompts and logs.
	Name string `mapstructure:"name"`
	// Model overrides the default model when set.
	Model string `mapstructure:"model"`
	// SystemPrompt is the agent's standing instructions.
	SystemPrompt string `mapstructure:"system_prompt"`
}

// HistoryConfig holds conversation-persistence settings.
type HistoryConfig struct {
	// Enabled toggles best-effort persistence of agent histories.
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path"`
	// MaxEntries caps each agent's in-memory history.
	MaxEntries int `mapstructure:"max_entries"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// TaskTimeout is the wall-clock budget for one pipeline run.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// Concurrency caps in-flight sub-tasks per specialization.
	Concurrency int `mapstructure:"concurrency"`
	// ApprovalPolicy selects the review gate: "keyword" or "always".
	ApprovalPolicy string `mapstructure:"approval_policy"`
}

const (
	coordinatorPrompt = `You are an expert software team lead. You analyze complex problems,
break them into smaller tasks, delegate to a frontend and a backend
developer, review their work, and integrate it into a coherent,
high-quality final solution.`

	frontendPrompt = `You are an expert frontend developer. You build elegant, accessible,
responsive user interfaces with modern web technologies and integrate
them cleanly with backend APIs. You work from tasks assigned by a team
lead and coordinate with a backend developer.`

	backendPrompt = `You are an expert backend developer. You design robust server-side
systems: data models, RESTful APIs, security, and performance. You work
from tasks assigned by a team lead and expose your services through
well-designed interfaces for the frontend developer.`
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			Model:      "llama3:8b",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Params: ParamsConfig{
			Temperature: 0.7,
			TopP:        0.9,
			MaxTokens:   2000,
		},
		Agents: AgentsConfig{
			Coordinator: AgentConfig{Name: "Coordinator", SystemPrompt: coordinatorPrompt},
			Frontend:    AgentConfig{Name: "Frontend Developer", SystemPrompt: frontendPrompt},
			Backend:     AgentConfig{Name: "Backend Developer", SystemPrompt: backendPrompt},
		},
		History: HistoryConfig{
			Enabled:    true,
			Path:       defaultHistoryPath(),
			MaxEntries: 50,
		},
		Pipeline: PipelineConfig{
			TaskTimeout:    5 * time.Minute,
			Concurrency:    2,
			ApprovalPolicy: "keyword",
		},
	}
}

// defaultHistoryPath returns the XDG data location for the history db.
func defaultHistoryPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "devcrew", "history.db")
}

// ConfigPath returns the XDG path of the user config file.
func ConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "devcrew", "config.yaml")
}

// Load reads configuration from the given file (or the default locations
// when path is empty), layered over the defaults, with DEVCREW_*
// environment variables taking precedence.
func Load(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

// LoadAndWatch behaves like Load and additionally re-reads the file on
// change, invoking onChange with the fresh configuration. Used by the
// interactive loop so edits apply between tasks.
func LoadAndWatch(path string, onChange func(*Config)) (*Config, error) {
	cfg, v, err := load(path)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() != "" && onChange != nil {
		v.OnConfigChange(func(fsnotify.Event) {
			fresh := new(Config)
			if err := v.Unmarshal(fresh); err != nil {
				fmt.Fprintf(os.Stderr, "config reload failed: %v\n", err)
				return
			}
			onChange(fresh)
		})
		v.WatchConfig()
	}
	return cfg, nil
}

func load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(ConfigPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DEVCREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("ollama.base_url", def.Ollama.BaseURL)
	v.SetDefault("ollama.model", def.Ollama.Model)
	v.SetDefault("ollama.timeout", def.Ollama.Timeout)
	v.SetDefault("ollama.max_retries", def.Ollama.MaxRetries)

	v.SetDefault("params.temperature", def.Params.Temperature)
	v.SetDefault("params.top_p", def.Params.TopP)
	v.SetDefault("params.max_tokens", def.Params.MaxTokens)

	v.SetDefault("agents.coordinator.name", def.Agents.Coordinator.Name)
	v.SetDefault("agents.coordinator.system_prompt", def.Agents.Coordinator.SystemPrompt)
	v.SetDefault("agents.frontend.name", def.Agents.Frontend.Name)
	v.SetDefault("agents.frontend.system_prompt", def.Agents.Frontend.SystemPrompt)
	v.SetDefault("agents.backend.name", def.Agents.Backend.Name)
	v.SetDefault("agents.backend.system_prompt", def.Agents.Backend.SystemPrompt)

	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.path", def.History.Path)
	v.SetDefault("history.max_entries", def.History.MaxEntries)

	v.SetDefault("pipeline.task_timeout", def.Pipeline.TaskTimeout)
	v.SetDefault("pipeline.concurrency", def.Pipeline.Concurrency)
	v.SetDefault("pipeline.approval_policy", def.Pipeline.ApprovalPolicy)
}

// ModelFor resolves the model an agent should use, falling back to the
// global default.
func (c *Config) ModelFor(agent AgentConfig) string {
	if agent.Model != "" {
		return agent.Model
	}
	return c.Ollama.Model
}

// WriteSkeleton writes a YAML file with the default configuration to
// path, creating parent directories. It refuses to overwrite.
func WriteSkeleton(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	def := Default()
	skeleton := map[string]any{
		"ollama": map[string]any{
			"base_url":    def.Ollama.BaseURL,
			"model":       def.Ollama.Model,
			"timeout":     def.Ollama.Timeout.String(),
			"max_retries": def.Ollama.MaxRetries,
		},
		"params": map[string]any{
			"temperature": def.Params.Temperature,
			"top_p":       def.Params.TopP,
			"max_tokens":  def.Params.MaxTokens,
		},
		"agents": map[string]any{
			"coordinator": map[string]any{"name": def.Agents.Coordinator.Name, "system_prompt": def.Agents.Coordinator.SystemPrompt},
			"frontend":    map[string]any{"name": def.Agents.Frontend.Name, "system_prompt": def.Agents.Frontend.SystemPrompt},
			"backend":     map[string]any{"name": def.Agents.Backend.Name, "system_prompt": def.Agents.Backend.SystemPrompt},
		},
		"history": map[string]any{
			"enabled":     def.History.Enabled,
			"path":        def.History.Path,
			"max_entries": def.History.MaxEntries,
		},
		"pipeline": map[string]any{
			"task_timeout":    def.Pipeline.TaskTimeout.String(),
			"concurrency":     def.Pipeline.Concurrency,
			"approval_policy": def.Pipeline.ApprovalPolicy,
		},
	}

	data, err := yaml.Marshal(skeleton)
	if err != nil {
		return fmt.Errorf("marshal config skeleton: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config skeleton: %w", err)
	}
	return nil
}
