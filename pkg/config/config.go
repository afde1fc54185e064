// Package config loads orchestrator configuration from a config directory:
// a .env file layered under the process environment, plus an optional
// defaults.yaml for tunables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig holds credentials for the external LLM service.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// GraphConfig holds credentials for the external graph service.
type GraphConfig struct {
	BaseURL string
	APIKey  string
}

// BuildDefaults are graph-build tunables, overridable via defaults.yaml.
type BuildDefaults struct {
	ChunkSize      int
	ChunkOverlap   int
	BatchSize      int
	ProcessTimeout time.Duration
}

// RunnerDefaults are subprocess-supervision tunables.
type RunnerDefaults struct {
	ScriptPath      string
	MonitorInterval time.Duration
	StopGracePeriod time.Duration
}

// yamlDefaults mirrors the optional defaults.yaml file. Durations are
// strings parsed with time.ParseDuration ("3s", "10m").
type yamlDefaults struct {
	Build struct {
		ChunkSize      int    `yaml:"chunk_size"`
		ChunkOverlap   int    `yaml:"chunk_overlap"`
		BatchSize      int    `yaml:"batch_size"`
		ProcessTimeout string `yaml:"process_timeout"`
	} `yaml:"build"`
	Runner struct {
		ScriptPath      string `yaml:"script_path"`
		MonitorInterval string `yaml:"monitor_interval"`
		StopGracePeriod string `yaml:"stop_grace_period"`
	} `yaml:"runner"`
}

// Config is the resolved orchestrator configuration.
type Config struct {
	UploadRoot string
	LogDir     string
	LLM        LLMConfig
	Graph      GraphConfig
	Build      BuildDefaults
	Runner     RunnerDefaults

	// Suppresses duplicate shutdown-hook registration under dev reloaders.
	ReloaderChild bool
}

// Initialize loads configuration from configDir. A missing .env or
// defaults.yaml is not an error; the environment and built-in defaults apply.
func Initialize(configDir string) (*Config, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	cfg := &Config{
		UploadRoot: getEnv("UPLOAD_ROOT", "./uploads"),
		LogDir:     getEnv("LOG_DIR", "./logs"),
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Graph: GraphConfig{
			BaseURL: getEnv("GRAPH_BASE_URL", "http://localhost:8000"),
			APIKey:  os.Getenv("GRAPH_API_KEY"),
		},
		Build: BuildDefaults{
			ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
			ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 100),
			BatchSize:      getEnvInt("INGEST_BATCH_SIZE", 10),
			ProcessTimeout: 600 * time.Second,
		},
		Runner: RunnerDefaults{
			ScriptPath:      getEnv("SIMULATION_SCRIPT", "./scripts/run_simulation.sh"),
			MonitorInterval: 2 * time.Second,
			StopGracePeriod: 10 * time.Second,
		},
		ReloaderChild: os.Getenv("RELOADER_CHILD") == "1",
	}

	if err := cfg.applyYAMLDefaults(filepath.Join(configDir, "defaults.yaml")); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAMLDefaults(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var d yamlDefaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if d.Build.ChunkSize > 0 {
		c.Build.ChunkSize = d.Build.ChunkSize
	}
	if d.Build.ChunkOverlap > 0 {
		c.Build.ChunkOverlap = d.Build.ChunkOverlap
	}
	if d.Build.BatchSize > 0 {
		c.Build.BatchSize = d.Build.BatchSize
	}
	if dur, ok := parseDuration(d.Build.ProcessTimeout); ok {
		c.Build.ProcessTimeout = dur
	}
	if d.Runner.ScriptPath != "" {
		c.Runner.ScriptPath = d.Runner.ScriptPath
	}
	if dur, ok := parseDuration(d.Runner.MonitorInterval); ok {
		c.Runner.MonitorInterval = dur
	}
	if dur, ok := parseDuration(d.Runner.StopGracePeriod); ok {
		c.Runner.StopGracePeriod = dur
	}
	return nil
}

func parseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("Ignoring unparseable duration in defaults.yaml", "value", s, "error", err)
		return 0, false
	}
	return d, true
}

func (c *Config) validate() error {
	if c.Build.ChunkOverlap >= c.Build.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Build.ChunkOverlap, c.Build.ChunkSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("Ignoring non-integer environment value", "key", key, "value", value)
	}
	return defaultValue
}
