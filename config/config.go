package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// ProviderConfig describes one configured model backend.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// OrchestratorConfig controls retry and health-check behaviour.
type OrchestratorConfig struct {
	MaxRetries          int    `toml:"max_retries"`
	BaseDelayMS         int    `toml:"base_delay_ms"`
	MaxDelayMS          int    `toml:"max_delay_ms"`
	HealthCheckInterval string `toml:"health_check_interval"`
}

// EngineConfig controls the request loop.
type EngineConfig struct {
	HistoryLimit  int `toml:"history_limit"`
	RetrievalTopK int `toml:"retrieval_top_k"`
	MaxToolRounds int `toml:"max_tool_rounds"`
	MaxTokens     int `toml:"max_tokens"`
}

type UserConfig struct {
	Ollama              OllamaConfig       `toml:"ollama"`
	ProviderOrder       []string           `toml:"provider_order"`
	Providers           []ProviderConfig   `toml:"providers"`
	Orchestrator        OrchestratorConfig `toml:"orchestrator"`
	Engine              EngineConfig       `toml:"engine"`
	PermissionMode      string             `toml:"permission_mode"`
	DefaultSystemPrompt string             `toml:"default_system_prompt,omitempty"`
}

type Config struct {
	DataDirectory       string
	OllamaHost          string
	DefaultModel        string
	DefaultSystemPrompt string
	ProviderOrder       []string
	Providers           []ProviderConfig
	Orchestrator        OrchestratorConfig
	Engine              EngineConfig
	PermissionMode      string
	CredentialStore     *CredentialStore
}

var Debug = false

// DebugLog is the process-wide logger. It discards everything unless
// TCODE_DEBUG is set, in which case it writes JSON lines to debug.log.
var DebugLog = zap.NewNop()

func (c *Config) OllamaURL() string {
	return c.OllamaHost
}

func (c *Config) Model() string {
	return c.DefaultModel
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Provider returns the configuration for id, if present.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// RankedProviders returns the enabled provider ids in preference order.
// Providers missing from provider_order follow in declaration order.
func (c *Config) RankedProviders() []string {
	enabled := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Enabled {
			enabled[p.ID] = true
		}
	}

	var ranked []string
	seen := make(map[string]bool)
	for _, id := range c.ProviderOrder {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.Provider(id); ok && !enabled[id] {
			continue
		}
		ranked = append(ranked, id)
	}
	for _, p := range c.Providers {
		if p.Enabled && !seen[p.ID] {
			seen[p.ID] = true
			ranked = append(ranked, p.ID)
		}
	}
	return ranked
}

// RetryBaseDelay returns the first retry delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Orchestrator.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the retry delay ceiling.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Orchestrator.MaxDelayMS) * time.Millisecond
}

// HealthCheckInterval parses the configured interval. Zero disables
// background health checks.
func (c *Config) HealthCheckInterval() (time.Duration, error) {
	raw := strings.TrimSpace(c.Orchestrator.HealthCheckInterval)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid health_check_interval %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid health_check_interval %q: must not be negative", raw)
	}
	return d, nil
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("TCODE_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("TCODE_OLLAMA_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("TCODE_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if order := os.Getenv("TCODE_PROVIDER_ORDER"); order != "" {
		c.ProviderOrder = strings.Split(order, ",")
	}
}

func (c *Config) applyUserConfig(userCfg *UserConfig) {
	defaults := DefaultUserConfig()

	c.OllamaHost = userCfg.Ollama.Host
	c.DefaultModel = userCfg.Ollama.DefaultModel
	c.DefaultSystemPrompt = userCfg.DefaultSystemPrompt
	c.ProviderOrder = userCfg.ProviderOrder
	c.Providers = userCfg.Providers
	c.Orchestrator = userCfg.Orchestrator
	c.Engine = userCfg.Engine
	c.PermissionMode = userCfg.PermissionMode

	if c.OllamaHost == "" {
		c.OllamaHost = defaults.Ollama.Host
	}
	if c.Orchestrator.MaxRetries <= 0 {
		c.Orchestrator.MaxRetries = defaults.Orchestrator.MaxRetries
	}
	if c.Orchestrator.BaseDelayMS <= 0 {
		c.Orchestrator.BaseDelayMS = defaults.Orchestrator.BaseDelayMS
	}
	if c.Orchestrator.MaxDelayMS <= 0 {
		c.Orchestrator.MaxDelayMS = defaults.Orchestrator.MaxDelayMS
	}
	if c.Engine.HistoryLimit <= 0 {
		c.Engine.HistoryLimit = defaults.Engine.HistoryLimit
	}
	if c.Engine.RetrievalTopK <= 0 {
		c.Engine.RetrievalTopK = defaults.Engine.RetrievalTopK
	}
	if c.Engine.MaxToolRounds <= 0 {
		c.Engine.MaxToolRounds = defaults.Engine.MaxToolRounds
	}
	if c.Engine.MaxTokens <= 0 {
		c.Engine.MaxTokens = defaults.Engine.MaxTokens
	}
	if c.PermissionMode == "" {
		c.PermissionMode = defaults.PermissionMode
	}
}

func CheckDebug() bool {
	debug := os.Getenv("TCODE_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog points DebugLog at <dataDir>/debug.log when TCODE_DEBUG is set.
// The returned logger is also stored in DebugLog.
func InitDebugLog(dataDir string) *zap.Logger {
	if !CheckDebug() {
		return DebugLog
	}

	logPath := filepath.Join(dataDir, "debug.log")

	// Create debug log with secure permissions (0600 - may contain sensitive debug info)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return DebugLog
	}
	f.Close()

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.OutputPaths = []string{logPath}
	cfg.ErrorOutputPaths = []string{logPath}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize debug log: %v\n", err)
		return DebugLog
	}

	Debug = true
	DebugLog = logger
	DebugLog.Info("debug logging started", zap.String("env", os.Getenv("TCODE_DEBUG")), zap.String("path", logPath))
	return DebugLog
}

// Load reads settings.toml and the user config, applies environment
// overrides and loads credentials.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: GetDefaultDataDir(),
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	if systemCfg.DataDirectory != "" {
		cfg.DataDirectory = systemCfg.DataDirectory
	}
	if dataDir := os.Getenv("TCODE_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	return LoadFromDataDir(cfg.DataDirectory)
}

// LoadFromDataDir loads the user config from dataDir without consulting
// settings.toml.
func LoadFromDataDir(dataDirectory string) (*Config, error) {
	cfg := &Config{DataDirectory: dataDirectory}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	if _, err := cfg.HealthCheckInterval(); err != nil {
		return nil, err
	}

	store := NewCredentialStore()
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	return cfg, nil
}
